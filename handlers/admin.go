// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/middleware"
	"github.com/danielhkuo/affect-exp/models"
)

// AdminHandler serves the results views. Routes are expected to sit behind
// middleware.RequireAdmin.
type AdminHandler struct {
	svc *experiment.Service
}

func NewAdminHandler(svc *experiment.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Summary handles POST /api/admin/results/summary
func (h *AdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req models.AdminSummaryRequest
	if r.ContentLength != 0 {
		if err := middleware.ParseJSONBody(w, r, &req); err != nil {
			badJSON(w)
			return
		}
	}

	resp, err := h.svc.AdminSummary(r.Context(), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("admin summary served", "admin", middleware.AdminSubject(r.Context()), "rows", len(resp.Rows))
	middleware.JSONResponse(w, http.StatusOK, resp)
}

// SessionDetail handles POST /api/admin/results/session
func (h *AdminHandler) SessionDetail(w http.ResponseWriter, r *http.Request) {
	var req models.AdminSessionDetailRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		badJSON(w)
		return
	}

	detail, err := h.svc.AdminSessionDetail(r.Context(), req.SessionID, req.EventLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("admin session detail served", "admin", middleware.AdminSubject(r.Context()), "session_id", req.SessionID)
	middleware.JSONResponse(w, http.StatusOK, detail)
}
