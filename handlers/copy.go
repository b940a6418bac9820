// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/affect-exp/copytext"
	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/middleware"
	"github.com/danielhkuo/affect-exp/models"
)

type CopyHandler struct {
	svc   *experiment.Service
	cache *copytext.Cache
}

func NewCopyHandler(svc *experiment.Service, cache *copytext.Cache) *CopyHandler {
	return &CopyHandler{svc: svc, cache: cache}
}

// Get handles POST /api/copy/get. With a session_id the target and modality
// come from the session; otherwise from the request.
func (h *CopyHandler) Get(w http.ResponseWriter, r *http.Request) {
	var req models.CopyGetRequest
	if r.ContentLength != 0 {
		if err := middleware.ParseJSONBody(w, r, &req); err != nil {
			badJSON(w)
			return
		}
	}

	target, modality := req.ExperimentTarget, req.InputModality
	if req.SessionID != "" {
		sess, err := h.svc.GetSession(r.Context(), req.SessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		target, modality = sess.ExperimentTarget, sess.InputModality
	}

	bundle, err := h.cache.Get(r.Context())
	if err != nil {
		slog.Error("failed to load copy bundle", "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "copy_unavailable", "Copy bundle unavailable")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CopyGetResponse{
		Version:          h.cache.Version(),
		ExperimentTarget: target,
		InputModality:    modality,
		Resolved:         copytext.Resolve(bundle, target, modality),
		Full:             bundle,
	})
}
