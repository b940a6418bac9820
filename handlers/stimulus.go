// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/middleware"
	"github.com/danielhkuo/affect-exp/models"
)

// StimulusHandler serves the reading task: stimulus assignment, event
// upload and hold ratings.
type StimulusHandler struct {
	svc *experiment.Service
}

func NewStimulusHandler(svc *experiment.Service) *StimulusHandler {
	return &StimulusHandler{svc: svc}
}

// Next handles POST /api/stimulus/next
func (h *StimulusHandler) Next(w http.ResponseWriter, r *http.Request) {
	var req models.StimulusNextRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		badJSON(w)
		return
	}

	next, err := h.svc.NextStimulus(r.Context(), req.SessionID, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, next)
}

// EventsBatch handles POST /api/events/batch
func (h *StimulusHandler) EventsBatch(w http.ResponseWriter, r *http.Request) {
	var req models.EventBatchRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		badJSON(w)
		return
	}

	resp, err := h.svc.IngestEvents(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// SaveRating handles POST /api/ratings/save
func (h *StimulusHandler) SaveRating(w http.ResponseWriter, r *http.Request) {
	var req models.RatingSaveRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		badJSON(w)
		return
	}

	if err := h.svc.SaveRating(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.OKResponse{OK: true})
}
