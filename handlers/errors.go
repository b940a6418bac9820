// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/affect-exp/auth"
	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/middleware"
	"github.com/danielhkuo/affect-exp/models"
)

type errorMapping struct {
	err    error
	status int
	reason string
}

// errorTable maps service errors to HTTP responses. Order matters only for
// errors that wrap more than one sentinel.
var errorTable = []errorMapping{
	{experiment.ErrNotFound, http.StatusNotFound, "not_found"},
	{experiment.ErrLeaseConflict, http.StatusConflict, "lease_conflict"},
	{experiment.ErrValidation, http.StatusBadRequest, "validation_error"},
	{experiment.ErrDuplicateParticipant, http.StatusConflict, "duplicate_participant"},
	{experiment.ErrAssignmentContention, http.StatusConflict, "assignment_contention"},
	{experiment.ErrMixedStimulusInBatch, http.StatusBadRequest, "mixed_stimulus_in_batch"},
	{experiment.ErrStimulusNotAssigned, http.StatusBadRequest, "stimulus_not_assigned"},
	{experiment.ErrEventSessionMismatch, http.StatusBadRequest, "event_session_mismatch"},
	{experiment.ErrEventRunMismatch, http.StatusBadRequest, "event_run_mismatch"},
	{experiment.ErrSessionComplete, http.StatusConflict, "session_complete"},
	{auth.ErrNotConfigured, http.StatusServiceUnavailable, "identity_not_configured"},
	{auth.ErrInvalidIdentity, http.StatusBadRequest, "invalid_identity"},
}

// writeError maps err to a status and reason and writes the error body.
// Unrecognised errors are logged and reported as internal_error.
func writeError(w http.ResponseWriter, err error) {
	for _, m := range errorTable {
		if !errors.Is(err, m.err) {
			continue
		}
		resp := models.ErrorResponse{OK: false, Error: m.reason, Message: err.Error()}
		if m.err == experiment.ErrLeaseConflict {
			resp.ActiveElsewhere = true
		}
		middleware.JSONResponse(w, m.status, resp)
		return
	}

	slog.Error("request failed", "error", err)
	middleware.ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error")
}

// badJSON reports an unparseable request body.
func badJSON(w http.ResponseWriter) {
	middleware.ErrorResponse(w, http.StatusBadRequest, "validation_error", "Invalid JSON")
}
