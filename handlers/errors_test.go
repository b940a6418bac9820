// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/affect-exp/auth"
	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/testutil"
)

func TestWriteError(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		expectedStatus int
		expectedReason string
	}{
		{"not found", fmt.Errorf("session %q: %w", "s1", experiment.ErrNotFound), http.StatusNotFound, "not_found"},
		{"lease conflict", experiment.ErrLeaseConflict, http.StatusConflict, "lease_conflict"},
		{"validation", fmt.Errorf("%w: bad", experiment.ErrValidation), http.StatusBadRequest, "validation_error"},
		{"duplicate participant", experiment.ErrDuplicateParticipant, http.StatusConflict, "duplicate_participant"},
		{"contention", experiment.ErrAssignmentContention, http.StatusConflict, "assignment_contention"},
		{"mixed stimulus", experiment.ErrMixedStimulusInBatch, http.StatusBadRequest, "mixed_stimulus_in_batch"},
		{"not assigned", experiment.ErrStimulusNotAssigned, http.StatusBadRequest, "stimulus_not_assigned"},
		{"session mismatch", experiment.ErrEventSessionMismatch, http.StatusBadRequest, "event_session_mismatch"},
		{"run mismatch", experiment.ErrEventRunMismatch, http.StatusBadRequest, "event_run_mismatch"},
		{"session complete", experiment.ErrSessionComplete, http.StatusConflict, "session_complete"},
		{"identity not configured", fmt.Errorf("prolific: %w", auth.ErrNotConfigured), http.StatusServiceUnavailable, "identity_not_configured"},
		{"invalid identity", fmt.Errorf("%w: expired", auth.ErrInvalidIdentity), http.StatusBadRequest, "invalid_identity"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tc.err)
			resp := testutil.AssertErrorReason(t, w, tc.expectedStatus, tc.expectedReason)

			if resp.OK {
				t.Error("Expected ok=false")
			}
			wantElsewhere := errors.Is(tc.err, experiment.ErrLeaseConflict)
			if resp.ActiveElsewhere != wantElsewhere {
				t.Errorf("Expected active_elsewhere=%v, got %v", wantElsewhere, resp.ActiveElsewhere)
			}
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, errors.New("pq: password authentication failed"))

	resp := testutil.AssertErrorReason(t, w, http.StatusInternalServerError, "internal_error")
	if resp.Message != "Internal server error" {
		t.Errorf("Expected generic message, got '%s'", resp.Message)
	}
}
