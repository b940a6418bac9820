// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/testutil"
)

func TestNextStimulus(t *testing.T) {
	env := newTestEnv(t, 3)
	sess := env.start("pid1")

	first := env.next(sess.SessionID)
	if first.Done {
		t.Fatal("Expected a stimulus, got done")
	}
	if first.StimulusOrder != 1 {
		t.Errorf("Expected stimulus_order 1, got %d", first.StimulusOrder)
	}
	if first.Text == "" {
		t.Error("Expected stimulus text")
	}

	// Nothing was read yet, so the same stimulus comes back.
	again := env.next(sess.SessionID)
	if again.StimulusID != first.StimulusID || again.StimulusOrder != first.StimulusOrder {
		t.Errorf("Expected retry to return %s#%d, got %s#%d",
			first.StimulusID, first.StimulusOrder, again.StimulusID, again.StimulusOrder)
	}
}

func TestNextStimulusErrors(t *testing.T) {
	env := newTestEnv(t, 1)

	w := env.do(env.stimulus.Next, "/api/stimulus/next", models.StimulusNextRequest{})
	testutil.AssertErrorReason(t, w, http.StatusBadRequest, "validation_error")

	w = env.do(env.stimulus.Next, "/api/stimulus/next", models.StimulusNextRequest{SessionID: "missing"})
	testutil.AssertErrorReason(t, w, http.StatusNotFound, "not_found")
}

func TestNextStimulusDoneAfterQuota(t *testing.T) {
	env := newTestEnv(t, 5)
	sess := env.start("pid1")

	seen := map[string]bool{}
	for i := 1; i <= env.cfg.StimuliPerSession; i++ {
		next := env.next(sess.SessionID)
		if next.Done {
			t.Fatalf("Expected stimulus %d, got done", i)
		}
		if seen[next.StimulusID] {
			t.Fatalf("Stimulus %s assigned twice", next.StimulusID)
		}
		seen[next.StimulusID] = true

		runID := "run-" + next.StimulusID
		w := env.do(env.stimulus.EventsBatch, "/api/events/batch", eventBody(sess.SessionID, next.StimulusID, runID,
			map[string]any{"type": "RUN_START"},
			map[string]any{"type": "REVEAL_END"},
		))
		testutil.AssertStatus(t, w, http.StatusOK)
	}

	if next := env.next(sess.SessionID); !next.Done {
		t.Errorf("Expected done after %d stimuli, got %+v", env.cfg.StimuliPerSession, next)
	}
}

func TestEventsBatch(t *testing.T) {
	env := newTestEnv(t, 2)
	sess := env.start("pid1")
	next := env.next(sess.SessionID)

	body := eventBody(sess.SessionID, next.StimulusID, "run1",
		map[string]any{"type": "RUN_START"},
		map[string]any{"type": "KEYDOWN", "hold_id": "h1", "start_word_index": 2},
		map[string]any{"type": "KEYUP", "hold_id": "h1", "end_word_index": 5},
	)
	w := env.do(env.stimulus.EventsBatch, "/api/events/batch", body)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.EventBatchResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.AckedClientEventSeq) != 3 {
		t.Fatalf("Expected 3 acked events, got %v", resp.AckedClientEventSeq)
	}

	hold, err := env.store.GetHold(context.Background(), sess.SessionID, "h1")
	if err != nil {
		t.Fatalf("Expected hold h1: %v", err)
	}
	if hold.StartWordIndex != 2 || hold.EndWordIndex != 5 {
		t.Errorf("Expected words 2..5, got %d..%d", hold.StartWordIndex, hold.EndWordIndex)
	}
	if hold.DurationMs != 100 {
		t.Errorf("Expected duration 100ms, got %v", hold.DurationMs)
	}

	// A re-send is acked again without duplicating rows.
	w = env.do(env.stimulus.EventsBatch, "/api/events/batch", body)
	testutil.AssertStatus(t, w, http.StatusOK)
	count, err := env.store.CountEvents(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 stored events after re-send, got %d", count)
	}
}

func TestEventsBatchErrors(t *testing.T) {
	env := newTestEnv(t, 2)
	sess := env.start("pid1")
	next := env.next(sess.SessionID)
	other := env.stimuli[0]
	if other == next.StimulusID {
		other = env.stimuli[1]
	}

	mixed := eventBody(sess.SessionID, next.StimulusID, "run1",
		map[string]any{"type": "RUN_START"},
		map[string]any{"type": "REVEAL_START", "stimulus_id": other},
	)
	wrongSession := eventBody(sess.SessionID, next.StimulusID, "run1",
		map[string]any{"type": "RUN_START", "session_id": "someone-else"},
	)
	wrongRun := eventBody(sess.SessionID, next.StimulusID, "run1",
		map[string]any{"type": "RUN_START", "run_id": "run2"},
	)

	testCases := []struct {
		name           string
		body           any
		expectedStatus int
		expectedReason string
	}{
		{"mixed stimulus", mixed, http.StatusBadRequest, "mixed_stimulus_in_batch"},
		{"session mismatch", wrongSession, http.StatusBadRequest, "event_session_mismatch"},
		{"run mismatch", wrongRun, http.StatusBadRequest, "event_run_mismatch"},
		{"not assigned", eventBody(sess.SessionID, other, "run1", map[string]any{"type": "RUN_START"}), http.StatusBadRequest, "stimulus_not_assigned"},
		{"empty batch", map[string]any{"session_id": sess.SessionID, "run_id": "run1", "events": []any{}}, http.StatusBadRequest, "validation_error"},
		{"unknown session", eventBody("missing", next.StimulusID, "run1", map[string]any{"type": "RUN_START"}), http.StatusNotFound, "not_found"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(env.stimulus.EventsBatch, "/api/events/batch", tc.body)
			testutil.AssertErrorReason(t, w, tc.expectedStatus, tc.expectedReason)
		})
	}

	count, err := env.store.CountEvents(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected rejected batches to store nothing, got %d events", count)
	}
}

func TestSaveRating(t *testing.T) {
	env := newTestEnv(t, 1)
	sess := env.start("pid1")
	next := env.next(sess.SessionID)

	w := env.do(env.stimulus.EventsBatch, "/api/events/batch", eventBody(sess.SessionID, next.StimulusID, "run1",
		map[string]any{"type": "KEYDOWN", "hold_id": "h1", "start_word_index": 0},
		map[string]any{"type": "KEYUP", "hold_id": "h1", "end_word_index": 3},
	))
	testutil.AssertStatus(t, w, http.StatusOK)

	rating := models.RatingSaveRequest{
		SessionID:     sess.SessionID,
		LeaseToken:    sess.LeaseToken,
		HoldID:        "h1",
		StimulusID:    next.StimulusID,
		RunID:         "run1",
		ShiftDecision: models.ShiftYes,
		Direction:     models.DirectionMoreNegative,
		Confidence:    models.Num(4),
	}
	w = env.do(env.stimulus.SaveRating, "/api/ratings/save", rating)
	testutil.AssertStatus(t, w, http.StatusOK)

	saved, err := env.store.GetHoldRating(context.Background(), "h1")
	if err != nil {
		t.Fatalf("Expected stored rating: %v", err)
	}
	if saved.Confidence != 4 || saved.Direction != models.DirectionMoreNegative {
		t.Errorf("Unexpected rating: %+v", saved)
	}

	t.Run("stale lease", func(t *testing.T) {
		stale := rating
		stale.LeaseToken = "stale"
		w := env.do(env.stimulus.SaveRating, "/api/ratings/save", stale)
		testutil.AssertErrorReason(t, w, http.StatusConflict, "lease_conflict")
	})

	t.Run("confidence out of range", func(t *testing.T) {
		bad := rating
		bad.Confidence = models.Num(9)
		w := env.do(env.stimulus.SaveRating, "/api/ratings/save", bad)
		testutil.AssertErrorReason(t, w, http.StatusBadRequest, "validation_error")
	})

	t.Run("unknown hold", func(t *testing.T) {
		missing := rating
		missing.HoldID = "h404"
		w := env.do(env.stimulus.SaveRating, "/api/ratings/save", missing)
		testutil.AssertErrorReason(t, w, http.StatusNotFound, "not_found")
	})
}
