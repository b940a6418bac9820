// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/testutil"
)

func TestAdminSummary(t *testing.T) {
	env := newTestEnv(t, 2)
	first := env.start("pid1")
	second := env.start("pid2")
	env.next(first.SessionID)

	w := env.do(env.admin.Summary, "/api/admin/results/summary", models.AdminSummaryRequest{})
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.AdminSummaryResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(resp.Rows))
	}

	counts := map[string]int{}
	for _, row := range resp.Rows {
		counts[row.SessionID] = row.AssignedCount
	}
	if counts[first.SessionID] != 1 || counts[second.SessionID] != 0 {
		t.Errorf("Unexpected assigned counts: %v", counts)
	}
}

func TestAdminSummaryNoBody(t *testing.T) {
	env := newTestEnv(t, 1)
	env.start("pid1")

	req := httptest.NewRequest("POST", "/api/admin/results/summary", nil)
	w := httptest.NewRecorder()
	env.admin.Summary(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.AdminSummaryResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(resp.Rows))
	}
	if resp.Limit <= 0 {
		t.Errorf("Expected a positive default limit, got %d", resp.Limit)
	}
}

func TestAdminSessionDetail(t *testing.T) {
	env := newTestEnv(t, 1)
	sess := env.start("pid1")
	next := env.next(sess.SessionID)

	w := env.do(env.stimulus.EventsBatch, "/api/events/batch", eventBody(sess.SessionID, next.StimulusID, "run1",
		map[string]any{"type": "RUN_START"},
		map[string]any{"type": "UNCERTAINTY_MARK", "word_index": 2},
	))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = env.do(env.admin.SessionDetail, "/api/admin/results/session", models.AdminSessionDetailRequest{
		SessionID: sess.SessionID,
	})
	testutil.AssertStatus(t, w, http.StatusOK)

	var detail models.AdminSessionDetail
	testutil.AssertJSON(t, w, &detail)
	if detail.Session.SessionID != sess.SessionID {
		t.Errorf("Expected session %s, got %s", sess.SessionID, detail.Session.SessionID)
	}
	if detail.Participant == nil || detail.Participant.ProlificPID != "pid1" {
		t.Errorf("Expected participant pid1, got %+v", detail.Participant)
	}
	if len(detail.Stimuli) != 1 || detail.Stimuli[0].StimulusID != next.StimulusID {
		t.Errorf("Unexpected stimuli: %+v", detail.Stimuli)
	}
	if len(detail.Holds) != 1 || detail.Holds[0].EpisodeType != models.EpisodeClickPoint {
		t.Errorf("Expected one click_point hold, got %+v", detail.Holds)
	}
	if len(detail.Events) != 2 || detail.EventsTruncated {
		t.Errorf("Expected 2 untruncated events, got %d (truncated=%v)", len(detail.Events), detail.EventsTruncated)
	}
}

func TestAdminSessionDetailErrors(t *testing.T) {
	env := newTestEnv(t, 1)

	w := env.do(env.admin.SessionDetail, "/api/admin/results/session", models.AdminSessionDetailRequest{})
	testutil.AssertErrorReason(t, w, http.StatusBadRequest, "validation_error")

	w = env.do(env.admin.SessionDetail, "/api/admin/results/session", models.AdminSessionDetailRequest{SessionID: "missing"})
	testutil.AssertErrorReason(t, w, http.StatusNotFound, "not_found")
}
