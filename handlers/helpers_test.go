// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/affect-exp/auth"
	"github.com/danielhkuo/affect-exp/cliparse"
	"github.com/danielhkuo/affect-exp/experiment"
	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/store"
	"github.com/danielhkuo/affect-exp/testutil"
)

type testEnv struct {
	t        *testing.T
	cfg      cliparse.Config
	store    store.Store
	svc      *experiment.Service
	stimuli  []string
	sessions *SessionHandler
	stimulus *StimulusHandler
	admin    *AdminHandler
}

// newTestEnv wires handlers over a fresh SQLite store seeded with n stimuli.
func newTestEnv(t *testing.T, n int) *testEnv {
	t.Helper()

	cfg := testutil.GetTestConfig()
	st := testutil.SetupTestStore(t)
	svc := experiment.NewService(st, experiment.Config{
		LeaseDuration:     cfg.LeaseDuration(),
		StimuliPerSession: cfg.StimuliPerSession,
		CompletionURL:     cfg.RedirectURL(),
	})

	return &testEnv{
		t:        t,
		cfg:      cfg,
		store:    st,
		svc:      svc,
		stimuli:  testutil.SeedStimuli(t, st, n),
		sessions: NewSessionHandler(svc, auth.NewProlificVerifier(cfg.ProlificJWTSecret, false)),
		stimulus: NewStimulusHandler(svc),
		admin:    NewAdminHandler(svc),
	}
}

// do runs one request against handler and returns the recorder.
func (e *testEnv) do(handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	req := testutil.MakeRequest("POST", path, body, nil)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

// start opens a session for pid through the HTTP handler.
func (e *testEnv) start(pid string) models.SessionStartResponse {
	e.t.Helper()
	token := testutil.ProlificToken(e.t, e.cfg.ProlificJWTSecret, pid, "study1", "ps-"+pid)
	w := e.do(e.sessions.Start, "/api/session/start", models.SessionStartRequest{
		SecuredURLJWT:            token,
		ExperimentTargetOverride: models.TargetSelf,
	})
	testutil.AssertStatus(e.t, w, http.StatusOK)

	var resp models.SessionStartResponse
	testutil.AssertJSON(e.t, w, &resp)
	return resp
}

func (e *testEnv) next(sessionID string) models.NextStimulus {
	e.t.Helper()
	w := e.do(e.stimulus.Next, "/api/stimulus/next", models.StimulusNextRequest{SessionID: sessionID})
	testutil.AssertStatus(e.t, w, http.StatusOK)

	var next models.NextStimulus
	testutil.AssertJSON(e.t, w, &next)
	return next
}

// eventBody builds a raw event batch body; events are given as type and
// extra fields.
func eventBody(sessionID, stimulusID, runID string, events ...map[string]any) map[string]any {
	list := make([]map[string]any, 0, len(events))
	for i, ev := range events {
		e := map[string]any{
			"session_id":        sessionID,
			"run_id":            runID,
			"stimulus_id":       stimulusID,
			"client_event_seq":  i + 1,
			"t_rel_ms":          (i + 1) * 100,
			"t_epoch_client_ms": 1740830400000 + i,
		}
		for k, v := range ev {
			e[k] = v
		}
		list = append(list, e)
	}
	return map[string]any{"session_id": sessionID, "run_id": runID, "events": list}
}
