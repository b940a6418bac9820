// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/store"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.MemStore
	svc   *Service
	now   time.Time
}

// newFixture builds a service over a MemStore seeded with n active stimuli
// named st-01, st-02, ... The random source always picks the first
// candidate unless opts override it.
func newFixture(t *testing.T, n int, cfg Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), store: store.NewMemStore(), now: t0}

	base := []Option{
		WithClock(func() time.Time { return f.now }),
		WithRand(func(int) int { return 0 }),
	}
	f.svc = NewService(f.store, cfg, append(base, opts...)...)

	for i := 1; i <= n; i++ {
		f.putStimulus(models.Stimulus{
			StimulusID: fmt.Sprintf("st-%02d", i),
			Text:       fmt.Sprintf("stimulus text %d", i),
			Category:   "default",
			Active:     true,
			CreatedAt:  t0,
		})
	}
	return f
}

func (f *fixture) putStimulus(st models.Stimulus) {
	f.t.Helper()
	require.NoError(f.t, f.store.PutStimulus(f.ctx, st))
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) startSession(pid string) models.Session {
	f.t.Helper()
	sess, err := f.svc.StartSession(f.ctx, models.ParticipantIdentity{
		ProlificPID:       pid,
		StudyID:           "study1",
		ProlificSessionID: "ps-" + pid,
	}, models.TargetSelf)
	require.NoError(f.t, err)
	return sess
}

func (f *fixture) next(sessionID string) models.NextStimulus {
	f.t.Helper()
	next, err := f.svc.NextStimulus(f.ctx, sessionID, "")
	require.NoError(f.t, err)
	return next
}

func (f *fixture) rows(sessionID string) []models.SessionStimulus {
	f.t.Helper()
	rows, err := f.store.ListSessionStimuli(f.ctx, sessionID)
	require.NoError(f.t, err)
	return rows
}

func (f *fixture) counter(stimulusID string) models.AssignmentCounter {
	f.t.Helper()
	counters, err := f.store.ListAssignmentCounters(f.ctx)
	require.NoError(f.t, err)
	return counters[stimulusID]
}

// ev is one event in a test batch; common fields are filled by batch.
type ev map[string]any

// batch builds a request by round-tripping each event through JSON, the
// way the HTTP layer decodes them.
func batch(t *testing.T, sessionID, stimulusID, runID string, events ...ev) models.EventBatchRequest {
	t.Helper()
	req := models.EventBatchRequest{SessionID: sessionID, RunID: runID}
	for i, e := range events {
		fields := map[string]any{
			"session_id":        sessionID,
			"run_id":            runID,
			"stimulus_id":       stimulusID,
			"client_event_seq":  i + 1,
			"t_rel_ms":          (i + 1) * 10,
			"t_epoch_client_ms": 1740830400000 + i,
		}
		for k, v := range e {
			fields[k] = v
		}
		b, err := json.Marshal(fields)
		require.NoError(t, err)

		var decoded models.Event
		require.NoError(t, json.Unmarshal(b, &decoded))
		req.Events = append(req.Events, decoded)
	}
	return req
}

// finish runs a full reveal for the session's current stimulus.
func (f *fixture) finish(sessionID, stimulusID, runID string) {
	f.t.Helper()
	_, err := f.svc.IngestEvents(f.ctx, batch(f.t, sessionID, stimulusID, runID,
		ev{"type": "RUN_START"},
		ev{"type": "REVEAL_START"},
		ev{"type": "REVEAL_END"},
	))
	require.NoError(f.t, err)
}
