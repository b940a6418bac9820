// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielhkuo/affect-exp/metrics"
	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/store"
)

// activeStatuses are the statuses a row can still leave.
var activeStatuses = []string{models.AssignmentAssigned, models.AssignmentInProgress}

// NextStimulus returns the stimulus the session should read next, or
// {done: true} when its quota is met or the pool is exhausted.
//
// Each call first marks the newest started-but-unfinished assignment as
// interrupted. An allocated row that never saw events is handed back as is,
// so retries before the reveal starts are idempotent. New allocations claim
// the least-completed stimulus with a compare-and-increment on its counter
// and then put the row at the next order; losing either race restarts from
// a fresh read, at most maxAllocationAttempts times.
func (s *Service) NextStimulus(ctx context.Context, sessionID, category string) (next models.NextStimulus, err error) {
	ctx, span := s.startSpan(ctx, "NextStimulus",
		attribute.String("session_id", sessionID),
		attribute.String("category", category),
	)
	defer func() { endSpan(span, err) }()

	if sessionID == "" {
		return models.NextStimulus{}, validationf("session_id is required")
	}
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return models.NextStimulus{}, err
	}

	now := s.clock()
	if err := s.sweepInterrupted(ctx, sessionID, now); err != nil {
		return models.NextStimulus{}, err
	}

	for attempt := range maxAllocationAttempts {
		if attempt > 0 {
			s.metrics.RecordAssignmentRetry()
			slog.Debug("retrying stimulus allocation", "session_id", sessionID, "attempt", attempt+1)
		}

		rows, err := s.store.ListSessionStimuli(ctx, sessionID)
		if err != nil {
			return models.NextStimulus{}, fmt.Errorf("list assignments: %w", err)
		}

		if row, ok := firstUnstarted(rows); ok {
			s.metrics.RecordAssignment(metrics.OutcomeResumed)
			return s.present(ctx, row)
		}

		if countStatus(rows, models.AssignmentDone) >= s.cfg.StimuliPerSession {
			s.metrics.RecordAssignment(metrics.OutcomeExhausted)
			return models.NextStimulus{Done: true}, nil
		}

		candidates, err := s.candidates(ctx, rows, category)
		if err != nil {
			return models.NextStimulus{}, err
		}
		if len(candidates) == 0 {
			s.metrics.RecordAssignment(metrics.OutcomeExhausted)
			return models.NextStimulus{Done: true}, nil
		}

		counters, err := s.store.ListAssignmentCounters(ctx)
		if err != nil {
			return models.NextStimulus{}, fmt.Errorf("list assignment counters: %w", err)
		}
		chosen := s.pickLeastAssigned(candidates, counters)

		err = s.store.ClaimStimulus(ctx, chosen.StimulusID, counters[chosen.StimulusID].ClaimVersion)
		if errors.Is(err, store.ErrConditionFailed) {
			continue
		}
		if err != nil {
			return models.NextStimulus{}, fmt.Errorf("claim stimulus: %w", err)
		}

		row := models.SessionStimulus{
			SessionID:     sessionID,
			StimulusOrder: maxOrder(rows) + 1,
			StimulusID:    chosen.StimulusID,
			Status:        models.AssignmentAssigned,
			SeenEvents:    false,
			AssignedAt:    now,
		}
		err = s.store.PutSessionStimulus(ctx, row)
		if errors.Is(err, store.ErrConditionFailed) {
			continue
		}
		if err != nil {
			return models.NextStimulus{}, fmt.Errorf("allocate assignment: %w", err)
		}

		if err := s.store.SetCurrentIndex(ctx, sessionID, row.StimulusOrder, now); err != nil {
			return models.NextStimulus{}, fmt.Errorf("update current index: %w", err)
		}

		s.metrics.RecordAssignment(metrics.OutcomeAllocated)
		slog.Info("stimulus assigned",
			"session_id", sessionID,
			"stimulus_id", chosen.StimulusID,
			"stimulus_order", row.StimulusOrder,
		)
		return nextFor(row, chosen), nil
	}

	s.metrics.RecordAssignment(metrics.OutcomeContended)
	slog.Warn("stimulus allocation contended", "session_id", sessionID, "attempts", maxAllocationAttempts)
	return models.NextStimulus{}, ErrAssignmentContention
}

// sweepInterrupted marks the highest-order row that saw events but never
// finished as interrupted. Rows that never saw events stay resumable.
func (s *Service) sweepInterrupted(ctx context.Context, sessionID string, now time.Time) error {
	rows, err := s.store.ListSessionStimuli(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}

	var candidate *models.SessionStimulus
	for i := range rows {
		if rows[i].Active() && rows[i].SeenEvents {
			if candidate == nil || rows[i].StimulusOrder > candidate.StimulusOrder {
				candidate = &rows[i]
			}
		}
	}
	if candidate == nil {
		return nil
	}

	err = s.store.TransitionSessionStimulus(ctx, store.Transition{
		SessionID:   sessionID,
		Order:       candidate.StimulusOrder,
		From:        activeStatuses,
		To:          models.AssignmentInterrupted,
		CompletedAt: &now,
	})
	if errors.Is(err, store.ErrConditionFailed) {
		// Finished or swept by a concurrent request.
		slog.Debug("interruption sweep skipped", "session_id", sessionID, "stimulus_order", candidate.StimulusOrder)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark interrupted: %w", err)
	}

	s.metrics.RecordInterruption()
	slog.Info("assignment interrupted",
		"session_id", sessionID,
		"stimulus_id", candidate.StimulusID,
		"stimulus_order", candidate.StimulusOrder,
	)
	return nil
}

// candidates returns the eligible stimuli not yet assigned to the session.
func (s *Service) candidates(ctx context.Context, rows []models.SessionStimulus, category string) ([]models.Stimulus, error) {
	all, err := s.store.ListStimuli(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stimuli: %w", err)
	}

	assigned := make(map[string]bool, len(rows))
	for _, row := range rows {
		assigned[row.StimulusID] = true
	}

	var out []models.Stimulus
	for _, st := range all {
		if !st.Active || st.Text == "" || assigned[st.StimulusID] {
			continue
		}
		if category != "" && st.Category != category {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// pickLeastAssigned picks uniformly among the candidates with the lowest
// completed count and, within those, the fewest claims. Claims count
// allocations still in flight, so overlapping sessions spread across the
// pool before any of them finishes. Missing counters count as zero.
func (s *Service) pickLeastAssigned(candidates []models.Stimulus, counters map[string]models.AssignmentCounter) models.Stimulus {
	var bucket []models.Stimulus
	var lowest models.AssignmentCounter
	for _, st := range candidates {
		c := counters[st.StimulusID]
		switch {
		case len(bucket) == 0 || lessLoaded(c, lowest):
			lowest = c
			bucket = []models.Stimulus{st}
		case c.AssignedCount == lowest.AssignedCount && c.ClaimVersion == lowest.ClaimVersion:
			bucket = append(bucket, st)
		}
	}
	return bucket[s.intn(len(bucket))]
}

func lessLoaded(a, b models.AssignmentCounter) bool {
	if a.AssignedCount != b.AssignedCount {
		return a.AssignedCount < b.AssignedCount
	}
	return a.ClaimVersion < b.ClaimVersion
}

func (s *Service) present(ctx context.Context, row models.SessionStimulus) (models.NextStimulus, error) {
	st, err := s.store.GetStimulus(ctx, row.StimulusID)
	if errors.Is(err, store.ErrNotFound) {
		return models.NextStimulus{}, fmt.Errorf("assigned stimulus %q: %w", row.StimulusID, ErrNotFound)
	}
	if err != nil {
		return models.NextStimulus{}, fmt.Errorf("load stimulus: %w", err)
	}
	return nextFor(row, st), nil
}

func nextFor(row models.SessionStimulus, st models.Stimulus) models.NextStimulus {
	sourceKey := st.SourceKey
	if sourceKey == "" {
		sourceKey = st.StimulusID
	}
	return models.NextStimulus{
		StimulusOrder: row.StimulusOrder,
		StimulusID:    st.StimulusID,
		Text:          st.Text,
		SourceKey:     sourceKey,
	}
}

// MarkStimulusRunProgress records that a run of stimulusID produced events.
// With done set, the row becomes done and the stimulus's completed count is
// incremented in the same transaction; otherwise the row becomes
// in_progress. Terminal rows are never changed, and a lost race is not an
// error. A stimulus that is not assigned to the session is ignored.
func (s *Service) MarkStimulusRunProgress(ctx context.Context, sessionID, stimulusID, runID string, done bool, now time.Time) error {
	rows, err := s.store.ListSessionStimuli(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	row, ok := findAssignment(rows, stimulusID)
	if !ok {
		return nil
	}

	t := store.Transition{
		SessionID:  sessionID,
		Order:      row.StimulusOrder,
		From:       activeStatuses,
		RunID:      runID,
		SeenEvents: true,
	}
	if done {
		t.To = models.AssignmentDone
		t.CompletedAt = &now
		err = s.store.CompleteSessionStimulus(ctx, t, stimulusID)
	} else {
		t.To = models.AssignmentInProgress
		err = s.store.TransitionSessionStimulus(ctx, t)
	}

	if errors.Is(err, store.ErrConditionFailed) {
		slog.Debug("progress update skipped",
			"session_id", sessionID,
			"stimulus_id", stimulusID,
			"status", row.Status,
			"done", done,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark progress: %w", err)
	}

	if done {
		slog.Info("stimulus completed", "session_id", sessionID, "stimulus_id", stimulusID, "run_id", runID)
	}
	return nil
}

func firstUnstarted(rows []models.SessionStimulus) (models.SessionStimulus, bool) {
	for _, row := range rows {
		if row.Status == models.AssignmentAssigned && !row.SeenEvents {
			return row, true
		}
	}
	return models.SessionStimulus{}, false
}

func findAssignment(rows []models.SessionStimulus, stimulusID string) (models.SessionStimulus, bool) {
	for _, row := range rows {
		if row.StimulusID == stimulusID {
			return row, true
		}
	}
	return models.SessionStimulus{}, false
}

func countStatus(rows []models.SessionStimulus, status string) int {
	n := 0
	for _, row := range rows {
		if row.Status == status {
			n++
		}
	}
	return n
}

func maxOrder(rows []models.SessionStimulus) int {
	m := 0
	for _, row := range rows {
		m = max(m, row.StimulusOrder)
	}
	return m
}
