// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/store"
)

// Admin query limits.
const (
	DefaultSummaryLimit = 100
	MaxSummaryLimit     = 500
	DefaultEventLimit   = 1000
	MinEventLimit       = 10
	MaxEventLimit       = 5000

	adminFanOut = 8
)

func clampLimit(requested *int, def, lo, hi int) int {
	if requested == nil {
		return def
	}
	return max(lo, min(hi, *requested))
}

// getParticipantOptional returns nil when the participant record is missing.
func (s *Service) getParticipantOptional(ctx context.Context, participantID string) (*models.Participant, error) {
	p, err := s.store.GetParticipant(ctx, participantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load participant: %w", err)
	}
	return &p, nil
}

// AdminSummary lists the most recent sessions with assignment and event
// counts. The limit is clamped to [1, 500] and defaults to 100.
func (s *Service) AdminSummary(ctx context.Context, requested *int) (resp models.AdminSummaryResponse, err error) {
	limit := clampLimit(requested, DefaultSummaryLimit, 1, MaxSummaryLimit)
	ctx, span := s.startSpan(ctx, "AdminSummary", attribute.Int("limit", limit))
	defer func() { endSpan(span, err) }()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return models.AdminSummaryResponse{}, fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}

	rows := make([]models.AdminSessionSummaryRow, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(adminFanOut)
	for i, sess := range sessions {
		g.Go(func() error {
			row, err := s.summarize(gctx, sess)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.AdminSummaryResponse{}, err
	}

	return models.AdminSummaryResponse{Rows: rows, Limit: limit}, nil
}

func (s *Service) summarize(ctx context.Context, sess models.Session) (models.AdminSessionSummaryRow, error) {
	var (
		participant *models.Participant
		assignments []models.SessionStimulus
		eventsCount int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		participant, err = s.getParticipantOptional(gctx, sess.ParticipantID)
		return err
	})
	g.Go(func() (err error) {
		assignments, err = s.store.ListSessionStimuli(gctx, sess.SessionID)
		return err
	})
	g.Go(func() (err error) {
		eventsCount, err = s.store.CountEvents(gctx, sess.SessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.AdminSessionSummaryRow{}, fmt.Errorf("summarize session %q: %w", sess.SessionID, err)
	}

	row := models.AdminSessionSummaryRow{
		SessionID:        sess.SessionID,
		ParticipantID:    sess.ParticipantID,
		Status:           sess.Status,
		CalibrationGroup: sess.CalibrationGroup,
		MsPerWord:        sess.MsPerWord,
		CreatedAt:        sess.CreatedAt,
		UpdatedAt:        sess.UpdatedAt,
		AssignedCount:    len(assignments),
		DoneCount:        countStatus(assignments, models.AssignmentDone),
		InterruptedCount: countStatus(assignments, models.AssignmentInterrupted),
		InProgressCount:  countStatus(assignments, models.AssignmentInProgress),
		EventsCount:      eventsCount,
	}
	if participant != nil {
		row.ProlificPID = participant.ProlificPID
	}
	return row, nil
}

// AdminSessionDetail returns one session with its participant, assignments,
// holds and up to eventLimit events. The limit is clamped to [10, 5000] and
// defaults to 1000.
func (s *Service) AdminSessionDetail(ctx context.Context, sessionID string, requested *int) (detail models.AdminSessionDetail, err error) {
	limit := clampLimit(requested, DefaultEventLimit, MinEventLimit, MaxEventLimit)
	ctx, span := s.startSpan(ctx, "AdminSessionDetail",
		attribute.String("session_id", sessionID),
		attribute.Int("event_limit", limit),
	)
	defer func() { endSpan(span, err) }()

	if sessionID == "" {
		return models.AdminSessionDetail{}, validationf("session_id is required")
	}
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return models.AdminSessionDetail{}, err
	}
	detail.Session = sess

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		detail.Participant, err = s.getParticipantOptional(gctx, sess.ParticipantID)
		return err
	})
	g.Go(func() (err error) {
		detail.Assignments, err = s.store.ListSessionStimuli(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		detail.Events, detail.EventsTruncated, err = s.store.ListEvents(gctx, sessionID, limit)
		return err
	})
	g.Go(func() (err error) {
		detail.Holds, err = s.store.ListHolds(gctx, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.AdminSessionDetail{}, fmt.Errorf("load session detail: %w", err)
	}

	detail.Stimuli, err = s.resolveStimuli(ctx, detail.Assignments)
	if err != nil {
		return models.AdminSessionDetail{}, err
	}
	return detail, nil
}

// resolveStimuli looks up text and category for each assignment. A missing
// stimulus leaves them empty.
func (s *Service) resolveStimuli(ctx context.Context, assignments []models.SessionStimulus) ([]models.AdminStimulusView, error) {
	views := make([]models.AdminStimulusView, len(assignments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(adminFanOut)
	for i, a := range assignments {
		g.Go(func() error {
			views[i] = models.AdminStimulusView{
				StimulusID:    a.StimulusID,
				StimulusOrder: a.StimulusOrder,
				Status:        a.Status,
				LatestRunID:   a.LatestRunID,
			}
			st, err := s.store.GetStimulus(gctx, a.StimulusID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("load stimulus %q: %w", a.StimulusID, err)
			}
			views[i].Text = st.Text
			views[i].Category = st.Category
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}
