// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/store"
)

func validShift(v string) bool {
	switch v {
	case models.ShiftYes, models.ShiftNo, models.ShiftNotSure:
		return true
	}
	return false
}

func validDirection(v string) bool {
	switch v {
	case models.DirectionMorePositive, models.DirectionMoreNegative, models.DirectionMixed, models.DirectionUnsure:
		return true
	}
	return false
}

// SaveRating stores the participant's rating of one hold. A later save for
// the same hold replaces the earlier one.
func (s *Service) SaveRating(ctx context.Context, req models.RatingSaveRequest) (err error) {
	ctx, span := s.startSpan(ctx, "SaveRating",
		attribute.String("session_id", req.SessionID),
		attribute.String("hold_id", req.HoldID),
	)
	defer func() { endSpan(span, err) }()

	if req.HoldID == "" || req.StimulusID == "" || req.RunID == "" {
		return validationf("hold_id, stimulus_id and run_id are required")
	}
	if !validShift(req.ShiftDecision) {
		return validationf("invalid shift_decision %q", req.ShiftDecision)
	}
	if !validDirection(req.Direction) {
		return validationf("invalid direction %q", req.Direction)
	}
	c := req.Confidence
	if !c.Valid || c.Value != math.Trunc(c.Value) || c.Value < 1 || c.Value > 5 {
		return validationf("confidence must be an integer from 1 to 5")
	}

	if _, err := s.checkLease(ctx, "rating", req.SessionID, req.LeaseToken); err != nil {
		return err
	}

	rows, err := s.store.ListSessionStimuli(ctx, req.SessionID)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	if _, ok := findAssignment(rows, req.StimulusID); !ok {
		return ErrStimulusNotAssigned
	}

	hold, err := s.store.GetHold(ctx, req.SessionID, req.HoldID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("hold %q: %w", req.HoldID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load hold: %w", err)
	}
	if hold.StimulusID != req.StimulusID {
		return validationf("hold stimulus mismatch")
	}
	if hold.RunID != req.RunID {
		return validationf("hold run mismatch")
	}

	rating := models.HoldRating{
		HoldID:        req.HoldID,
		SessionID:     req.SessionID,
		StimulusID:    req.StimulusID,
		RunID:         req.RunID,
		ShiftDecision: req.ShiftDecision,
		Direction:     req.Direction,
		FeelingBefore: req.FeelingBefore,
		FeelingAfter:  req.FeelingAfter,
		Confidence:    int(c.Value),
		CreatedAt:     s.clock(),
	}
	if err := s.store.PutHoldRating(ctx, rating); err != nil {
		return fmt.Errorf("save rating: %w", err)
	}
	return nil
}
