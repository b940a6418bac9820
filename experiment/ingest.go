// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/store"
)

// IngestEvents stores a batch of client events and the holds derived from
// them, then advances the assignment's progress once for the whole batch.
//
// Every precondition is checked before the first write. Re-sending a batch
// is safe: events and holds are put only if absent and duplicates count as
// stored. Any other write failure aborts the batch un-acked.
func (s *Service) IngestEvents(ctx context.Context, batch models.EventBatchRequest) (resp models.EventBatchResponse, err error) {
	ctx, span := s.startSpan(ctx, "IngestEvents",
		attribute.String("session_id", batch.SessionID),
		attribute.String("run_id", batch.RunID),
		attribute.Int("events", len(batch.Events)),
	)
	defer func() { endSpan(span, err) }()

	stimulusID, err := validateBatch(batch)
	if err != nil {
		return models.EventBatchResponse{}, err
	}

	sess, err := s.getSession(ctx, batch.SessionID)
	if err != nil {
		return models.EventBatchResponse{}, err
	}
	if sess.Status == models.SessionComplete {
		return models.EventBatchResponse{}, ErrSessionComplete
	}

	rows, err := s.store.ListSessionStimuli(ctx, batch.SessionID)
	if err != nil {
		return models.EventBatchResponse{}, fmt.Errorf("list assignments: %w", err)
	}
	if _, ok := findAssignment(rows, stimulusID); !ok {
		return models.EventBatchResponse{}, ErrStimulusNotAssigned
	}

	now := s.clock()
	deriver := newHoldDeriver(sess, batch.RunID, now)
	acked := make([]int64, 0, len(batch.Events))
	var stored, duplicates int
	sawRevealEnd := false

	for _, ev := range batch.Events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return models.EventBatchResponse{}, fmt.Errorf("encode event %d: %w", ev.ClientEventSeq, err)
		}

		err = s.store.PutEvent(ctx, models.StoredEvent{
			SessionID:        batch.SessionID,
			EventKey:         models.EventKey(ev.StimulusID, ev.RunID, ev.ClientEventSeq),
			StimulusID:       ev.StimulusID,
			RunID:            ev.RunID,
			ClientEventSeq:   ev.ClientEventSeq,
			Type:             string(ev.Type),
			ExperimentTarget: sess.ExperimentTarget,
			ReceivedAtMs:     now.UnixMilli(),
			Payload:          payload,
		})
		switch {
		case errors.Is(err, store.ErrConditionFailed):
			duplicates++
		case err != nil:
			return models.EventBatchResponse{}, fmt.Errorf("store event %d: %w", ev.ClientEventSeq, err)
		default:
			stored++
		}

		if hold, ok := deriver.derive(ev); ok {
			err := s.store.PutHold(ctx, hold)
			switch {
			case errors.Is(err, store.ErrConditionFailed):
				// derived by an earlier delivery
			case err != nil:
				return models.EventBatchResponse{}, fmt.Errorf("store hold %q: %w", hold.HoldID, err)
			default:
				s.metrics.RecordHold(hold.EpisodeType)
			}
		}

		if ev.Type == models.EventRevealEnd {
			sawRevealEnd = true
		}
		acked = append(acked, ev.ClientEventSeq)
	}

	if err := s.MarkStimulusRunProgress(ctx, batch.SessionID, stimulusID, batch.RunID, sawRevealEnd, now); err != nil {
		return models.EventBatchResponse{}, err
	}

	s.metrics.RecordEvents(stored, duplicates)
	slog.Debug("event batch ingested",
		"session_id", batch.SessionID,
		"stimulus_id", stimulusID,
		"run_id", batch.RunID,
		"stored", stored,
		"duplicates", duplicates,
		"reveal_end", sawRevealEnd,
	)
	return models.EventBatchResponse{AckedClientEventSeq: acked}, nil
}

// validateBatch checks the batch's shape and returns its single stimulus id.
func validateBatch(batch models.EventBatchRequest) (string, error) {
	if batch.SessionID == "" || batch.RunID == "" {
		return "", validationf("session_id and run_id are required")
	}
	if len(batch.Events) == 0 {
		return "", validationf("events must be a non-empty array")
	}

	stimulusID := ""
	for _, ev := range batch.Events {
		if ev.SessionID != batch.SessionID {
			return "", ErrEventSessionMismatch
		}
		if ev.RunID != batch.RunID {
			return "", ErrEventRunMismatch
		}
		if ev.StimulusID == "" {
			return "", validationf("event %d is missing stimulus_id", ev.ClientEventSeq)
		}
		if stimulusID == "" {
			stimulusID = ev.StimulusID
		}
		if ev.StimulusID != stimulusID {
			return "", ErrMixedStimulusInBatch
		}
		if !ev.Type.Known() {
			return "", validationf("unknown event type %q", ev.Type)
		}
		if ev.ClientEventSeq < 0 {
			return "", validationf("client_event_seq must be non-negative")
		}
	}
	return stimulusID, nil
}
