// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/affect-exp/models"
)

var (
	// ErrNotFound is returned when a keyed read finds no item.
	ErrNotFound = errors.New("item not found")
	// ErrConditionFailed is matched by every failed write condition.
	ErrConditionFailed = errors.New("condition failed")
)

// ConditionError names the write condition that did not hold. It matches
// ErrConditionFailed under errors.Is.
type ConditionError struct {
	Table     string
	Condition string
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("%s: condition %q failed", e.Table, e.Condition)
}

func (e *ConditionError) Is(target error) bool {
	return target == ErrConditionFailed
}

func conditionFailed(table, condition string) error {
	return &ConditionError{Table: table, Condition: condition}
}

// Condition names used in ConditionError.
const (
	CondLockAbsent        = "lock_id absent"
	CondParticipantAbsent = "participant_id absent"
	CondSessionAbsent     = "session_id absent"
	CondLeaseToken        = "lease_token matches"
	CondOrderAbsent       = "stimulus_order absent"
	CondStatusIn          = "status in allowed set"
	CondClaimVersion      = "claim_version matches"
	CondEventAbsent       = "event_key absent"
	CondHoldAbsent        = "hold_id absent"
)

// Transition describes a guarded status change of one session stimulus row.
// The row moves to To only while its current status is in From.
type Transition struct {
	SessionID   string
	Order       int
	From        []string
	To          string
	RunID       string     // stamped as latest_run_id when set
	SeenEvents  bool       // sets seen_events when true, never clears it
	CompletedAt *time.Time // stamped as completed_at when set
}

func (t Transition) allows(status string) bool {
	for _, s := range t.From {
		if s == status {
			return true
		}
	}
	return false
}

// Store is the conditional document store every component writes through.
// Conditional writes fail with an error matching ErrConditionFailed; keyed
// reads of missing items fail with ErrNotFound.
type Store interface {
	// CreateSession puts the lock, participant and session in one
	// transaction, each only if absent.
	CreateSession(ctx context.Context, lock models.ParticipantLock, p models.Participant, s models.Session) error
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	// ListSessions returns every session, newest first.
	ListSessions(ctx context.Context) ([]models.Session, error)
	RefreshLease(ctx context.Context, sessionID, leaseToken string, expiresAt, now time.Time) error
	SaveCalibration(ctx context.Context, sessionID, leaseToken string, cal models.Calibration, now time.Time) error
	CompleteSession(ctx context.Context, sessionID, leaseToken string, now time.Time) error
	SetCurrentIndex(ctx context.Context, sessionID string, index int, now time.Time) error
	GetParticipant(ctx context.Context, participantID string) (models.Participant, error)

	// PutStimulus inserts or replaces a stimulus.
	PutStimulus(ctx context.Context, s models.Stimulus) error
	GetStimulus(ctx context.Context, stimulusID string) (models.Stimulus, error)
	ListStimuli(ctx context.Context) ([]models.Stimulus, error)

	// ListSessionStimuli returns a session's assignment rows by ascending order.
	ListSessionStimuli(ctx context.Context, sessionID string) ([]models.SessionStimulus, error)
	PutSessionStimulus(ctx context.Context, row models.SessionStimulus) error
	TransitionSessionStimulus(ctx context.Context, t Transition) error
	// CompleteSessionStimulus applies t and increments the stimulus's
	// assigned_count in one transaction.
	CompleteSessionStimulus(ctx context.Context, t Transition, stimulusID string) error

	// ListAssignmentCounters returns counters keyed by stimulus id. Stimuli
	// that were never claimed are absent.
	ListAssignmentCounters(ctx context.Context) (map[string]models.AssignmentCounter, error)
	// ClaimStimulus increments claim_version only if it still equals expected.
	ClaimStimulus(ctx context.Context, stimulusID string, expected int64) error

	PutEvent(ctx context.Context, e models.StoredEvent) error
	// ListEvents returns up to limit events in key order and whether more exist.
	ListEvents(ctx context.Context, sessionID string, limit int) ([]models.StoredEvent, bool, error)
	CountEvents(ctx context.Context, sessionID string) (int, error)

	PutHold(ctx context.Context, h models.Hold) error
	GetHold(ctx context.Context, sessionID, holdID string) (models.Hold, error)
	// ListHolds returns a session's holds ordered by hold id.
	ListHolds(ctx context.Context, sessionID string) ([]models.Hold, error)

	// PutHoldRating inserts or replaces the rating for a hold.
	PutHoldRating(ctx context.Context, r models.HoldRating) error
	GetHoldRating(ctx context.Context, holdID string) (models.HoldRating, error)

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
	Close() error
}
