// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrLeaseConflict        = errors.New("session is active elsewhere")
	ErrValidation           = errors.New("validation error")
	ErrDuplicateParticipant = errors.New("participant already has a session")
	ErrAssignmentContention = errors.New("assignment contention; retry")
	ErrMixedStimulusInBatch = errors.New("mixed stimulus in batch")
	ErrStimulusNotAssigned  = errors.New("stimulus not assigned to session")
	ErrEventSessionMismatch = errors.New("event session mismatch")
	ErrEventRunMismatch     = errors.New("event run mismatch")
	ErrSessionComplete      = errors.New("session is complete")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
