// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

Records persisted by the store:

  - Session: one participant attempt, guarded by a lease token
  - Participant, ParticipantLock: one active session per study participant
  - Stimulus: text item from the offline import job
  - SessionStimulus: assignment row keyed by (session_id, stimulus_order)
  - AssignmentCounter: completed exposures per stimulus
  - StoredEvent: append-only client telemetry
  - Hold: derived uncertainty episode (interval or point)
  - HoldRating: post-hoc rating of one hold

# Events

Event is a tagged union discriminated by its type field. Lifecycle events
(RUN_START, REVEAL_START, REVEAL_END, AUTO_CLOSE, VISIBILITY_HIDDEN, BLUR)
carry no body. Input events decode into typed bodies:

	KEYDOWN, UNCERTAINTY_START → HoldStart
	KEYUP, UNCERTAINTY_END     → IntervalEnd
	UNCERTAINTY_MARK           → PointMark
	STATE_SET                  → StateSet

Numeric client fields use Number, which tolerates absent or malformed values
so that a single bad field skips hold derivation instead of rejecting the
batch.

# Status Values

Session:

	SessionActive   = "active"
	SessionComplete = "complete"

Assignment:

	AssignmentAssigned    = "assigned"
	AssignmentInProgress  = "in_progress"
	AssignmentDone        = "done"
	AssignmentInterrupted = "interrupted"
*/
package models
