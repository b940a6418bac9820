// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP request handlers for the reading
experiment API.

# Handler Types

Each handler is a thin struct over *experiment.Service:

  - SessionHandler: session start, heartbeat, calibration and completion
  - StimulusHandler: stimulus assignment, event batches and hold ratings
  - CopyHandler: participant-facing copy, resolved per target and modality
  - AdminHandler: results summary and per-session detail

Handlers are created via constructor functions:

	sessions := handlers.NewSessionHandler(svc, auth.NewProlificVerifier(secret, false))
	stimulus := handlers.NewStimulusHandler(svc)

# Requests and Errors

Every endpoint takes a JSON body and answers with JSON. Service errors are
mapped in one place (errors.go) to a status code and a machine-readable
reason:

	404 not_found
	409 lease_conflict (with active_elsewhere: true)
	400 validation_error
	409 duplicate_participant
	409 assignment_contention
	400 mixed_stimulus_in_batch, stimulus_not_assigned,
	    event_session_mismatch, event_run_mismatch
	409 session_complete
	500 internal_error

# Session Flow

	POST /api/session/start     → Start (returns session_id and lease_token)
	POST /api/calibration/save  → SaveCalibration
	POST /api/stimulus/next     → Next (repeat until done)
	POST /api/events/batch      → EventsBatch
	POST /api/ratings/save      → SaveRating
	POST /api/session/heartbeat → Heartbeat
	POST /api/session/complete  → Complete (returns redirect_url)

Lease-scoped calls carry the session's lease_token. A stale token means the
session is open in another tab and yields 409 lease_conflict.
*/
package handlers
