// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import "time"

// Assignment outcomes recorded by RecordAssignment.
const (
	OutcomeAllocated = "allocated"
	OutcomeResumed   = "resumed"
	OutcomeExhausted = "exhausted"
	OutcomeContended = "contended"
)

// Collector receives instrumentation from the experiment service and the
// HTTP layer.
type Collector interface {
	// RecordAssignment counts one next-stimulus decision by outcome.
	RecordAssignment(outcome string)
	// RecordAssignmentRetry counts one restarted allocation attempt.
	RecordAssignmentRetry()
	// RecordInterruption counts assignments swept to interrupted.
	RecordInterruption()
	// RecordEvents counts stored and duplicate events from one batch.
	RecordEvents(stored, duplicate int)
	// RecordHold counts one newly derived hold by episode type.
	RecordHold(episodeType string)
	// RecordLeaseConflict counts a rejected lease by operation.
	RecordLeaseConflict(operation string)
	// RecordHTTPRequest observes one served request.
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}
