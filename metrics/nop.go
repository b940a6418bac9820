// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import "time"

// NopMetrics discards everything. Used in tests and when metrics are disabled.
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) RecordAssignment(_ string)                             {}
func (n *NopMetrics) RecordAssignmentRetry()                                {}
func (n *NopMetrics) RecordInterruption()                                   {}
func (n *NopMetrics) RecordEvents(_, _ int)                                 {}
func (n *NopMetrics) RecordHold(_ string)                                   {}
func (n *NopMetrics) RecordLeaseConflict(_ string)                          {}
func (n *NopMetrics) RecordHTTPRequest(_, _ string, _ int, _ time.Duration) {}
