// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector backed by Prometheus.
type PrometheusCollector struct {
	assignments    *prometheus.CounterVec
	retries        prometheus.Counter
	interruptions  prometheus.Counter
	events         *prometheus.CounterVec
	holds          *prometheus.CounterVec
	leaseConflicts *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheus creates and registers the collectors. A nil reg uses
// prometheus.DefaultRegisterer; an empty namespace defaults to "affect_exp".
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "affect_exp"
	}

	p := &PrometheusCollector{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "decisions_total",
			Help:      "Next-stimulus decisions by outcome (allocated, resumed, exhausted, contended).",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "retries_total",
			Help:      "Allocation attempts restarted after a lost compare-and-increment or order race.",
		}),
		interruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignment",
			Name:      "interruptions_total",
			Help:      "Assignments marked interrupted by the sweep.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Ingested events by result (stored, duplicate).",
		}, []string{"result"}),
		holds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "holds_total",
			Help:      "Newly derived holds by episode type.",
		}, []string{"episode_type"}),
		leaseConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "lease_conflicts_total",
			Help:      "Lease-gated calls rejected because another device holds the lease.",
		}, []string{"op"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms .. ~2.5s
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(p.assignments, p.retries, p.interruptions, p.events, p.holds, p.leaseConflicts, p.httpDuration)
	return p
}

func (p *PrometheusCollector) RecordAssignment(outcome string) {
	p.assignments.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordAssignmentRetry() {
	p.retries.Inc()
}

func (p *PrometheusCollector) RecordInterruption() {
	p.interruptions.Inc()
}

func (p *PrometheusCollector) RecordEvents(stored, duplicate int) {
	if stored > 0 {
		p.events.WithLabelValues("stored").Add(float64(stored))
	}
	if duplicate > 0 {
		p.events.WithLabelValues("duplicate").Add(float64(duplicate))
	}
}

func (p *PrometheusCollector) RecordHold(episodeType string) {
	p.holds.WithLabelValues(episodeType).Inc()
}

func (p *PrometheusCollector) RecordLeaseConflict(operation string) {
	p.leaseConflicts.WithLabelValues(operation).Inc()
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
