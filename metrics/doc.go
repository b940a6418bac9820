// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics defines the instrumentation Collector and its Prometheus
// and no-op implementations.
package metrics
