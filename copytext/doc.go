// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package copytext loads, caches and resolves the participant-facing copy
// bundle.
package copytext
