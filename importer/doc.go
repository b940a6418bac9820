// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package importer loads generated stimuli from accepted.jsonl files into
// the stimulus table. Each line is one generation record:
//
//	{"stimulus": {"stim_id": "...", "text": "...", "created_at": "..."},
//	 "controls": {"layer1_dimension": "...", "layer1_direction": "...", "layer3_relation": "..."}}
//
// Imported stimuli are active and stamped with the run's version.
package importer
