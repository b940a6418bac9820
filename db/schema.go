// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Timestamps are stored as unix milliseconds so the same DDL runs on
// PostgreSQL and SQLite.
const schema = `
-- Participants
CREATE TABLE IF NOT EXISTS participants (
    participant_id TEXT PRIMARY KEY,
    prolific_pid TEXT NOT NULL,
    study_id TEXT NOT NULL,
    prolific_session_id TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at_ms BIGINT NOT NULL
);

-- Participant locks (one active session per study participant)
CREATE TABLE IF NOT EXISTS participant_locks (
    lock_id TEXT PRIMARY KEY,
    participant_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    lease_token TEXT NOT NULL,
    lease_expires_at_ms BIGINT NOT NULL,
    status TEXT NOT NULL,
    updated_at_ms BIGINT NOT NULL
);

-- Sessions
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    participant_id TEXT NOT NULL,
    study_id TEXT NOT NULL,
    prolific_pid TEXT NOT NULL,
    prolific_session_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'complete')),
    calibration_group TEXT NOT NULL DEFAULT '',
    ms_per_word INTEGER NOT NULL DEFAULT 0,
    input_modality TEXT NOT NULL DEFAULT 'hold',
    modality_version TEXT NOT NULL DEFAULT 'v1',
    experiment_target TEXT NOT NULL DEFAULT 'self',
    current_index INTEGER NOT NULL DEFAULT 0,
    lease_token TEXT NOT NULL,
    lease_expires_at_ms BIGINT NOT NULL,
    created_at_ms BIGINT NOT NULL,
    updated_at_ms BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at_ms);

-- Stimuli
CREATE TABLE IF NOT EXISTS stimuli (
    stimulus_id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    source_key TEXT NOT NULL DEFAULT '',
    version TEXT NOT NULL DEFAULT '',
    source_path TEXT NOT NULL DEFAULT '',
    created_at_ms BIGINT NOT NULL
);

-- Session stimuli (assignment log)
CREATE TABLE IF NOT EXISTS session_stimuli (
    session_id TEXT NOT NULL,
    stimulus_order INTEGER NOT NULL,
    stimulus_id TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('assigned', 'in_progress', 'done', 'interrupted')),
    seen_events BOOLEAN NOT NULL DEFAULT FALSE,
    latest_run_id TEXT NOT NULL DEFAULT '',
    assigned_at_ms BIGINT NOT NULL,
    completed_at_ms BIGINT,
    PRIMARY KEY (session_id, stimulus_order)
);

-- Assignment counters
CREATE TABLE IF NOT EXISTS assignment_counters (
    stimulus_id TEXT PRIMARY KEY,
    assigned_count BIGINT NOT NULL DEFAULT 0,
    claim_version BIGINT NOT NULL DEFAULT 0
);

-- Events
CREATE TABLE IF NOT EXISTS events (
    session_id TEXT NOT NULL,
    event_key TEXT NOT NULL,
    stimulus_id TEXT NOT NULL,
    run_id TEXT NOT NULL,
    client_event_seq BIGINT NOT NULL,
    type TEXT NOT NULL,
    experiment_target TEXT NOT NULL DEFAULT '',
    received_at_ms BIGINT NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (session_id, event_key)
);

-- Holds
CREATE TABLE IF NOT EXISTS holds (
    session_id TEXT NOT NULL,
    hold_id TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    stimulus_id TEXT NOT NULL,
    run_id TEXT NOT NULL,
    episode_type TEXT NOT NULL,
    input_modality TEXT NOT NULL DEFAULT '',
    experiment_target TEXT NOT NULL DEFAULT '',
    state_label TEXT NOT NULL DEFAULT '',
    start_word_index INTEGER NOT NULL,
    end_word_index INTEGER NOT NULL,
    start_t_rel_ms DOUBLE PRECISION NOT NULL,
    end_t_rel_ms DOUBLE PRECISION NOT NULL,
    duration_ms DOUBLE PRECISION NOT NULL CHECK (duration_ms >= 0),
    auto_closed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at_ms BIGINT NOT NULL,
    PRIMARY KEY (session_id, hold_id)
);

-- Hold ratings (last write wins)
CREATE TABLE IF NOT EXISTS hold_ratings (
    rating_key TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    stimulus_id TEXT NOT NULL,
    run_id TEXT NOT NULL,
    shift_decision TEXT NOT NULL,
    direction TEXT NOT NULL,
    feeling_before TEXT NOT NULL DEFAULT '',
    feeling_after TEXT NOT NULL DEFAULT '',
    confidence INTEGER NOT NULL CHECK (confidence >= 1 AND confidence <= 5),
    created_at_ms BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hold_ratings_session_id ON hold_ratings(session_id);
`
