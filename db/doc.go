// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connections

Open selects the driver by database type:

	conn, err := db.Open(db.TypePostgres, "postgres://...")
	conn, err := db.Open(db.TypeSQLite, "file:affect.db")

SQLite connections are limited to one open connection and get busy-timeout
and WAL pragmas unless the DSN sets its own.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on PostgreSQL and SQLite; timestamps are unix milliseconds.

# Tables

  - participants: one row per study participant
  - participant_locks: put-if-absent lock per (study, participant)
  - sessions: session lifecycle and lease token
  - stimuli: imported text items
  - session_stimuli: ordered assignment log per session
  - assignment_counters: completed exposures and claim version per stimulus
  - events: raw client telemetry, keyed (session_id, event_key)
  - holds: derived episodes, keyed (session_id, hold_id)
  - hold_ratings: one rating per hold, last write wins

# Relationships

	participant 1──1 participant_lock
	participant 1──* session
	session 1──* session_stimuli *──1 stimulus
	session 1──* events
	session 1──* holds 1──0..1 hold_ratings

No foreign keys are declared: every write is a conditional single-row
operation and the application enforces linkage.
*/
package db
