// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/affect-exp/models"
)

// SQLStore implements Store over database/sql. Queries use $N placeholders,
// numbered in order of first appearance, so the same text runs on
// PostgreSQL and SQLite.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open connection whose schema already exists.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// withTx runs fn in a transaction, rolling back on any error.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execCond runs a conditional write and reports a ConditionError when no row
// was affected.
func execCond(ctx context.Context, ex execer, table, condition, query string, args ...any) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	if n == 0 {
		return conditionFailed(table, condition)
	}
	return nil
}

// Sessions

func (s *SQLStore) CreateSession(ctx context.Context, lock models.ParticipantLock, p models.Participant, sess models.Session) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := execCond(ctx, tx, "participant_locks", CondLockAbsent, `
			INSERT INTO participant_locks (lock_id, participant_id, session_id, lease_token, lease_expires_at_ms, status, updated_at_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (lock_id) DO NOTHING
		`, lock.LockID, lock.ParticipantID, lock.SessionID, lock.LeaseToken,
			toMillis(lock.LeaseExpiresAt), lock.Status, toMillis(lock.UpdatedAt)); err != nil {
			return err
		}

		if err := execCond(ctx, tx, "participants", CondParticipantAbsent, `
			INSERT INTO participants (participant_id, prolific_pid, study_id, prolific_session_id, status, created_at_ms)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (participant_id) DO NOTHING
		`, p.ParticipantID, p.ProlificPID, p.StudyID, p.ProlificSessionID, p.Status, toMillis(p.CreatedAt)); err != nil {
			return err
		}

		return execCond(ctx, tx, "sessions", CondSessionAbsent, `
			INSERT INTO sessions (session_id, participant_id, study_id, prolific_pid, prolific_session_id, status,
				calibration_group, ms_per_word, input_modality, modality_version, experiment_target, current_index,
				lease_token, lease_expires_at_ms, created_at_ms, updated_at_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (session_id) DO NOTHING
		`, sess.SessionID, sess.ParticipantID, sess.StudyID, sess.ProlificPID, sess.ProlificSessionID, sess.Status,
			sess.CalibrationGroup, sess.MsPerWord, sess.InputModality, sess.ModalityVersion, sess.ExperimentTarget,
			sess.CurrentIndex, sess.LeaseToken, toMillis(sess.LeaseExpiresAt), toMillis(sess.CreatedAt), toMillis(sess.UpdatedAt))
	})
}

const sessionColumns = `session_id, participant_id, study_id, prolific_pid, prolific_session_id, status,
	calibration_group, ms_per_word, input_modality, modality_version, experiment_target, current_index,
	lease_token, lease_expires_at_ms, created_at_ms, updated_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var sess models.Session
	var leaseMs, createdMs, updatedMs int64
	err := row.Scan(&sess.SessionID, &sess.ParticipantID, &sess.StudyID, &sess.ProlificPID, &sess.ProlificSessionID,
		&sess.Status, &sess.CalibrationGroup, &sess.MsPerWord, &sess.InputModality, &sess.ModalityVersion,
		&sess.ExperimentTarget, &sess.CurrentIndex, &sess.LeaseToken, &leaseMs, &createdMs, &updatedMs)
	if err != nil {
		return models.Session{}, err
	}
	sess.LeaseExpiresAt = fromMillis(leaseMs)
	sess.CreatedAt = fromMillis(createdMs)
	sess.UpdatedAt = fromMillis(updatedMs)
	return sess, nil
}

func (s *SQLStore) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SQLStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at_ms DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLStore) RefreshLease(ctx context.Context, sessionID, leaseToken string, expiresAt, now time.Time) error {
	return execCond(ctx, s.db, "sessions", CondLeaseToken, `
		UPDATE sessions SET lease_expires_at_ms = $1, updated_at_ms = $2
		WHERE session_id = $3 AND lease_token = $4
	`, toMillis(expiresAt), toMillis(now), sessionID, leaseToken)
}

func (s *SQLStore) SaveCalibration(ctx context.Context, sessionID, leaseToken string, cal models.Calibration, now time.Time) error {
	return execCond(ctx, s.db, "sessions", CondLeaseToken, `
		UPDATE sessions
		SET calibration_group = $1, input_modality = $2, modality_version = $3, ms_per_word = $4, updated_at_ms = $5
		WHERE session_id = $6 AND lease_token = $7
	`, cal.Group, cal.InputModality, models.ModalityVersion, cal.MsPerWord, toMillis(now), sessionID, leaseToken)
}

func (s *SQLStore) CompleteSession(ctx context.Context, sessionID, leaseToken string, now time.Time) error {
	return execCond(ctx, s.db, "sessions", CondLeaseToken, `
		UPDATE sessions SET status = $1, updated_at_ms = $2
		WHERE session_id = $3 AND lease_token = $4
	`, models.SessionComplete, toMillis(now), sessionID, leaseToken)
}

func (s *SQLStore) SetCurrentIndex(ctx context.Context, sessionID string, index int, now time.Time) error {
	err := execCond(ctx, s.db, "sessions", CondSessionAbsent, `
		UPDATE sessions SET current_index = $1, updated_at_ms = $2 WHERE session_id = $3
	`, index, toMillis(now), sessionID)
	if errors.Is(err, ErrConditionFailed) {
		return ErrNotFound
	}
	return err
}

func (s *SQLStore) GetParticipant(ctx context.Context, participantID string) (models.Participant, error) {
	var p models.Participant
	var createdMs int64
	err := s.db.QueryRowContext(ctx, `
		SELECT participant_id, prolific_pid, study_id, prolific_session_id, status, created_at_ms
		FROM participants WHERE participant_id = $1
	`, participantID).Scan(&p.ParticipantID, &p.ProlificPID, &p.StudyID, &p.ProlificSessionID, &p.Status, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, ErrNotFound
	}
	if err != nil {
		return models.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	p.CreatedAt = fromMillis(createdMs)
	return p, nil
}

// Stimuli

const stimulusColumns = `stimulus_id, text, category, active, source_key, version, source_path, created_at_ms`

func scanStimulus(row rowScanner) (models.Stimulus, error) {
	var st models.Stimulus
	var createdMs int64
	if err := row.Scan(&st.StimulusID, &st.Text, &st.Category, &st.Active, &st.SourceKey,
		&st.Version, &st.SourcePath, &createdMs); err != nil {
		return models.Stimulus{}, err
	}
	st.CreatedAt = fromMillis(createdMs)
	return st, nil
}

func (s *SQLStore) PutStimulus(ctx context.Context, st models.Stimulus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stimuli (`+stimulusColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stimulus_id) DO UPDATE SET
			text = excluded.text,
			category = excluded.category,
			active = excluded.active,
			source_key = excluded.source_key,
			version = excluded.version,
			source_path = excluded.source_path
	`, st.StimulusID, st.Text, st.Category, st.Active, st.SourceKey, st.Version, st.SourcePath, toMillis(st.CreatedAt))
	if err != nil {
		return fmt.Errorf("put stimulus: %w", err)
	}
	return nil
}

func (s *SQLStore) GetStimulus(ctx context.Context, stimulusID string) (models.Stimulus, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stimulusColumns+` FROM stimuli WHERE stimulus_id = $1`, stimulusID)
	st, err := scanStimulus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Stimulus{}, ErrNotFound
	}
	if err != nil {
		return models.Stimulus{}, fmt.Errorf("get stimulus: %w", err)
	}
	return st, nil
}

func (s *SQLStore) ListStimuli(ctx context.Context) ([]models.Stimulus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stimulusColumns+` FROM stimuli ORDER BY stimulus_id`)
	if err != nil {
		return nil, fmt.Errorf("list stimuli: %w", err)
	}
	defer rows.Close()

	stimuli := []models.Stimulus{}
	for rows.Next() {
		st, err := scanStimulus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stimulus: %w", err)
		}
		stimuli = append(stimuli, st)
	}
	return stimuli, rows.Err()
}

// Session stimuli

func (s *SQLStore) ListSessionStimuli(ctx context.Context, sessionID string) ([]models.SessionStimulus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, stimulus_order, stimulus_id, status, seen_events, latest_run_id, assigned_at_ms, completed_at_ms
		FROM session_stimuli WHERE session_id = $1
		ORDER BY stimulus_order
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session stimuli: %w", err)
	}
	defer rows.Close()

	list := []models.SessionStimulus{}
	for rows.Next() {
		var row models.SessionStimulus
		var assignedMs int64
		var completedMs sql.NullInt64
		if err := rows.Scan(&row.SessionID, &row.StimulusOrder, &row.StimulusID, &row.Status, &row.SeenEvents,
			&row.LatestRunID, &assignedMs, &completedMs); err != nil {
			return nil, fmt.Errorf("scan session stimulus: %w", err)
		}
		row.AssignedAt = fromMillis(assignedMs)
		if completedMs.Valid {
			t := fromMillis(completedMs.Int64)
			row.CompletedAt = &t
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

func (s *SQLStore) PutSessionStimulus(ctx context.Context, row models.SessionStimulus) error {
	var completed sql.NullInt64
	if row.CompletedAt != nil {
		completed = sql.NullInt64{Int64: toMillis(*row.CompletedAt), Valid: true}
	}
	return execCond(ctx, s.db, "session_stimuli", CondOrderAbsent, `
		INSERT INTO session_stimuli (session_id, stimulus_order, stimulus_id, status, seen_events, latest_run_id, assigned_at_ms, completed_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, stimulus_order) DO NOTHING
	`, row.SessionID, row.StimulusOrder, row.StimulusID, row.Status, row.SeenEvents, row.LatestRunID,
		toMillis(row.AssignedAt), completed)
}

// transitionQuery builds the guarded UPDATE for t.
func transitionQuery(t Transition) (string, []any) {
	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	set("status", t.To)
	if t.RunID != "" {
		set("latest_run_id", t.RunID)
	}
	if t.SeenEvents {
		set("seen_events", true)
	}
	if t.CompletedAt != nil {
		set("completed_at_ms", toMillis(*t.CompletedAt))
	}

	args = append(args, t.SessionID, t.Order)
	where := fmt.Sprintf("session_id = $%d AND stimulus_order = $%d", len(args)-1, len(args))

	placeholders := make([]string, len(t.From))
	for i, from := range t.From {
		args = append(args, from)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	if len(placeholders) == 0 {
		// An empty From set can never match.
		where += " AND 1 = 0"
	} else {
		where += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	return "UPDATE session_stimuli SET " + strings.Join(sets, ", ") + " WHERE " + where, args
}

func (s *SQLStore) TransitionSessionStimulus(ctx context.Context, t Transition) error {
	query, args := transitionQuery(t)
	return execCond(ctx, s.db, "session_stimuli", CondStatusIn, query, args...)
}

func (s *SQLStore) CompleteSessionStimulus(ctx context.Context, t Transition, stimulusID string) error {
	query, args := transitionQuery(t)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := execCond(ctx, tx, "session_stimuli", CondStatusIn, query, args...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assignment_counters (stimulus_id, assigned_count, claim_version)
			VALUES ($1, 1, 0)
			ON CONFLICT (stimulus_id) DO UPDATE SET assigned_count = assignment_counters.assigned_count + 1
		`, stimulusID)
		if err != nil {
			return fmt.Errorf("increment assignment counter: %w", err)
		}
		return nil
	})
}

// Assignment counters

func (s *SQLStore) ListAssignmentCounters(ctx context.Context) (map[string]models.AssignmentCounter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stimulus_id, assigned_count, claim_version FROM assignment_counters`)
	if err != nil {
		return nil, fmt.Errorf("list assignment counters: %w", err)
	}
	defer rows.Close()

	counters := map[string]models.AssignmentCounter{}
	for rows.Next() {
		var c models.AssignmentCounter
		if err := rows.Scan(&c.StimulusID, &c.AssignedCount, &c.ClaimVersion); err != nil {
			return nil, fmt.Errorf("scan assignment counter: %w", err)
		}
		counters[c.StimulusID] = c
	}
	return counters, rows.Err()
}

func (s *SQLStore) ClaimStimulus(ctx context.Context, stimulusID string, expected int64) error {
	// Make sure the row exists so the compare below has something to match.
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO assignment_counters (stimulus_id, assigned_count, claim_version)
		VALUES ($1, 0, 0)
		ON CONFLICT (stimulus_id) DO NOTHING
	`, stimulusID); err != nil {
		return fmt.Errorf("seed assignment counter: %w", err)
	}

	return execCond(ctx, s.db, "assignment_counters", CondClaimVersion, `
		UPDATE assignment_counters SET claim_version = claim_version + 1
		WHERE stimulus_id = $1 AND claim_version = $2
	`, stimulusID, expected)
}

// Events

func (s *SQLStore) PutEvent(ctx context.Context, e models.StoredEvent) error {
	return execCond(ctx, s.db, "events", CondEventAbsent, `
		INSERT INTO events (session_id, event_key, stimulus_id, run_id, client_event_seq, type, experiment_target, received_at_ms, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, event_key) DO NOTHING
	`, e.SessionID, e.EventKey, e.StimulusID, e.RunID, e.ClientEventSeq, e.Type, e.ExperimentTarget,
		e.ReceivedAtMs, string(e.Payload))
}

func (s *SQLStore) ListEvents(ctx context.Context, sessionID string, limit int) ([]models.StoredEvent, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, event_key, stimulus_id, run_id, client_event_seq, type, experiment_target, received_at_ms, payload
		FROM events WHERE session_id = $1
		ORDER BY event_key
		LIMIT $2
	`, sessionID, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []models.StoredEvent{}
	for rows.Next() {
		var e models.StoredEvent
		var payload string
		if err := rows.Scan(&e.SessionID, &e.EventKey, &e.StimulusID, &e.RunID, &e.ClientEventSeq, &e.Type,
			&e.ExperimentTarget, &e.ReceivedAtMs, &payload); err != nil {
			return nil, false, fmt.Errorf("scan event: %w", err)
		}
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	if len(events) > limit {
		return events[:limit], true, nil
	}
	return events, false, nil
}

func (s *SQLStore) CountEvents(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Holds and ratings

const holdColumns = `session_id, hold_id, participant_id, stimulus_id, run_id, episode_type, input_modality,
	experiment_target, state_label, start_word_index, end_word_index, start_t_rel_ms, end_t_rel_ms,
	duration_ms, auto_closed, created_at_ms`

func scanHold(row rowScanner) (models.Hold, error) {
	var h models.Hold
	var createdMs int64
	if err := row.Scan(&h.SessionID, &h.HoldID, &h.ParticipantID, &h.StimulusID, &h.RunID, &h.EpisodeType,
		&h.InputModality, &h.ExperimentTarget, &h.StateLabel, &h.StartWordIndex, &h.EndWordIndex,
		&h.StartTRelMs, &h.EndTRelMs, &h.DurationMs, &h.AutoClosed, &createdMs); err != nil {
		return models.Hold{}, err
	}
	h.CreatedAt = fromMillis(createdMs)
	return h, nil
}

func (s *SQLStore) PutHold(ctx context.Context, h models.Hold) error {
	return execCond(ctx, s.db, "holds", CondHoldAbsent, `
		INSERT INTO holds (`+holdColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (session_id, hold_id) DO NOTHING
	`, h.SessionID, h.HoldID, h.ParticipantID, h.StimulusID, h.RunID, h.EpisodeType, h.InputModality,
		h.ExperimentTarget, h.StateLabel, h.StartWordIndex, h.EndWordIndex, h.StartTRelMs, h.EndTRelMs,
		h.DurationMs, h.AutoClosed, toMillis(h.CreatedAt))
}

func (s *SQLStore) GetHold(ctx context.Context, sessionID, holdID string) (models.Hold, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+holdColumns+` FROM holds WHERE session_id = $1 AND hold_id = $2`,
		sessionID, holdID)
	h, err := scanHold(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Hold{}, ErrNotFound
	}
	if err != nil {
		return models.Hold{}, fmt.Errorf("get hold: %w", err)
	}
	return h, nil
}

func (s *SQLStore) ListHolds(ctx context.Context, sessionID string) ([]models.Hold, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+holdColumns+` FROM holds WHERE session_id = $1 ORDER BY hold_id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	defer rows.Close()

	holds := []models.Hold{}
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (s *SQLStore) PutHoldRating(ctx context.Context, r models.HoldRating) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hold_ratings (rating_key, session_id, stimulus_id, run_id, shift_decision, direction,
			feeling_before, feeling_after, confidence, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (rating_key) DO UPDATE SET
			session_id = excluded.session_id,
			stimulus_id = excluded.stimulus_id,
			run_id = excluded.run_id,
			shift_decision = excluded.shift_decision,
			direction = excluded.direction,
			feeling_before = excluded.feeling_before,
			feeling_after = excluded.feeling_after,
			confidence = excluded.confidence,
			created_at_ms = excluded.created_at_ms
	`, r.HoldID, r.SessionID, r.StimulusID, r.RunID, r.ShiftDecision, r.Direction,
		r.FeelingBefore, r.FeelingAfter, r.Confidence, toMillis(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("put hold rating: %w", err)
	}
	return nil
}

func (s *SQLStore) GetHoldRating(ctx context.Context, holdID string) (models.HoldRating, error) {
	var r models.HoldRating
	var createdMs int64
	err := s.db.QueryRowContext(ctx, `
		SELECT rating_key, session_id, stimulus_id, run_id, shift_decision, direction,
			feeling_before, feeling_after, confidence, created_at_ms
		FROM hold_ratings WHERE rating_key = $1
	`, holdID).Scan(&r.HoldID, &r.SessionID, &r.StimulusID, &r.RunID, &r.ShiftDecision, &r.Direction,
		&r.FeelingBefore, &r.FeelingAfter, &r.Confidence, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HoldRating{}, ErrNotFound
	}
	if err != nil {
		return models.HoldRating{}, fmt.Errorf("get hold rating: %w", err)
	}
	r.CreatedAt = fromMillis(createdMs)
	return r, nil
}
