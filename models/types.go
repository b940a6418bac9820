package models

import (
	"encoding/json"
	"time"
)

// Session status constants
const (
	SessionActive   = "active"
	SessionComplete = "complete"
)

// Session stimulus (assignment) status constants
const (
	AssignmentAssigned    = "assigned"
	AssignmentInProgress  = "in_progress"
	AssignmentDone        = "done"
	AssignmentInterrupted = "interrupted"
)

// Calibration groups
const (
	CalibrationSlow   = "slow"
	CalibrationMedium = "medium"
	CalibrationFast   = "fast"
)

// Input modalities
const (
	ModalityHold        = "hold"
	ModalityClickMark   = "click_mark"
	ModalityToggleState = "toggle_state"
	ModalityPopupState  = "popup_state"
)

// ModalityVersion is stamped on sessions whenever the modality is saved.
const ModalityVersion = "v1"

// Experiment targets
const (
	TargetSelf      = "self"
	TargetCharacter = "character"
)

// Hold episode types
const (
	EpisodeHoldInterval    = "hold_interval"
	EpisodeToggleInterval  = "toggle_interval"
	EpisodeClickPoint      = "click_point"
	EpisodePopupStatePoint = "popup_state_point"
)

// Popup state labels
const (
	StateMistake   = "mistake"
	StateUncertain = "uncertain"
	StateClear     = "clear"
)

// Rating shift decisions
const (
	ShiftYes     = "yes"
	ShiftNo      = "no"
	ShiftNotSure = "not_sure"
)

// Rating directions
const (
	DirectionMorePositive = "more_positive"
	DirectionMoreNegative = "more_negative"
	DirectionMixed        = "mixed"
	DirectionUnsure       = "unsure"
)

// ParticipantIdentity is the verified triple handed over by the recruiting
// platform. The core trusts it once verified.
type ParticipantIdentity struct {
	ProlificPID       string `json:"PROLIFIC_PID"`
	StudyID           string `json:"STUDY_ID"`
	ProlificSessionID string `json:"SESSION_ID"`
}

// ParticipantID is the stable identifier for a participant within a study.
func (id ParticipantIdentity) ParticipantID() string {
	return id.StudyID + "#" + id.ProlificPID
}

// LockID is the key of the lock guarding one active session per participant.
func (id ParticipantIdentity) LockID() string {
	return "STUDY#" + id.StudyID + "#PID#" + id.ProlificPID
}

// Domain types

type Session struct {
	SessionID         string    `json:"session_id"`
	ParticipantID     string    `json:"participant_id"`
	StudyID           string    `json:"study_id"`
	ProlificPID       string    `json:"prolific_pid"`
	ProlificSessionID string    `json:"prolific_session_id"`
	Status            string    `json:"status"`
	CalibrationGroup  string    `json:"calibration_group,omitempty"`
	MsPerWord         int       `json:"ms_per_word,omitempty"`
	InputModality     string    `json:"input_modality"`
	ModalityVersion   string    `json:"modality_version"`
	ExperimentTarget  string    `json:"experiment_target"`
	CurrentIndex      int       `json:"current_index"`
	LeaseToken        string    `json:"-"` // Never expose in JSON
	LeaseExpiresAt    time.Time `json:"lease_expires_at_utc"`
	CreatedAt         time.Time `json:"created_at_utc"`
	UpdatedAt         time.Time `json:"updated_at_utc"`
}

type Participant struct {
	ParticipantID     string    `json:"participant_id"`
	ProlificPID       string    `json:"prolific_pid"`
	StudyID           string    `json:"study_id"`
	ProlificSessionID string    `json:"prolific_session_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at_utc"`
}

type ParticipantLock struct {
	LockID         string    `json:"lock_id"`
	ParticipantID  string    `json:"participant_id"`
	SessionID      string    `json:"session_id"`
	LeaseToken     string    `json:"-"`
	LeaseExpiresAt time.Time `json:"lease_expires_at_utc"`
	Status         string    `json:"status"`
	UpdatedAt      time.Time `json:"updated_at_utc"`
}

type Calibration struct {
	Group         string `json:"calibration_group"`
	InputModality string `json:"input_modality"`
	MsPerWord     int    `json:"ms_per_word"`
}

type Stimulus struct {
	StimulusID string    `json:"stimulus_id"`
	Text       string    `json:"text"`
	Category   string    `json:"category,omitempty"`
	Active     bool      `json:"active"`
	SourceKey  string    `json:"source_key,omitempty"`
	Version    string    `json:"version,omitempty"`
	SourcePath string    `json:"source_path,omitempty"`
	CreatedAt  time.Time `json:"created_at_utc"`
}

// SessionStimulus is one assignment row. StimulusOrder is 1-based and only
// ever grows within a session.
type SessionStimulus struct {
	SessionID     string     `json:"session_id"`
	StimulusOrder int        `json:"stimulus_order"`
	StimulusID    string     `json:"stimulus_id"`
	Status        string     `json:"status"`
	SeenEvents    bool       `json:"seen_events"`
	LatestRunID   string     `json:"latest_run_id,omitempty"`
	AssignedAt    time.Time  `json:"assigned_at_utc"`
	CompletedAt   *time.Time `json:"completed_at_utc,omitempty"`
}

// Active reports whether the row can still move forward.
func (s SessionStimulus) Active() bool {
	return s.Status == AssignmentAssigned || s.Status == AssignmentInProgress
}

// AssignmentCounter tracks completed exposures of a stimulus. ClaimVersion is
// bumped every time a session claims the stimulus and is what concurrent
// allocations compare against.
type AssignmentCounter struct {
	StimulusID    string `json:"stimulus_id"`
	AssignedCount int64  `json:"assigned_count"`
	ClaimVersion  int64  `json:"claim_version"`
}

type Hold struct {
	SessionID        string    `json:"session_id"`
	HoldID           string    `json:"hold_id"`
	ParticipantID    string    `json:"participant_id"`
	StimulusID       string    `json:"stimulus_id"`
	RunID            string    `json:"run_id"`
	EpisodeType      string    `json:"episode_type"`
	InputModality    string    `json:"input_modality,omitempty"`
	ExperimentTarget string    `json:"experiment_target,omitempty"`
	StateLabel       string    `json:"state_label,omitempty"`
	StartWordIndex   int       `json:"start_word_index"`
	EndWordIndex     int       `json:"end_word_index"`
	StartTRelMs      float64   `json:"start_t_rel_ms"`
	EndTRelMs        float64   `json:"end_t_rel_ms"`
	DurationMs       float64   `json:"duration_ms"`
	AutoClosed       bool      `json:"auto_closed"`
	CreatedAt        time.Time `json:"created_at_utc"`
}

type HoldRating struct {
	HoldID        string    `json:"hold_id"`
	SessionID     string    `json:"session_id"`
	StimulusID    string    `json:"stimulus_id"`
	RunID         string    `json:"run_id"`
	ShiftDecision string    `json:"shift_decision"`
	Direction     string    `json:"direction"`
	FeelingBefore string    `json:"feeling_before,omitempty"`
	FeelingAfter  string    `json:"feeling_after,omitempty"`
	Confidence    int       `json:"confidence"`
	CreatedAt     time.Time `json:"created_at_utc"`
}

// StoredEvent is the append-only row written for every client event.
type StoredEvent struct {
	SessionID        string `json:"session_id"`
	EventKey         string `json:"event_key"`
	StimulusID       string `json:"stimulus_id"`
	RunID            string `json:"run_id"`
	ClientEventSeq   int64  `json:"client_event_seq"`
	Type             string `json:"type"`
	ExperimentTarget string `json:"experiment_target,omitempty"`
	ReceivedAtMs     int64  `json:"t_server_received_utc_ms"`
	// Payload is the client event as received.
	Payload json.RawMessage `json:"payload"`
}
