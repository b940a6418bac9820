package models

import "time"

// Request types

type SessionStartRequest struct {
	SecuredURLJWT            string `json:"secured_url_jwt"`
	ExperimentTargetOverride string `json:"experiment_target_override,omitempty"`
}

// LeaseRequest is the body shared by every lease-scoped session call.
type LeaseRequest struct {
	SessionID  string `json:"session_id"`
	LeaseToken string `json:"lease_token"`
}

type CalibrationSaveRequest struct {
	SessionID        string `json:"session_id"`
	LeaseToken       string `json:"lease_token"`
	CalibrationGroup string `json:"calibration_group"`
	InputModality    string `json:"input_modality,omitempty"`
}

type StimulusNextRequest struct {
	SessionID string `json:"session_id"`
	Category  string `json:"category,omitempty"`
}

type EventBatchRequest struct {
	SessionID string  `json:"session_id"`
	RunID     string  `json:"run_id"`
	Events    []Event `json:"events"`
}

type RatingSaveRequest struct {
	SessionID     string `json:"session_id"`
	LeaseToken    string `json:"lease_token"`
	HoldID        string `json:"hold_id"`
	StimulusID    string `json:"stimulus_id"`
	RunID         string `json:"run_id"`
	ShiftDecision string `json:"shift_decision"`
	Direction     string `json:"direction"`
	Confidence    Number `json:"confidence"`
	FeelingBefore string `json:"feeling_before,omitempty"`
	FeelingAfter  string `json:"feeling_after,omitempty"`
}

type CopyGetRequest struct {
	SessionID        string `json:"session_id,omitempty"`
	ExperimentTarget string `json:"experiment_target,omitempty"`
	InputModality    string `json:"input_modality,omitempty"`
}

type AdminSummaryRequest struct {
	Limit *int `json:"limit,omitempty"`
}

type AdminSessionDetailRequest struct {
	SessionID  string `json:"session_id"`
	EventLimit *int   `json:"event_limit,omitempty"`
}

// Response types

type SessionStartResponse struct {
	SessionID        string    `json:"session_id"`
	LeaseToken       string    `json:"lease_token"`
	LeaseExpiresAt   time.Time `json:"lease_expires_at_utc"`
	ExperimentTarget string    `json:"experiment_target"`
	Stage            string    `json:"stage"`
}

type HeartbeatResponse struct {
	OK             bool      `json:"ok"`
	LeaseExpiresAt time.Time `json:"lease_expires_at_utc"`
}

type CalibrationSaveResponse struct {
	OK               bool   `json:"ok"`
	CalibrationGroup string `json:"calibration_group"`
	InputModality    string `json:"input_modality"`
	MsPerWord        int    `json:"ms_per_word"`
}

type SessionCompleteResponse struct {
	OK          bool    `json:"ok"`
	RedirectURL *string `json:"redirect_url"`
}

// NextStimulus is either {done: true} or a stimulus to present.
type NextStimulus struct {
	Done          bool   `json:"done"`
	StimulusOrder int    `json:"stimulus_order,omitempty"`
	StimulusID    string `json:"stimulus_id,omitempty"`
	Text          string `json:"text,omitempty"`
	SourceKey     string `json:"source_key,omitempty"`
}

type EventBatchResponse struct {
	AckedClientEventSeq []int64 `json:"acked_client_event_seq"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type CopyGetResponse struct {
	Version          string         `json:"version"`
	ExperimentTarget string         `json:"experiment_target,omitempty"`
	InputModality    string         `json:"input_modality,omitempty"`
	Resolved         map[string]any `json:"resolved"`
	Full             map[string]any `json:"full"`
}

type AdminSessionSummaryRow struct {
	SessionID        string    `json:"session_id"`
	ParticipantID    string    `json:"participant_id"`
	ProlificPID      string    `json:"prolific_pid,omitempty"`
	Status           string    `json:"status"`
	CalibrationGroup string    `json:"calibration_group,omitempty"`
	MsPerWord        int       `json:"ms_per_word,omitempty"`
	CreatedAt        time.Time `json:"created_at_utc"`
	UpdatedAt        time.Time `json:"updated_at_utc"`
	AssignedCount    int       `json:"assigned_count"`
	DoneCount        int       `json:"done_count"`
	InterruptedCount int       `json:"interrupted_count"`
	InProgressCount  int       `json:"in_progress_count"`
	EventsCount      int       `json:"events_count"`
}

type AdminSummaryResponse struct {
	Rows  []AdminSessionSummaryRow `json:"rows"`
	Limit int                      `json:"limit"`
}

type AdminStimulusView struct {
	StimulusID    string `json:"stimulus_id"`
	StimulusOrder int    `json:"stimulus_order"`
	Status        string `json:"status"`
	LatestRunID   string `json:"latest_run_id,omitempty"`
	Text          string `json:"text"`
	Category      string `json:"category,omitempty"`
}

type AdminSessionDetail struct {
	Session         Session             `json:"session"`
	Participant     *Participant        `json:"participant,omitempty"`
	Assignments     []SessionStimulus   `json:"assignments"`
	Stimuli         []AdminStimulusView `json:"stimuli"`
	Holds           []Hold              `json:"holds"`
	Events          []StoredEvent       `json:"events"`
	EventsTruncated bool                `json:"events_truncated"`
}

// Error response

type ErrorResponse struct {
	OK              bool   `json:"ok"`
	Error           string `json:"error"`
	Message         string `json:"message,omitempty"`
	ActiveElsewhere bool   `json:"active_elsewhere,omitempty"`
}
