// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type EventType string

// Lifecycle events carry no payload beyond the common fields.
const (
	EventRunStart         EventType = "RUN_START"
	EventRevealStart      EventType = "REVEAL_START"
	EventRevealEnd        EventType = "REVEAL_END"
	EventAutoClose        EventType = "AUTO_CLOSE"
	EventVisibilityHidden EventType = "VISIBILITY_HIDDEN"
	EventBlur             EventType = "BLUR"
)

// Input events
const (
	EventKeyDown          EventType = "KEYDOWN"
	EventKeyUp            EventType = "KEYUP"
	EventUncertaintyStart EventType = "UNCERTAINTY_START"
	EventUncertaintyEnd   EventType = "UNCERTAINTY_END"
	EventUncertaintyMark  EventType = "UNCERTAINTY_MARK"
	EventStateSet         EventType = "STATE_SET"
)

// Known reports whether t is one of the event types the server accepts.
func (t EventType) Known() bool {
	switch t {
	case EventRunStart, EventRevealStart, EventRevealEnd, EventAutoClose,
		EventVisibilityHidden, EventBlur, EventKeyDown, EventKeyUp,
		EventUncertaintyStart, EventUncertaintyEnd, EventUncertaintyMark, EventStateSet:
		return true
	}
	return false
}

// Number is a client-reported number. Absent, null, non-numeric and
// non-finite values decode to an invalid Number instead of failing the batch.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a valid Number.
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*n = Num(v)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// EventBody is the type-specific part of an Event. Lifecycle events have a
// nil body.
type EventBody interface {
	eventBody()
}

// HoldStart is the body of KEYDOWN and UNCERTAINTY_START. The server derives
// nothing from it; the episode is recorded when the matching end arrives.
type HoldStart struct {
	HoldID         string `json:"hold_id,omitempty"`
	StartWordIndex Number `json:"start_word_index,omitzero"`
}

// IntervalEnd is the body of KEYUP and UNCERTAINTY_END. The end time is the
// event's own t_rel_ms.
type IntervalEnd struct {
	HoldID         string `json:"hold_id,omitempty"`
	StartWordIndex Number `json:"start_word_index,omitzero"`
	EndWordIndex   Number `json:"end_word_index,omitzero"`
	StartTRelMs    Number `json:"start_t_rel_ms,omitzero"`
	AutoClosed     bool   `json:"auto_closed,omitempty"`
}

// PointMark is the body of UNCERTAINTY_MARK.
type PointMark struct {
	HoldID         string `json:"hold_id,omitempty"`
	WordIndex      Number `json:"word_index,omitzero"`
	StartWordIndex Number `json:"start_word_index,omitzero"`
	EndWordIndex   Number `json:"end_word_index,omitzero"`
}

// StateSet is the body of STATE_SET: a point mark carrying a popup label.
type StateSet struct {
	PointMark
	StateLabel string `json:"state_label,omitempty"`
}

func (HoldStart) eventBody()   {}
func (IntervalEnd) eventBody() {}
func (PointMark) eventBody()   {}
func (StateSet) eventBody()    {}

// Event is one client telemetry event, discriminated by Type.
type Event struct {
	SessionID      string    `json:"session_id"`
	RunID          string    `json:"run_id"`
	StimulusID     string    `json:"stimulus_id"`
	ClientEventSeq int64     `json:"client_event_seq"`
	Type           EventType `json:"type"`
	TRelMs         Number    `json:"t_rel_ms"`
	TEpochClientMs Number    `json:"t_epoch_client_ms"`
	Body           EventBody `json:"-"`

	// raw holds the payload exactly as the client sent it.
	raw json.RawMessage
}

type eventHeader struct {
	SessionID      string    `json:"session_id"`
	RunID          string    `json:"run_id"`
	StimulusID     string    `json:"stimulus_id"`
	ClientEventSeq int64     `json:"client_event_seq"`
	Type           EventType `json:"type"`
	TRelMs         Number    `json:"t_rel_ms"`
	TEpochClientMs Number    `json:"t_epoch_client_ms"`
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var h eventHeader
	if err := json.Unmarshal(b, &h); err != nil {
		return err
	}

	var body EventBody
	var err error
	switch h.Type {
	case EventKeyDown, EventUncertaintyStart:
		body, err = decodeBody[HoldStart](b)
	case EventKeyUp, EventUncertaintyEnd:
		body, err = decodeBody[IntervalEnd](b)
	case EventUncertaintyMark:
		body, err = decodeBody[PointMark](b)
	case EventStateSet:
		body, err = decodeBody[StateSet](b)
	}
	if err != nil {
		return fmt.Errorf("decode %s event: %w", h.Type, err)
	}

	*e = Event{
		SessionID:      h.SessionID,
		RunID:          h.RunID,
		StimulusID:     h.StimulusID,
		ClientEventSeq: h.ClientEventSeq,
		Type:           h.Type,
		TRelMs:         h.TRelMs,
		TEpochClientMs: h.TEpochClientMs,
		Body:           body,
		raw:            append(json.RawMessage(nil), bytes.TrimSpace(b)...),
	}
	return nil
}

func decodeBody[T EventBody](b []byte) (EventBody, error) {
	var body T
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// MarshalJSON flattens the header and body into one object. Events decoded
// from a client payload marshal back to that payload unchanged.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}

	fields := map[string]any{}
	if e.Body != nil {
		b, err := json.Marshal(e.Body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
	}
	fields["session_id"] = e.SessionID
	fields["run_id"] = e.RunID
	fields["stimulus_id"] = e.StimulusID
	fields["client_event_seq"] = e.ClientEventSeq
	fields["type"] = e.Type
	fields["t_rel_ms"] = e.TRelMs
	fields["t_epoch_client_ms"] = e.TEpochClientMs
	return json.Marshal(fields)
}

// EventKey orders events of one (stimulus, run) by sequence under a plain
// lexical sort.
func EventKey(stimulusID, runID string, seq int64) string {
	return fmt.Sprintf("%s#%s#%s", stimulusID, runID, PadSeq(seq))
}

// PadSeq zero-pads a client sequence number to 10 digits.
func PadSeq(seq int64) string {
	return fmt.Sprintf("%010d", seq)
}
