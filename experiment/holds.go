// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"math"
	"time"

	"github.com/danielhkuo/affect-exp/models"
)

// holdDeriver turns raw events of one batch into hold records. Interval
// starts seen earlier in the same batch fill in start fields an end event
// leaves out.
type holdDeriver struct {
	sess   models.Session
	runID  string
	now    time.Time
	starts map[string]models.HoldStart
	startT map[string]models.Number
}

func newHoldDeriver(sess models.Session, runID string, now time.Time) *holdDeriver {
	return &holdDeriver{
		sess:   sess,
		runID:  runID,
		now:    now,
		starts: map[string]models.HoldStart{},
		startT: map[string]models.Number{},
	}
}

// derive returns the hold for ev, if ev closes or marks an episode.
func (d *holdDeriver) derive(ev models.Event) (models.Hold, bool) {
	switch body := ev.Body.(type) {
	case models.HoldStart:
		if body.HoldID != "" {
			d.starts[body.HoldID] = body
			d.startT[body.HoldID] = ev.TRelMs
		}
		return models.Hold{}, false

	case models.IntervalEnd:
		episode := models.EpisodeHoldInterval
		if ev.Type == models.EventUncertaintyEnd {
			episode = models.EpisodeToggleInterval
		}
		return d.interval(ev, body, episode)

	case models.StateSet:
		if !validStateLabel(body.StateLabel) {
			return models.Hold{}, false
		}
		h, ok := d.point(ev, body.PointMark, models.EpisodePopupStatePoint)
		h.StateLabel = body.StateLabel
		return h, ok

	case models.PointMark:
		return d.point(ev, body, models.EpisodeClickPoint)
	}
	return models.Hold{}, false
}

func (d *holdDeriver) interval(ev models.Event, body models.IntervalEnd, episode string) (models.Hold, bool) {
	if body.HoldID == "" {
		return models.Hold{}, false
	}

	startWord, startT := body.StartWordIndex, body.StartTRelMs
	if start, ok := d.starts[body.HoldID]; ok {
		if !startWord.Valid {
			startWord = start.StartWordIndex
		}
		if !startT.Valid {
			startT = d.startT[body.HoldID]
		}
	}
	endWord, endT := body.EndWordIndex, ev.TRelMs
	if !startWord.Valid || !endWord.Valid || !startT.Valid || !endT.Valid {
		return models.Hold{}, false
	}

	h := d.base(ev, body.HoldID, episode)
	h.StartWordIndex = int(math.Floor(math.Min(startWord.Value, endWord.Value)))
	h.EndWordIndex = int(math.Floor(math.Max(startWord.Value, endWord.Value)))
	h.StartTRelMs = startT.Value
	h.EndTRelMs = endT.Value
	h.DurationMs = math.Max(0, endT.Value-startT.Value)
	h.AutoClosed = body.AutoClosed
	return h, true
}

func (d *holdDeriver) point(ev models.Event, body models.PointMark, episode string) (models.Hold, bool) {
	word, ok := resolveWordIndex(body)
	if !ok {
		return models.Hold{}, false
	}

	holdID := body.HoldID
	if holdID == "" {
		holdID = d.runID + "#" + models.PadSeq(ev.ClientEventSeq)
	}

	var t float64
	if ev.TRelMs.Valid {
		t = ev.TRelMs.Value
	}

	h := d.base(ev, holdID, episode)
	h.StartWordIndex = word
	h.EndWordIndex = word
	h.StartTRelMs = t
	h.EndTRelMs = t
	h.DurationMs = 0
	return h, true
}

func (d *holdDeriver) base(ev models.Event, holdID, episode string) models.Hold {
	return models.Hold{
		SessionID:        d.sess.SessionID,
		HoldID:           holdID,
		ParticipantID:    d.sess.ParticipantID,
		StimulusID:       ev.StimulusID,
		RunID:            ev.RunID,
		EpisodeType:      episode,
		InputModality:    d.sess.InputModality,
		ExperimentTarget: d.sess.ExperimentTarget,
		CreatedAt:        d.now,
	}
}

// resolveWordIndex takes the first finite non-negative of word_index,
// start_word_index and end_word_index, floored.
func resolveWordIndex(m models.PointMark) (int, bool) {
	for _, n := range []models.Number{m.WordIndex, m.StartWordIndex, m.EndWordIndex} {
		if n.Valid && n.Value >= 0 {
			return int(math.Floor(n.Value)), true
		}
	}
	return 0, false
}

func validStateLabel(label string) bool {
	switch label {
	case models.StateMistake, models.StateUncertain, models.StateClear:
		return true
	}
	return false
}
