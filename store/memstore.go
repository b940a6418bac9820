// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/affect-exp/models"
)

type orderKey struct {
	sessionID string
	order     int
}

type sessionItemKey struct {
	sessionID string
	key       string
}

// MemStore is an in-process Store. A single mutex makes every method,
// including the multi-item transactions, atomic.
type MemStore struct {
	mu sync.Mutex

	locks          map[string]models.ParticipantLock
	participants   map[string]models.Participant
	sessions       map[string]models.Session
	stimuli        map[string]models.Stimulus
	sessionStimuli map[orderKey]models.SessionStimulus
	counters       map[string]models.AssignmentCounter
	events         map[sessionItemKey]models.StoredEvent
	holds          map[sessionItemKey]models.Hold
	ratings        map[string]models.HoldRating
}

func NewMemStore() *MemStore {
	return &MemStore{
		locks:          map[string]models.ParticipantLock{},
		participants:   map[string]models.Participant{},
		sessions:       map[string]models.Session{},
		stimuli:        map[string]models.Stimulus{},
		sessionStimuli: map[orderKey]models.SessionStimulus{},
		counters:       map[string]models.AssignmentCounter{},
		events:         map[sessionItemKey]models.StoredEvent{},
		holds:          map[sessionItemKey]models.Hold{},
		ratings:        map[string]models.HoldRating{},
	}
}

func (m *MemStore) Close() error { return nil }

func (m *MemStore) Ping(context.Context) error { return nil }

// Sessions

func (m *MemStore) CreateSession(_ context.Context, lock models.ParticipantLock, p models.Participant, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.locks[lock.LockID]; ok {
		return conditionFailed("participant_locks", CondLockAbsent)
	}
	if _, ok := m.participants[p.ParticipantID]; ok {
		return conditionFailed("participants", CondParticipantAbsent)
	}
	if _, ok := m.sessions[s.SessionID]; ok {
		return conditionFailed("sessions", CondSessionAbsent)
	}

	m.locks[lock.LockID] = lock
	m.participants[p.ParticipantID] = p
	m.sessions[s.SessionID] = s
	return nil
}

func (m *MemStore) GetSession(_ context.Context, sessionID string) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return models.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemStore) ListSessions(_ context.Context) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].SessionID < list[j].SessionID
	})
	return list, nil
}

// updateLeased applies fn to the session when its lease token matches.
func (m *MemStore) updateLeased(sessionID, leaseToken string, fn func(s *models.Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.LeaseToken != leaseToken {
		return conditionFailed("sessions", CondLeaseToken)
	}
	fn(&s)
	m.sessions[sessionID] = s
	return nil
}

func (m *MemStore) RefreshLease(_ context.Context, sessionID, leaseToken string, expiresAt, now time.Time) error {
	return m.updateLeased(sessionID, leaseToken, func(s *models.Session) {
		s.LeaseExpiresAt = expiresAt
		s.UpdatedAt = now
	})
}

func (m *MemStore) SaveCalibration(_ context.Context, sessionID, leaseToken string, cal models.Calibration, now time.Time) error {
	return m.updateLeased(sessionID, leaseToken, func(s *models.Session) {
		s.CalibrationGroup = cal.Group
		s.InputModality = cal.InputModality
		s.ModalityVersion = models.ModalityVersion
		s.MsPerWord = cal.MsPerWord
		s.UpdatedAt = now
	})
}

func (m *MemStore) CompleteSession(_ context.Context, sessionID, leaseToken string, now time.Time) error {
	return m.updateLeased(sessionID, leaseToken, func(s *models.Session) {
		s.Status = models.SessionComplete
		s.UpdatedAt = now
	})
}

func (m *MemStore) SetCurrentIndex(_ context.Context, sessionID string, index int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.CurrentIndex = index
	s.UpdatedAt = now
	m.sessions[sessionID] = s
	return nil
}

func (m *MemStore) GetParticipant(_ context.Context, participantID string) (models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[participantID]
	if !ok {
		return models.Participant{}, ErrNotFound
	}
	return p, nil
}

// Stimuli

func (m *MemStore) PutStimulus(_ context.Context, st models.Stimulus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.stimuli[st.StimulusID]; ok {
		st.CreatedAt = prev.CreatedAt
	}
	m.stimuli[st.StimulusID] = st
	return nil
}

func (m *MemStore) GetStimulus(_ context.Context, stimulusID string) (models.Stimulus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stimuli[stimulusID]
	if !ok {
		return models.Stimulus{}, ErrNotFound
	}
	return st, nil
}

func (m *MemStore) ListStimuli(_ context.Context) ([]models.Stimulus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]models.Stimulus, 0, len(m.stimuli))
	for _, st := range m.stimuli {
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StimulusID < list[j].StimulusID })
	return list, nil
}

// Session stimuli

func (m *MemStore) ListSessionStimuli(_ context.Context, sessionID string) ([]models.SessionStimulus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []models.SessionStimulus{}
	for k, row := range m.sessionStimuli {
		if k.sessionID == sessionID {
			list = append(list, row)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StimulusOrder < list[j].StimulusOrder })
	return list, nil
}

func (m *MemStore) PutSessionStimulus(_ context.Context, row models.SessionStimulus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := orderKey{row.SessionID, row.StimulusOrder}
	if _, ok := m.sessionStimuli[k]; ok {
		return conditionFailed("session_stimuli", CondOrderAbsent)
	}
	m.sessionStimuli[k] = row
	return nil
}

// applyTransition must be called with mu held.
func (m *MemStore) applyTransition(t Transition) error {
	k := orderKey{t.SessionID, t.Order}
	row, ok := m.sessionStimuli[k]
	if !ok || !t.allows(row.Status) {
		return conditionFailed("session_stimuli", CondStatusIn)
	}

	row.Status = t.To
	if t.RunID != "" {
		row.LatestRunID = t.RunID
	}
	if t.SeenEvents {
		row.SeenEvents = true
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		row.CompletedAt = &completed
	}
	m.sessionStimuli[k] = row
	return nil
}

func (m *MemStore) TransitionSessionStimulus(_ context.Context, t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.applyTransition(t)
}

func (m *MemStore) CompleteSessionStimulus(_ context.Context, t Transition, stimulusID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.applyTransition(t); err != nil {
		return err
	}
	c := m.counters[stimulusID]
	c.StimulusID = stimulusID
	c.AssignedCount++
	m.counters[stimulusID] = c
	return nil
}

// Assignment counters

func (m *MemStore) ListAssignmentCounters(_ context.Context) (map[string]models.AssignmentCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]models.AssignmentCounter, len(m.counters))
	for k, c := range m.counters {
		out[k] = c
	}
	return out, nil
}

func (m *MemStore) ClaimStimulus(_ context.Context, stimulusID string, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counters[stimulusID]
	if c.ClaimVersion != expected {
		return conditionFailed("assignment_counters", CondClaimVersion)
	}
	c.StimulusID = stimulusID
	c.ClaimVersion++
	m.counters[stimulusID] = c
	return nil
}

// Events

func (m *MemStore) PutEvent(_ context.Context, e models.StoredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := sessionItemKey{e.SessionID, e.EventKey}
	if _, ok := m.events[k]; ok {
		return conditionFailed("events", CondEventAbsent)
	}
	e.Payload = slices.Clone(e.Payload)
	m.events[k] = e
	return nil
}

func (m *MemStore) ListEvents(_ context.Context, sessionID string, limit int) ([]models.StoredEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []models.StoredEvent{}
	for k, e := range m.events {
		if k.sessionID == sessionID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EventKey < list[j].EventKey })
	if len(list) > limit {
		return list[:limit], true, nil
	}
	return list, false, nil
}

func (m *MemStore) CountEvents(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.events {
		if k.sessionID == sessionID {
			n++
		}
	}
	return n, nil
}

// Holds and ratings

func (m *MemStore) PutHold(_ context.Context, h models.Hold) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := sessionItemKey{h.SessionID, h.HoldID}
	if _, ok := m.holds[k]; ok {
		return conditionFailed("holds", CondHoldAbsent)
	}
	m.holds[k] = h
	return nil
}

func (m *MemStore) GetHold(_ context.Context, sessionID, holdID string) (models.Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.holds[sessionItemKey{sessionID, holdID}]
	if !ok {
		return models.Hold{}, ErrNotFound
	}
	return h, nil
}

func (m *MemStore) ListHolds(_ context.Context, sessionID string) ([]models.Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := []models.Hold{}
	for k, h := range m.holds {
		if k.sessionID == sessionID {
			list = append(list, h)
		}
	}
	sort.Slice(list, func(i, j int) bool { return strings.Compare(list[i].HoldID, list[j].HoldID) < 0 })
	return list, nil
}

func (m *MemStore) PutHoldRating(_ context.Context, r models.HoldRating) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ratings[r.HoldID] = r
	return nil
}

func (m *MemStore) GetHoldRating(_ context.Context, holdID string) (models.HoldRating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.ratings[holdID]
	if !ok {
		return models.HoldRating{}, ErrNotFound
	}
	return r, nil
}
