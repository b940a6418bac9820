// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/store"
)

// msPerWord is the reveal speed for each calibration group.
var msPerWord = map[string]int{
	models.CalibrationSlow:   333,
	models.CalibrationMedium: 250,
	models.CalibrationFast:   200,
}

var experimentTargets = []string{models.TargetSelf, models.TargetCharacter}

func validModality(m string) bool {
	switch m {
	case models.ModalityHold, models.ModalityClickMark, models.ModalityToggleState, models.ModalityPopupState:
		return true
	}
	return false
}

func validTarget(t string) bool {
	return t == models.TargetSelf || t == models.TargetCharacter
}

// StartSession creates the session, its participant and the participant lock
// in one transaction. A second start for the same identity fails with
// ErrDuplicateParticipant.
func (s *Service) StartSession(ctx context.Context, identity models.ParticipantIdentity, targetOverride string) (sess models.Session, err error) {
	ctx, span := s.startSpan(ctx, "StartSession", attribute.String("study_id", identity.StudyID))
	defer func() { endSpan(span, err) }()

	if identity.ProlificPID == "" || identity.StudyID == "" || identity.ProlificSessionID == "" {
		return models.Session{}, validationf("participant identity is incomplete")
	}

	target := targetOverride
	if !validTarget(target) {
		target = experimentTargets[s.intn(len(experimentTargets))]
	}

	now := s.clock()
	sess = models.Session{
		SessionID:         s.newID(),
		ParticipantID:     identity.ParticipantID(),
		StudyID:           identity.StudyID,
		ProlificPID:       identity.ProlificPID,
		ProlificSessionID: identity.ProlificSessionID,
		Status:            models.SessionActive,
		InputModality:     models.ModalityHold,
		ModalityVersion:   models.ModalityVersion,
		ExperimentTarget:  target,
		CurrentIndex:      0,
		LeaseToken:        s.newTok(),
		LeaseExpiresAt:    now.Add(s.cfg.LeaseDuration),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	lock := models.ParticipantLock{
		LockID:         identity.LockID(),
		ParticipantID:  sess.ParticipantID,
		SessionID:      sess.SessionID,
		LeaseToken:     sess.LeaseToken,
		LeaseExpiresAt: sess.LeaseExpiresAt,
		Status:         models.SessionActive,
		UpdatedAt:      now,
	}
	participant := models.Participant{
		ParticipantID:     sess.ParticipantID,
		ProlificPID:       identity.ProlificPID,
		StudyID:           identity.StudyID,
		ProlificSessionID: identity.ProlificSessionID,
		Status:            models.SessionActive,
		CreatedAt:         now,
	}

	if err := s.store.CreateSession(ctx, lock, participant, sess); err != nil {
		var condErr *store.ConditionError
		if errors.As(err, &condErr) && condErr.Condition != store.CondSessionAbsent {
			return models.Session{}, ErrDuplicateParticipant
		}
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}

	slog.Info("session started",
		"session_id", sess.SessionID,
		"participant_id", sess.ParticipantID,
		"experiment_target", sess.ExperimentTarget,
	)
	return sess, nil
}

// Heartbeat extends the lease of the caller holding leaseToken.
func (s *Service) Heartbeat(ctx context.Context, sessionID, leaseToken string) (expires time.Time, err error) {
	ctx, span := s.startSpan(ctx, "Heartbeat", attribute.String("session_id", sessionID))
	defer func() { endSpan(span, err) }()

	if _, err := s.checkLease(ctx, "heartbeat", sessionID, leaseToken); err != nil {
		return time.Time{}, err
	}

	now := s.clock()
	expires = now.Add(s.cfg.LeaseDuration)
	if err := s.store.RefreshLease(ctx, sessionID, leaseToken, expires, now); err != nil {
		return time.Time{}, s.leaseWriteErr("heartbeat", err)
	}
	return expires, nil
}

// SaveCalibration records the reading speed group and input modality. An
// empty modality means hold.
func (s *Service) SaveCalibration(ctx context.Context, sessionID, leaseToken, group, modality string) (cal models.Calibration, err error) {
	ctx, span := s.startSpan(ctx, "SaveCalibration", attribute.String("session_id", sessionID))
	defer func() { endSpan(span, err) }()

	ms, ok := msPerWord[group]
	if !ok {
		return models.Calibration{}, validationf("calibration_group must be slow, medium or fast")
	}
	if modality == "" {
		modality = models.ModalityHold
	}
	if !validModality(modality) {
		return models.Calibration{}, validationf("unknown input_modality %q", modality)
	}

	if _, err := s.checkLease(ctx, "calibration", sessionID, leaseToken); err != nil {
		return models.Calibration{}, err
	}

	cal = models.Calibration{Group: group, InputModality: modality, MsPerWord: ms}
	if err := s.store.SaveCalibration(ctx, sessionID, leaseToken, cal, s.clock()); err != nil {
		return models.Calibration{}, s.leaseWriteErr("calibration", err)
	}
	return cal, nil
}

// CompleteSession marks the session complete and returns the completion
// redirect URL, which may be empty.
func (s *Service) CompleteSession(ctx context.Context, sessionID, leaseToken string) (redirectURL string, err error) {
	ctx, span := s.startSpan(ctx, "CompleteSession", attribute.String("session_id", sessionID))
	defer func() { endSpan(span, err) }()

	if _, err := s.checkLease(ctx, "complete", sessionID, leaseToken); err != nil {
		return "", err
	}
	if err := s.store.CompleteSession(ctx, sessionID, leaseToken, s.clock()); err != nil {
		return "", s.leaseWriteErr("complete", err)
	}

	slog.Info("session completed", "session_id", sessionID)
	return s.cfg.CompletionURL, nil
}

// GetSession returns the session without lease checks.
func (s *Service) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	return s.getSession(ctx, sessionID)
}
