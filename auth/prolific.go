// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/danielhkuo/affect-exp/models"
)

// ProlificVerifier turns the secured_url_jwt handed over by Prolific into a
// verified participant identity.
type ProlificVerifier struct {
	secret   []byte
	allowDev bool
	now      func() time.Time
}

// NewProlificVerifier verifies HS256 tokens signed with secret. When
// allowDev is set, a raw JSON object carrying the three claims is accepted
// too, for local testing.
func NewProlificVerifier(secret string, allowDev bool) *ProlificVerifier {
	return &ProlificVerifier{secret: []byte(secret), allowDev: allowDev, now: time.Now}
}

type prolificClaims struct {
	jwt.RegisteredClaims
	ProlificPID string `json:"PROLIFIC_PID"`
	StudyID     string `json:"STUDY_ID"`
	SessionID   string `json:"SESSION_ID"`
}

// Verify validates raw and returns the identity it carries.
func (v *ProlificVerifier) Verify(raw string) (models.ParticipantIdentity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.ParticipantIdentity{}, fmt.Errorf("%w: secured_url_jwt is required", ErrInvalidIdentity)
	}

	if v.allowDev && strings.HasPrefix(raw, "{") {
		var id models.ParticipantIdentity
		if err := json.Unmarshal([]byte(raw), &id); err != nil {
			return models.ParticipantIdentity{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
		}
		return checkIdentity(id)
	}

	if len(v.secret) == 0 {
		return models.ParticipantIdentity{}, fmt.Errorf("prolific: %w", ErrNotConfigured)
	}

	var claims prolificClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return models.ParticipantIdentity{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}

	return checkIdentity(models.ParticipantIdentity{
		ProlificPID:       claims.ProlificPID,
		StudyID:           claims.StudyID,
		ProlificSessionID: claims.SessionID,
	})
}

func checkIdentity(id models.ParticipantIdentity) (models.ParticipantIdentity, error) {
	id.ProlificPID = strings.TrimSpace(id.ProlificPID)
	id.StudyID = strings.TrimSpace(id.StudyID)
	id.ProlificSessionID = strings.TrimSpace(id.ProlificSessionID)
	if id.ProlificPID == "" || id.StudyID == "" || id.ProlificSessionID == "" {
		return models.ParticipantIdentity{}, fmt.Errorf("%w: missing required claim", ErrInvalidIdentity)
	}
	return id, nil
}
