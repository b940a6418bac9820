// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestNewIDs(t *testing.T) {
	id1 := NewSessionID()
	id2 := NewSessionID()
	if id1 == id2 {
		t.Error("NewSessionID() produced duplicate IDs (extremely unlikely)")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("NewSessionID() = %q, not a UUID: %v", id1, err)
	}

	token := NewLeaseToken()
	if _, err := uuid.Parse(token); err != nil {
		t.Errorf("NewLeaseToken() = %q, not a UUID: %v", token, err)
	}
	if token == id1 {
		t.Error("NewLeaseToken() collided with session id")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer   abc", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := BearerToken(tt.header); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func signHS256(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestProlificVerifier(t *testing.T) {
	const secret = "prolific-secret"
	valid := signHS256(t, secret, prolificClaims{
		ProlificPID: "pid1",
		StudyID:     "study1",
		SessionID:   "ps1",
	})
	missingClaim := signHS256(t, secret, prolificClaims{ProlificPID: "pid1", StudyID: "study1"})
	wrongKey := signHS256(t, "other", prolificClaims{ProlificPID: "pid1", StudyID: "study1", SessionID: "ps1"})
	expired := signHS256(t, secret, prolificClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
		ProlificPID:      "pid1",
		StudyID:          "study1",
		SessionID:        "ps1",
	})
	devJSON := `{"PROLIFIC_PID":"pid1","STUDY_ID":"study1","SESSION_ID":"ps1"}`

	tests := []struct {
		name     string
		allowDev bool
		raw      string
		wantErr  bool
	}{
		{"valid token", false, valid, false},
		{"missing claim", false, missingClaim, true},
		{"wrong key", false, wrongKey, true},
		{"expired", false, expired, true},
		{"empty", false, "", true},
		{"garbage", false, "not-a-jwt", true},
		{"dev json rejected", false, devJSON, true},
		{"dev json allowed", true, devJSON, false},
		{"dev json missing claim", true, `{"PROLIFIC_PID":"pid1"}`, true},
		{"dev mode still verifies tokens", true, valid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewProlificVerifier(secret, tt.allowDev)
			id, err := v.Verify(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Verify() expected error, got identity %+v", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if id.ProlificPID != "pid1" || id.StudyID != "study1" || id.ProlificSessionID != "ps1" {
				t.Errorf("Verify() = %+v", id)
			}
			if id.ParticipantID() != "study1#pid1" {
				t.Errorf("ParticipantID() = %q", id.ParticipantID())
			}
			if id.LockID() != "STUDY#study1#PID#pid1" {
				t.Errorf("LockID() = %q", id.LockID())
			}
		})
	}
}

func TestProlificVerifierNotConfigured(t *testing.T) {
	v := NewProlificVerifier("", false)
	_, err := v.Verify("a.b.c")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Verify() error = %v, want ErrNotConfigured", err)
	}
}

func TestAdminVerifier(t *testing.T) {
	const secret = "admin-secret"
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name    string
		claims  jwt.RegisteredClaims
		key     string
		wantErr bool
	}{
		{"valid", jwt.RegisteredClaims{Subject: "admin@lab", Issuer: "lab", Audience: jwt.ClaimStrings{"affect-admin"}, ExpiresAt: future}, secret, false},
		{"no expiry", jwt.RegisteredClaims{Subject: "admin@lab", Issuer: "lab", Audience: jwt.ClaimStrings{"affect-admin"}}, secret, true},
		{"expired", jwt.RegisteredClaims{Subject: "admin@lab", Issuer: "lab", Audience: jwt.ClaimStrings{"affect-admin"}, ExpiresAt: past}, secret, true},
		{"wrong issuer", jwt.RegisteredClaims{Subject: "admin@lab", Issuer: "other", Audience: jwt.ClaimStrings{"affect-admin"}, ExpiresAt: future}, secret, true},
		{"wrong audience", jwt.RegisteredClaims{Subject: "admin@lab", Issuer: "lab", Audience: jwt.ClaimStrings{"x"}, ExpiresAt: future}, secret, true},
		{"wrong key", jwt.RegisteredClaims{Subject: "admin@lab", Issuer: "lab", Audience: jwt.ClaimStrings{"affect-admin"}, ExpiresAt: future}, "nope", true},
	}

	v := NewAdminVerifier(secret, "lab", "affect-admin")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := v.Verify(signHS256(t, tt.key, tt.claims))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAdminToken) {
					t.Fatalf("Verify() error = %v, want ErrInvalidAdminToken", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if sub != "admin@lab" {
				t.Errorf("Verify() subject = %q", sub)
			}
		})
	}

	if _, err := v.Verify(""); !errors.Is(err, ErrInvalidAdminToken) {
		t.Errorf("Verify(\"\") error = %v", err)
	}
	if _, err := NewAdminVerifier("", "", "").Verify("a.b.c"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unconfigured Verify() error = %v", err)
	}
}
