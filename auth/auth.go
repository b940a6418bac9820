// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidIdentity   = errors.New("invalid participant identity")
	ErrInvalidAdminToken = errors.New("invalid admin token")
	ErrNotConfigured     = errors.New("verifier is not configured")
)

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewLeaseToken returns a fresh lease token. Tokens are issued once per
// session and never rotated.
func NewLeaseToken() string {
	return uuid.NewString()
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. It returns "" when the scheme is missing or wrong.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
