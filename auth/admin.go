// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminVerifier checks bearer tokens on the admin results routes.
type AdminVerifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewAdminVerifier verifies HS256 tokens. Empty issuer or audience skips
// that check.
func NewAdminVerifier(secret, issuer, audience string) *AdminVerifier {
	return &AdminVerifier{secret: []byte(secret), issuer: issuer, audience: audience, now: time.Now}
}

// Verify validates token and returns its subject.
func (v *AdminVerifier) Verify(token string) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("admin: %w", ErrNotConfigured)
	}
	if token == "" {
		return "", fmt.Errorf("%w: token is required", ErrInvalidAdminToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAdminToken, err)
	}
	return claims.Subject, nil
}
