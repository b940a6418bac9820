// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identifiers, participant identity verification and
admin token checks.

# Identifiers

Session ids and lease tokens are random UUIDs:

	sessionID := auth.NewSessionID()
	leaseToken := auth.NewLeaseToken()

A lease token is issued once when the session starts and never rotated.
Every lease-scoped write compares it inside the store's write condition.

# Participant Identity

Prolific hands each participant a secured_url_jwt. ProlificVerifier checks
the HS256 signature and extracts PROLIFIC_PID, STUDY_ID and SESSION_ID:

	v := auth.NewProlificVerifier(secret, false)
	identity, err := v.Verify(token)

With allowDev set, a raw JSON object carrying the same three claims is
accepted as well. This exists for local testing only.

# Admin Tokens

The admin results routes take a bearer JWT:

	v := auth.NewAdminVerifier(secret, issuer, audience)
	subject, err := v.Verify(auth.BearerToken(r.Header.Get("Authorization")))

Tokens must be HS256 and carry an expiry. Issuer and audience are checked
when configured.
*/
package auth
