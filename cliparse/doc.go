// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Values are read in three layers. An optional .env file is loaded first
without overriding variables already set, then the environment is parsed
into Config, then command-line flags override the result.

# CLI Flags

	-p    Server port
	-d    Database URL
	-t    Database type (sqlite, postgres or memory)
	-env  Path to the .env file (default .env)

# Environment Variables

	PORT                      → -p (default 3318)
	DATABASE_URL              → -d (required unless DATABASE_TYPE=memory)
	DATABASE_TYPE             → -t (default sqlite)
	LEASE_SECONDS             Session lease length (default 45)
	STIMULI_PER_SESSION       Completed stimuli per session (default 3)
	PROLIFIC_JWT_SECRET       HS256 secret for secured_url_jwt
	ALLOW_DEV_IDENTITY        Accept raw JSON identities (local testing only)
	ADMIN_JWT_SECRET          HS256 secret for admin bearer tokens
	ADMIN_JWT_ISSUER          Required admin token issuer, if set
	ADMIN_JWT_AUDIENCE        Required admin token audience, if set
	COPY_PATH                 JSON or YAML copy bundle
	COPY_VERSION              Version reported with the bundle (default v1)
	COPY_TTL                  Copy cache TTL (default 60s)
	PROLIFIC_COMPLETION_URL   Redirect returned on session completion
	PROLIFIC_COMPLETION_CODE  Prolific completion code, used when no URL is set
	OTEL_ENDPOINT             OTLP HTTP endpoint; tracing is off when empty
	METRICS_NAMESPACE         Prometheus namespace (default affect_exp)
*/
package cliparse
