package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         int    `env:"PORT" envDefault:"3318"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`

	LeaseSeconds      int `env:"LEASE_SECONDS" envDefault:"45"`
	StimuliPerSession int `env:"STIMULI_PER_SESSION" envDefault:"3"`

	// Identity
	ProlificJWTSecret string `env:"PROLIFIC_JWT_SECRET"`
	AllowDevIdentity  bool   `env:"ALLOW_DEV_IDENTITY"`
	AdminJWTSecret    string `env:"ADMIN_JWT_SECRET"`
	AdminJWTIssuer    string `env:"ADMIN_JWT_ISSUER"`
	AdminJWTAudience  string `env:"ADMIN_JWT_AUDIENCE"`

	// Copy bundle
	CopyPath    string        `env:"COPY_PATH"`
	CopyVersion string        `env:"COPY_VERSION" envDefault:"v1"`
	CopyTTL     time.Duration `env:"COPY_TTL" envDefault:"60s"`

	CompletionURL  string `env:"PROLIFIC_COMPLETION_URL"`
	CompletionCode string `env:"PROLIFIC_COMPLETION_CODE"`

	OTelEndpoint     string `env:"OTEL_ENDPOINT"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"affect_exp"`
}

// LeaseDuration is the lease length as a duration.
func (c Config) LeaseDuration() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

// RedirectURL is the completion URL, with the Prolific completion code
// appended as ?cc= when only a code is configured.
func (c Config) RedirectURL() string {
	if u := strings.TrimSpace(c.CompletionURL); u != "" {
		return u
	}
	if code := strings.TrimSpace(c.CompletionCode); code != "" {
		return "https://app.prolific.com/submissions/complete?cc=" + url.QueryEscape(code)
	}
	return ""
}

// ParseFlags loads an optional .env file, reads the environment and then
// applies command-line overrides.
func ParseFlags(args []string) (Config, error) {
	flags := flag.NewFlagSet("affect-exp", flag.ContinueOnError)
	envFile := flags.String("env", ".env", "Path to a .env file (optional)")

	// Network config (can be CLI args or env)
	port := flags.Int("p", 0, "Server port")
	databaseURL := flags.String("d", "", "Database URL")
	databaseType := flags.String("t", "", "Database type (sqlite, postgres or memory)")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	if err := loadDotEnv(*envFile); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	// Flags that were given win over the environment.
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Port = *port
		case "d":
			cfg.DatabaseURL = *databaseURL
		case "t":
			cfg.DatabaseType = *databaseType
		}
	})

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DatabaseType {
	case "sqlite", "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database URL required (use -d or DATABASE_URL env)")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database type %q", c.DatabaseType)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.LeaseSeconds <= 0 {
		return errors.New("LEASE_SECONDS must be positive")
	}
	if c.StimuliPerSession <= 0 {
		return errors.New("STIMULI_PER_SESSION must be positive")
	}
	return nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
