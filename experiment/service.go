// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielhkuo/affect-exp/auth"
	"github.com/danielhkuo/affect-exp/metrics"
	"github.com/danielhkuo/affect-exp/models"
	"github.com/danielhkuo/affect-exp/store"
)

const tracerName = "github.com/danielhkuo/affect-exp/experiment"

// Defaults applied by NewService for zero Config fields.
const (
	DefaultLeaseDuration     = 45 * time.Second
	DefaultStimuliPerSession = 3
	maxAllocationAttempts    = 8
)

// Clock returns the current wall time.
type Clock func() time.Time

type Config struct {
	LeaseDuration     time.Duration
	StimuliPerSession int
	// CompletionURL is returned to the client when a session completes.
	CompletionURL string
}

// Service runs the session, assignment, ingestion and rating operations
// against a conditional store. It holds no mutable state of its own.
type Service struct {
	store   store.Store
	cfg     Config
	now     Clock
	intn    func(n int) int
	newID   func() string
	newTok  func() string
	metrics metrics.Collector
	tracer  trace.Tracer
}

type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) { s.now = c }
}

// WithRand overrides the random index source used for tie breaks and
// experiment target selection. intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(s *Service) { s.intn = intn }
}

// WithIDs overrides session id and lease token generation.
func WithIDs(sessionID, leaseToken func() string) Option {
	return func(s *Service) {
		s.newID = sessionID
		s.newTok = leaseToken
	}
}

func WithMetrics(m metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(st store.Store, cfg Config, opts ...Option) *Service {
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = DefaultLeaseDuration
	}
	if cfg.StimuliPerSession <= 0 {
		cfg.StimuliPerSession = DefaultStimuliPerSession
	}

	s := &Service{
		store:   st,
		cfg:     cfg,
		now:     time.Now,
		intn:    rand.IntN,
		newID:   auth.NewSessionID,
		newTok:  auth.NewLeaseToken,
		metrics: metrics.NewNop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// startSpan opens a span for one service operation.
func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "experiment."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// getSession loads a session, mapping a missing item to ErrNotFound.
func (s *Service) getSession(ctx context.Context, sessionID string) (models.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Session{}, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// checkLease loads the session and compares its token. The subsequent write
// must still be gated on the same token.
func (s *Service) checkLease(ctx context.Context, op, sessionID, leaseToken string) (models.Session, error) {
	if sessionID == "" || leaseToken == "" {
		return models.Session{}, validationf("session_id and lease_token are required")
	}
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	if sess.LeaseToken != leaseToken {
		s.metrics.RecordLeaseConflict(op)
		return models.Session{}, ErrLeaseConflict
	}
	return sess, nil
}

// leaseWriteErr maps a failed lease-gated write.
func (s *Service) leaseWriteErr(op string, err error) error {
	if errors.Is(err, store.ErrConditionFailed) {
		s.metrics.RecordLeaseConflict(op)
		return ErrLeaseConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}
