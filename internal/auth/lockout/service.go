// Package lockout throttles password guessing. Failed logins are counted per
// email and client address; reaching the limit locks that pair out for a while.
package lockout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"amlstat/internal/auth/models"
	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/requestcontext"
)

// Store is implemented by the memory and Redis lockout stores.
type Store interface {
	Get(ctx context.Context, key string) (*models.Lockout, error)
	RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*models.Lockout, error)
	Lock(ctx context.Context, key string, until time.Time) error
	Clear(ctx context.Context, key string) error
}

type Config struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		Window:       15 * time.Minute,
		LockDuration: 15 * time.Minute,
	}
}

type Service struct {
	store  Store
	config Config
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConfig overrides the defaults; non-positive fields keep their default.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.MaxAttempts > 0 {
			s.config.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.Window > 0 {
			s.config.Window = cfg.Window
		}
		if cfg.LockDuration > 0 {
			s.config.LockDuration = cfg.LockDuration
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	svc := &Service{
		store:  store,
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check returns a too_many_requests error while the pair is locked.
func (s *Service) Check(ctx context.Context, address, clientIP string) error {
	key := models.LockoutKey(address, clientIP)
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to get login lockout record")
	}
	if record == nil {
		return nil
	}
	now := requestcontext.Now(ctx)
	if !record.IsLockedAt(now) {
		return nil
	}
	s.logger.WarnContext(ctx, "login_locked_out",
		"email", address,
		"locked_until", record.LockedUntil,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.New(dErrors.CodeTooManyRequests, "too many failed login attempts, try again later")
}

// RecordFailure counts a failed login and applies the lock once the window
// holds MaxAttempts failures. It reports whether this call locked the pair.
func (s *Service) RecordFailure(ctx context.Context, address, clientIP string) (bool, error) {
	key := models.LockoutKey(address, clientIP)
	now := requestcontext.Now(ctx)
	record, err := s.store.RecordFailure(ctx, key, now, s.config.Window)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}
	if !record.ShouldLock(s.config.MaxAttempts) {
		return false, nil
	}
	record.ApplyLock(s.config.LockDuration, now)
	if err := s.store.Lock(ctx, key, *record.LockedUntil); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply login lockout")
	}
	s.logger.WarnContext(ctx, "login_lockout_triggered",
		"email", address,
		"failures", record.FailureCount,
		"locked_until", record.LockedUntil,
		"request_id", requestcontext.RequestID(ctx),
		"event", "login_lockout_triggered",
		"log_type", "audit",
	)
	return true, nil
}

// Clear forgets failures after a successful login.
func (s *Service) Clear(ctx context.Context, address, clientIP string) error {
	if err := s.store.Clear(ctx, models.LockoutKey(address, clientIP)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear login failures")
	}
	return nil
}
