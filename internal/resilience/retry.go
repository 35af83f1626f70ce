package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultMaxAttempts is how many times a call bout tries before giving up.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay seeds the exponential backoff between attempts.
	DefaultBaseDelay = time.Second
)

// RetrierConfig configures a Retrier. Zero numeric fields fall back to
// defaults; Breaker may be nil when no breaker guards the upstream.
type RetrierConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Breaker     *Breaker
	Logger      *slog.Logger
}

// Retrier runs an operation with exponential backoff and reports the bout's
// overall outcome to its breaker: one success on the first attempt that
// succeeds, or one failure once every attempt is exhausted. Individual failed
// attempts inside a bout do not count against the breaker.
//
// Retrier holds no mutable state, so one instance is safe for concurrent use
// across requests.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	breaker     *Breaker
	logger      *slog.Logger
}

// NewRetrier creates a Retrier.
func NewRetrier(cfg RetrierConfig) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Retrier{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		breaker:     cfg.Breaker,
		logger:      cfg.Logger,
	}
}

// Do runs op until it succeeds or maxAttempts is reached, sleeping
// baseDelay*2^i after failed attempt i. The label names the operation in
// logs and in the aggregate error, which always wraps the last underlying
// error. Caller cancellation aborts the bout without a breaker verdict.
func (r *Retrier) Do(ctx context.Context, label string, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, r.baseDelay<<(attempt-1)); err != nil {
				return fmt.Errorf("%s aborted before attempt %d: %w", label, attempt+1, err)
			}
		}

		err := op(ctx)
		if err == nil {
			if r.breaker != nil {
				r.breaker.RecordSuccess()
			}
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("%s aborted after attempt %d: %w", label, attempt+1, lastErr)
		}

		r.logger.Debug("attempt failed",
			slog.String("operation", label),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", r.maxAttempts),
			slog.String("error", err.Error()),
		)
	}

	if r.breaker != nil {
		r.breaker.RecordFailure()
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, r.maxAttempts, lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
