// Package resilience wraps the pipeline's network calls (document store,
// OCR, generative extraction, geocoding, state I/O) in bounded retries.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RetryConfig is the retry policy for one kind of call. Zero fields fall
// back to DefaultRetryConfig.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// JitterFraction spreads each delay uniformly over ±fraction of itself.
	JitterFraction float64

	// ShouldRetry decides which errors are worth another attempt. Nil means IsTransient.
	ShouldRetry func(err error) bool
	// OnRetry runs before each wait with the attempt that just failed.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryConfig is four attempts, 1s doubling to at most 30s, ±25%.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.25,
	}
}

// jitter returns a value in [0,1).
var jitter = rand.Float64

// Named tags the policy with the collaborator and call it guards, so every
// retry shows up in the log.
func (cfg RetryConfig) Named(collaborator, call string) RetryConfig {
	cfg.OnRetry = func(attempt int, wait time.Duration, err error) {
		zap.L().Warn("retrying call",
			zap.String("collaborator", collaborator),
			zap.String("call", call),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return cfg
}

// Do calls fn until it succeeds, fails permanently, runs out of attempts or
// ctx ends.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that produce a value. Permanent errors come back
// unchanged; an exhausted budget wraps the last error with the attempt count.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		switch {
		case err == nil:
			return val, nil
		case ctx.Err() != nil, !retryable(err):
			return zero, err
		case attempt >= cfg.MaxAttempts:
			return zero, eris.Wrapf(err, "gave up after %d attempts", attempt)
		}

		wait := cfg.backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, err)
		}
		if !sleep(ctx, wait) {
			return zero, err
		}
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}
	cfg.JitterFraction = min(max(cfg.JitterFraction, 0), 1)
	return cfg
}

// backoff is the wait after the given failed attempt (1-based).
func (cfg RetryConfig) backoff(attempt int) time.Duration {
	wait := float64(cfg.InitialBackoff)
	for i := 1; i < attempt && wait < float64(cfg.MaxBackoff); i++ {
		wait *= cfg.Multiplier
	}
	wait = min(wait, float64(cfg.MaxBackoff))
	if cfg.JitterFraction > 0 {
		wait *= 1 + cfg.JitterFraction*(2*jitter()-1)
	}
	return time.Duration(wait)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
