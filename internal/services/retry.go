package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy is a bounded retry with exponential backoff, applied to any
// external call through Do.
type RetryPolicy struct {
	MaxAttempts    int           // total attempts including the first
	InitialBackoff time.Duration // doubles after each failed attempt
	MaxBackoff     time.Duration
	Retryable      func(error) bool

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries transient completion failures three times in total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Retryable:      IsTransient,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Debug().Str("op", op).Int("attempt", attempt+1).Msg("retry succeeded")
			}
			return nil
		}
		lastErr = err

		if !retryable(err) {
			log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("non-retryable failure")
			return err
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Int("max_attempts", attempts).Msg("attempt failed")

		if attempt < attempts-1 {
			if err := p.wait(ctx, p.backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrRetriesExhausted, attempts, lastErr)
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff << uint(attempt)
	if p.MaxBackoff > 0 && (d > p.MaxBackoff || d <= 0) {
		d = p.MaxBackoff
	}
	return d
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
