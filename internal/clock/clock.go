// Package clock abstracts wall time and timers so schedulers can be driven
// deterministically in tests.
package clock

import (
	"context"
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Timer is a cancellable one-shot timer. Stop reports whether the call
// prevented the function from running.
type Timer interface {
	Stop() bool
}

// Clock provides the current time, one-shot timers and context-aware sleeps.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall Clock.
type Real struct {
	c bclock.Clock
}

// New returns the wall clock.
func New() Clock { return Real{c: bclock.New()} }

func (r Real) Now() time.Time { return r.c.Now() }

func (r Real) AfterFunc(d time.Duration, f func()) Timer { return r.c.AfterFunc(d, f) }

// Sleep blocks for d or until ctx is done.
func (r Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := r.c.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
