// Package retry implements the bounded exponential backoff policy applied
// to every remote operation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
)

// Policy controls how many times an operation runs and how long it sleeps
// between attempts. The zero value is usable but never retries.
type Policy struct {
	Attempts int           // total attempts, including the first
	Base     time.Duration // delay before attempt 2; doubles per attempt
	Cap      time.Duration // upper bound on the pre-jitter delay

	// Sleep overrides the context-aware sleep, for tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand supplies jitter; nil uses the global source.
	Rand *rand.Rand
}

// Default returns the standard policy: the given attempt budget, 1s base,
// 30s cap.
func Default(attempts int) Policy {
	if attempts < 1 {
		attempts = 1
	}
	return Policy{Attempts: attempts, Base: time.Second, Cap: 30 * time.Second}
}

// Do runs fn until it succeeds, fails unretriably, or the attempt budget
// is spent. It returns the number of attempts made and the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) (int, error) {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	var last error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, p.Delay(attempt)); err != nil {
				return attempt - 1, apperr.Wrap(apperr.Cancelled, "retry.wait", err)
			}
		}
		last = fn(ctx)
		if last == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, apperr.Wrap(apperr.Cancelled, "retry", ctx.Err())
		}
		if !Retriable(last) {
			return attempt, last
		}
	}
	return p.Attempts, fmt.Errorf("giving up after %d attempts: %w", p.Attempts, last)
}

// Delay computes the backoff before the given attempt (attempt >= 2):
// base doubled per extra attempt, capped, then jittered by +/-25%.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	cap := p.Cap
	if cap <= 0 {
		cap = 30 * time.Second
	}
	d := base
	for i := 2; i < attempt; i++ {
		d *= 2
		if d >= cap {
			d = cap
			break
		}
	}
	if d > cap {
		d = cap
	}
	return time.Duration(float64(d) * p.jitter())
}

func (p Policy) jitter() float64 {
	f := rand.Float64
	if p.Rand != nil {
		f = p.Rand.Float64
	}
	return 0.75 + 0.5*f()
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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

// Retriable reports whether the failure is worth another attempt:
// transport failures, timeouts, HTTP 429 and 5xx, and payloads flagged
// transient. Cancellation and the remaining kinds are final.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Transient {
			return true
		}
		if ae.Kind != apperr.NetworkError {
			return false
		}
		return ae.Status == 0 || ae.Status == 429 || ae.Status >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
