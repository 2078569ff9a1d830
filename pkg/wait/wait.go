// Package wait implements bounded fixed-interval polling over arbitrary
// probes. Timing out is a normal outcome, not an error: the monitored state
// is bursty DOM mutation, so there is no backoff growth and no failure mode
// beyond "nothing showed up in time".
package wait

import (
	"context"
	"time"
)

// Default polling cadence used by callers that have no stronger opinion.
const (
	DefaultInterval = 150 * time.Millisecond
	DefaultTimeout  = 8 * time.Second
)

// Probe evaluates the current state and returns a value plus true once the
// awaited condition holds. Returning an error aborts the wait immediately;
// probes that merely "didn't find it yet" should return ok=false, not an
// error.
type Probe[T any] func(ctx context.Context) (T, bool, error)

// Until polls probe every interval until it reports ok, the timeout elapses,
// or ctx is cancelled. On timeout it returns the zero value and false with a
// nil error. The probe is always evaluated at least once, so the worst-case
// return is no later than timeout plus one interval.
func Until[T any](ctx context.Context, timeout, interval time.Duration, probe Probe[T]) (T, bool, error) {
	var zero T
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	deadline := time.Now().Add(timeout)
	for {
		v, ok, err := probe(ctx)
		if err != nil {
			return zero, false, err
		}
		if ok {
			return v, true, nil
		}
		if time.Now().After(deadline) {
			return zero, false, nil
		}
		select {
		case <-ctx.Done():
			return zero, false, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Sleep pauses for d or until ctx is cancelled, whichever comes first.
// Workflows use it for the short settling pauses after synthetic clicks.
func Sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
