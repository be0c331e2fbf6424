// Package clock provides helpers for time-related operations.
package clock

import (
	"context"
	"time"
)

// SleepWithContext waits for the duration or returns early if the context is canceled.
// Non-positive durations only check the context.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// Remaining returns how much of interval is left since started, never negative.
func Remaining(started time.Time, interval time.Duration, now time.Time) time.Duration {
	left := interval - now.Sub(started)
	if left < 0 {
		return 0
	}
	return left
}
