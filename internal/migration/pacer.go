package migration

import (
	"context"
	"time"
)

// Pacer waits between sink calls to respect the sink's rate limit.
type Pacer interface {
	Pace(ctx context.Context, d time.Duration) error
}

// SleepPacer waits on a timer and returns early if ctx is cancelled.
type SleepPacer struct{}

// Pace implements Pacer.
func (SleepPacer) Pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
