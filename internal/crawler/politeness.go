package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// TimerSleeper waits on a real timer and returns early when ctx is done.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
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

// DelayRange is a closed interval sampled uniformly.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Default politeness windows.
var (
	DefaultCompanyDelay = DelayRange{Min: 8 * time.Second, Max: 15 * time.Second}
	DefaultListingDelay = DelayRange{Min: 3 * time.Second, Max: 5 * time.Second}
)

// Draw returns a value in [Min, Max]. unit must return a value in [0, 1);
// nil uses math/rand/v2.
func (r DelayRange) Draw(unit func() float64) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	if unit == nil {
		unit = rand.Float64
	}
	span := float64(r.Max - r.Min)
	return r.Min + time.Duration(unit()*span)
}
