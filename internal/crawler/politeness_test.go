package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerSleeperHonorsContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := TimerSleeper{}.Sleep(ctx, 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second, "sleep should exit immediately when context is done")
}

func TestTimerSleeperWaits(t *testing.T) {
	t.Parallel()
	require.NoError(t, TimerSleeper{}.Sleep(context.Background(), time.Millisecond))
	require.NoError(t, TimerSleeper{}.Sleep(context.Background(), 0))
}

func TestDelayRangeDraw(t *testing.T) {
	t.Parallel()
	r := DelayRange{Min: 8 * time.Second, Max: 15 * time.Second}
	require.Equal(t, 8*time.Second, r.Draw(func() float64 { return 0 }))
	require.Equal(t, 11500*time.Millisecond, r.Draw(func() float64 { return 0.5 }))

	for range 100 {
		d := DefaultListingDelay.Draw(nil)
		require.GreaterOrEqual(t, d, 3*time.Second)
		require.LessOrEqual(t, d, 5*time.Second)
	}

	fixed := DelayRange{Min: time.Second, Max: time.Second}
	require.Equal(t, time.Second, fixed.Draw(nil))
}
