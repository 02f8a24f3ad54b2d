package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGateQuotaWindow(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0).UTC()
	clock := &fakeClock{now: now}
	state := newFakeState()
	ctx := context.Background()
	require.NoError(t, state.AppendScrapeHistory(ctx, "old", now.Add(-24*time.Hour)))
	require.NoError(t, state.AppendScrapeHistory(ctx, "recent", now.Add(-time.Hour)))
	require.NoError(t, state.AppendScrapeHistory(ctx, "now", now))
	require.NoError(t, state.AppendScrapeHistory(ctx, "future", now.Add(time.Minute)))

	gate := NewGate(state, clock, GateConfig{DailyCap: 2}, nil)
	used, reached := gate.QuotaReached(ctx)
	require.Equal(t, 2, used)
	require.True(t, reached)

	gate = NewGate(state, clock, GateConfig{}, nil)
	_, reached = gate.QuotaReached(ctx)
	require.False(t, reached)
}

func TestGatePauseLifecycle(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	state := newFakeState()
	gate := NewGate(state, clock, GateConfig{}, nil)
	ctx := context.Background()

	_, paused := gate.Paused(ctx)
	require.False(t, paused)

	until, err := gate.Trip(ctx)
	require.NoError(t, err)
	require.Equal(t, clock.Now().Add(6*time.Hour), until)

	_, paused = gate.Paused(ctx)
	require.True(t, paused)

	clock.Advance(6*time.Hour + time.Second)
	_, paused = gate.Paused(ctx)
	require.False(t, paused, "pause clears once the deadline passes")
}

func TestGateReadFailuresFailOpen(t *testing.T) {
	t.Parallel()
	state := newFakeState()
	state.failAll = true
	gate := NewGate(state, &fakeClock{now: time.Now()}, GateConfig{}, nil)

	status := gate.Status(context.Background())
	require.False(t, status.Paused)
	require.Zero(t, status.QuotaUsed)
	require.Equal(t, 100, status.QuotaCap)
}
