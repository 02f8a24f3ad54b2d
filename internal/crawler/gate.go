package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultDailyCap      = 100
	defaultQuotaWindow   = 24 * time.Hour
	defaultPauseDuration = 6 * time.Hour
)

// GateConfig tunes the pause and quota checks.
type GateConfig struct {
	DailyCap      int
	QuotaWindow   time.Duration
	PauseDuration time.Duration
}

// GateStatus is a point-in-time view of pause and quota state.
type GateStatus struct {
	Paused      bool      `json:"paused"`
	PausedUntil time.Time `json:"paused_until,omitzero"`
	QuotaUsed   int       `json:"quota_used"`
	QuotaCap    int       `json:"quota_cap"`
}

// Gate evaluates the run-level pause and quota conditions against a StateStore.
// Read failures are treated as the zero state.
type Gate struct {
	state  StateStore
	clock  Clock
	cfg    GateConfig
	logger *zap.Logger
}

// NewGate constructs a Gate, filling zero fields with defaults.
func NewGate(state StateStore, clock Clock, cfg GateConfig, logger *zap.Logger) *Gate {
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = defaultDailyCap
	}
	if cfg.QuotaWindow <= 0 {
		cfg.QuotaWindow = defaultQuotaWindow
	}
	if cfg.PauseDuration <= 0 {
		cfg.PauseDuration = defaultPauseDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{state: state, clock: clock, cfg: cfg, logger: logger}
}

// Paused reports whether now is before the persisted pause deadline.
func (g *Gate) Paused(ctx context.Context) (time.Time, bool) {
	until, err := g.state.PauseUntil(ctx)
	if err != nil {
		g.logger.Warn("read pause state failed; assuming not paused", zap.Error(err))
		return time.Time{}, false
	}
	if until.IsZero() {
		return time.Time{}, false
	}
	return until, g.clock.Now().Before(until)
}

// QuotaUsed counts scrape history entries in (now - window, now].
func (g *Gate) QuotaUsed(ctx context.Context) int {
	history, err := g.state.ScrapeHistory(ctx)
	if err != nil {
		g.logger.Warn("read scrape history failed; assuming empty", zap.Error(err))
		return 0
	}
	now := g.clock.Now().Unix()
	floor := now - int64(g.cfg.QuotaWindow/time.Second)
	used := 0
	for _, entry := range history {
		if entry.Timestamp > floor && entry.Timestamp <= now {
			used++
		}
	}
	return used
}

// QuotaReached reports whether the trailing window has hit the daily cap.
func (g *Gate) QuotaReached(ctx context.Context) (int, bool) {
	used := g.QuotaUsed(ctx)
	return used, used >= g.cfg.DailyCap
}

// Trip persists a pause deadline of now + PauseDuration and returns it.
func (g *Gate) Trip(ctx context.Context) (time.Time, error) {
	until := g.clock.Now().Add(g.cfg.PauseDuration)
	if err := g.state.SetPauseUntil(ctx, until); err != nil {
		return until, err
	}
	return until, nil
}

// Status summarizes the gate for operators.
func (g *Gate) Status(ctx context.Context) GateStatus {
	until, paused := g.Paused(ctx)
	return GateStatus{
		Paused:      paused,
		PausedUntil: until,
		QuotaUsed:   g.QuotaUsed(ctx),
		QuotaCap:    g.cfg.DailyCap,
	}
}
