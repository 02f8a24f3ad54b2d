// Package scheduler triggers crawl runs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// DefaultSpecs fire at 11:00 and 16:00 local time.
var DefaultSpecs = []string{"0 11 * * *", "0 16 * * *"}

// Runner performs one crawl run.
type Runner interface {
	Run(ctx context.Context) (crawler.RunResult, error)
}

// Scheduler owns a cron instance whose entries all invoke the same Runner.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *zap.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New parses specs (standard five-field expressions or descriptors such as
// "@daily") and registers one entry per spec. A nil location means time.Local.
// The logger is used as given; callers name it.
func New(specs []string, loc *time.Location, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler requires a runner")
	}
	if len(specs) == 0 {
		specs = DefaultSpecs
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		runner: runner,
		logger: logger,
		ctx:    context.Background(),
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{logger: logger.Sugar()}),
		cron.WithChain(cron.Recover(cronLogger{logger: logger.Sugar()})),
	)
	for _, spec := range specs {
		if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
			return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
		}
	}
	return s, nil
}

// Start begins firing entries. Runs receive ctx, so canceling it aborts an
// in-flight run at its next suspension point.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	for _, next := range s.Next() {
		s.logger.Info("run scheduled", zap.Time("next", next))
	}
}

// Stop prevents further runs and returns a context done once any in-flight
// run has returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next lists the upcoming fire time of every entry.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Next)
	}
	return out
}

// runOnce overlaps are resolved by the engine's run lock, which reports busy.
func (s *Scheduler) runOnce() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	result, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Warn("scheduled run ended early", zap.Error(err))
		return
	}
	s.logger.Info("scheduled run finished",
		zap.String("run_id", result.RunID),
		zap.String("stop_reason", string(result.Stop)),
		zap.Int("listings", len(result.Listings)),
	)
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
