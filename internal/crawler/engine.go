package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrRunInProgress is reported by TryRun when another run holds the lock.
var ErrRunInProgress = errors.New("crawl run already in progress")

// RunObserver receives run telemetry. Implementations must be safe for
// concurrent use.
type RunObserver interface {
	ObserveCompany(outcome Outcome)
	ObserveListing()
	ObservePause()
	ObserveRun(stop StopReason, elapsed time.Duration)
}

// EngineConfig holds the per-run knobs of the orchestrator.
type EngineConfig struct {
	Companies    []CompanyTarget
	Retry        RetryPolicy
	Gate         GateConfig
	CompanyDelay DelayRange
	ListingDelay DelayRange
}

// EngineDeps are the collaborators the engine drives. Notifier, Snapshots,
// Locker and Observer are optional.
type EngineDeps struct {
	State     StateStore
	Renderer  Renderer
	Policy    PolicyResolver
	Detector  ChallengeDetector
	Extractor ListingExtractor
	Recorder  ListingRecorder
	Notifier  Notifier
	Snapshots SnapshotStore
	Locker    RunLocker
	Observer  RunObserver
	Clock     Clock
	IDs       IDGenerator
	Sleeper   Sleeper
	// Random returns values in [0, 1) for delay sampling; nil uses math/rand/v2.
	Random func() float64
}

// Engine visits every configured company in order, one at a time.
type Engine struct {
	cfg    EngineConfig
	deps   EngineDeps
	gate   *Gate
	logger *zap.Logger
	mu     sync.Mutex
}

// NewEngine validates deps and applies defaults to cfg.
func NewEngine(cfg EngineConfig, deps EngineDeps, logger *zap.Logger) (*Engine, error) {
	if deps.State == nil {
		return nil, errors.New("engine requires a state store")
	}
	if deps.Renderer == nil {
		return nil, errors.New("engine requires a renderer")
	}
	if deps.Policy == nil {
		return nil, errors.New("engine requires a policy resolver")
	}
	if deps.Detector == nil {
		return nil, errors.New("engine requires a challenge detector")
	}
	if deps.Extractor == nil {
		return nil, errors.New("engine requires a listing extractor")
	}
	if deps.Recorder == nil {
		return nil, errors.New("engine requires a listing recorder")
	}
	if deps.Clock == nil {
		return nil, errors.New("engine requires a clock")
	}
	if deps.IDs == nil {
		return nil, errors.New("engine requires an id generator")
	}
	if deps.Sleeper == nil {
		deps.Sleeper = TimerSleeper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.CompanyDelay == (DelayRange{}) {
		cfg.CompanyDelay = DefaultCompanyDelay
	}
	if cfg.ListingDelay == (DelayRange{}) {
		cfg.ListingDelay = DefaultListingDelay
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		gate:   NewGate(deps.State, deps.Clock, cfg.Gate, logger.Named("gate")),
		logger: logger,
	}, nil
}

// Gate exposes the pause and quota gate used by the engine.
func (e *Engine) Gate() *Gate {
	return e.gate
}

// Companies returns the configured targets in visiting order.
func (e *Engine) Companies() []CompanyTarget {
	return append([]CompanyTarget(nil), e.cfg.Companies...)
}

// Run performs one crawl pass. A run that cannot take the run lock returns
// immediately with StopBusy. The error is non-nil only when ctx ends the run.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	result, err := e.TryRun(ctx)
	if errors.Is(err, ErrRunInProgress) {
		return result, nil
	}
	return result, err
}

// TryRun is Run but reports a held lock as ErrRunInProgress.
func (e *Engine) TryRun(ctx context.Context) (RunResult, error) {
	result := RunResult{
		StartedAt: e.deps.Clock.Now(),
		Listings:  []JobListing{},
		Companies: []CompanyOutcome{},
	}
	runID, err := e.deps.IDs.NewID()
	if err != nil {
		return result, fmt.Errorf("generate run id: %w", err)
	}
	result.RunID = runID
	logger := e.logger.With(zap.String("run_id", runID))

	if !e.mu.TryLock() {
		return e.busy(result, logger), ErrRunInProgress
	}
	defer e.mu.Unlock()
	if e.deps.Locker != nil {
		locked, lockErr := e.deps.Locker.TryLock()
		if lockErr != nil {
			logger.Warn("acquire run lock failed", zap.Error(lockErr))
		}
		if !locked {
			return e.busy(result, logger), ErrRunInProgress
		}
		defer func() {
			if unlockErr := e.deps.Locker.Unlock(); unlockErr != nil {
				logger.Warn("release run lock failed", zap.Error(unlockErr))
			}
		}()
	}

	logger.Info("crawl run started", zap.Int("companies", len(e.cfg.Companies)))
	result.Stop = e.crawl(ctx, &result, logger)
	result.FinishedAt = e.deps.Clock.Now()
	if e.deps.Observer != nil {
		e.deps.Observer.ObserveRun(result.Stop, result.FinishedAt.Sub(result.StartedAt))
	}
	logger.Info("crawl run finished",
		zap.String("stop_reason", string(result.Stop)),
		zap.Int("listings", len(result.Listings)),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	e.notify(ctx, result, logger)
	if result.Stop == StopCanceled {
		return result, ctx.Err()
	}
	return result, nil
}

func (e *Engine) busy(result RunResult, logger *zap.Logger) RunResult {
	logger.Info("crawl run skipped; another run holds the lock")
	result.Stop = StopBusy
	result.FinishedAt = e.deps.Clock.Now()
	return result
}

func (e *Engine) crawl(ctx context.Context, result *RunResult, logger *zap.Logger) StopReason {
	last := len(e.cfg.Companies) - 1
	for i, target := range e.cfg.Companies {
		if ctx.Err() != nil {
			return StopCanceled
		}
		if until, paused := e.gate.Paused(ctx); paused {
			logger.Info("crawler paused", zap.Time("pause_until", until))
			return StopPaused
		}
		if used, reached := e.gate.QuotaReached(ctx); reached {
			logger.Info("daily quota reached", zap.Int("used", used), zap.Int("cap", e.gate.cfg.DailyCap))
			return StopQuota
		}

		outcome, delay, stop := e.processCompany(ctx, target, result, logger)
		if outcome.Outcome != "" {
			result.Companies = append(result.Companies, outcome)
			if e.deps.Observer != nil {
				e.deps.Observer.ObserveCompany(outcome.Outcome)
			}
		}
		if stop != "" {
			return stop
		}
		if i == last {
			break
		}
		if err := e.deps.Sleeper.Sleep(ctx, delay); err != nil {
			return StopCanceled
		}
	}
	if ctx.Err() != nil {
		return StopCanceled
	}
	return StopCompleted
}

// processCompany runs CHECK_POLICY through RECORD_HISTORY for one target. It
// returns the inter-company delay to apply and a non-empty StopReason when
// the run must end.
func (e *Engine) processCompany(
	ctx context.Context,
	target CompanyTarget,
	result *RunResult,
	logger *zap.Logger,
) (CompanyOutcome, time.Duration, StopReason) {
	logger = logger.With(zap.String("company", target.Name))
	outcome := CompanyOutcome{Company: target.Name}

	decision := e.deps.Policy.Resolve(ctx, target.Name, target.URL)
	delay, ok := decision.CrawlDelayDuration()
	if !ok {
		delay = e.cfg.CompanyDelay.Draw(e.deps.Random)
	}
	if !decision.Allowed {
		e.audit(ctx, logger, LogKindSkip, target.Name, target.URL, "policy disallow")
		outcome.Outcome = OutcomePolicySkip
		return outcome, delay, ""
	}

	fetched := e.cfg.Retry.Fetch(ctx, e.deps.Renderer, e.deps.Sleeper, target.URL)
	switch fetched.Kind {
	case FetchFatal:
		e.audit(ctx, logger, LogKindError, target.Name, target.URL, fetched.Err.Error())
		until, err := e.gate.Trip(ctx)
		if err != nil {
			logger.Error("persist pause failed", zap.Error(err))
		}
		if e.deps.Observer != nil {
			e.deps.Observer.ObservePause()
		}
		logger.Warn("blocking response; pausing crawler",
			zap.Int("status_code", fetched.BlockingCode),
			zap.Time("pause_until", until),
		)
		outcome.Outcome = OutcomeBlocked
		outcome.Error = fetched.Err.Error()
		return outcome, delay, StopBlocked
	case FetchRetryable:
		if ctx.Err() != nil {
			return outcome, delay, StopCanceled
		}
		e.audit(ctx, logger, LogKindError, target.Name, target.URL, fetched.Err.Error())
		outcome.Outcome = OutcomeFailed
		outcome.Error = fetched.Err.Error()
		return outcome, delay, ""
	}

	page := fetched.Page
	if page.URL == "" {
		page.URL = target.URL
	}
	if e.deps.Detector.LooksLikeChallenge(page.HTML) {
		status := "challenge detected"
		if uri := e.snapshot(ctx, logger, target.Name, page); uri != "" {
			status += " " + uri
		}
		e.audit(ctx, logger, LogKindCaptcha, target.Name, target.URL, status)
		outcome.Outcome = OutcomeCaptcha
		return outcome, delay, ""
	}

	for listing := range e.deps.Extractor.Extract(target, page) {
		status := "recorded"
		if err := e.deps.Recorder.RecordListing(ctx, listing); err != nil {
			status = "record failed: " + err.Error()
		}
		e.audit(ctx, logger, LogKindListing, target.Name, listing.NormalizedLink, status)
		result.Listings = append(result.Listings, listing)
		outcome.Listings++
		if e.deps.Observer != nil {
			e.deps.Observer.ObserveListing()
		}
		if err := e.deps.Sleeper.Sleep(ctx, e.cfg.ListingDelay.Draw(e.deps.Random)); err != nil {
			outcome.Outcome = OutcomeScraped
			return outcome, delay, StopCanceled
		}
	}

	if err := e.deps.State.AppendScrapeHistory(ctx, target.Name, e.deps.Clock.Now()); err != nil {
		logger.Warn("append scrape history failed", zap.Error(err))
	}
	outcome.Outcome = OutcomeScraped
	logger.Info("company scraped", zap.Int("listings", outcome.Listings))
	return outcome, delay, ""
}

func (e *Engine) audit(ctx context.Context, logger *zap.Logger, kind LogKind, company, target, status string) {
	entry := RequestLogEntry{
		Kind:      kind,
		Company:   company,
		URL:       target,
		Timestamp: e.deps.Clock.Now().Unix(),
		Status:    status,
	}
	fields := []zap.Field{zap.String("kind", string(kind)), zap.String("url", target), zap.String("status", status)}
	switch kind {
	case LogKindError:
		logger.Error("request failed", fields...)
	case LogKindCaptcha, LogKindSkip:
		logger.Warn("company skipped", fields...)
	default:
		logger.Debug("request logged", fields...)
	}
	if err := e.deps.State.AppendRequestLog(ctx, entry); err != nil {
		logger.Warn("append request log failed", zap.Error(err))
	}
}

func (e *Engine) snapshot(ctx context.Context, logger *zap.Logger, company string, page RenderedPage) string {
	if e.deps.Snapshots == nil {
		return ""
	}
	uri, err := e.deps.Snapshots.SaveSnapshot(ctx, company, page)
	if err != nil {
		logger.Warn("save challenge snapshot failed", zap.Error(err))
		return ""
	}
	return uri
}

func (e *Engine) notify(ctx context.Context, result RunResult, logger *zap.Logger) {
	if e.deps.Notifier == nil || len(result.Listings) == 0 {
		return
	}
	if err := e.deps.Notifier.Notify(context.WithoutCancel(ctx), result); err != nil {
		logger.Warn("notify listings failed", zap.Error(err))
	}
}
