// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/api"
	"github.com/JakeFAU/career-crawler/internal/clock/system"
	"github.com/JakeFAU/career-crawler/internal/config"
	"github.com/JakeFAU/career-crawler/internal/crawler"
	"github.com/JakeFAU/career-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/career-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/career-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/career-crawler/internal/fetcher/promote"
	"github.com/JakeFAU/career-crawler/internal/hash/sha256"
	"github.com/JakeFAU/career-crawler/internal/headless/detector"
	"github.com/JakeFAU/career-crawler/internal/id/uuid"
	"github.com/JakeFAU/career-crawler/internal/metrics"
	"github.com/JakeFAU/career-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/career-crawler/internal/publisher/kafka"
	pubmemory "github.com/JakeFAU/career-crawler/internal/publisher/memory"
	"github.com/JakeFAU/career-crawler/internal/publisher/multi"
	pubsubnotify "github.com/JakeFAU/career-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/career-crawler/internal/publisher/telegram"
	"github.com/JakeFAU/career-crawler/internal/publisher/zaplog"
	"github.com/JakeFAU/career-crawler/internal/purge"
	"github.com/JakeFAU/career-crawler/internal/scheduler"
	"github.com/JakeFAU/career-crawler/internal/storage"
	"github.com/JakeFAU/career-crawler/internal/storage/gcs"
	"github.com/JakeFAU/career-crawler/internal/storage/local"
	"github.com/JakeFAU/career-crawler/internal/storage/memory"
	"github.com/JakeFAU/career-crawler/internal/storage/postgres"
	redisstore "github.com/JakeFAU/career-crawler/internal/storage/redis"
)

// listingStore records listings and deletes them again on purge.
type listingStore interface {
	crawler.ListingRecorder
	purge.ListingPurger
}

type closer struct {
	name string
	fn   func() error
}

// Option overrides a collaborator that New would otherwise build from config.
type Option func(*options)

type options struct {
	renderer crawler.Renderer
	sleeper  crawler.Sleeper
	clock    crawler.Clock
}

// WithRenderer replaces the configured render engine.
func WithRenderer(renderer crawler.Renderer) Option {
	return func(o *options) { o.renderer = renderer }
}

// WithSleeper replaces the timer used for politeness delays and backoff.
func WithSleeper(sleeper crawler.Sleeper) Option {
	return func(o *options) { o.sleeper = sleeper }
}

// WithClock replaces the wall clock.
func WithClock(clock crawler.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and closed by the command that built it.
type App struct {
	cfg    config.Config
	opts   options
	logger *zap.Logger
	clock  crawler.Clock

	state     crawler.StateStore
	locker    crawler.RunLocker
	listings  listingStore
	snapshots crawler.SnapshotStore
	renderer  crawler.Renderer
	notifier  *multi.Notifier
	results   *pubmemory.Publisher
	engine    *crawler.Engine
	purger    *purge.Service

	closers   []closer
	closeOnce sync.Once
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the configuration the App was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetEngine returns the crawl orchestrator.
func (a *App) GetEngine() *crawler.Engine {
	return a.engine
}

// GetPurger returns the per-company delete service.
func (a *App) GetPurger() *purge.Service {
	return a.purger
}

// GetState exposes the durable crawler state.
func (a *App) GetState() crawler.StateStore {
	return a.state
}

// GetResults returns the in-process notifier when "memory" is among
// notify.backends, otherwise nil.
func (a *App) GetResults() *pubmemory.Publisher {
	return a.results
}

// New builds every service named by cfg. It fails fast and releases anything
// already opened when a backend cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(&a.opts)
	}
	a.clock = a.opts.clock
	if a.clock == nil {
		a.clock = system.New()
	}

	logger.Info("Initializing application services...")
	targets, err := cfg.Targets()
	if err != nil {
		return nil, fmt.Errorf("load companies: %w", err)
	}
	if len(targets) == 0 {
		logger.Warn("No companies configured; runs will complete without visiting anything")
	}

	steps := []func(context.Context) error{
		a.initState,
		a.initListings,
		a.initSnapshots,
		a.initRenderer,
		a.initNotifier,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	sleeper := a.opts.sleeper
	if sleeper == nil {
		sleeper = crawler.TimerSleeper{}
	}
	policy := crawler.NewRobotsResolver(cfg.Crawler.UserAgent, cfg.Crawler.PolicyTimeout, a.state, a.clock, logger.Named("robots"))
	engine, err := crawler.NewEngine(engineConfig(cfg, targets), crawler.EngineDeps{
		State:     a.state,
		Renderer:  a.renderer,
		Policy:    policy,
		Detector:  detector.NewChallenge(cfg.Detector.ChallengeMarkers),
		Extractor: extract.New(logger.Named("extract")),
		Recorder:  a.listings,
		Notifier:  a.notifier,
		Snapshots: a.snapshots,
		Locker:    a.locker,
		Observer:  metrics.NewObserver(),
		Clock:     a.clock,
		IDs:       uuid.New(),
		Sleeper:   sleeper,
	}, logger.Named("engine"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	a.engine = engine
	a.purger = purge.New(a.state, a.listings, a.clock, logger.Named("purge"))

	logger.Info("Application services initialized successfully.", zap.Int("companies", len(targets)))
	return a, nil
}

func engineConfig(cfg config.Config, targets []crawler.CompanyTarget) crawler.EngineConfig {
	return crawler.EngineConfig{
		Companies: targets,
		Retry: crawler.RetryPolicy{
			MaxAttempts:   cfg.Crawler.MaxFetchAttempts,
			BaseDelay:     cfg.Crawler.BackoffBase,
			BlockingCodes: cfg.Pause.BlockingCodes,
		},
		Gate: crawler.GateConfig{
			DailyCap:      cfg.Quota.DailyCap,
			QuotaWindow:   cfg.Quota.Window,
			PauseDuration: cfg.Pause.Duration,
		},
		CompanyDelay: crawler.DelayRange{Min: cfg.Crawler.CompanyDelayMin, Max: cfg.Crawler.CompanyDelayMax},
		ListingDelay: crawler.DelayRange{Min: cfg.Crawler.ListingDelayMin, Max: cfg.Crawler.ListingDelayMax},
	}
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) initState(ctx context.Context) error {
	cfg := a.cfg.State
	switch cfg.Backend {
	case "local":
		a.logger.Info("Using local state backend", zap.String("dir", cfg.Dir))
		state, err := local.NewStateStore(cfg.Dir, a.logger.Named("state"))
		if err != nil {
			return fmt.Errorf("failed to initialize state: %w", err)
		}
		lock, err := local.NewRunLock(cfg.Dir)
		if err != nil {
			return fmt.Errorf("failed to initialize run lock: %w", err)
		}
		a.state, a.locker = state, lock
	case "memory":
		a.logger.Info("Using in-memory state backend. State is lost on exit.")
		a.state = memory.NewStateStore()
	case "redis":
		a.logger.Info("Connecting to Redis state backend", zap.String("addr", cfg.RedisAddr))
		client, err := redisstore.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("failed to initialize state: %w", err)
		}
		a.onClose("redis", client.Close)
		state, err := redisstore.NewStateStore(client, cfg.RedisPrefix, a.logger.Named("state"))
		if err != nil {
			return fmt.Errorf("failed to initialize state: %w", err)
		}
		lock, err := redisstore.NewRunLock(client, cfg.RedisPrefix, cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("failed to initialize run lock: %w", err)
		}
		a.state, a.locker = state, lock
	default:
		return fmt.Errorf("unknown state backend: %s", cfg.Backend)
	}
	return nil
}

func (a *App) initListings(ctx context.Context) error {
	cfg := a.cfg.Listings
	switch cfg.Backend {
	case "memory":
		a.logger.Info("Using in-memory listing store. Listings are kept only in the request log.")
		a.listings = memory.NewListingStore()
	case "postgres":
		a.logger.Info("Connecting to PostgreSQL...", zap.String("table", cfg.Table))
		store, err := postgres.NewListingStore(ctx, postgres.ListingStoreConfig{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return fmt.Errorf("failed to initialize listings: %w", err)
		}
		a.onClose("postgres", func() error {
			store.Close()
			return nil
		})
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare listings table: %w", err)
		}
		a.listings = store
	default:
		return fmt.Errorf("unknown listings backend: %s", cfg.Backend)
	}
	return nil
}

func (a *App) initSnapshots(ctx context.Context) error {
	cfg := a.cfg.Snapshots
	var blobs storage.BlobStore
	switch cfg.Backend {
	case "none", "":
		a.logger.Info("Snapshot archiving disabled. Challenge pages will be discarded.")
		return nil
	case "memory":
		a.logger.Info("Using in-memory snapshot storage. Challenge pages are lost on exit.")
		blobs = memory.NewBlobStore()
	case "local":
		a.logger.Info("Using local snapshot storage", zap.String("dir", cfg.Dir))
		store, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return fmt.Errorf("failed to initialize snapshots: %w", err)
		}
		blobs = store
	case "gcs":
		a.logger.Info("Using GCS snapshot storage", zap.String("bucket", cfg.Bucket))
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		a.onClose("gcs", client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket})
		if err != nil {
			return fmt.Errorf("failed to initialize snapshots: %w", err)
		}
		blobs = store
	default:
		return fmt.Errorf("unknown snapshots backend: %s", cfg.Backend)
	}
	snapshots, err := storage.NewSnapshots(blobs, sha256.New(), a.clock, cfg.Prefix)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshots: %w", err)
	}
	a.snapshots = snapshots
	return nil
}

func (a *App) initRenderer(context.Context) error {
	if a.opts.renderer != nil {
		a.logger.Info("Using injected renderer")
		a.renderer = a.opts.renderer
		return nil
	}
	cfg := a.cfg.Render
	domains := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.DomainQPS,
		DefaultBurst: 1,
		OnDelay:      metrics.ObserveRateLimitDelay,
	})
	static := func() crawler.Renderer {
		return collyfetcher.New(collyfetcher.Config{UserAgent: a.cfg.Crawler.UserAgent, Timeout: cfg.Timeout}, domains)
	}
	browser := func() (crawler.Renderer, error) {
		renderer, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.MaxParallel,
			UserAgent:         a.cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.Timeout,
			Settle:            cfg.Settle,
			ExecPath:          cfg.ChromePath,
		}, domains)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize headless renderer: %w", err)
		}
		a.onClose("chromedp", func() error {
			renderer.Close()
			return nil
		})
		return renderer, nil
	}

	switch cfg.Engine {
	case config.RenderStatic:
		a.logger.Info("Using static renderer")
		a.renderer = static()
	case config.RenderHeadless:
		a.logger.Info("Using headless renderer", zap.Int("max_parallel", cfg.MaxParallel))
		renderer, err := browser()
		if err != nil {
			return err
		}
		a.renderer = renderer
	case config.RenderAuto:
		a.logger.Info("Using static renderer with headless promotion", zap.Int("threshold", a.cfg.Detector.PromotionThreshold))
		renderer, err := browser()
		if err != nil {
			return err
		}
		a.renderer = promote.New(static(), renderer, detector.NewHeuristic(a.cfg.Detector.PromotionThreshold), a.logger.Named("promote"))
	default:
		return fmt.Errorf("unknown render engine: %s", cfg.Engine)
	}
	return nil
}

func (a *App) initNotifier(ctx context.Context) error {
	cfg := a.cfg.Notify
	var targets []multi.Named
	for _, backend := range cfg.Backends {
		switch backend {
		case "none":
			continue
		case "log":
			a.logger.Info("Logging run results")
			targets = append(targets, multi.Named{Name: backend, Notifier: zaplog.New(a.logger.Named("results"))})
		case "memory":
			a.logger.Info("Keeping run results in memory")
			a.results = pubmemory.New()
			targets = append(targets, multi.Named{Name: backend, Notifier: a.results})
		case "pubsub":
			a.logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", cfg.PubSub.TopicName))
			client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
			if err != nil {
				return fmt.Errorf("failed to create pubsub client: %w", err)
			}
			a.onClose("pubsub client", client.Close)
			publisher := client.Publisher(cfg.PubSub.TopicName)
			a.onClose("pubsub publisher", func() error {
				publisher.Stop()
				return nil
			})
			targets = append(targets, multi.Named{Name: backend, Notifier: pubsubnotify.New(publisher)})
		case "kafka":
			a.logger.Info("Publishing listings to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
			producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			a.onClose("kafka", producer.Close)
			targets = append(targets, multi.Named{Name: backend, Notifier: producer})
		case "telegram":
			a.logger.Info("Sending run digests to Telegram", zap.Int64("chat_id", cfg.Telegram.ChatID))
			notifier, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.ChatID)
			if err != nil {
				return fmt.Errorf("failed to initialize telegram: %w", err)
			}
			targets = append(targets, multi.Named{Name: backend, Notifier: notifier})
		default:
			return fmt.Errorf("unknown notify backend: %s", backend)
		}
	}
	a.notifier = multi.New(targets...)
	return nil
}

// NewServer builds the HTTP control plane over the engine and purge service.
func (a *App) NewServer() *api.Server {
	return api.NewServer(a.engine, a.engine.Gate(), a.purger, api.Config{
		RequestTimeout: a.cfg.Server.RequestTimeout,
		RunTimeout:     a.cfg.Server.RunTimeout,
	}, a.logger.Named("api"))
}

// NewScheduler registers the configured cron entries against the engine.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	loc := time.Local
	if tz := a.cfg.Schedule.Timezone; tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("load schedule timezone: %w", err)
		}
	}
	specs := a.cfg.Schedule.Specs
	if len(specs) == 0 {
		specs = scheduler.DefaultSpecs
	}
	return scheduler.New(specs, loc, a.engine, a.logger.Named("scheduler"))
}

// Close gracefully shuts down all services in the App container, most
// recently opened first. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.logger.Info("Shutting down application services...")
		for i := len(a.closers) - 1; i >= 0; i-- {
			c := a.closers[i]
			if err := c.fn(); err != nil {
				a.logger.Warn("Error closing service", zap.String("service", c.name), zap.Error(err))
			}
		}
		// Sync commonly fails on terminals; there is nowhere left to report it.
		_ = a.logger.Sync()
	})
}
