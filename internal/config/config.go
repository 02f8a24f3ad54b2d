// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CAREER_CRAWLER_STATE_BACKEND=redis.
const EnvPrefix = "CAREER_CRAWLER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server        ServerConfig    `mapstructure:"server"`
	Logging       LoggingConfig   `mapstructure:"logging"`
	Crawler       CrawlerConfig   `mapstructure:"crawler"`
	Quota         QuotaConfig     `mapstructure:"quota"`
	Pause         PauseConfig     `mapstructure:"pause"`
	Detector      DetectorConfig  `mapstructure:"detector"`
	Render        RenderConfig    `mapstructure:"render"`
	State         StateConfig     `mapstructure:"state"`
	Listings      ListingsConfig  `mapstructure:"listings"`
	Snapshots     SnapshotsConfig `mapstructure:"snapshots"`
	Notify        NotifyConfig    `mapstructure:"notify"`
	Schedule      ScheduleConfig  `mapstructure:"schedule"`
	Companies     []CompanyConfig `mapstructure:"companies"`
	CompaniesFile string          `mapstructure:"companies_file"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs politeness and retry behavior of a run.
type CrawlerConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	PolicyTimeout    time.Duration `mapstructure:"policy_timeout"`
	MaxFetchAttempts int           `mapstructure:"max_fetch_attempts"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	CompanyDelayMin  time.Duration `mapstructure:"company_delay_min"`
	CompanyDelayMax  time.Duration `mapstructure:"company_delay_max"`
	ListingDelayMin  time.Duration `mapstructure:"listing_delay_min"`
	ListingDelayMax  time.Duration `mapstructure:"listing_delay_max"`
}

// QuotaConfig caps successful company scrapes over a trailing window.
type QuotaConfig struct {
	DailyCap int           `mapstructure:"daily_cap"`
	Window   time.Duration `mapstructure:"window"`
}

// PauseConfig controls the global pause tripped by blocking responses.
type PauseConfig struct {
	Duration      time.Duration `mapstructure:"duration"`
	BlockingCodes []int         `mapstructure:"blocking_codes"`
}

// DetectorConfig tunes markup inspection.
type DetectorConfig struct {
	ChallengeMarkers []string `mapstructure:"challenge_markers"`
	// PromotionThreshold is the visible text size, scripts excluded, under
	// which app shells and script-heavy static pages are re-rendered
	// headless when render.engine is auto.
	PromotionThreshold int `mapstructure:"promotion_threshold"`
}

// Render engines.
const (
	RenderHeadless = "headless"
	RenderStatic   = "static"
	RenderAuto     = "auto"
)

// RenderConfig configures the page rendering capability.
type RenderConfig struct {
	Engine      string        `mapstructure:"engine"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxParallel int           `mapstructure:"max_parallel"`
	DomainQPS   float64       `mapstructure:"domain_qps"`
	Settle      time.Duration `mapstructure:"settle"`
	ChromePath  string        `mapstructure:"chrome_path"`
}

// StateConfig selects the durable state backend.
type StateConfig struct {
	Backend     string        `mapstructure:"backend"`
	Dir         string        `mapstructure:"dir"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

// ListingsConfig selects where job listings are recorded.
type ListingsConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// SnapshotsConfig selects where challenge pages are archived.
type SnapshotsConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// NotifyConfig lists notifiers and their settings.
type NotifyConfig struct {
	Backends []string       `mapstructure:"backends"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// KafkaConfig names the brokers and topic listings are written to.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// TelegramConfig identifies the bot and chat receiving digests.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// ScheduleConfig holds the cron entries used by serve.
type ScheduleConfig struct {
	Specs    []string `mapstructure:"specs"`
	Timezone string   `mapstructure:"timezone"`
}

// CompanyConfig is one crawl target.
type CompanyConfig struct {
	Name     string   `mapstructure:"name"`
	URL      string   `mapstructure:"url"`
	Keywords []string `mapstructure:"keywords"`
	Location string   `mapstructure:"location"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.run_timeout", 2*time.Hour)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("crawler.user_agent", "career-crawler/1.0 (+https://github.com/JakeFAU/career-crawler)")
	v.SetDefault("crawler.policy_timeout", 5*time.Second)
	v.SetDefault("crawler.max_fetch_attempts", 4)
	v.SetDefault("crawler.backoff_base", time.Second)
	v.SetDefault("crawler.company_delay_min", 8*time.Second)
	v.SetDefault("crawler.company_delay_max", 15*time.Second)
	v.SetDefault("crawler.listing_delay_min", 3*time.Second)
	v.SetDefault("crawler.listing_delay_max", 5*time.Second)
	v.SetDefault("quota.daily_cap", 100)
	v.SetDefault("quota.window", 24*time.Hour)
	v.SetDefault("pause.duration", 6*time.Hour)
	v.SetDefault("pause.blocking_codes", []int{429, 403, 503})
	v.SetDefault("detector.promotion_threshold", 2048)
	v.SetDefault("render.engine", RenderHeadless)
	v.SetDefault("render.timeout", 45*time.Second)
	v.SetDefault("render.max_parallel", 1)
	v.SetDefault("render.domain_qps", 0.5)
	v.SetDefault("render.settle", 5*time.Second)
	v.SetDefault("state.backend", "local")
	v.SetDefault("state.dir", "state")
	v.SetDefault("state.redis_prefix", "career-crawler:")
	v.SetDefault("state.lock_ttl", 2*time.Hour)
	v.SetDefault("listings.backend", "memory")
	v.SetDefault("listings.table", "jobs")
	v.SetDefault("snapshots.backend", "none")
	v.SetDefault("snapshots.prefix", "snapshots")
	v.SetDefault("notify.backends", []string{"log"})
	v.SetDefault("schedule.specs", []string{"0 11 * * *", "0 16 * * *"})
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Crawler.UserAgent) == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.MaxFetchAttempts <= 0 {
		return fmt.Errorf("crawler.max_fetch_attempts must be > 0")
	}
	if c.Crawler.BackoffBase < 0 {
		return fmt.Errorf("crawler.backoff_base must be >= 0")
	}
	if c.Crawler.CompanyDelayMin < 0 || c.Crawler.CompanyDelayMax < c.Crawler.CompanyDelayMin {
		return fmt.Errorf("crawler.company_delay_max must be >= company_delay_min >= 0")
	}
	if c.Crawler.ListingDelayMin < 0 || c.Crawler.ListingDelayMax < c.Crawler.ListingDelayMin {
		return fmt.Errorf("crawler.listing_delay_max must be >= listing_delay_min >= 0")
	}
	if c.Quota.DailyCap <= 0 {
		return fmt.Errorf("quota.daily_cap must be > 0")
	}
	if c.Quota.Window <= 0 {
		return fmt.Errorf("quota.window must be > 0")
	}
	if c.Pause.Duration <= 0 {
		return fmt.Errorf("pause.duration must be > 0")
	}
	if err := oneOf("render.engine", c.Render.Engine, RenderHeadless, RenderStatic, RenderAuto); err != nil {
		return err
	}
	if c.Render.Engine != RenderStatic && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when headless rendering is enabled")
	}
	if err := oneOf("state.backend", c.State.Backend, "local", "memory", "redis"); err != nil {
		return err
	}
	if c.State.Backend == "local" && c.State.Dir == "" {
		return fmt.Errorf("state.dir must be set for the local backend")
	}
	if c.State.Backend == "redis" && c.State.RedisAddr == "" {
		return fmt.Errorf("state.redis_addr must be set for the redis backend")
	}
	if err := oneOf("listings.backend", c.Listings.Backend, "memory", "postgres"); err != nil {
		return err
	}
	if c.Listings.Backend == "postgres" && c.Listings.DSN == "" {
		return fmt.Errorf("listings.dsn must be set for the postgres backend")
	}
	if err := c.Snapshots.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	for i, company := range c.Companies {
		if err := company.validate(); err != nil {
			return fmt.Errorf("companies[%d]: %w", i, err)
		}
	}
	return nil
}

func (s SnapshotsConfig) validate() error {
	if err := oneOf("snapshots.backend", s.Backend, "none", "memory", "local", "gcs"); err != nil {
		return err
	}
	switch s.Backend {
	case "local":
		if s.Dir == "" {
			return fmt.Errorf("snapshots.dir must be set for the local backend")
		}
	case "gcs":
		if s.Bucket == "" {
			return fmt.Errorf("snapshots.bucket must be set for the gcs backend")
		}
	}
	return nil
}

func (n NotifyConfig) validate() error {
	for _, backend := range n.Backends {
		if err := oneOf("notify.backends", backend, "none", "log", "memory", "pubsub", "kafka", "telegram"); err != nil {
			return err
		}
		switch backend {
		case "pubsub":
			if n.PubSub.ProjectID == "" || n.PubSub.TopicName == "" {
				return fmt.Errorf("notify.pubsub.project_id and topic_name must be set")
			}
		case "kafka":
			if len(n.Kafka.Brokers) == 0 || n.Kafka.Topic == "" {
				return fmt.Errorf("notify.kafka.brokers and topic must be set")
			}
		case "telegram":
			if n.Telegram.Token == "" || n.Telegram.ChatID == 0 {
				return fmt.Errorf("notify.telegram.token and chat_id must be set")
			}
		}
	}
	return nil
}

func (c CompanyConfig) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name must be set")
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("url must be set for %q", c.Name)
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}
