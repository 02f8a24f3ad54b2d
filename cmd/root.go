// Package cmd defines and implements the CLI commands for the career-crawler executable.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/api"
	"github.com/JakeFAU/career-crawler/internal/app"
	"github.com/JakeFAU/career-crawler/internal/config"
	"github.com/JakeFAU/career-crawler/internal/crawler"
	"github.com/JakeFAU/career-crawler/internal/logging"
	"github.com/JakeFAU/career-crawler/internal/purge"
	"github.com/JakeFAU/career-crawler/internal/scheduler"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	GetEngine() *crawler.Engine
	GetPurger() *purge.Service
	NewServer() *api.Server
	NewScheduler() (*scheduler.Scheduler, error)
}

// newApp is the application factory. It's a variable so tests can inject
// options such as a fake renderer.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "career-crawler",
		Short: "A polite crawler that watches company career pages for matching openings.",
		Long: `career-crawler visits a configured list of company career pages one at a
time, honoring robots.txt, a daily scrape quota and a global pause that trips
when a site starts blocking. Matching job links are recorded and announced to
the configured notifiers.`,
		SilenceUsage: true,

		// Build the application once the config flag is parsed and before the
		// subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML); CAREER_CRAWLER_* env vars override it")

	cmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newStatusCmd(),
		newCompaniesCmd(),
		newPurgeCmd(),
	)
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "career-crawler:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func printJSON(cmd *cobra.Command, payload any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
