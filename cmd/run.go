package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand, which performs exactly one crawl
// pass and prints the result.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Crawl every configured company once",
		Long: `Visits each configured company in order and prints the run result as JSON.
The run stops early when the crawler is paused, the daily quota is used up, a
site answers with a blocking status, or another run holds the lock.`,
		Args: cobra.NoArgs,
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if timeout := appInstance.GetConfig().Server.RunTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := appInstance.GetEngine().Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("run crawler: %w", err)
	}
	if err != nil {
		appInstance.GetLogger().Warn("Crawl run interrupted", zap.Error(err))
	}
	return printJSON(cmd, result)
}
