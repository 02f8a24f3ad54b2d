package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newPurgeCmd creates the 'purge' subcommand, which deletes everything stored
// about one company and records the request.
func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <company>",
		Short: "Delete a company's request log entries and listings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := appInstance.GetPurger().PurgeCompany(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("purge %q: %w", args[0], err)
			}
			return printJSON(cmd, result)
		},
	}
}
