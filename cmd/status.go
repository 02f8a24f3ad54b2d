package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/career-crawler/internal/api"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the pause and quota state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			engine := appInstance.GetEngine()
			return printJSON(cmd, api.StatusResponse{
				GateStatus: engine.Gate().Status(cmd.Context()),
				Companies:  len(engine.Companies()),
			})
		},
	}
}

func newCompaniesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List the configured companies in visiting order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, appInstance.GetEngine().Companies())
		},
	}
}
