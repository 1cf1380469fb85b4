package cmd

import (
	"github.com/spf13/cobra"
)

func newStartupCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "startup",
		Short: "Run the legacy migration and then the update check",
		Long: `Startup performs what a host runs when a project opens: remove a legacy
installation if one is present, then check for and install updates.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(yes)
			if err != nil {
				return err
			}

			report, err := svc.Startup(cmd.Context())
			if err != nil {
				return runError(err)
			}

			if err := writeResult(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if err := reportError(report.Migration); err != nil {
				return err
			}
			return outcomeError(report.Update)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Answer yes to every prompt")

	return cmd
}
