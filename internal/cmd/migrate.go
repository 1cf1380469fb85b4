package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/unipatch/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Remove the installation left by the old package layout",
		Long: `Migrate looks for the legacy installation directory configured as
legacy_dir and, after confirmation, deletes it. Declining leaves it in place;
you will be asked again next time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(yes)
			if err != nil {
				return err
			}

			report, err := svc.Migrate(cmd.Context())
			if err != nil {
				return runError(err)
			}

			if err := writeResult(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return reportError(report)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Answer yes to every prompt")

	return cmd
}

func reportError(r *migrate.Report) error {
	if r == nil || r.Result != migrate.ResultFailed {
		return nil
	}
	return fmt.Errorf("migration failed: %s", r.Error)
}
