package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/unipatch/internal/update"
)

func newUpdateCmd() *cobra.Command {
	var (
		checkOnly bool
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a new package version and install it",
		Long: `Update compares the installed version with the remote version file. When
they differ you are asked to approve the update; the installation directory
is then emptied, the new package is downloaded and imported into the project.

Examples:
  unipatch update           # Check and install after confirmation
  unipatch update --check   # Only report whether an update is available
  unipatch update --yes     # Approve every prompt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(yes)
			if err != nil {
				return err
			}

			outcome, err := svc.Update(cmd.Context(), checkOnly)
			if err != nil {
				return runError(err)
			}

			if err := writeResult(cmd.OutOrStdout(), outcome); err != nil {
				return err
			}
			return outcomeError(outcome)
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Check for updates without installing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Answer yes to every prompt")

	return cmd
}

// outcomeError turns a failed outcome into a non-zero exit.
func outcomeError(o *update.Outcome) error {
	if o == nil || o.Status != update.StatusFailed {
		return nil
	}
	return fmt.Errorf("update failed: %s", o.Kind)
}
