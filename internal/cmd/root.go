package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	projectDir   string
	verbose      bool
	quiet        bool

	buildInfo = BuildInfo{Version: "dev", Commit: "none", Date: "unknown"}
)

// BuildInfo is stamped into the binary at release time.
type BuildInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

func (b BuildInfo) String() string {
	return "unipatch version " + b.Version + " (" + b.Commit + ", " + b.Date + ")"
}

// Execute runs the root command. Ctrl-C cancels a pending prompt or download.
func Execute(version, commit, date string) error {
	buildInfo = BuildInfo{Version: version, Commit: commit, Date: date}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unipatch",
		Short: "Keep a vendored editor package up to date",
		Long: `unipatch checks a remote version file against the version installed in
a project, and on approval replaces the installed package with the latest
release.

Settings are read from a Unipatchfile (YAML, TOML or JSON) in the project.`,
		Version:       buildInfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to Unipatchfile")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", "", "Project directory to search for a Unipatchfile (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newStartupCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}
