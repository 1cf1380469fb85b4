package cmd

import (
	"github.com/spf13/cobra"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Print a completion script for unipatch to stdout.

Bash:        source <(unipatch completion bash)
Zsh:         unipatch completion zsh > "${fpath[1]}/_unipatch"
Fish:        unipatch completion fish > ~/.config/fish/completions/unipatch.fish
PowerShell:  unipatch completion powershell | Out-String | Invoke-Expression

Start a new shell afterwards. Editor machines on Windows usually want the
PowerShell script added to $PROFILE.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			default:
				return root.GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
