package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/witlink/pkg/registry"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for witlink.

Bash:
  $ source <(witlink completion bash)

Zsh:
  $ witlink completion zsh > "${fpath[1]}/_witlink"

Fish:
  $ witlink completion fish > ~/.config/fish/completions/witlink.fish

PowerShell:
  PS> witlink completion powershell | Out-String | Invoke-Expression

Component flags such as --socket and --plug complete from the file given
with --components.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}

// completeComponents completes component names from the --components file
// of the command being completed.
func completeComponents(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	path, _ := cmd.Flags().GetString("components")
	if path == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	file, err := registry.LoadFile(path)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names := make([]string, 0, len(file.Components))
	for _, a := range file.Components {
		names = append(names, a.Name+"\t"+a.Package.String())
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
