package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/witlink/pkg/emit"
)

// inspectCommand creates the inspect command for browsing a manifest.
func (c *CLI) inspectCommand() *cobra.Command {
	var static bool

	cmd := &cobra.Command{
		Use:   "inspect <manifest.json>",
		Short: "Browse the instances and bindings of a composition manifest",
		Long: `Open a manifest written by compose or plug in an interactive browser.
Select an instance to see how each of its imports was bound, and follow a
binding to the instance that provides it. --static prints a table instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := emit.ReadManifest(args[0])
			if err != nil {
				return err
			}
			if static {
				fmt.Println(renderManifestTable(m))
				printWarnings(m.Warnings)
				return nil
			}
			p := tea.NewProgram(NewInstanceListModel(m), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&static, "static", false, "print a table instead of the interactive browser")

	return cmd
}
