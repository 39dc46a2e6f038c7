package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/witlink/pkg/render/dot"
)

// graphCommand creates the graph command: resolve and render, no composer.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		input  inputOpts
		sc     scriptOpts
		output string
		opts   dot.Options
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the resolved composition as a diagram",
		Long: `Resolve a composition and render its instance graph. Arrows run from the
providing instance to the consumer and are labeled with the import. The
format follows the --output extension (.dot, .svg, .pdf, .png); without
--output the DOT source is printed.`,
		Example: `  witlink graph -c components.toml -s app.wac -o app.svg --detailed`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), &input, &sc, output, opts)
		},
	}

	input.register(cmd)
	sc.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.dot, .svg, .pdf, .png)")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "show package, profile and source in nodes")
	cmd.Flags().BoolVar(&opts.Passthrough, "passthrough", false, "draw imports left to the runtime")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, input *inputOpts, sc *scriptOpts, output string, opts dot.Options) error {
	_, g, err := c.resolve(ctx, input, sc)
	if err != nil {
		return err
	}
	if output == "" {
		fmt.Print(dot.ToDOT(g, opts))
		return nil
	}
	if err := dot.WriteFile(ctx, output, g, opts); err != nil {
		return err
	}
	printSuccess("Rendered %d instances", len(g.Instances))
	printFile(output)
	printWarnings(g.Warnings)
	return nil
}
