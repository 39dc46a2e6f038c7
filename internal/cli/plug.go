package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/witlink/pkg/emit"
	"github.com/matzehuels/witlink/pkg/link"
	"github.com/matzehuels/witlink/pkg/script"
)

// plugOpts holds the flags of the plug command.
type plugOpts struct {
	compose composeOpts
	socket  string
	plugs   []string
}

// plugCommand creates the plug command: the shorthand for a socket
// component whose imports are all served by plug components.
func (c *CLI) plugCommand() *cobra.Command {
	opts := plugOpts{compose: composeOpts{output: "plugged.wasm"}}
	opts.compose.timeout = defaultComposeTimeout

	cmd := &cobra.Command{
		Use:   "plug",
		Short: "Wire plug components into a socket component",
		Long: `Plug every import of the socket component that a plug exports, leave the
rest to the runtime, and export the socket as main. This is the same as
composing the generated script; use --dry-run to see it.

A plug that satisfies no import of the socket is reported as UNUSED_PLUG.`,
		Example: `  witlink plug -c components.toml --socket app --plug logger --plug kv`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlug(cmd.Context(), &opts)
		},
	}

	opts.compose.input.register(cmd)
	cmd.Flags().StringVar(&opts.socket, "socket", "", "socket component name")
	cmd.Flags().StringArrayVar(&opts.plugs, "plug", nil, "plug component name (repeatable)")
	cmd.Flags().StringVar(&opts.compose.composer, "composer", "", "composer binary (default $WITLINK_COMPOSER or wac)")
	cmd.Flags().StringVarP(&opts.compose.output, "output", "o", opts.compose.output, "composed component path")
	cmd.Flags().StringVar(&opts.compose.manifest, "manifest", "", "manifest path (default <output>.manifest.json)")
	cmd.Flags().DurationVar(&opts.compose.timeout, "timeout", opts.compose.timeout, "composer timeout")
	cmd.Flags().BoolVar(&opts.compose.dryRun, "dry-run", false, "print the generated script instead of composing")
	cmd.Flags().BoolVarP(&opts.compose.quiet, "quiet", "q", false, "omit the instance table")
	_ = cmd.MarkFlagRequired("socket")
	_ = cmd.MarkFlagRequired("plug")
	_ = cmd.RegisterFlagCompletionFunc("socket", completeComponents)
	_ = cmd.RegisterFlagCompletionFunc("plug", completeComponents)

	return cmd
}

func (c *CLI) runPlug(ctx context.Context, opts *plugOpts) error {
	logger := loggerFromContext(ctx)
	in := &opts.compose.input
	sel, err := in.selector()
	if err != nil {
		return err
	}
	s, err := c.load(ctx, in)
	if err != nil {
		return err
	}
	lc := s.linkContext(ctx, sel, logger)
	g, err := link.Plug(lc, opts.socket, opts.plugs)
	if err != nil {
		return err
	}

	if opts.compose.dryRun {
		fmt.Print(script.Print(g.Script()))
		printWarnings(g.Warnings)
		return nil
	}

	manifest := manifestPathOr(opts.compose.manifest, opts.compose.output)
	m, err := emit.Emit(lc, g, emit.Options{
		Output:   opts.compose.output,
		Manifest: manifest,
		Composer: emit.ExecComposer{Path: composerPath(opts.compose.composer)},
		Timeout:  opts.compose.timeout,
	})
	if err != nil {
		return err
	}
	printSuccess("Plugged %d components into %s", len(opts.plugs), opts.socket)
	printComposeResult(g, m, &opts.compose)
	return nil
}
