package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/witlink/pkg/emit"
	"github.com/matzehuels/witlink/pkg/link"
	"github.com/matzehuels/witlink/pkg/render/dot"
	"github.com/matzehuels/witlink/pkg/script"
)

const defaultComposeTimeout = 5 * time.Minute

// composeOpts holds the flags of the compose command.
type composeOpts struct {
	input        inputOpts
	script       scriptOpts
	composer     string
	composerArgs []string
	output       string
	manifest     string
	stage        string
	stageCopy    bool
	graph        string
	timeout      time.Duration
	dryRun       bool
	quiet        bool
}

// composeCommand creates the compose command: resolve, run the composer,
// write the manifest.
func (c *CLI) composeCommand() *cobra.Command {
	opts := composeOpts{output: "composed.wasm", timeout: defaultComposeTimeout}

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Resolve a composition and build the composed component",
		Long: `Resolve a composition script against a components file and hand the result
to the composer (wac by default, or $WITLINK_COMPOSER).

Every import is bound by precedence: an instance of an overridden package
first, then an explicit binding in the script, then the runtime environment
when the instance allows passthrough (...). Without --script or --inline a
default script links every component with passthrough allowed.

On success the composed component and a JSON manifest describing which
binary backs each instance are written. Nothing is written on failure.`,
		Example: `  witlink compose -c components.toml -s app.wac -o app.wasm
  witlink compose -c components.toml --override example:backend=./backend.wasm
  witlink compose -c components.toml --profile debug --component-profile b=release --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompose(cmd.Context(), &opts)
		},
	}

	opts.input.register(cmd)
	opts.script.register(cmd)
	cmd.Flags().StringVar(&opts.composer, "composer", "", "composer binary (default $WITLINK_COMPOSER or wac)")
	cmd.Flags().StringArrayVar(&opts.composerArgs, "composer-arg", nil, "extra composer argument (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "composed component path")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "manifest path (default <output>.manifest.json)")
	cmd.Flags().StringVar(&opts.stage, "stage", "", "also lay out the bound binaries in this directory")
	cmd.Flags().BoolVar(&opts.stageCopy, "stage-copy", false, "copy binaries into --stage instead of symlinking")
	cmd.Flags().StringVar(&opts.graph, "graph", "", "also render the graph (.dot, .svg, .pdf, .png)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "composer timeout")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the resolved script instead of composing")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "omit the instance table")

	return cmd
}

func (c *CLI) runCompose(ctx context.Context, opts *composeOpts) error {
	lc, g, err := c.resolve(ctx, &opts.input, &opts.script)
	if err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Print(script.Print(g.Script()))
		printWarnings(g.Warnings)
		return nil
	}

	if opts.stage != "" {
		if err := emit.StageDeps(opts.stage, g, emit.StageOptions{Copy: opts.stageCopy}); err != nil {
			return err
		}
	}
	if opts.graph != "" {
		if err := dot.WriteFile(ctx, opts.graph, g, dot.Options{Detailed: true, Passthrough: true}); err != nil {
			return err
		}
	}

	manifest := opts.manifest
	if manifest == "" {
		manifest = manifestPath(opts.output)
	}
	composer := emit.ExecComposer{Path: composerPath(opts.composer), Args: opts.composerArgs}

	spinner := newSpinnerWithContext(ctx, "Composing with "+composer.Name()+"...")
	spinner.Start()
	m, err := emit.Emit(lc, g, emit.Options{
		Output:   opts.output,
		Manifest: manifest,
		Composer: composer,
		Timeout:  opts.timeout,
	})
	if err != nil {
		spinner.StopWithError("Composition failed")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Composed %d instances", len(m.Instances)))

	printComposeResult(g, m, opts)
	return nil
}

func printComposeResult(g *link.Graph, m *emit.Manifest, opts *composeOpts) {
	printStats(g)
	printFile(opts.output)
	printFile(manifestPathOr(opts.manifest, opts.output))
	if opts.stage != "" {
		printFile(opts.stage)
	}
	if opts.graph != "" {
		printFile(opts.graph)
	}
	printWarnings(m.Warnings)
	if !opts.quiet {
		fmt.Println(renderManifestTable(m))
	}
}

// manifestPath derives "app.manifest.json" from "app.wasm".
func manifestPath(output string) string {
	return strings.TrimSuffix(output, ".wasm") + ".manifest.json"
}

func manifestPathOr(manifest, output string) string {
	if manifest != "" {
		return manifest
	}
	return manifestPath(output)
}
