package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/witlink/pkg/closure"
	"github.com/matzehuels/witlink/pkg/wit"
)

// resolveDepsOpts holds the flags of the resolve-deps command.
type resolveDepsOpts struct {
	declared  []string
	workspace string
	strict    bool
	workers   int
	json      bool
}

// resolveDepsCommand creates the resolve-deps command: the dependency
// closure check for WIT descriptors.
func (c *CLI) resolveDepsCommand() *cobra.Command {
	var opts resolveDepsOpts

	cmd := &cobra.Command{
		Use:   "resolve-deps <descriptor.wit>...",
		Short: "Check that WIT descriptors declare every package they reference",
		Long: `Compute the packages each descriptor references, transitively through the
workspace when --workspace is given, and report those no --declared
dependency satisfies. An unversioned declaration satisfies every version.

Missing dependencies are reported with a suggested fix. They fail the
command only with --strict.`,
		Example: `  witlink resolve-deps wit/app.wit --declared wasi:http@0.2.0 --workspace .
  witlink resolve-deps wit/*.wit --strict --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolveDeps(cmd.Context(), args, &opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.declared, "declared", "d", nil, "declared dependency package, ns:name[@version] (repeatable)")
	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "workspace to index for transitive references and build targets")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail when a dependency is missing")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent analyses (default GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print reports as JSON")

	return cmd
}

func (c *CLI) runResolveDeps(ctx context.Context, paths []string, opts *resolveDepsOpts) error {
	logger := loggerFromContext(ctx)
	declared := make([]wit.PackageID, 0, len(opts.declared))
	for _, d := range opts.declared {
		id, err := wit.ParsePackageID(d)
		if err != nil {
			return err
		}
		declared = append(declared, id)
	}

	copts := closure.Options{Logger: logger}
	if opts.workspace != "" {
		prog := startStage(logger, "index")
		idx, err := closure.ScanWorkspace(opts.workspace)
		if err != nil {
			return err
		}
		for _, s := range idx.Skipped {
			logger.Warn("skipped unreadable file", "path", s)
		}
		prog.done("Indexed workspace", "providers", idx.Len())
		copts.Index = idx
	}

	jobs := make([]closure.Job, len(paths))
	for i, p := range paths {
		jobs[i] = closure.Job{Path: p, Declared: declared}
	}
	reports, err := closure.AnalyzeAll(ctx, jobs, opts.workers, copts)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		var v any = reports
		if len(reports) == 1 {
			v = reports[0]
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			printReport(r)
		}
	}

	if opts.strict {
		for _, r := range reports {
			if err := r.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
