package closure

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/wit"
)

// Job is one descriptor to analyze. When Descriptor is nil, Path is parsed.
type Job struct {
	Path       string
	Descriptor *wit.Descriptor
	Declared   []wit.PackageID
}

// AnalyzeAll analyzes jobs on at most workers goroutines (<= 0 means
// GOMAXPROCS) and returns one report per job, in job order. The index in
// opts is shared read-only. The first parse failure cancels the batch.
func AnalyzeAll(ctx context.Context, jobs []Job, workers int, opts Options) ([]*Report, error) {
	opts = opts.WithDefaults()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	reports := make([]*Report, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			desc := job.Descriptor
			if desc == nil {
				d, err := wit.ParseFile(job.Path)
				if err != nil {
					return err
				}
				desc = d
			}
			reports[i] = Analyze(desc, job.Declared, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, ctx.Err(), "analysis cancelled")
		}
		return nil, err
	}
	return reports, nil
}
