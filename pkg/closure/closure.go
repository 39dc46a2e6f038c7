package closure

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/wit"
)

// Options configures an analysis.
type Options struct {
	// Index resolves referenced packages to their descriptors and build
	// targets. Nil analyzes direct references only.
	Index *Index
	// Logger receives debug output. Nil uses log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy of o with unset fields filled in.
func (o Options) WithDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Report is the outcome of analyzing one descriptor.
type Report struct {
	// Descriptor is the file that was analyzed.
	Descriptor string `json:"analyzed_descriptor"`
	// Missing lists reached packages that no declared dependency satisfies,
	// sorted by identity.
	Missing []wit.PackageID `json:"missing"`
	// Suggestions are dependency-list entries that would fix Missing,
	// sorted and deduplicated.
	Suggestions []string `json:"suggested_fixes"`
	// Available lists the workspace providers of the missing packages.
	Available []Provider `json:"available_packages"`
}

// OK reports whether nothing is missing.
func (r *Report) OK() bool { return len(r.Missing) == 0 }

// Err returns a MISSING_DEPENDENCY error naming the missing packages, or
// nil when the closure is complete.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	names := make([]string, len(r.Missing))
	for i, m := range r.Missing {
		names[i] = m.String()
	}
	return errors.New(errors.ErrCodeMissingDependency, "%s: missing dependencies: %s",
		r.Descriptor, strings.Join(names, ", ")).
		WithPackage(names[0]).
		WithDetail(strings.Join(r.Suggestions, "\n"))
}

// Analyze computes the reference closure of desc and reports every reached
// package that declared does not satisfy. It has no side effects; the same
// inputs always yield the same report.
func Analyze(desc *wit.Descriptor, declared []wit.PackageID, opts Options) *Report {
	opts = opts.WithDefaults()
	report := &Report{
		Descriptor:  desc.File,
		Missing:     []wit.PackageID{},
		Suggestions: []string{},
		Available:   []Provider{},
	}

	for _, id := range reachable(desc, opts) {
		if satisfied(id, declared) {
			continue
		}
		opts.Logger.Debug("missing dependency", "descriptor", desc.File, "package", id)
		report.Missing = append(report.Missing, id)
	}
	slices.SortFunc(report.Missing, wit.PackageID.Compare)

	for _, id := range report.Missing {
		providers := opts.Index.Providers(id)
		report.Available = append(report.Available, providers...)
		found := false
		for _, p := range providers {
			if p.Target == "" {
				continue
			}
			found = true
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("Add to deps: %q,  # Provides package %s", p.Target, id))
		}
		if !found {
			report.Suggestions = append(report.Suggestions, fmt.Sprintf("%q,  # Missing WIT package", id.String()))
		}
	}
	slices.Sort(report.Suggestions)
	report.Suggestions = slices.Compact(report.Suggestions)
	slices.SortFunc(report.Available, compareProviders)
	report.Available = slices.CompactFunc(report.Available, func(a, b Provider) bool {
		return compareProviders(a, b) == 0
	})
	return report
}

// reachable walks References breadth-first, following packages the index
// has descriptors for. Packages are deduplicated by full identity; the
// descriptor's own package is never included.
func reachable(desc *wit.Descriptor, opts Options) []wit.PackageID {
	self := desc.Package.Key()
	seen := make(map[string]bool)
	var out []wit.PackageID

	queue := slices.Clone(desc.References)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id.Key() == self || seen[id.String()] {
			continue
		}
		seen[id.String()] = true
		out = append(out, id)

		if next, ok := opts.Index.Descriptor(id); ok {
			opts.Logger.Debug("following references", "package", id, "from", next.File)
			queue = append(queue, next.References...)
		}
	}
	return out
}

func satisfied(id wit.PackageID, declared []wit.PackageID) bool {
	for _, d := range declared {
		if d.Matches(id) {
			return true
		}
	}
	return false
}
