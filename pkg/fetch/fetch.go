// Package fetch obtains the binaries of remote components before a
// composition run.
//
// The engine never touches the network. Remote components are declared in
// the components file with remote = true; [FetchAll] asks a [Fetcher] for
// each distinct package concurrently, then registers the results in request
// order. Two adapters ship with the package: [DirFetcher] reads a local
// mirror and [HTTPFetcher] downloads from a static file server.
package fetch

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/link"
	"github.com/matzehuels/witlink/pkg/observability"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/wit"
)

// Fetcher obtains the binary of one package version.
type Fetcher interface {
	Fetch(ctx context.Context, id wit.PackageID) (registry.Handle, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, id wit.PackageID) (registry.Handle, error)

func (f FetcherFunc) Fetch(ctx context.Context, id wit.PackageID) (registry.Handle, error) {
	return f(ctx, id)
}

// Options configures FetchAll.
type Options struct {
	// Timeout bounds each fetch. Default 2m.
	Timeout time.Duration
	// Workers bounds concurrent fetches. Default 8.
	Workers int
	// Overrides lists packages that must not be fetched; their components
	// are registered with the override binary instead.
	Overrides link.OverrideTable
	Logger    *log.Logger
	Hooks     observability.FetchHooks
}

// WithDefaults returns a copy of o with unset fields filled in.
func (o Options) WithDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Hooks == nil {
		o.Hooks = observability.NoopFetchHooks{}
	}
	return o
}

// Result describes how one remote component was bound.
type Result struct {
	Name    string
	Package wit.PackageID
	Handle  registry.Handle
	// Overridden is set when the fetch was skipped for an override.
	Overridden bool
}

// FetchAll fetches the binaries of remote, registers every component in
// reg, and returns one result per component in input order.
//
// Each distinct package is fetched once. Nothing is registered unless every
// fetch succeeds and every component is accepted by reg; the first failure
// cancels the rest and is returned as FETCH_FAILURE. Fetches are not
// retried here; adapters decide that.
func FetchAll(ctx context.Context, f Fetcher, reg *registry.Registry, remote []*registry.Artifact, opts Options) ([]Result, error) {
	opts = opts.WithDefaults()
	if err := checkRegistrable(reg, remote); err != nil {
		return nil, err
	}

	results := make([]Result, len(remote))
	var pending []wit.PackageID
	queued := make(map[string]bool)
	for i, a := range remote {
		results[i] = Result{Name: a.Name, Package: a.Package}
		if ov, ok := opts.Overrides.Lookup(a.Package); ok {
			results[i].Handle = ov.Handle
			results[i].Overridden = true
			opts.Logger.Debug("fetch skipped, package overridden", "component", a.Name, "key", ov.Key)
			continue
		}
		if key := a.Package.String(); !queued[key] {
			queued[key] = true
			pending = append(pending, a.Package)
		}
	}

	handles := make([]registry.Handle, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, id := range pending {
		g.Go(func() error {
			h, err := fetchOne(gctx, f, id, opts)
			if err != nil {
				return err
			}
			handles[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byPackage := make(map[string]registry.Handle, len(pending))
	for i, id := range pending {
		byPackage[id.String()] = handles[i]
	}
	staged := make([]*registry.Artifact, len(remote))
	for i, a := range remote {
		if !results[i].Overridden {
			results[i].Handle = byPackage[a.Package.String()]
		}
		staged[i] = withHandle(a, results[i].Handle)
		if err := staged[i].Validate(); err != nil {
			return nil, err
		}
	}
	for _, a := range staged {
		if err := reg.Register(a.Name, a); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// checkRegistrable fails before any fetch starts if a component of remote
// could not be registered: the registry is frozen, or a name repeats or is
// already taken.
func checkRegistrable(reg *registry.Registry, remote []*registry.Artifact) error {
	if reg.Frozen() {
		return errors.New(errors.ErrCodeRegistryFrozen, "cannot add remote components: registry is frozen")
	}
	seen := make(map[string]bool, len(remote))
	for _, a := range remote {
		if err := errors.ValidateInstanceName(a.Name); err != nil {
			return err
		}
		if _, err := reg.Lookup(a.Name); err == nil || seen[a.Name] {
			return errors.New(errors.ErrCodeDuplicateInstance, "component %q is already registered", a.Name).WithInstance(a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

func fetchOne(ctx context.Context, f Fetcher, id wit.PackageID, opts Options) (registry.Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	opts.Hooks.OnFetchStart(ctx, id.String())
	h, err := f.Fetch(ctx, id)
	if err == nil && h.IsZero() {
		err = errors.New(errors.ErrCodeInternal, "fetcher returned no binary")
	}
	opts.Hooks.OnFetchComplete(ctx, id.String(), time.Since(start), err)
	if err != nil {
		return registry.Handle{}, errors.Wrap(errors.ErrCodeFetchFailure, err, "fetch %s", id).WithPackage(id.String())
	}
	opts.Logger.Debug("fetched", "package", id, "path", h.Path)
	return h, nil
}

// withHandle returns a copy of a whose primary profile points at h.
func withHandle(a *registry.Artifact, h registry.Handle) *registry.Artifact {
	c := a.Clone()
	profile := c.Primary
	if profile == "" {
		profile = registry.DefaultProfile
		c.Primary = profile
	}
	c.Profiles = map[registry.ProfileID]registry.Handle{profile: h}
	return c
}
