package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/fetch"
	"github.com/matzehuels/witlink/pkg/httputil"
	"github.com/matzehuels/witlink/pkg/link"
	"github.com/matzehuels/witlink/pkg/observability"
	"github.com/matzehuels/witlink/pkg/profile"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/script"
)

// versionCacheTTL bounds how long "latest" lookups are trusted.
const versionCacheTTL = 24 * time.Hour

// inputOpts are the flags shared by every command that builds a registry.
type inputOpts struct {
	components        string
	profile           string
	componentProfiles []string
	overrides         []string
	fetchDir          string
	fetchURL          string
	fetchWorkers      int
	fetchTimeout      time.Duration
	noCache           bool
}

func (o *inputOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.components, "components", "c", "", "components file (TOML)")
	cmd.Flags().StringVar(&o.profile, "profile", "", "default build profile (release)")
	cmd.Flags().StringArrayVar(&o.componentProfiles, "component-profile", nil, "per-instance profile as instance=profile (repeatable)")
	cmd.Flags().StringArrayVar(&o.overrides, "override", nil, "replace a package's binary as package=path (repeatable)")
	cmd.Flags().StringVar(&o.fetchDir, "fetch-dir", "", "local mirror for remote components (<ns>/<name>/<version>.wasm)")
	cmd.Flags().StringVar(&o.fetchURL, "fetch-url", "", "HTTP mirror for remote components")
	cmd.Flags().IntVar(&o.fetchWorkers, "fetch-workers", 8, "concurrent fetches")
	cmd.Flags().DurationVar(&o.fetchTimeout, "fetch-timeout", 2*time.Minute, "timeout per fetch")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "disable the artifact cache")
	_ = cmd.MarkFlagRequired("components")
	cmd.MarkFlagsMutuallyExclusive("fetch-dir", "fetch-url")
}

// selector builds the profile selector from --profile and
// --component-profile.
func (o *inputOpts) selector() (profile.Selector, error) {
	assign, err := profile.ParseAssignments(o.componentProfiles)
	if err != nil {
		return profile.Selector{}, err
	}
	s := profile.Selector{Default: registry.ProfileID(o.profile)}
	return s.With(assign), nil
}

// session is everything a command needs to resolve a composition.
type session struct {
	registry  *registry.Registry
	overrides link.OverrideTable
	fetched   []fetch.Result
}

// load reads the components file, merges overrides (flags win over the
// file) and fetches remote components.
func (c *CLI) load(ctx context.Context, o *inputOpts) (*session, error) {
	logger := loggerFromContext(ctx)
	file, err := registry.LoadFile(o.components)
	if err != nil {
		return nil, err
	}
	fromFile, err := link.NewOverrideTable(file.Overrides)
	if err != nil {
		return nil, err
	}
	fromFlags, err := link.ParseOverrides(o.overrides)
	if err != nil {
		return nil, err
	}
	s := &session{registry: registry.New(), overrides: fromFile.Merge(fromFlags)}

	if err := file.RegisterLocal(s.registry); err != nil {
		return nil, err
	}
	remote := file.Remote()
	if len(remote) == 0 {
		logger.Debug("components loaded", "count", s.registry.Len(), "overrides", s.overrides.Len())
		return s, nil
	}

	f, closeFetcher, err := c.fetcher(ctx, o)
	if err != nil {
		return nil, err
	}
	defer closeFetcher()

	prog := startStage(logger, "fetch")
	s.fetched, err = fetch.FetchAll(ctx, f, s.registry, remote, fetch.Options{
		Timeout:   o.fetchTimeout,
		Workers:   o.fetchWorkers,
		Overrides: s.overrides,
		Logger:    logger,
		Hooks:     observability.NewLogHooks(logger),
	})
	if err != nil {
		return nil, err
	}
	prog.done("Fetched remote components", "count", len(remote))
	return s, nil
}

// fetcher builds the adapter for remote components.
func (c *CLI) fetcher(ctx context.Context, o *inputOpts) (fetch.Fetcher, func(), error) {
	switch {
	case o.fetchDir != "":
		return fetch.DirFetcher{Root: o.fetchDir}, func() {}, nil
	case o.fetchURL != "":
		return c.httpFetcher(ctx, o)
	}
	return nil, nil, errors.New(errors.ErrCodeInvalidInput,
		"components file lists remote components; pass --fetch-dir or --fetch-url")
}

func (c *CLI) httpFetcher(ctx context.Context, o *inputOpts) (fetch.Fetcher, func(), error) {
	logger := loggerFromContext(ctx)
	artifacts, err := c.newArtifactCache(ctx, o.noCache)
	if err != nil {
		return nil, nil, err
	}
	base := stateDir()
	var versions *httputil.Cache
	if !o.noCache {
		versions, err = httputil.NewCache(filepath.Join(base, "versions"), versionCacheTTL)
		if err != nil {
			logger.Warn("version cache disabled", "err", err)
		}
	}
	hooks := observability.NewLogHooks(logger)
	f, err := fetch.NewHTTPFetcher(o.fetchURL, fetch.HTTPOptions{
		OutDir:   filepath.Join(base, "fetched"),
		Cache:    artifacts,
		Versions: versions,
		Logger:   logger,
		Hooks:    observability.Hooks{Fetch: hooks, Cache: hooks, HTTP: hooks},
	})
	if err != nil {
		artifacts.Close()
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "--fetch-url")
	}
	return f, func() { artifacts.Close() }, nil
}

// stateDir holds downloaded binaries and version lookups. It falls back to
// the temp directory when there is no cache directory.
func stateDir() string {
	dir, err := cacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return dir
}

// linkContext builds the per-run context for a loaded session.
func (s *session) linkContext(ctx context.Context, sel profile.Selector, logger *log.Logger) *link.Context {
	return link.NewContext(s.registry,
		link.WithOverrides(s.overrides),
		link.WithProfiles(sel),
		link.WithLogger(logger),
		link.WithHooks(observability.Hooks{Link: observability.NewLogHooks(logger)}),
		link.WithBaseContext(ctx),
	)
}

// scriptOpts select the composition script.
type scriptOpts struct {
	file   string
	inline string
}

func (o *scriptOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.file, "script", "s", "", "composition script file (.wac)")
	cmd.Flags().StringVar(&o.inline, "inline", "", "composition script text")
	cmd.MarkFlagsMutuallyExclusive("script", "inline")
}

// load parses the chosen script, or synthesizes the default one when none
// was given.
func (o *scriptOpts) load(reg *registry.Registry, logger *log.Logger) (*script.Script, error) {
	switch {
	case o.file != "":
		data, err := os.ReadFile(o.file)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read script")
		}
		s, err := script.Parse(data)
		if err != nil {
			return nil, errors.Annotate(err, "%s", o.file)
		}
		return s, nil
	case o.inline != "":
		return script.ParseString(o.inline)
	}
	logger.Warn("no script given, linking every component with passthrough allowed")
	return script.Auto(reg), nil
}

// resolve loads a session and resolves the chosen script.
func (c *CLI) resolve(ctx context.Context, in *inputOpts, so *scriptOpts) (*link.Context, *link.Graph, error) {
	logger := loggerFromContext(ctx)
	sel, err := in.selector()
	if err != nil {
		return nil, nil, err
	}
	s, err := c.load(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	sc, err := so.load(s.registry, logger)
	if err != nil {
		return nil, nil, err
	}
	lc := s.linkContext(ctx, sel, logger)
	prog := startStage(logger, "resolve")
	g, err := link.Resolve(lc, sc)
	if err != nil {
		return nil, nil, err
	}
	prog.done("Resolved instances", "count", len(g.Instances))
	return lc, g, nil
}
