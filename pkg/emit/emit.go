// Package emit turns a resolved composition graph into a composed
// component and its manifest.
//
// [Emit] hands the graph to an external [Composer] (wac by default) and,
// only when the composer succeeds, writes a JSON [Manifest] describing
// which binary backs every instance. [StageDeps] lays out the bound binaries
// in a directory for running the composer by hand.
package emit

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/link"
	"github.com/matzehuels/witlink/pkg/script"
)

// Options configures Emit.
type Options struct {
	// Output is the composed component path. Required.
	Output string
	// Manifest is the manifest path; empty skips the manifest.
	Manifest string
	// Composer defaults to ExecComposer{}.
	Composer Composer
	// Timeout bounds the composer run. Default 5m.
	Timeout time.Duration
}

// WithDefaults returns a copy of o with unset fields filled in.
func (o Options) WithDefaults() Options {
	if o.Composer == nil {
		o.Composer = ExecComposer{}
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Minute
	}
	return o
}

// Emit composes g into opts.Output and writes the manifest.
//
// A composer failure is COMPOSITION_TOOL_FAILURE with the composer's stderr
// in the error detail; it is never retried. No manifest is written unless
// the composer succeeded.
func Emit(c *link.Context, g *link.Graph, opts Options) (*Manifest, error) {
	opts = opts.WithDefaults()
	if opts.Output == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "emit: no output path")
	}
	if g == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "emit: no graph")
	}

	req := Request{
		Script: script.Print(g.Script()),
		Deps:   g.Dependencies(),
		Output: opts.Output,
	}
	name := opts.Composer.Name()

	ctx, cancel := context.WithTimeout(c.Base(), opts.Timeout)
	defer cancel()

	c.Logger.Info("composing", "composer", name, "instances", len(g.Instances), "output", opts.Output)
	start := time.Now()
	c.Hooks.Link.OnComposeStart(ctx, c.RunID, name)
	err := opts.Composer.Compose(ctx, req)
	c.Hooks.Link.OnComposeComplete(ctx, c.RunID, name, time.Since(start), err)
	if err != nil {
		return nil, composeError(ctx, name, opts.Timeout, err)
	}

	m := BuildManifest(g)
	if opts.Manifest != "" {
		if err := WriteManifest(opts.Manifest, m); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "write manifest")
		}
		c.Logger.Debug("manifest written", "path", opts.Manifest)
	}
	return m, nil
}

func composeError(ctx context.Context, name string, timeout time.Duration, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeCompositionToolFailure, err, "%s timed out after %s", name, timeout)
	}
	e := errors.Wrap(errors.ErrCodeCompositionToolFailure, err, "%s failed", name)
	var te *ToolError
	if stderrors.As(err, &te) {
		e = e.WithDetail(te.Stderr)
	}
	return e
}

// Manifest records how a composed component was assembled.
type Manifest struct {
	Main      string           `json:"main"`
	Instances []Instance       `json:"instances"`
	Warnings  []errors.Warning `json:"warnings"`
}

// Instance is one manifest entry.
type Instance struct {
	Name            string   `json:"instance_name"`
	Profile         string   `json:"profile"`
	ArtifactPath    string   `json:"artifact_path"`
	PackageIdentity string   `json:"package_identity"`
	Source          string   `json:"source"`
	Imports         []Import `json:"imports"`
}

// Import is the binding of one import slot.
type Import struct {
	Name     string      `json:"name"`
	Status   link.Status `json:"status"`
	Tier     link.Tier   `json:"tier"`
	Provider string      `json:"provider,omitempty"`
	Export   string      `json:"export,omitempty"`
}

// BuildManifest describes g. Instances are in script order; the result is
// identical for identical graphs.
func BuildManifest(g *link.Graph) *Manifest {
	m := &Manifest{
		Main:      g.Main,
		Instances: make([]Instance, 0, len(g.Instances)),
		Warnings:  append([]errors.Warning{}, g.Warnings...),
	}
	for _, in := range g.Instances {
		mi := Instance{
			Name:            in.Name,
			Profile:         string(in.Profile),
			ArtifactPath:    in.Handle.Path,
			PackageIdentity: in.Package.String(),
			Source:          string(in.Handle.Source),
			Imports:         make([]Import, 0, len(in.Bindings)),
		}
		for _, b := range in.Bindings {
			mi.Imports = append(mi.Imports, Import{
				Name:     b.Import.Name,
				Status:   b.Status,
				Tier:     b.Tier,
				Provider: b.Provider,
				Export:   b.Export,
			})
		}
		m.Instances = append(m.Instances, mi)
	}
	return m
}

// WriteManifest writes m as indented JSON through a temp file and rename.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(data, '\n'), 0o644)
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse manifest %s", path)
	}
	return &m, nil
}
