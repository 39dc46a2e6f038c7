package link

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/witlink/pkg/dag"
	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/script"
	"github.com/matzehuels/witlink/pkg/wit"
)

// Resolve binds every instance of s to an artifact and every import to a
// provider, and validates the result.
//
// Imports are decided by a fixed precedence chain, evaluated per import in
// script order then declaration order:
//
//  1. override: an instance whose package is in the override table exports
//     a matching slot
//  2. explicit: a connect statement or inline binding names the provider
//  3. passthrough: the instantiation carries "..."
//
// An import no tier can satisfy is UNRESOLVED_IMPORT. Two distinct
// candidates in the same tier are AMBIGUOUS_EXPORT; ties are never broken.
// Provider cycles are CYCLIC_INSTANTIATION. The registry is frozen before
// resolution starts.
func Resolve(c *Context, s *script.Script) (*Graph, error) {
	if c == nil || c.Registry == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "resolve: no registry")
	}
	if s == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "resolve: no script")
	}
	c.normalize()
	c.Registry.Freeze()

	start := time.Now()
	c.Hooks.Link.OnResolveStart(c.base, c.RunID, len(s.Lets))
	r := &resolver{ctx: c, script: s, byName: make(map[string]*Instance)}
	g, err := r.run()
	edges := 0
	if g != nil {
		edges = len(g.Edges())
	}
	c.Hooks.Link.OnResolveComplete(c.base, c.RunID, edges, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (c *Context) normalize() {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	c.Hooks = c.Hooks.WithDefaults()
	if c.base == nil {
		c.base = context.Background()
	}
}

type candidate struct {
	provider string
	export   string
}

func (c candidate) String() string { return c.provider + "." + c.export }

type resolver struct {
	ctx    *Context
	script *script.Script
	graph  *Graph
	byName map[string]*Instance
	// explicit[consumer][import] lists the explicitly wired providers.
	explicit map[string]map[string][]candidate
}

func (r *resolver) run() (*Graph, error) {
	r.graph = &Graph{Package: r.script.Package}
	steps := []func() error{
		r.bindInstances,
		r.collectExplicit,
		r.resolveImports,
		r.checkCycles,
		r.selectMain,
		r.checkConflicts,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return r.graph, nil
}

// =============================================================================
// Instances
// =============================================================================

func (r *resolver) bindInstances() error {
	c := r.ctx
	for _, l := range r.script.Lets {
		if _, dup := r.byName[l.Instance]; dup {
			return errors.New(errors.ErrCodeDuplicateInstance, "instance %q is declared twice", l.Instance).WithInstance(l.Instance)
		}
		art, err := r.lookupTarget(l.Target)
		if err != nil {
			return err.WithInstance(l.Instance)
		}

		in := &Instance{
			Name:        l.Instance,
			Component:   art.Name,
			Package:     art.Package,
			World:       art.World,
			Passthrough: l.Passthrough,
		}
		if ov, ok := c.Overrides.Lookup(art.Package); ok {
			in.Requested = c.Profiles.Resolve(l.Instance)
			in.Profile = in.Requested
			in.Handle = ov.Handle
			in.Exact = ov.Exact
			c.Logger.Debug("override applied", "instance", in.Name, "key", ov.Key, "path", ov.Handle.Path)
		} else {
			sel, err := c.Profiles.Select(l.Instance, art)
			if err != nil {
				return err
			}
			in.Requested = sel.Requested
			in.Profile = sel.Profile
			in.Handle = sel.Handle
			if sel.Warning != nil {
				r.warn(*sel.Warning)
			}
		}
		r.byName[in.Name] = in
		r.graph.Instances = append(r.graph.Instances, in)
	}
	return nil
}

// lookupTarget finds the component named by a "new" expression: the exact
// registry name, then the component part of "ns:name[@ver]", then the only
// component whose package matches.
func (r *resolver) lookupTarget(target string) (*registry.Artifact, *errors.Error) {
	reg := r.ctx.Registry
	if a, err := reg.Lookup(target); err == nil {
		return a, nil
	}
	if !strings.Contains(target, ":") {
		return nil, errors.New(errors.ErrCodeUnknownInstance, "no component named %q", target)
	}

	short := target[strings.LastIndex(target, ":")+1:]
	if at := strings.Index(short, "@"); at >= 0 {
		short = short[:at]
	}
	if a, err := reg.Lookup(short); err == nil {
		return a, nil
	}

	id, err := wit.ParsePackageID(target)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnknownInstance, err, "no component named %q", target)
	}
	var matches []*registry.Artifact
	for _, name := range reg.ByPackage(id.Key()) {
		a, _ := reg.Lookup(name)
		if a.Package.Matches(id) {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, errors.New(errors.ErrCodeUnknownInstance, "no component provides package %s", id).WithPackage(id.String())
	default:
		names := make([]string, len(matches))
		for i, a := range matches {
			names[i] = a.Name
		}
		return nil, errors.New(errors.ErrCodeUnknownInstance,
			"package %s is provided by several components %v, name one explicitly", id, names).WithPackage(id.String())
	}
}

// =============================================================================
// Explicit connections
// =============================================================================

func (r *resolver) collectExplicit() error {
	r.explicit = make(map[string]map[string][]candidate)
	for _, l := range r.script.Lets {
		for _, b := range l.Bindings {
			if err := r.addExplicit(l.Instance, b.Import, b.Provider, b.Export); err != nil {
				return err
			}
		}
	}
	for _, cn := range r.script.Connects {
		if _, ok := r.byName[cn.Consumer]; !ok {
			return errors.New(errors.ErrCodeUnknownInstance, "connect at %s: unknown instance %q", cn.Pos, cn.Consumer).WithInstance(cn.Consumer)
		}
		if err := r.addExplicit(cn.Consumer, cn.Import, cn.Provider, cn.Export); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) addExplicit(consumer, importRef, provider, exportRef string) error {
	cons := r.byName[consumer]
	imp, ok := cons.World.Import(importRef)
	if !ok {
		return errors.New(errors.ErrCodeUnknownImport, "instance %q has no import %q", consumer, importRef).WithImport(consumer, importRef)
	}
	prov, ok := r.byName[provider]
	if !ok {
		return errors.New(errors.ErrCodeUnknownInstance, "%s.%s is wired to unknown instance %q", consumer, imp.Name, provider).
			WithImport(consumer, imp.Name)
	}
	exp, ok := prov.World.Export(exportRef)
	if !ok {
		return errors.New(errors.ErrCodeUnknownExport, "instance %q has no export %q", provider, exportRef).WithImport(consumer, imp.Name)
	}
	if !exp.SignatureMatches(imp) {
		return errors.New(errors.ErrCodeUnknownExport, "%s.%s (%s) cannot satisfy %s.%s (%s)",
			provider, exp.Name, exp.Signature, consumer, imp.Name, imp.Signature).WithImport(consumer, imp.Name)
	}

	byImport := r.explicit[consumer]
	if byImport == nil {
		byImport = make(map[string][]candidate)
		r.explicit[consumer] = byImport
	}
	cand := candidate{provider: provider, export: exp.Name}
	if !slices.Contains(byImport[imp.Name], cand) {
		byImport[imp.Name] = append(byImport[imp.Name], cand)
	}
	return nil
}

// =============================================================================
// Import resolution
// =============================================================================

func (r *resolver) resolveImports() error {
	for _, in := range r.graph.Instances {
		for _, imp := range in.World.Imports {
			b, err := r.resolveImport(in, imp)
			if err != nil {
				return err
			}
			in.Bindings = append(in.Bindings, b)
		}
	}
	return nil
}

func (r *resolver) resolveImport(in *Instance, imp registry.Slot) (Binding, error) {
	logger := r.ctx.Logger
	explicit := r.explicit[in.Name][imp.Name]

	if cands := r.overrideCandidates(in, imp); len(cands) > 0 {
		if len(cands) > 1 {
			return Binding{}, ambiguous(in.Name, imp.Name, "override", cands)
		}
		win := cands[0]
		for _, e := range explicit {
			if e != win {
				r.warn(errors.NewWarning(errors.WarnOverrideShadowed, in.Name,
					"%s.%s: connection to %s is shadowed by override provider %s", in.Name, imp.Name, e, win))
			}
		}
		logger.Debug("import resolved", "instance", in.Name, "import", imp.Name, "provider", win, "tier", TierOverride)
		return Binding{Import: imp, Status: Resolved, Tier: TierOverride, Provider: win.provider, Export: win.export}, nil
	}

	switch len(explicit) {
	case 0:
	case 1:
		win := explicit[0]
		logger.Debug("import resolved", "instance", in.Name, "import", imp.Name, "provider", win, "tier", TierExplicit)
		return Binding{Import: imp, Status: Resolved, Tier: TierExplicit, Provider: win.provider, Export: win.export}, nil
	default:
		return Binding{}, ambiguous(in.Name, imp.Name, "explicit", explicit)
	}

	if in.Passthrough {
		logger.Debug("import passed through", "instance", in.Name, "import", imp.Name)
		return Binding{Import: imp, Status: Passthrough, Tier: TierPassthrough}, nil
	}
	return Binding{}, errors.New(errors.ErrCodeUnresolvedImport,
		"import %s.%s has no provider (connect it, override its package, or allow passthrough with ...)", in.Name, imp.Name).
		WithImport(in.Name, imp.Name)
}

// overrideCandidates lists exports of overridden instances, other than in
// itself, that satisfy imp.
func (r *resolver) overrideCandidates(in *Instance, imp registry.Slot) []candidate {
	if r.ctx.Overrides.Len() == 0 {
		return nil
	}
	var out []candidate
	for _, p := range r.graph.Instances {
		if p.Name == in.Name || !r.ctx.Overrides.Covers(p.Package) {
			continue
		}
		for _, exp := range p.World.Exports {
			if exp.Satisfies(imp) {
				out = append(out, candidate{provider: p.Name, export: exp.Name})
			}
		}
	}
	return out
}

func ambiguous(instance, imp, tier string, cands []candidate) *errors.Error {
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.String()
	}
	return errors.New(errors.ErrCodeAmbiguousExport, "import %s.%s has %d %s candidates: %s",
		instance, imp, len(cands), tier, strings.Join(names, ", ")).WithImport(instance, imp)
}

// =============================================================================
// Validation
// =============================================================================

func (r *resolver) checkCycles() error {
	g := dag.New(nil)
	for _, in := range r.graph.Instances {
		if err := g.AddNode(dag.Node{ID: in.Name}); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "add instance %q", in.Name)
		}
	}
	for _, e := range r.graph.Edges() {
		if err := g.AddEdge(dag.Edge{From: e.Provider, To: e.Consumer, Label: e.Import}); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "add edge %s.%s", e.Consumer, e.Import)
		}
	}

	if path := g.FindCycle(); path != nil {
		// edges run provider -> consumer; report in import direction
		slices.Reverse(path)
		return errors.New(errors.ErrCodeCyclicInstantiation, "instances import from each other: %s",
			strings.Join(path, " -> ")).WithInstance(path[0])
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "order instances")
	}
	r.graph.arena = g
	r.graph.order = order
	return nil
}

func (r *resolver) selectMain() error {
	if exp := r.script.Export; exp != nil {
		if _, ok := r.byName[exp.Instance]; !ok {
			return errors.New(errors.ErrCodeUnknownInstance, "export of unknown instance %q", exp.Instance).WithInstance(exp.Instance)
		}
		r.graph.Main = exp.Instance
		return nil
	}
	if len(r.graph.Instances) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "script instantiates no components")
	}
	r.graph.Main = r.graph.Instances[0].Name
	r.ctx.Logger.Debug("no export statement, exporting first instance", "main", r.graph.Main)
	return nil
}

// checkConflicts enforces one artifact per package key. Instances bound
// through full-identity overrides are exempt.
func (r *resolver) checkConflicts() error {
	type group struct {
		paths     []string
		instances []string
		exact     bool
	}
	groups := make(map[string]*group)
	var keys []string
	for _, in := range r.graph.Instances {
		key := in.Package.Key()
		g := groups[key]
		if g == nil {
			g = &group{exact: true}
			groups[key] = g
			keys = append(keys, key)
		}
		g.instances = append(g.instances, fmt.Sprintf("%s=%s", in.Name, in.Handle.Path))
		if !slices.Contains(g.paths, in.Handle.Path) {
			g.paths = append(g.paths, in.Handle.Path)
		}
		g.exact = g.exact && in.Exact
	}
	for _, key := range keys {
		g := groups[key]
		if len(g.paths) > 1 && !g.exact {
			return errors.New(errors.ErrCodeConflictingPackage,
				"package %s is bound to %d artifacts (%s); add a versioned override to disambiguate",
				key, len(g.paths), strings.Join(g.instances, ", ")).WithPackage(key)
		}
	}
	return nil
}

func (r *resolver) warn(w errors.Warning) {
	r.ctx.Logger.Warn(w.Message, "code", w.Code)
	r.graph.Warnings = append(r.graph.Warnings, w)
}
