package link

import (
	stderrors "errors"
	"io"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/profile"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/script"
	"github.com/matzehuels/witlink/pkg/wit"
)

type comp struct {
	name     string
	pkg      string
	imports  []string
	exports  []string
	profiles map[registry.ProfileID]string
}

func newRegistry(t *testing.T, comps ...comp) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, c := range comps {
		a := &registry.Artifact{
			Package:  wit.MustParsePackageID(c.pkg),
			Profiles: map[registry.ProfileID]registry.Handle{},
		}
		for _, s := range c.imports {
			a.World.Imports = append(a.World.Imports, registry.ParseSlot(s))
		}
		for _, s := range c.exports {
			a.World.Exports = append(a.World.Exports, registry.ParseSlot(s))
		}
		profiles := c.profiles
		if profiles == nil {
			profiles = map[registry.ProfileID]string{"release": "/out/" + c.name + ".wasm"}
		}
		for id, path := range profiles {
			a.Profiles[id] = registry.Handle{Path: path, Source: registry.SourceLocal}
		}
		if err := reg.Register(c.name, a); err != nil {
			t.Fatalf("Register(%s): %v", c.name, err)
		}
	}
	return reg
}

func quietContext(reg *registry.Registry, opts ...Option) *Context {
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	return NewContext(reg, opts...)
}

func mustParse(t *testing.T, src string) *script.Script {
	t.Helper()
	s, err := script.ParseString(src)
	if err != nil {
		t.Fatalf("parse script: %v", err)
	}
	return s
}

func frontendBackend(t *testing.T) *registry.Registry {
	return newRegistry(t,
		comp{name: "frontend", pkg: "example:frontend@1.0.0", imports: []string{"api"}},
		comp{name: "backend", pkg: "example:backend@1.0.0", exports: []string{"api"}},
	)
}

func TestResolveEndToEnd(t *testing.T) {
	reg := frontendBackend(t)
	s := mustParse(t, `let f = new frontend {}; let b = new backend {}; connect f.api -> b.api; export f as main;`)

	g, err := Resolve(quietContext(reg), s)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if g.Main != "f" {
		t.Errorf("Main = %q, want f", g.Main)
	}
	want := []Edge{{Consumer: "f", Import: "api", Provider: "b", Export: "api", Tier: TierExplicit}}
	if got := g.Edges(); !reflect.DeepEqual(got, want) {
		t.Errorf("Edges = %+v, want %+v", got, want)
	}
	if n := g.Count(Unresolved); n != 0 {
		t.Errorf("unresolved = %d", n)
	}
	if got := g.Order(); !slices.Equal(got, []string{"b", "f"}) {
		t.Errorf("Order = %v, want providers first", got)
	}
	if len(g.Warnings) != 0 {
		t.Errorf("Warnings = %v", g.Warnings)
	}
	if !reg.Frozen() {
		t.Error("registry not frozen by Resolve")
	}
}

func TestResolveOverridePrecedence(t *testing.T) {
	reg := newRegistry(t,
		comp{name: "app", pkg: "example:app@1.0.0", imports: []string{"x"}},
		comp{name: "foo", pkg: "pkg:foo@1.0.0", exports: []string{"x"},
			profiles: map[registry.ProfileID]string{"release": "/registry/foo-1.0.wasm"}},
		comp{name: "alt", pkg: "other:alt@1.0.0", exports: []string{"x"}},
	)
	overrides, err := ParseOverrides([]string{"foo=/local/pathB.wasm"})
	if err != nil {
		t.Fatal(err)
	}
	s := mustParse(t, `
let a = new app {};
let f = new pkg:foo {};
let alt = new alt {};
connect a.x -> alt.x;
export a as main;`)

	g, err := Resolve(quietContext(reg, WithOverrides(overrides)), s)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, _ := mustInstance(t, g, "a").Binding("x")
	if b.Provider != "f" || b.Tier != TierOverride {
		t.Fatalf("binding = %+v, want override provider f", b)
	}
	prov := mustInstance(t, g, b.Provider)
	if prov.Handle.Path != "/local/pathB.wasm" || prov.Handle.Source != registry.SourceOverride {
		t.Errorf("provider handle = %+v, want override pathB", prov.Handle)
	}
	if len(g.Warnings) != 1 || g.Warnings[0].Code != errors.WarnOverrideShadowed {
		t.Errorf("Warnings = %v, want one OVERRIDE_SHADOWED", g.Warnings)
	}
}

func TestResolveOverrideAmbiguous(t *testing.T) {
	reg := newRegistry(t,
		comp{name: "app", pkg: "example:app", imports: []string{"x"}},
		comp{name: "one", pkg: "a:one", exports: []string{"x"}},
		comp{name: "two", pkg: "a:two", exports: []string{"x"}},
	)
	overrides, _ := ParseOverrides([]string{"a:one=/1.wasm", "two=/2.wasm"})
	s := mustParse(t, `let a = new app {}; let o = new one {}; let t = new two {};`)
	_, err := Resolve(quietContext(reg, WithOverrides(overrides)), s)
	if !errors.Is(err, errors.ErrCodeAmbiguousExport) {
		t.Fatalf("got %v, want AMBIGUOUS_EXPORT", err)
	}
	if !strings.Contains(err.Error(), "o.x") || !strings.Contains(err.Error(), "t.x") {
		t.Errorf("error %q does not list candidates", err)
	}
}

func TestResolveExplicitAmbiguous(t *testing.T) {
	reg := newRegistry(t,
		comp{name: "app", pkg: "example:app", imports: []string{"x"}},
		comp{name: "one", pkg: "a:one", exports: []string{"x"}},
		comp{name: "two", pkg: "a:two", exports: []string{"x"}},
	)
	s := mustParse(t, `let a = new app { x: o }; let o = new one {}; let t = new two {}; connect a.x -> t.x;`)
	_, err := Resolve(quietContext(reg), s)
	if !errors.Is(err, errors.ErrCodeAmbiguousExport) {
		t.Fatalf("got %v, want AMBIGUOUS_EXPORT", err)
	}

	// the same wire stated twice is not ambiguous
	reg2 := newRegistry(t,
		comp{name: "app", pkg: "example:app", imports: []string{"x"}},
		comp{name: "one", pkg: "a:one", exports: []string{"x"}},
	)
	s2 := mustParse(t, `let a = new app { x: o.x }; let o = new one {}; connect a.x -> o.x;`)
	if _, err := Resolve(quietContext(reg2), s2); err != nil {
		t.Errorf("duplicate identical wire: %v", err)
	}
}

func TestResolveCycle(t *testing.T) {
	reg := newRegistry(t,
		comp{name: "ca", pkg: "t:a", imports: []string{"b"}, exports: []string{"a"}},
		comp{name: "cb", pkg: "t:b", imports: []string{"c"}, exports: []string{"b"}},
		comp{name: "cc", pkg: "t:c", imports: []string{"a"}, exports: []string{"c"}},
	)
	s := mustParse(t, `
let a = new ca {}; let b = new cb {}; let c = new cc {};
connect a.b -> b.b;
connect b.c -> c.c;
connect c.a -> a.a;
export a as main;`)
	_, err := Resolve(quietContext(reg), s)
	if !errors.Is(err, errors.ErrCodeCyclicInstantiation) {
		t.Fatalf("got %v, want CYCLIC_INSTANTIATION", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Errorf("error %q does not name the cycle", err)
	}
}

func TestResolveSelfImport(t *testing.T) {
	reg := newRegistry(t, comp{name: "loop", pkg: "t:loop", imports: []string{"x"}, exports: []string{"x"}})
	s := mustParse(t, `let l = new loop {}; connect l.x -> l.x;`)
	if _, err := Resolve(quietContext(reg), s); !errors.Is(err, errors.ErrCodeCyclicInstantiation) {
		t.Errorf("got %v, want CYCLIC_INSTANTIATION", err)
	}
}

func TestResolveAutoScript(t *testing.T) {
	reg := newRegistry(t,
		comp{name: "a", pkg: "t:a", imports: []string{"x", "y"}},
		comp{name: "b", pkg: "t:b", imports: []string{"z"}},
		comp{name: "c", pkg: "t:c", imports: []string{"w"}, exports: []string{"q"}},
	)
	g, err := Resolve(quietContext(reg), script.Auto(reg))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if g.Main != "a" {
		t.Errorf("Main = %q, want a", g.Main)
	}
	for _, in := range g.Instances {
		for _, b := range in.Bindings {
			if b.Status != Passthrough {
				t.Errorf("%s.%s = %v, want passthrough", in.Name, b.Import.Name, b.Status)
			}
		}
	}
	if g.Count(Passthrough) != 4 {
		t.Errorf("passthrough count = %d, want 4", g.Count(Passthrough))
	}
}

func TestResolveProfileFallback(t *testing.T) {
	reg := newRegistry(t, comp{name: "backend", pkg: "example:backend", exports: []string{"api"}})
	s := mustParse(t, `let b = new backend {};`)
	c := quietContext(reg, WithProfiles(profile.Selector{Default: "debug"}))
	g, err := Resolve(c, s)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := mustInstance(t, g, "b")
	if in.Profile != "release" || in.Requested != "debug" || in.Handle.Path != "/out/backend.wasm" {
		t.Errorf("instance = %+v", in)
	}
	if len(g.Warnings) != 1 || g.Warnings[0].Code != errors.WarnProfileFallback {
		t.Errorf("Warnings = %v, want PROFILE_FALLBACK", g.Warnings)
	}
}

func TestResolveDeterministic(t *testing.T) {
	src := `
let f = new frontend { ... };
let b = new backend {};
connect f.api -> b.api;
export f as main;`
	var prints []string
	var edges [][]Edge
	for range 2 {
		reg := frontendBackend(t)
		g, err := Resolve(quietContext(reg), mustParse(t, src))
		if err != nil {
			t.Fatal(err)
		}
		prints = append(prints, script.Print(g.Script()))
		edges = append(edges, g.Edges())
	}
	if prints[0] != prints[1] {
		t.Errorf("scripts differ:\n%s\n%s", prints[0], prints[1])
	}
	if !reflect.DeepEqual(edges[0], edges[1]) {
		t.Errorf("edges differ: %v vs %v", edges[0], edges[1])
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errors.Code
	}{
		{"unknown component", `let x = new nothing {};`, errors.ErrCodeUnknownInstance},
		{"duplicate let", `let f = new frontend { ... }; let f = new backend {};`, errors.ErrCodeDuplicateInstance},
		{"unresolved", `let f = new frontend {}; let b = new backend {};`, errors.ErrCodeUnresolvedImport},
		{"unknown import", `let f = new frontend { ... }; let b = new backend {}; connect f.nope -> b.api;`, errors.ErrCodeUnknownImport},
		{"unknown export", `let f = new frontend {}; let b = new backend {}; connect f.api -> b.nope;`, errors.ErrCodeUnknownExport},
		{"unknown provider", `let f = new frontend {}; connect f.api -> ghost.api;`, errors.ErrCodeUnknownInstance},
		{"unknown consumer", `let b = new backend {}; connect ghost.api -> b.api;`, errors.ErrCodeUnknownInstance},
		{"unknown main", `let b = new backend {}; export ghost as main;`, errors.ErrCodeUnknownInstance},
		{"empty script", ``, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &script.Script{}
			if tt.src != "" {
				s = mustParse(t, tt.src)
			}
			g, err := Resolve(quietContext(frontendBackend(t)), s)
			if !errors.Is(err, tt.code) {
				t.Fatalf("got %v, want %s", err, tt.code)
			}
			if g != nil {
				t.Error("graph returned alongside error")
			}
		})
	}
}

func TestResolveUnresolvedContext(t *testing.T) {
	_, err := Resolve(quietContext(frontendBackend(t)), mustParse(t, `let f = new frontend {};`))
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("got %T", err)
	}
	if e.Instance != "f" || e.Import != "api" {
		t.Errorf("context = %q/%q, want f/api", e.Instance, e.Import)
	}
}

func TestResolveTargetByPackage(t *testing.T) {
	reg := frontendBackend(t)
	s := mustParse(t, `let b = new example:backend@1.0.0 {}; let f = new some:frontend { api: b };`)
	g, err := Resolve(quietContext(reg), s)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if mustInstance(t, g, "b").Component != "backend" || mustInstance(t, g, "f").Component != "frontend" {
		t.Errorf("instances = %+v", g.Instances)
	}
	if g.Main != "b" {
		t.Errorf("Main = %q, want first declared", g.Main)
	}
}

func TestResolveSignatureMismatch(t *testing.T) {
	reg := newRegistry(t,
		comp{name: "app", pkg: "t:app", imports: []string{"a:b/api@1.0.0"}},
		comp{name: "impl", pkg: "t:impl", exports: []string{"a:c/api@1.0.0"}},
	)
	s := mustParse(t, `let a = new app {}; let i = new impl {}; connect a.api -> i.api;`)
	if _, err := Resolve(quietContext(reg), s); !errors.Is(err, errors.ErrCodeUnknownExport) {
		t.Errorf("got %v, want UNKNOWN_EXPORT", err)
	}
}

func TestResolveConflictingPackage(t *testing.T) {
	reg := newRegistry(t,
		comp{name: "v1", pkg: "t:lib@1.0.0", exports: []string{"x"}},
		comp{name: "v2", pkg: "t:lib@2.0.0", exports: []string{"y"}},
	)
	s := mustParse(t, `let a = new v1 {}; let b = new v2 {};`)
	_, err := Resolve(quietContext(reg), s)
	if !errors.Is(err, errors.ErrCodeConflictingPackage) {
		t.Fatalf("got %v, want CONFLICTING_PACKAGE", err)
	}

	// full-identity overrides disambiguate
	reg = newRegistry(t,
		comp{name: "v1", pkg: "t:lib@1.0.0", exports: []string{"x"}},
		comp{name: "v2", pkg: "t:lib@2.0.0", exports: []string{"y"}},
	)
	ov, _ := ParseOverrides([]string{"t:lib@1.0.0=/lib1.wasm", "t:lib@2.0.0=/lib2.wasm"})
	g, err := Resolve(quietContext(reg, WithOverrides(ov)), s)
	if err != nil {
		t.Fatalf("with identity overrides: %v", err)
	}
	deps := g.Dependencies()
	want := []Dependency{{Package: "t:lib@1.0.0", Path: "/lib1.wasm"}, {Package: "t:lib@2.0.0", Path: "/lib2.wasm"}}
	if !reflect.DeepEqual(deps, want) {
		t.Errorf("Dependencies = %+v, want %+v", deps, want)
	}
}

func TestGraphScript(t *testing.T) {
	reg := frontendBackend(t)
	s := mustParse(t, `package example:app; let f = new frontend { ... }; let b = new backend {}; connect f.api -> b.api;`)
	g, err := Resolve(quietContext(reg), s)
	if err != nil {
		t.Fatal(err)
	}
	want := `package example:app;

let b = new example:backend {};
let f = new example:frontend { api: b.api };

export f as main;
`
	if got := script.Print(g.Script()); got != want {
		t.Errorf("Script =\n%s\nwant\n%s", got, want)
	}
	deps := g.Dependencies()
	if len(deps) != 2 || deps[0].Package != "example:backend" || deps[1].Path != "/out/frontend.wasm" {
		t.Errorf("Dependencies = %+v", deps)
	}
}

func mustInstance(t *testing.T, g *Graph, name string) *Instance {
	t.Helper()
	in, ok := g.Instance(name)
	if !ok {
		t.Fatalf("instance %q not in graph", name)
	}
	return in
}
