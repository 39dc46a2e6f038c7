package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/wit"
)

func testArtifact(pkg string, imports, exports []string) *Artifact {
	a := &Artifact{
		Package:  wit.MustParsePackageID(pkg),
		Profiles: map[ProfileID]Handle{DefaultProfile: {Path: "/out/" + pkg + ".wasm", Source: SourceLocal}},
	}
	for _, s := range imports {
		a.World.Imports = append(a.World.Imports, ParseSlot(s))
	}
	for _, s := range exports {
		a.World.Exports = append(a.World.Exports, ParseSlot(s))
	}
	return a
}

func TestRegisterLookup(t *testing.T) {
	r := New()
	if err := r.Register("frontend", testArtifact("example:frontend", []string{"api"}, nil)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("backend", testArtifact("example:backend", nil, []string{"api"})); err != nil {
		t.Fatal(err)
	}

	a, err := r.Lookup("frontend")
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "frontend" || a.Package.Key() != "example:frontend" {
		t.Errorf("Lookup = %+v", a)
	}
	if _, err := r.Lookup("missing"); !errors.Is(err, errors.ErrCodeUnknownInstance) {
		t.Errorf("Lookup(missing) = %v, want UNKNOWN_INSTANCE", err)
	}
	if got := r.Names(); !slices.Equal(got, []string{"frontend", "backend"}) {
		t.Errorf("Names = %v", got)
	}
	if got := r.ByPackage("example:backend"); !slices.Equal(got, []string{"backend"}) {
		t.Errorf("ByPackage = %v", got)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	a := testArtifact("a:b", nil, nil)
	if err := r.Register("x", a); err != nil {
		t.Fatal(err)
	}
	err := r.Register("x", a)
	if !errors.Is(err, errors.ErrCodeDuplicateInstance) {
		t.Fatalf("got %v, want DUPLICATE_INSTANCE", err)
	}
}

func TestRegisterFrozen(t *testing.T) {
	r := New()
	r.Freeze()
	r.Freeze()
	if !r.Frozen() {
		t.Fatal("Frozen = false")
	}
	err := r.Register("x", testArtifact("a:b", nil, nil))
	if !errors.Is(err, errors.ErrCodeRegistryFrozen) {
		t.Fatalf("got %v, want REGISTRY_FROZEN", err)
	}
}

func TestRegisterCopies(t *testing.T) {
	r := New()
	a := testArtifact("a:b", []string{"i"}, nil)
	_ = r.Register("x", a)
	a.World.Imports[0].Name = "mutated"
	a.Profiles["debug"] = Handle{Path: "/d.wasm"}

	got, _ := r.Lookup("x")
	if got.World.Imports[0].Name != "i" {
		t.Error("registered world aliases caller slice")
	}
	if _, ok := got.Profiles["debug"]; ok {
		t.Error("registered profiles alias caller map")
	}
}

func TestRegisterConcurrent(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("c%d", i), testArtifact("a:b", nil, nil))
		}()
	}
	wg.Wait()
	if r.Len() != 32 {
		t.Errorf("Len = %d, want 32", r.Len())
	}
}

func TestRegisterInvalid(t *testing.T) {
	tests := []struct {
		name string
		a    *Artifact
		reg  string
	}{
		{"bad name", testArtifact("a:b", nil, nil), "1bad"},
		{"dup import", testArtifact("a:b", []string{"x", "x"}, nil), "ok"},
		{"dup export", testArtifact("a:b", nil, []string{"y", "y"}), "ok"},
		{"no profiles", &Artifact{Package: wit.MustParsePackageID("a:b")}, "ok"},
		{"no package", &Artifact{Profiles: map[ProfileID]Handle{"release": {Path: "/r.wasm"}}}, "ok"},
		{"bad primary", &Artifact{
			Package:  wit.MustParsePackageID("a:b"),
			Profiles: map[ProfileID]Handle{"release": {Path: "/r.wasm"}},
			Primary:  "debug",
		}, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Register(tt.reg, tt.a)
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("got %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestPrimaryProfile(t *testing.T) {
	h := Handle{Path: "/x.wasm"}
	tests := []struct {
		name     string
		profiles []ProfileID
		primary  ProfileID
		want     ProfileID
	}{
		{"explicit", []ProfileID{"debug", "release"}, "debug", "debug"},
		{"sole", []ProfileID{"opt"}, "", "opt"},
		{"release", []ProfileID{"debug", "release", "a"}, "", "release"},
		{"lexicographic", []ProfileID{"fast", "debug"}, "", "debug"},
		{"none", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Artifact{Primary: tt.primary, Profiles: map[ProfileID]Handle{}}
			for _, p := range tt.profiles {
				a.Profiles[p] = h
			}
			if got := a.PrimaryProfile(); got != tt.want {
				t.Errorf("PrimaryProfile = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSlotSatisfies(t *testing.T) {
	tests := []struct {
		name     string
		exp, imp Slot
		want     bool
	}{
		{"plain names", Slot{Name: "api"}, Slot{Name: "api"}, true},
		{"different names", Slot{Name: "api"}, Slot{Name: "log"}, false},
		{"qualified ignores version", ParseSlot("a:b/api@1.0.0"), ParseSlot("a:b/api@1.1.0"), true},
		{"qualified different package", ParseSlot("a:b/api@1.0.0"), ParseSlot("a:c/api@1.0.0"), false},
		{"one signature missing", Slot{Name: "run", Signature: "func()"}, Slot{Name: "run"}, true},
		{"signature mismatch", Slot{Name: "run", Signature: "func()"}, Slot{Name: "run", Signature: "func() -> u32"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.exp.Satisfies(tt.imp); got != tt.want {
				t.Errorf("Satisfies = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWorldFind(t *testing.T) {
	w := World{Exports: []Slot{ParseSlot("example:backend/api@1.0.0"), {Name: "run"}}}
	for _, ref := range []string{"example:backend/api@1.0.0", "example:backend/api", "api", "run"} {
		if _, ok := w.Export(ref); !ok {
			t.Errorf("Export(%q) not found", ref)
		}
	}
	if _, ok := w.Export("missing"); ok {
		t.Error("Export(missing) found")
	}

	amb := World{Imports: []Slot{ParseSlot("a:b/api"), ParseSlot("a:c/api")}}
	if _, ok := amb.Import("api"); ok {
		t.Error("ambiguous short name resolved")
	}
}

func TestDecode(t *testing.T) {
	dir := t.TempDir()
	witPath := filepath.Join(dir, "frontend.wit")
	src := "package example:frontend@1.0.0;\nworld app { import example:backend/api@1.0.0; export run: func(); }\n"
	if err := os.WriteFile(witPath, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := `
[overrides]
"example:backend" = "vendor/backend.wasm"

[[component]]
name = "frontend"
wit = "frontend.wit"
[component.profiles]
release = "out/frontend.wasm"
debug = "/abs/frontend-debug.wasm"

[[component]]
name = "backend"
package = "example:backend@1.0.0"
exports = ["example:backend/api@1.0.0"]
primary = "release"
[component.profiles]
release = "out/backend.wasm"

[[component]]
name = "logger"
package = "wasi:logging@0.2.0"
exports = ["log"]
remote = true
`
	f, err := Decode(strings.NewReader(doc), dir)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(f.Components) != 3 {
		t.Fatalf("len(Components) = %d", len(f.Components))
	}
	fe := f.Components[0]
	if fe.Package.String() != "example:frontend@1.0.0" {
		t.Errorf("frontend package = %v", fe.Package)
	}
	if len(fe.World.Imports) != 1 || fe.World.Imports[0].Name != "example:backend/api@1.0.0" {
		t.Errorf("frontend imports = %v", fe.World.Imports)
	}
	if got := fe.Profiles["release"].Path; got != filepath.Join(dir, "out/frontend.wasm") {
		t.Errorf("release path = %q", got)
	}
	if got := fe.Profiles["debug"].Path; got != "/abs/frontend-debug.wasm" {
		t.Errorf("debug path = %q", got)
	}
	if got := f.Overrides["example:backend"]; got != filepath.Join(dir, "vendor/backend.wasm") {
		t.Errorf("override = %q", got)
	}
	if len(f.Local()) != 2 || len(f.Remote()) != 1 || !f.Remote()[0].Remote {
		t.Errorf("Local/Remote split = %d/%d", len(f.Local()), len(f.Remote()))
	}

	r := New()
	if err := f.RegisterLocal(r); err != nil {
		t.Fatal(err)
	}
	if got := r.Names(); !slices.Equal(got, []string{"frontend", "backend"}) {
		t.Errorf("Names = %v", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code errors.Code
	}{
		{"syntax", "[[component]\n", errors.ErrCodeInvalidInput},
		{"unknown key", "[[component]]\nname = \"a\"\npackage = \"a:b\"\nimportz = []\n", errors.ErrCodeInvalidInput},
		{"no package", "[[component]]\nname = \"a\"\n", errors.ErrCodeInvalidInput},
		{"remote without version", "[[component]]\nname = \"a\"\npackage = \"a:b\"\nremote = true\n", errors.ErrCodeInvalidInput},
		{"missing wit", "[[component]]\nname = \"a\"\nwit = \"nope.wit\"\n", errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc), t.TempDir())
			if !errors.Is(err, tt.code) {
				t.Errorf("got %v, want %s", err, tt.code)
			}
		})
	}
}

func TestDecodeMalformedWIT(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.wit"), []byte("world {"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Decode(strings.NewReader("[[component]]\nname = \"a\"\nwit = \"bad.wit\"\n"), dir)
	if !errors.Is(err, errors.ErrCodeMalformedDescriptor) {
		t.Errorf("got %v, want MALFORMED_DESCRIPTOR", err)
	}
}
