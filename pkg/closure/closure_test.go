package closure

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/wit"
)

const appWIT = `
package example:app@1.0.0;

interface handler {
    use wasi:http/types@0.2.0.{request, response};
    handle: func(req: request) -> response;
}

world app {
    import wasi:logging/logging@0.1.0;
    export handler;
}
`

const httpWIT = `
package wasi:http@0.2.0;

interface types {
    use wasi:io/streams@0.2.0.{input-stream};
    resource request;
    resource response;
}
`

func mustParse(t *testing.T, name, src string) *wit.Descriptor {
	t.Helper()
	d, err := wit.Parse(name, []byte(src))
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return d
}

func quiet() Options { return Options{Logger: log.New(io.Discard)} }

func ids(ss ...string) []wit.PackageID {
	out := make([]wit.PackageID, len(ss))
	for i, s := range ss {
		out[i] = wit.MustParsePackageID(s)
	}
	return out
}

func TestAnalyzeDirect(t *testing.T) {
	desc := mustParse(t, "app.wit", appWIT)
	r := Analyze(desc, ids("wasi:logging@0.1.0"), quiet())

	if want := ids("wasi:http@0.2.0"); !reflect.DeepEqual(r.Missing, want) {
		t.Errorf("Missing = %v, want %v", r.Missing, want)
	}
	want := []string{`"wasi:http@0.2.0",  # Missing WIT package`}
	if !slices.Equal(r.Suggestions, want) {
		t.Errorf("Suggestions = %q, want %q", r.Suggestions, want)
	}
	if !errors.Is(r.Err(), errors.ErrCodeMissingDependency) {
		t.Errorf("Err = %v, want MISSING_DEPENDENCY", r.Err())
	}
}

func TestAnalyzeComplete(t *testing.T) {
	desc := mustParse(t, "app.wit", appWIT)
	// unversioned declarations satisfy any version
	r := Analyze(desc, ids("wasi:logging", "wasi:http@0.2.0"), quiet())
	if !r.OK() || r.Err() != nil {
		t.Errorf("report = %+v, want complete", r)
	}
}

func TestAnalyzeVersionMismatch(t *testing.T) {
	desc := mustParse(t, "app.wit", appWIT)
	r := Analyze(desc, ids("wasi:logging@0.1.0", "wasi:http@0.3.0"), quiet())
	if len(r.Missing) != 1 || r.Missing[0].String() != "wasi:http@0.2.0" {
		t.Errorf("Missing = %v", r.Missing)
	}
}

func TestAnalyzeTransitive(t *testing.T) {
	idx := NewIndex()
	idx.AddDescriptor("wit/http/types.wit", mustParse(t, "types.wit", httpWIT))
	idx.AddTarget(Provider{Package: wit.MustParsePackageID("wasi:http@0.2.0"), File: "wit/http/BUILD", Target: "//wit/http:types"})

	opts := quiet()
	opts.Index = idx
	desc := mustParse(t, "app.wit", appWIT)
	r := Analyze(desc, nil, opts)

	wantMissing := ids("wasi:http@0.2.0", "wasi:io@0.2.0", "wasi:logging@0.1.0")
	if !reflect.DeepEqual(r.Missing, wantMissing) {
		t.Errorf("Missing = %v, want %v", r.Missing, wantMissing)
	}
	wantSuggestions := []string{
		`"wasi:io@0.2.0",  # Missing WIT package`,
		`"wasi:logging@0.1.0",  # Missing WIT package`,
		`Add to deps: "//wit/http:types",  # Provides package wasi:http@0.2.0`,
	}
	if !slices.Equal(r.Suggestions, wantSuggestions) {
		t.Errorf("Suggestions =\n%q\nwant\n%q", r.Suggestions, wantSuggestions)
	}
	if len(r.Available) != 2 {
		t.Errorf("Available = %+v, want descriptor and target for wasi:http", r.Available)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	idx := NewIndex()
	idx.AddDescriptor("types.wit", mustParse(t, "types.wit", httpWIT))
	opts := quiet()
	opts.Index = idx
	desc := mustParse(t, "app.wit", appWIT)
	declared := ids("wasi:logging@0.1.0")

	first := Analyze(desc, declared, opts)
	second := Analyze(desc, declared, opts)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reports differ:\n%+v\n%+v", first, second)
	}
	if len(desc.References) != 2 {
		t.Errorf("descriptor mutated: %v", desc.References)
	}
}

func TestAnalyzeSkipsOwnPackage(t *testing.T) {
	// a package that references itself through the index
	idx := NewIndex()
	idx.AddDescriptor("other.wit", mustParse(t, "other.wit", `
package ex:other;
interface i { use ex:app/handler.{x}; }
`))
	opts := quiet()
	opts.Index = idx
	desc := mustParse(t, "app.wit", `
package ex:app;
interface handler { use ex:other/i.{y}; }
`)
	r := Analyze(desc, nil, opts)
	if want := ids("ex:other"); !reflect.DeepEqual(r.Missing, want) {
		t.Errorf("Missing = %v, want %v", r.Missing, want)
	}
}

func TestReportJSON(t *testing.T) {
	r := Analyze(mustParse(t, "app.wit", appWIT), nil, quiet())
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"analyzed_descriptor", "missing", "suggested_fixes", "available_packages"} {
		if _, ok := m[key]; !ok {
			t.Errorf("JSON lacks %q: %s", key, data)
		}
	}
	if got := m["missing"].([]any)[0]; got != "wasi:http@0.2.0" {
		t.Errorf("missing[0] = %v", got)
	}
}

func TestScanWorkspace(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("wit/http/types.wit", httpWIT)
	write("wit/http/BUILD.bazel", `
load("@rules_wasm_component//wit:defs.bzl", "wit_library")

wit_library(
    name = "types",
    srcs = ["types.wit"],
    package_name = "wasi:http@0.2.0",
)

wit_library(
    name = "no_package",
    srcs = glob(["*.wit"]),
)
`)
	write("BUILD", `wit_library(name = "root", package_name = "ex:root")`)
	write("broken.wit", `package ;`)
	write(".git/ignored.wit", httpWIT)
	write("bazel-out/gen.wit", httpWIT)

	idx, err := ScanWorkspace(root)
	if err != nil {
		t.Fatalf("ScanWorkspace: %v", err)
	}
	var targets []string
	for _, p := range idx.All() {
		if p.Target != "" {
			targets = append(targets, p.Target)
		}
	}
	if want := []string{"//:root", "//wit/http:types"}; !slices.Equal(targets, want) {
		t.Errorf("targets = %v, want %v", targets, want)
	}
	if idx.Len() != 3 {
		t.Errorf("Len = %d, want 3 (one descriptor, two targets)", idx.Len())
	}
	if !slices.Equal(idx.Skipped, []string{"broken.wit"}) {
		t.Errorf("Skipped = %v", idx.Skipped)
	}
	if _, ok := idx.Descriptor(wit.MustParsePackageID("wasi:http")); !ok {
		t.Error("wasi:http descriptor not indexed")
	}
}

func TestScanWorkspaceMissingDir(t *testing.T) {
	if _, err := ScanWorkspace(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestAnalyzeAll(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "app.wit")
	if err := os.WriteFile(appPath, []byte(appWIT), 0o644); err != nil {
		t.Fatal(err)
	}
	jobs := []Job{
		{Path: appPath},
		{Descriptor: mustParse(t, "http.wit", httpWIT), Declared: ids("wasi:io")},
		{Path: appPath, Declared: ids("wasi:http", "wasi:logging")},
	}
	reports, err := AnalyzeAll(context.Background(), jobs, 2, quiet())
	if err != nil {
		t.Fatalf("AnalyzeAll: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports", len(reports))
	}
	if reports[0].Descriptor != appPath || len(reports[0].Missing) != 2 {
		t.Errorf("report 0 = %+v", reports[0])
	}
	if !reports[1].OK() || !reports[2].OK() {
		t.Errorf("reports 1, 2 should be complete: %+v %+v", reports[1], reports[2])
	}

	jobs = append(jobs, Job{Path: filepath.Join(dir, "missing.wit")})
	if _, err := AnalyzeAll(context.Background(), jobs, 0, quiet()); err == nil {
		t.Error("expected error for unreadable descriptor")
	}
}
