package profile

import (
	"testing"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/registry"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		inst string
		want registry.ProfileID
	}{
		{"builtin default", Selector{}, "a", "release"},
		{"run default", Selector{Default: "debug"}, "a", "debug"},
		{"per instance wins", Selector{Default: "debug", PerInstance: map[string]registry.ProfileID{"a": "opt"}}, "a", "opt"},
		{"other instance uses default", Selector{Default: "debug", PerInstance: map[string]registry.ProfileID{"a": "opt"}}, "b", "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.Resolve(tt.inst); got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectFallback(t *testing.T) {
	a := &registry.Artifact{
		Name:     "backend",
		Profiles: map[registry.ProfileID]registry.Handle{"release": {Path: "/r.wasm"}},
	}
	sel, err := Selector{Default: "debug"}.Select("b", a)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Handle.Path != "/r.wasm" || sel.Profile != "release" || sel.Requested != "debug" {
		t.Errorf("Selection = %+v", sel)
	}
	if sel.Warning == nil || sel.Warning.Code != errors.WarnProfileFallback || sel.Warning.Instance != "b" {
		t.Errorf("Warning = %+v, want PROFILE_FALLBACK for b", sel.Warning)
	}
}

func TestSelectExact(t *testing.T) {
	a := &registry.Artifact{
		Name: "backend",
		Profiles: map[registry.ProfileID]registry.Handle{
			"release": {Path: "/r.wasm"},
			"debug":   {Path: "/d.wasm"},
		},
	}
	sel, err := Selector{Default: "debug"}.Select("b", a)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Handle.Path != "/d.wasm" || sel.Warning != nil {
		t.Errorf("Selection = %+v", sel)
	}
}

func TestSelectNoBinary(t *testing.T) {
	a := &registry.Artifact{Name: "empty"}
	if _, err := (Selector{}).Select("e", a); err == nil {
		t.Error("expected error for artifact without binaries")
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"a=debug", " b = release "})
	if err != nil {
		t.Fatal(err)
	}
	if got["a"] != "debug" || got["b"] != "release" {
		t.Errorf("got %v", got)
	}

	for _, bad := range [][]string{{"nope"}, {"=x"}, {"a="}, {"a=x", "a=y"}} {
		if _, err := ParseAssignments(bad); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("ParseAssignments(%v) = %v, want INVALID_INPUT", bad, err)
		}
	}

	s := Selector{Default: "debug"}.With(got)
	if s.Resolve("a") != "debug" || s.Resolve("b") != "release" || s.Resolve("c") != "debug" {
		t.Errorf("With produced %+v", s)
	}
}
