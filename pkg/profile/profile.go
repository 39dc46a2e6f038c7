// Package profile chooses which build variant of each component instance is
// linked.
//
// The resolved profile of an instance is its per-instance override if any,
// else the run default, else [registry.DefaultProfile]. When the artifact has
// no binary for that profile the selector falls back to the artifact's
// primary binary and reports a PROFILE_FALLBACK warning instead of failing.
package profile

import (
	"maps"
	"strings"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/registry"
)

// Selector holds the profile choices for one run.
type Selector struct {
	// Default applies to every instance without an override.
	Default registry.ProfileID
	// PerInstance maps instance names to their profile.
	PerInstance map[string]registry.ProfileID
}

// Selection is the outcome of [Selector.Select].
type Selection struct {
	Handle    registry.Handle
	Requested registry.ProfileID
	Profile   registry.ProfileID
	// Warning is set when Profile differs from Requested.
	Warning *errors.Warning
}

// Resolve returns the profile requested for instance.
func (s Selector) Resolve(instance string) registry.ProfileID {
	if p, ok := s.PerInstance[instance]; ok && p != "" {
		return p
	}
	if s.Default != "" {
		return s.Default
	}
	return registry.DefaultProfile
}

// Select resolves the profile for instance and returns the matching binary
// of a. A missing variant falls back to the primary binary with a warning.
// It fails only when the artifact has no binary at all.
func (s Selector) Select(instance string, a *registry.Artifact) (Selection, error) {
	want := s.Resolve(instance)
	if h, ok := a.Handle(want); ok {
		return Selection{Handle: h, Requested: want, Profile: want}, nil
	}

	primary := a.PrimaryProfile()
	h, ok := a.Handle(primary)
	if !ok {
		return Selection{}, errors.New(errors.ErrCodeInvalidInput,
			"component %q has no binary for profile %q and no primary binary", a.Name, want).WithInstance(instance)
	}
	w := errors.NewWarning(errors.WarnProfileFallback, instance,
		"instance %q: component %q has no %q profile, using %q", instance, a.Name, want, primary)
	return Selection{Handle: h, Requested: want, Profile: primary, Warning: &w}, nil
}

// ParseAssignments parses "instance=profile" pairs as given on the command
// line into a PerInstance map.
func ParseAssignments(pairs []string) (map[string]registry.ProfileID, error) {
	out := make(map[string]registry.ProfileID, len(pairs))
	for _, p := range pairs {
		name, id, ok := strings.Cut(p, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "invalid profile assignment %q (want instance=profile)", p)
		}
		if prev, dup := out[name]; dup && prev != registry.ProfileID(id) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "conflicting profiles for %q: %q and %q", name, prev, id)
		}
		out[name] = registry.ProfileID(id)
	}
	return out, nil
}

// With returns a copy of s with additional per-instance assignments.
func (s Selector) With(assign map[string]registry.ProfileID) Selector {
	c := Selector{Default: s.Default, PerInstance: maps.Clone(s.PerInstance)}
	if c.PerInstance == nil {
		c.PerInstance = make(map[string]registry.ProfileID, len(assign))
	}
	maps.Copy(c.PerInstance, assign)
	return c
}
