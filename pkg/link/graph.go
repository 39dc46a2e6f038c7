package link

import (
	"fmt"
	"slices"

	"github.com/matzehuels/witlink/pkg/dag"
	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/script"
	"github.com/matzehuels/witlink/pkg/wit"
)

// Status is the resolution outcome of one import slot.
type Status int

const (
	// Unresolved is never present in a successfully resolved graph.
	Unresolved Status = iota
	// Resolved imports are bound to an export of another instance.
	Resolved
	// Passthrough imports are left for the runtime environment.
	Passthrough
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Passthrough:
		return "passthrough"
	default:
		return "unresolved"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "resolved":
		*s = Resolved
	case "passthrough":
		*s = Passthrough
	case "unresolved":
		*s = Unresolved
	default:
		return fmt.Errorf("unknown import status %q", b)
	}
	return nil
}

// Tier is the precedence level that decided a binding.
type Tier int

const (
	TierNone Tier = iota
	TierOverride
	TierExplicit
	TierPassthrough
)

func (t Tier) String() string {
	switch t {
	case TierOverride:
		return "override"
	case TierExplicit:
		return "explicit"
	case TierPassthrough:
		return "passthrough"
	default:
		return "none"
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	for _, c := range []Tier{TierNone, TierOverride, TierExplicit, TierPassthrough} {
		if c.String() == string(b) {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown binding tier %q", b)
}

// Binding is the resolution of one import slot of an instance.
type Binding struct {
	Import registry.Slot
	Status Status
	Tier   Tier
	// Provider and Export are set for Resolved bindings.
	Provider string
	Export   string
}

// Instance is a component instantiated by the script.
type Instance struct {
	Name      string
	Component string
	Package   wit.PackageID
	// Requested is the profile the selector asked for; Profile is the one
	// actually bound (they differ after a fallback).
	Requested   registry.ProfileID
	Profile     registry.ProfileID
	Handle      registry.Handle
	Passthrough bool
	// Exact is set when Handle came from a full-identity override.
	Exact    bool
	Bindings []Binding
	World    registry.World
}

// Binding returns the binding for an import slot name.
func (in *Instance) Binding(importName string) (Binding, bool) {
	for _, b := range in.Bindings {
		if b.Import.Name == importName {
			return b, true
		}
	}
	return Binding{}, false
}

// Edge is a resolved wire (consumer, import) -> (provider, export).
type Edge struct {
	Consumer string
	Import   string
	Provider string
	Export   string
	Tier     Tier
}

// Graph is a validated composition.
type Graph struct {
	// Package is the optional package header of the source script.
	Package string
	// Instances are in script order.
	Instances []*Instance
	Main      string
	Warnings  []errors.Warning

	arena *dag.DAG
	order []string
}

// Instance returns the instance with the given name.
func (g *Graph) Instance(name string) (*Instance, bool) {
	for _, in := range g.Instances {
		if in.Name == name {
			return in, true
		}
	}
	return nil, false
}

// Edges returns all resolved wires in script order, then import order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, in := range g.Instances {
		for _, b := range in.Bindings {
			if b.Status != Resolved {
				continue
			}
			out = append(out, Edge{
				Consumer: in.Name,
				Import:   b.Import.Name,
				Provider: b.Provider,
				Export:   b.Export,
				Tier:     b.Tier,
			})
		}
	}
	return out
}

// Order returns instance names with every provider before its consumers.
func (g *Graph) Order() []string { return slices.Clone(g.order) }

// DAG returns the instance graph. Edges run provider -> consumer.
func (g *Graph) DAG() *dag.DAG { return g.arena }

// Count returns how many imports have the given status.
func (g *Graph) Count(s Status) int {
	n := 0
	for _, in := range g.Instances {
		for _, b := range in.Bindings {
			if b.Status == s {
				n++
			}
		}
	}
	return n
}

// Dependency is a package -> artifact path pair handed to the composer.
type Dependency struct {
	Package string
	Path    string
}

// packageRef names the package an instance is instantiated from in
// composer input: "ns:name", or "ns:name@ver" when another instance binds
// the same key to a different artifact.
func (g *Graph) packageRef(in *Instance) string {
	for _, other := range g.Instances {
		if other.Package.Key() == in.Package.Key() && other.Handle.Path != in.Handle.Path {
			return in.Package.String()
		}
	}
	return in.Package.Key()
}

// Dependencies returns the deduplicated package -> path list, sorted by
// package.
func (g *Graph) Dependencies() []Dependency {
	seen := make(map[string]bool)
	var out []Dependency
	for _, in := range g.Instances {
		ref := g.packageRef(in)
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, Dependency{Package: ref, Path: in.Handle.Path})
	}
	slices.SortFunc(out, func(a, b Dependency) int {
		switch {
		case a.Package < b.Package:
			return -1
		case a.Package > b.Package:
			return 1
		}
		return 0
	})
	return out
}

// Script renders the resolved graph as an explicit script: instantiations
// in dependency order, every resolved import bound inline, "..." where
// passthrough imports remain, and the main export.
func (g *Graph) Script() *script.Script {
	s := &script.Script{Package: g.Package}
	for _, name := range g.order {
		in, _ := g.Instance(name)
		l := &script.Let{Instance: in.Name, Target: g.packageRef(in)}
		for _, b := range in.Bindings {
			switch b.Status {
			case Resolved:
				l.Bindings = append(l.Bindings, script.Binding{
					Import:   b.Import.Name,
					Provider: b.Provider,
					Export:   b.Export,
				})
			case Passthrough:
				l.Passthrough = true
			}
		}
		s.Lets = append(s.Lets, l)
	}
	if g.Main != "" {
		s.Export = &script.Export{Instance: g.Main, As: script.MainExport}
	}
	return s
}
