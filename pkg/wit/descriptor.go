package wit

import (
	"os"
	"slices"

	"github.com/matzehuels/witlink/pkg/errors"
)

// ItemKind classifies a world import or export.
type ItemKind int

const (
	// ItemInterface is a named interface, local ("handler") or qualified
	// ("wasi:http/types@0.2.0").
	ItemInterface ItemKind = iota
	// ItemFunc is a freestanding function ("run: func()").
	ItemFunc
	// ItemInline is an inline interface ("env: interface { ... }").
	ItemInline
)

// Item is a single world import or export.
type Item struct {
	// Name is the slot name: the qualified interface reference for
	// interfaces, or the declared label for functions and inline interfaces.
	Name string
	// Signature is the fully qualified interface for interface items and the
	// normalized function type for function items. Inline interfaces have
	// no signature.
	Signature string
	Kind      ItemKind
	Pos       Pos
}

// World is a named bundle of imports and exports.
type World struct {
	Name     string
	Imports  []Item
	Exports  []Item
	Includes []string
	Pos      Pos
}

// Use is a single cross-package reference found in the source.
type Use struct {
	Package   PackageID
	Interface string
	Pos       Pos
}

// Descriptor is the parsed form of one WIT document.
type Descriptor struct {
	// File is the name the descriptor was parsed from (used in locations).
	File string
	// Package is the declared package; zero when the document has none.
	Package PackageID
	// Interfaces is the sorted set of interface names defined here.
	Interfaces []string
	// Worlds are the declared worlds in source order.
	Worlds []World
	// References lists each foreign package once, in first-seen order.
	// This is the raw edge list consumed by closure analysis.
	References []PackageID
	// Uses keeps every foreign reference with its location.
	Uses []Use
}

// World returns the world with the given name.
func (d *Descriptor) World(name string) (*World, bool) {
	for i := range d.Worlds {
		if d.Worlds[i].Name == name {
			return &d.Worlds[i], true
		}
	}
	return nil, false
}

// DefaultWorld returns the only world of the descriptor, or the world named
// name when name is not empty.
func (d *Descriptor) DefaultWorld(name string) (*World, error) {
	if name != "" {
		if w, ok := d.World(name); ok {
			return w, nil
		}
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s: no world named %q", d.File, name)
	}
	switch len(d.Worlds) {
	case 0:
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s: descriptor declares no world", d.File)
	case 1:
		return &d.Worlds[0], nil
	default:
		names := make([]string, len(d.Worlds))
		for i, w := range d.Worlds {
			names[i] = w.Name
		}
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s: multiple worlds %v, select one explicitly", d.File, names)
	}
}

// HasInterface reports whether the descriptor defines the interface.
func (d *Descriptor) HasInterface(name string) bool {
	_, ok := slices.BinarySearch(d.Interfaces, name)
	return ok
}

// ParseFile reads and parses the descriptor at path.
func ParseFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read descriptor %s", path)
	}
	return Parse(path, data)
}

func malformed(pos Pos, format string, args ...any) *errors.Error {
	e := errors.New(errors.ErrCodeMalformedDescriptor, format, args...)
	e.Message = pos.String() + ": " + e.Message
	return e
}
