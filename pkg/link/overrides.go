package link

import (
	"slices"
	"strings"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/wit"
)

// OverrideTable maps packages to artifacts that must be used for them,
// regardless of what the registry holds. Keys are package names without a
// version ("foo" or "ns:foo"); full identities ("ns:foo@1.0.0") are also
// accepted and apply only to that exact version.
//
// The zero value is an empty table.
type OverrideTable struct {
	entries map[string]registry.Handle
}

// Override is the outcome of [OverrideTable.Lookup].
type Override struct {
	Key    string
	Handle registry.Handle
	// Exact is set when the key was a full identity.
	Exact bool
}

// NewOverrideTable builds a table from key -> path pairs.
func NewOverrideTable(m map[string]string) (OverrideTable, error) {
	t := OverrideTable{entries: make(map[string]registry.Handle, len(m))}
	for k, path := range m {
		if err := t.Set(k, path); err != nil {
			return OverrideTable{}, err
		}
	}
	return t, nil
}

// ParseOverrides parses "name=path" pairs as given on the command line.
func ParseOverrides(pairs []string) (OverrideTable, error) {
	t := OverrideTable{entries: make(map[string]registry.Handle, len(pairs))}
	for _, p := range pairs {
		k, path, ok := strings.Cut(p, "=")
		if !ok {
			return OverrideTable{}, errors.New(errors.ErrCodeInvalidInput, "invalid override %q (want name=path)", p)
		}
		if err := t.Set(k, path); err != nil {
			return OverrideTable{}, err
		}
	}
	return t, nil
}

// Set adds or replaces an entry.
func (t *OverrideTable) Set(key, path string) error {
	key, path = strings.TrimSpace(key), strings.TrimSpace(path)
	if key == "" {
		return errors.New(errors.ErrCodeInvalidInput, "override with empty package name")
	}
	if strings.Contains(key, "/") {
		return errors.New(errors.ErrCodeInvalidInput, "override key %q names an interface, want a package", key)
	}
	if strings.Contains(key, "@") {
		if _, err := wit.ParsePackageID(key); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "override %q", key)
		}
	}
	if err := errors.ValidateArtifactPath(path); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "override %q", key)
	}
	if t.entries == nil {
		t.entries = make(map[string]registry.Handle)
	}
	t.entries[key] = registry.Handle{Path: path, Source: registry.SourceOverride}
	return nil
}

// Merge returns a table holding the entries of t and other; other wins on
// equal keys.
func (t OverrideTable) Merge(other OverrideTable) OverrideTable {
	out := OverrideTable{entries: make(map[string]registry.Handle, len(t.entries)+len(other.entries))}
	for k, h := range t.entries {
		out.entries[k] = h
	}
	for k, h := range other.entries {
		out.entries[k] = h
	}
	return out
}

// Lookup finds the override for pkg. The exact identity wins over the
// "ns:name" key, which wins over the bare name.
func (t OverrideTable) Lookup(pkg wit.PackageID) (Override, bool) {
	if len(t.entries) == 0 || pkg.IsZero() {
		return Override{}, false
	}
	if pkg.Version != "" {
		if h, ok := t.entries[pkg.String()]; ok {
			return Override{Key: pkg.String(), Handle: h, Exact: true}, true
		}
	}
	for _, k := range []string{pkg.Key(), pkg.Name} {
		if h, ok := t.entries[k]; ok {
			return Override{Key: k, Handle: h}, true
		}
	}
	return Override{}, false
}

// Covers reports whether pkg has an override.
func (t OverrideTable) Covers(pkg wit.PackageID) bool {
	_, ok := t.Lookup(pkg)
	return ok
}

// Len returns the number of entries.
func (t OverrideTable) Len() int { return len(t.entries) }

// Keys returns the keys in sorted order.
func (t OverrideTable) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
