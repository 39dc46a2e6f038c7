package registry

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/wit"
)

// ProfileID names a build variant of a component, e.g. "debug" or "release".
type ProfileID string

// DefaultProfile is used when neither the run nor the instance names one.
const DefaultProfile ProfileID = "release"

// Source records where an artifact binary came from.
type Source string

const (
	SourceLocal    Source = "local"
	SourceRemote   Source = "remote"
	SourceOverride Source = "override"
)

// Handle points at a component binary.
type Handle struct {
	Path   string `json:"path" toml:"path"`
	Source Source `json:"source" toml:"source"`
}

// IsZero reports whether the handle is unset.
func (h Handle) IsZero() bool { return h.Path == "" }

// Slot is one named import or export of a world.
//
// Name is how scripts refer to the slot. Signature is the fully qualified
// interface ("ns:pkg/iface@ver") or normalized function type when known, and
// empty otherwise.
type Slot struct {
	Name      string `json:"name" toml:"name"`
	Signature string `json:"signature,omitempty" toml:"signature,omitempty"`
}

// ParseSlot builds a slot from its textual form. A qualified interface
// reference ("ns:pkg/iface[@ver]") is its own signature; anything else is a
// plain name.
func ParseSlot(s string) Slot {
	s = strings.TrimSpace(s)
	if isQualified(s) {
		return Slot{Name: s, Signature: s}
	}
	return Slot{Name: s}
}

// ShortName returns the bare interface name of a qualified slot
// ("ns:pkg/iface@ver" -> "iface") or the name itself.
func (s Slot) ShortName() string {
	if !isQualified(s.Name) {
		return s.Name
	}
	_, iface, err := wit.ParseInterfaceRef(s.Name)
	if err != nil || iface == "" {
		return s.Name
	}
	return iface
}

// Satisfies reports whether the export slot s can be bound to the import
// slot imp. Names must denote the same slot (qualified names compare without
// version); when both sides carry a signature, signatures must agree with
// interface versions ignored.
func (s Slot) Satisfies(imp Slot) bool {
	if unversioned(s.Name) != unversioned(imp.Name) {
		return false
	}
	return s.SignatureMatches(imp)
}

// SignatureMatches compares signatures only, ignoring interface versions.
// A missing signature on either side matches anything.
func (s Slot) SignatureMatches(other Slot) bool {
	if s.Signature == "" || other.Signature == "" {
		return true
	}
	return unversioned(s.Signature) == unversioned(other.Signature)
}

func isQualified(s string) bool {
	colon := strings.Index(s, ":")
	slash := strings.Index(s, "/")
	return colon > 0 && slash > colon
}

func unversioned(s string) string {
	if !isQualified(s) {
		return s
	}
	if at := strings.LastIndex(s, "@"); at >= 0 {
		return s[:at]
	}
	return s
}

// World is the import/export surface of a component.
type World struct {
	Imports []Slot `json:"imports"`
	Exports []Slot `json:"exports"`
}

// Validate checks that import names and export names are each unique.
func (w World) Validate() error {
	if name, ok := firstDuplicate(w.Imports); ok {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate import %q", name)
	}
	if name, ok := firstDuplicate(w.Exports); ok {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate export %q", name)
	}
	return nil
}

func firstDuplicate(slots []Slot) (string, bool) {
	seen := make(map[string]bool, len(slots))
	for _, s := range slots {
		if seen[s.Name] {
			return s.Name, true
		}
		seen[s.Name] = true
	}
	return "", false
}

// Import finds an import slot by reference. See [World.Export].
func (w World) Import(ref string) (Slot, bool) { return findSlot(w.Imports, ref) }

// Export finds an export slot by reference: the exact slot name first, then
// the unversioned qualified name, then a unique slot whose bare interface
// name equals ref.
func (w World) Export(ref string) (Slot, bool) { return findSlot(w.Exports, ref) }

func findSlot(slots []Slot, ref string) (Slot, bool) {
	for _, s := range slots {
		if s.Name == ref {
			return s, true
		}
	}
	for _, s := range slots {
		if isQualified(ref) && unversioned(s.Name) == unversioned(ref) {
			return s, true
		}
	}
	var match Slot
	n := 0
	for _, s := range slots {
		if s.ShortName() == ref {
			match = s
			n++
		}
	}
	return match, n == 1
}

// WorldFromWIT converts a parsed WIT world into registry slots.
func WorldFromWIT(w *wit.World) World {
	out := World{
		Imports: make([]Slot, 0, len(w.Imports)),
		Exports: make([]Slot, 0, len(w.Exports)),
	}
	for _, it := range w.Imports {
		out.Imports = append(out.Imports, Slot{Name: it.Name, Signature: it.Signature})
	}
	for _, it := range w.Exports {
		out.Exports = append(out.Exports, Slot{Name: it.Name, Signature: it.Signature})
	}
	return out
}

// Artifact is a built component: its package identity, its world and the
// binary for each build profile.
type Artifact struct {
	Name     string
	Package  wit.PackageID
	World    World
	Profiles map[ProfileID]Handle
	// Primary is the profile used when the requested one is missing.
	// Empty means "derive it", see [Artifact.PrimaryProfile].
	Primary ProfileID
	// Remote marks artifacts whose binaries are obtained through a fetcher.
	Remote bool
}

// PrimaryProfile returns the explicit primary profile, else the only
// profile, else DefaultProfile when present, else the lexicographically
// first profile. It returns "" for an artifact without profiles.
func (a *Artifact) PrimaryProfile() ProfileID {
	if a.Primary != "" {
		return a.Primary
	}
	ids := a.ProfileIDs()
	switch {
	case len(ids) == 0:
		return ""
	case len(ids) == 1:
		return ids[0]
	}
	if _, ok := a.Profiles[DefaultProfile]; ok {
		return DefaultProfile
	}
	return ids[0]
}

// ProfileIDs returns the artifact's profiles in sorted order.
func (a *Artifact) ProfileIDs() []ProfileID {
	return slices.Sorted(maps.Keys(a.Profiles))
}

// Handle returns the binary for profile p.
func (a *Artifact) Handle(p ProfileID) (Handle, bool) {
	h, ok := a.Profiles[p]
	return h, ok
}

// Validate checks the artifact for registration.
func (a *Artifact) Validate() error {
	if err := errors.ValidateInstanceName(a.Name); err != nil {
		return err
	}
	if a.Package.IsZero() {
		return errors.New(errors.ErrCodeInvalidInput, "component %q has no package", a.Name).WithInstance(a.Name)
	}
	if err := a.World.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "component %q", a.Name).WithInstance(a.Name)
	}
	if len(a.Profiles) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "component %q has no binaries", a.Name).WithInstance(a.Name)
	}
	for id, h := range a.Profiles {
		if id == "" {
			return errors.New(errors.ErrCodeInvalidInput, "component %q has an empty profile name", a.Name).WithInstance(a.Name)
		}
		if err := errors.ValidateArtifactPath(h.Path); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "component %q profile %q", a.Name, id).WithInstance(a.Name)
		}
	}
	if a.Primary != "" {
		if _, ok := a.Profiles[a.Primary]; !ok {
			return errors.New(errors.ErrCodeInvalidInput, "component %q: primary profile %q has no binary", a.Name, a.Primary).WithInstance(a.Name)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (a *Artifact) Clone() *Artifact {
	c := *a
	c.World = World{
		Imports: slices.Clone(a.World.Imports),
		Exports: slices.Clone(a.World.Exports),
	}
	c.Profiles = maps.Clone(a.Profiles)
	return &c
}
