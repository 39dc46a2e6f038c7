package registry

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/wit"
)

// componentsFile is the TOML layout of a components file:
//
//	[overrides]
//	"example:backend" = "out/backend.wasm"
//
//	[[component]]
//	name = "frontend"
//	package = "example:frontend@1.0.0"
//	imports = ["api"]
//	wit = "wit/frontend.wit"
//	[component.profiles]
//	release = "out/frontend.wasm"
type componentsFile struct {
	Overrides  map[string]string `toml:"overrides"`
	Components []componentEntry  `toml:"component"`
}

type componentEntry struct {
	Name     string            `toml:"name"`
	Package  string            `toml:"package"`
	Imports  []string          `toml:"imports"`
	Exports  []string          `toml:"exports"`
	Profiles map[string]string `toml:"profiles"`
	Primary  string            `toml:"primary"`
	WIT      string            `toml:"wit"`
	World    string            `toml:"world"`
	Remote   bool              `toml:"remote"`
}

// File is a decoded components file. Paths are absolute or relative to
// the directory the file was loaded from.
type File struct {
	Components []*Artifact
	// Overrides maps a package name ("name" or "ns:name") or a full
	// identity ("ns:name@ver") to an artifact path.
	Overrides map[string]string
}

// LoadFile reads a components file from disk.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open components file")
	}
	defer f.Close()
	return Decode(f, filepath.Dir(path))
}

// Decode parses a components file. Relative binary and descriptor paths are
// resolved against baseDir. Unknown keys are rejected so typos surface
// instead of silently producing an empty component.
func Decode(r io.Reader, baseDir string) (*File, error) {
	var raw componentsFile
	md, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse components file")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown keys in components file: %s", strings.Join(keys, ", "))
	}

	out := &File{Overrides: make(map[string]string, len(raw.Overrides))}
	for key, path := range raw.Overrides {
		if strings.TrimSpace(key) == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "override with empty package name")
		}
		out.Overrides[key] = resolvePath(baseDir, path)
	}

	for i, e := range raw.Components {
		a, err := e.artifact(baseDir)
		if err != nil {
			return nil, errors.Annotate(err, "component #%d", i+1)
		}
		out.Components = append(out.Components, a)
	}
	return out, nil
}

func (e componentEntry) artifact(baseDir string) (*Artifact, error) {
	if err := errors.ValidateInstanceName(e.Name); err != nil {
		return nil, err
	}
	a := &Artifact{
		Name:     e.Name,
		Primary:  ProfileID(e.Primary),
		Remote:   e.Remote,
		Profiles: make(map[ProfileID]Handle, len(e.Profiles)),
	}

	if e.WIT != "" {
		desc, err := wit.ParseFile(resolvePath(baseDir, e.WIT))
		if err != nil {
			return nil, err
		}
		w, err := desc.DefaultWorld(e.World)
		if err != nil {
			return nil, err
		}
		a.Package = desc.Package
		a.World = WorldFromWIT(w)
	}

	if e.Package != "" {
		id, err := wit.ParsePackageID(e.Package)
		if err != nil {
			return nil, err
		}
		a.Package = id
	}
	if a.Package.IsZero() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "component %q has no package", e.Name)
	}
	if e.Remote && a.Package.Version == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "remote component %q needs a versioned package", e.Name)
	}

	for _, s := range e.Imports {
		a.World.Imports = append(a.World.Imports, ParseSlot(s))
	}
	for _, s := range e.Exports {
		a.World.Exports = append(a.World.Exports, ParseSlot(s))
	}
	if err := a.World.Validate(); err != nil {
		return nil, err
	}

	source := SourceLocal
	if e.Remote {
		source = SourceRemote
	}
	for id, path := range e.Profiles {
		a.Profiles[ProfileID(id)] = Handle{Path: resolvePath(baseDir, path), Source: source}
	}
	return a, nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Local returns the components whose binaries are already on disk.
func (f *File) Local() []*Artifact {
	var out []*Artifact
	for _, a := range f.Components {
		if !a.Remote {
			out = append(out, a)
		}
	}
	return out
}

// Remote returns the components that must be fetched.
func (f *File) Remote() []*Artifact {
	var out []*Artifact
	for _, a := range f.Components {
		if a.Remote {
			out = append(out, a)
		}
	}
	return out
}

// RegisterLocal registers every local component in file order.
func (f *File) RegisterLocal(r *Registry) error {
	for _, a := range f.Local() {
		if err := r.Register(a.Name, a); err != nil {
			return err
		}
	}
	return nil
}
