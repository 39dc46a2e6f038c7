package closure

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/wit"
)

// Provider is something in the workspace that provides a WIT package: a
// descriptor file, or a build target that packages one.
type Provider struct {
	Package wit.PackageID `json:"package_name"`
	// File is relative to the workspace root.
	File string `json:"file_path"`
	// Target is the build label ("//dir:name"); empty for bare descriptors.
	Target     string   `json:"target,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
}

func compareProviders(a, b Provider) int {
	if c := a.Package.Compare(b.Package); c != 0 {
		return c
	}
	if c := strings.Compare(a.Target, b.Target); c != 0 {
		return c
	}
	return strings.Compare(a.File, b.File)
}

// Index maps packages to the descriptors and build targets that provide
// them. The zero value is not usable; use NewIndex or ScanWorkspace. A nil
// *Index is an empty index.
type Index struct {
	providers   []Provider
	descriptors map[string][]*wit.Descriptor // by package key
	// Skipped lists workspace files that could not be read or parsed.
	Skipped []string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{descriptors: make(map[string][]*wit.Descriptor)}
}

// AddDescriptor records a parsed descriptor. Descriptors without a package
// declaration are ignored.
func (x *Index) AddDescriptor(file string, d *wit.Descriptor) {
	if d.Package.IsZero() {
		return
	}
	key := d.Package.Key()
	x.descriptors[key] = append(x.descriptors[key], d)
	x.providers = append(x.providers, Provider{
		Package:    d.Package,
		File:       file,
		Interfaces: d.Interfaces,
	})
}

// AddTarget records a build target providing a package.
func (x *Index) AddTarget(p Provider) {
	x.providers = append(x.providers, p)
}

// Descriptor returns the descriptor for id. A versioned id matches only a
// descriptor of the same version; an unversioned id matches the highest
// version known.
func (x *Index) Descriptor(id wit.PackageID) (*wit.Descriptor, bool) {
	if x == nil {
		return nil, false
	}
	var best *wit.Descriptor
	for _, d := range x.descriptors[id.Key()] {
		if !d.Package.Matches(id) {
			continue
		}
		if best == nil || d.Package.Compare(best.Package) > 0 {
			best = d
		}
	}
	return best, best != nil
}

// Providers returns every provider whose package satisfies id.
func (x *Index) Providers(id wit.PackageID) []Provider {
	if x == nil {
		return nil
	}
	var out []Provider
	for _, p := range x.providers {
		if p.Package.Matches(id) {
			out = append(out, p)
		}
	}
	return out
}

// All returns every provider, sorted.
func (x *Index) All() []Provider {
	if x == nil {
		return nil
	}
	out := slices.Clone(x.providers)
	slices.SortFunc(out, compareProviders)
	return out
}

// Len returns the number of providers.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.providers)
}

// =============================================================================
// Workspace scanning
// =============================================================================

var (
	witLibraryCall = regexp.MustCompile(`wit_library\s*\(`)
	nameAttr       = regexp.MustCompile(`\bname\s*=\s*"([^"]+)"`)
	packageAttr    = regexp.MustCompile(`\bpackage_name\s*=\s*"([^"]+)"`)
)

// ScanWorkspace walks dir and indexes every .wit descriptor and every
// wit_library target declared in BUILD and BUILD.bazel files. Hidden
// directories and bazel output trees are skipped. Files that fail to parse
// are recorded in Skipped rather than failing the scan.
func ScanWorkspace(dir string) (*Index, error) {
	x := NewIndex()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			x.Skipped = append(x.Skipped, path)
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "bazel-")) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		rel = filepath.ToSlash(rel)

		switch {
		case strings.HasSuffix(name, ".wit"):
			desc, err := wit.ParseFile(path)
			if err != nil {
				x.Skipped = append(x.Skipped, rel)
				return nil
			}
			x.AddDescriptor(rel, desc)
		case name == "BUILD" || name == "BUILD.bazel":
			data, err := os.ReadFile(path)
			if err != nil {
				x.Skipped = append(x.Skipped, rel)
				return nil
			}
			for _, p := range parseBuildFile(rel, string(data)) {
				x.AddTarget(p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "scan workspace %s", dir)
	}
	return x, nil
}

// parseBuildFile extracts wit_library targets that declare a package_name.
// Attributes are read from the call's own argument list, so targets are
// never paired with another call's package.
func parseBuildFile(rel, content string) []Provider {
	pkgDir := filepath.ToSlash(filepath.Dir(rel))
	if pkgDir == "." {
		pkgDir = ""
	}
	var out []Provider
	for _, loc := range witLibraryCall.FindAllStringIndex(content, -1) {
		args := callArgs(content[loc[1]:])
		name := nameAttr.FindStringSubmatch(args)
		pkg := packageAttr.FindStringSubmatch(args)
		if name == nil || pkg == nil {
			continue
		}
		id, err := wit.ParsePackageID(pkg[1])
		if err != nil {
			continue
		}
		out = append(out, Provider{
			Package: id,
			File:    rel,
			Target:  "//" + pkgDir + ":" + name[1],
		})
	}
	return out
}

// callArgs returns s up to the parenthesis closing the call it starts in.
func callArgs(s string) string {
	depth := 1
	inString := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && inString:
			i++
		case c == '"':
			inString = !inString
		case inString:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return s[:i]
			}
		}
	}
	return s
}
