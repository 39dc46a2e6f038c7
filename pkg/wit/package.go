package wit

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/matzehuels/witlink/pkg/errors"
)

// PackageID identifies a WIT package. The zero value is the "no package"
// identity used by descriptors without a package declaration.
type PackageID struct {
	Namespace string
	Name      string
	Version   string // optional, without leading "v"
}

// ParsePackageID parses "ns:name" or "ns:name@version". A trailing
// "/interface" segment is accepted and dropped, so interface references
// such as "wasi:http/types@0.2.0" yield the package "wasi:http@0.2.0".
func ParsePackageID(s string) (PackageID, error) {
	id, _, err := ParseInterfaceRef(s)
	return id, err
}

// ParseInterfaceRef parses "ns:name[/iface][@version]" into the package
// identity and the interface name (empty when absent).
func ParseInterfaceRef(s string) (PackageID, string, error) {
	s = strings.TrimSpace(s)
	var version string
	if at := strings.LastIndex(s, "@"); at >= 0 {
		version = s[at+1:]
		s = s[:at]
		if err := ValidateVersion(version); err != nil {
			return PackageID{}, "", err
		}
	}

	var iface string
	if slash := strings.Index(s, "/"); slash >= 0 {
		iface = s[slash+1:]
		s = s[:slash]
		if iface == "" {
			return PackageID{}, "", errors.New(errors.ErrCodeInvalidInput, "empty interface name in %q", s)
		}
	}

	ns, name, ok := strings.Cut(s, ":")
	if !ok || ns == "" || name == "" || strings.Contains(name, ":") {
		return PackageID{}, "", errors.New(errors.ErrCodeInvalidInput, "invalid package %q (want namespace:name[@version])", s)
	}
	return PackageID{Namespace: ns, Name: name, Version: version}, iface, nil
}

// MustParsePackageID is like ParsePackageID but panics on error.
// It is intended for tests and package-level tables.
func MustParsePackageID(s string) PackageID {
	id, err := ParsePackageID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ValidateVersion reports whether v is a semantic version. A leading "v"
// is not required (WIT versions are written bare).
func ValidateVersion(v string) error {
	if v == "" {
		return errors.New(errors.ErrCodeInvalidInput, "empty version")
	}
	if !semver.IsValid("v" + strings.TrimPrefix(v, "v")) {
		return errors.New(errors.ErrCodeInvalidInput, "invalid semantic version %q", v)
	}
	return nil
}

// CompareVersions compares two bare versions with semver ordering.
// Empty versions sort before any concrete version.
func CompareVersions(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}
	return semver.Compare("v"+strings.TrimPrefix(a, "v"), "v"+strings.TrimPrefix(b, "v"))
}

// IsZero reports whether the identity is unset.
func (p PackageID) IsZero() bool { return p.Namespace == "" && p.Name == "" }

// Key returns "namespace:name", the version-less identity used for
// equality and override lookups.
func (p PackageID) Key() string {
	if p.IsZero() {
		return ""
	}
	return p.Namespace + ":" + p.Name
}

// String returns "namespace:name" or "namespace:name@version".
func (p PackageID) String() string {
	if p.Version == "" {
		return p.Key()
	}
	return p.Key() + "@" + p.Version
}

// Matches reports whether p and other denote the same package. Keys must
// be equal; versions are compared only when both are set.
func (p PackageID) Matches(other PackageID) bool {
	if p.Key() != other.Key() {
		return false
	}
	return p.Version == "" || other.Version == "" || p.Version == other.Version
}

// Interface returns the fully qualified interface reference
// "namespace:name/iface[@version]".
func (p PackageID) Interface(iface string) string {
	ref := fmt.Sprintf("%s/%s", p.Key(), iface)
	if p.Version != "" {
		ref += "@" + p.Version
	}
	return ref
}

// Compare orders identities by key, then by semantic version.
func (p PackageID) Compare(other PackageID) int {
	if c := strings.Compare(p.Key(), other.Key()); c != 0 {
		return c
	}
	return CompareVersions(p.Version, other.Version)
}

// MarshalText encodes the identity in its string form.
func (p PackageID) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses an identity written by MarshalText.
func (p *PackageID) UnmarshalText(b []byte) error {
	id, err := ParsePackageID(string(b))
	if err != nil {
		return err
	}
	*p = id
	return nil
}
