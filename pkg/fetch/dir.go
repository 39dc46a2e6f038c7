package fetch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/wit"
)

// DirFetcher serves packages from a local mirror laid out as
// <Root>/<namespace>/<name>/<version>.wasm.
type DirFetcher struct {
	Root string
}

// Fetch returns the mirrored binary. An unversioned package resolves to the
// highest version present.
func (d DirFetcher) Fetch(ctx context.Context, id wit.PackageID) (registry.Handle, error) {
	if err := ctx.Err(); err != nil {
		return registry.Handle{}, err
	}
	dir := filepath.Join(d.Root, id.Namespace, id.Name)
	version := id.Version
	if version == "" {
		v, err := latestVersion(dir)
		if err != nil {
			return registry.Handle{}, err
		}
		version = v
	}
	path := filepath.Join(dir, version+".wasm")
	info, err := os.Stat(path)
	if err != nil {
		return registry.Handle{}, err
	}
	if info.IsDir() {
		return registry.Handle{}, fmt.Errorf("%s is a directory", path)
	}
	return registry.Handle{Path: path, Source: registry.SourceRemote}, nil
}

func latestVersion(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var best string
	for _, e := range entries {
		v, ok := strings.CutSuffix(e.Name(), ".wasm")
		if !ok || e.IsDir() || wit.ValidateVersion(v) != nil {
			continue
		}
		if best == "" || wit.CompareVersions(v, best) > 0 {
			best = v
		}
	}
	if best == "" {
		return "", fmt.Errorf("no versions in %s: %w", dir, fs.ErrNotExist)
	}
	return best, nil
}
