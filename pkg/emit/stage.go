package emit

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/link"
)

// StageOptions configures StageDeps.
type StageOptions struct {
	// Copy copies binaries instead of symlinking them.
	Copy bool
}

type stagedFile struct {
	Components []stagedComponent `toml:"component"`
}

type stagedComponent struct {
	Instance string `toml:"instance"`
	Package  string `toml:"package"`
	Profile  string `toml:"profile"`
	File     string `toml:"file"`
	Source   string `toml:"source"`
}

// StageDeps lays out the binaries of g in dir as <instance>.wasm, next to a
// components.toml listing them and a profile_info.txt recording which
// profile each instance was bound with. Symlinks are relative so the
// directory can move with the artifacts it points at. Existing entries
// with the same names are replaced.
func StageDeps(dir string, g *link.Graph, opts StageOptions) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "staging directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "create staging directory")
	}

	var manifest stagedFile
	var info strings.Builder
	for _, in := range g.Instances {
		file := in.Name + ".wasm"
		if err := errors.ValidateRelativePath(file); err != nil {
			return err
		}
		dest := filepath.Join(dir, file)
		if err := stage(in.Handle.Path, dest, opts.Copy); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "stage %s", in.Name).WithInstance(in.Name)
		}

		manifest.Components = append(manifest.Components, stagedComponent{
			Instance: in.Name,
			Package:  in.Package.String(),
			Profile:  string(in.Profile),
			File:     file,
			Source:   string(in.Handle.Source),
		})
		fmt.Fprintf(&info, "%s: %s", in.Name, in.Profile)
		if in.Requested != "" && in.Requested != in.Profile {
			fmt.Fprintf(&info, " (requested %s)", in.Requested)
		}
		info.WriteString("\n")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(manifest); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode components.toml")
	}
	if err := writeAtomic(filepath.Join(dir, "components.toml"), buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write components.toml")
	}
	if err := writeAtomic(filepath.Join(dir, "profile_info.txt"), []byte(info.String()), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write profile_info.txt")
	}
	return nil
}

func stage(src, dest string, copyFile bool) error {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return err
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	if copyFile {
		return copyTo(abs, dest)
	}
	rel, err := filepath.Rel(filepath.Dir(dest), abs)
	if err != nil {
		rel = abs
	}
	return os.Symlink(rel, dest)
}

func copyTo(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
