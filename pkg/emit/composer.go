package emit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/matzehuels/witlink/pkg/link"
)

// DefaultComposer is the composer executable used when none is configured.
const DefaultComposer = "wac"

// Request is one composer invocation.
type Request struct {
	// Script is the composition script text.
	Script string
	// Deps maps the packages the script instantiates to binaries.
	Deps []link.Dependency
	// Output is the path of the composed component.
	Output string
}

// Composer materializes a composed component. Implementations must not
// leave a partial Output behind on failure.
type Composer interface {
	Compose(ctx context.Context, req Request) error
	Name() string
}

// ToolError is a failed composer run.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Err)
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	if line := firstLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// ExecComposer runs the wac CLI:
//
//	wac compose --dep ns:name=path ... -o <output> <script.wac>
type ExecComposer struct {
	// Path is the executable; default DefaultComposer looked up in PATH.
	Path string
	// Args are extra arguments placed before the script path.
	Args []string
}

func (c ExecComposer) Name() string {
	if c.Path == "" {
		return DefaultComposer
	}
	return filepath.Base(c.Path)
}

// Compose writes the script next to the output and runs the composer. The
// composer writes to a temporary file that is renamed over Output only
// when it succeeds.
func (c ExecComposer) Compose(ctx context.Context, req Request) error {
	path := c.Path
	if path == "" {
		path = DefaultComposer
	}
	dir := filepath.Dir(req.Output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	scriptFile, err := os.CreateTemp(dir, ".compose-*.wac")
	if err != nil {
		return err
	}
	defer os.Remove(scriptFile.Name())
	if _, err := scriptFile.WriteString(req.Script); err != nil {
		scriptFile.Close()
		return err
	}
	if err := scriptFile.Close(); err != nil {
		return err
	}

	tmpOut := filepath.Join(dir, "."+filepath.Base(req.Output)+".partial")
	defer os.Remove(tmpOut)

	args := []string{"compose"}
	for _, d := range req.Deps {
		args = append(args, "--dep", d.Package+"="+d.Path)
	}
	args = append(args, "-o", tmpOut)
	args = append(args, c.Args...)
	args = append(args, scriptFile.Name())

	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		if ee, ok := err.(*exec.ExitError); ok {
			code = ee.ExitCode()
		}
		return &ToolError{Tool: c.Name(), ExitCode: code, Stderr: stderr.String(), Err: err}
	}
	if _, err := os.Stat(tmpOut); err != nil {
		return &ToolError{Tool: c.Name(), ExitCode: 0, Stderr: stderr.String(), Err: fmt.Errorf("no output written: %w", err)}
	}
	return os.Rename(tmpOut, req.Output)
}
