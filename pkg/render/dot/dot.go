package dot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/link"
	"github.com/matzehuels/witlink/pkg/registry"
	"github.com/matzehuels/witlink/pkg/render"
)

// environmentNode collects passthrough imports.
const environmentNode = "(environment)"

// Options configures diagram generation.
type Options struct {
	// Detailed adds the package identity, profile and binary source to
	// each label. When false, only the instance name is shown.
	Detailed bool
	// Passthrough draws imports left to the runtime as edges from an
	// environment node.
	Passthrough bool
}

// ToDOT converts g to Graphviz DOT source. Nodes appear in script order
// and edges in [link.Graph.Edges] order, so equal graphs give equal text.
func ToDOT(g *link.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, in := range g.Instances {
		attrs := []string{fmt.Sprintf("label=%q", label(in, opts.Detailed))}
		if in.Name == g.Main {
			attrs = append(attrs, "peripheries=2")
		}
		if in.Handle.Source == registry.SourceOverride {
			attrs = append(attrs, "fillcolor=lightyellow")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", in.Name, strings.Join(attrs, ", "))
	}

	var env []string
	if opts.Passthrough {
		for _, in := range g.Instances {
			var names []string
			for _, b := range in.Bindings {
				if b.Status == link.Passthrough {
					names = append(names, b.Import.Name)
				}
			}
			if len(names) > 0 {
				env = append(env, fmt.Sprintf("  %q -> %q [label=%q, style=dotted];\n",
					environmentNode, in.Name, strings.Join(names, "\n")))
			}
		}
		if len(env) > 0 {
			fmt.Fprintf(&buf, "  %q [shape=ellipse, style=dashed, fillcolor=none];\n", environmentNode)
		}
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		attrs := []string{fmt.Sprintf("label=%q", edgeLabel(e))}
		if e.Tier == link.TierOverride {
			attrs = append(attrs, "style=dashed")
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Provider, e.Consumer, strings.Join(attrs, ", "))
	}
	for _, line := range env {
		buf.WriteString(line)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func label(in *link.Instance, detailed bool) string {
	if !detailed {
		return in.Name
	}
	parts := []string{in.Name, in.Package.String(), "profile: " + string(in.Profile)}
	if in.Handle.Source != "" {
		parts = append(parts, "source: "+string(in.Handle.Source))
	}
	return strings.Join(parts, "\n")
}

func edgeLabel(e link.Edge) string {
	if e.Import == e.Export {
		return e.Import
	}
	return e.Import + " <- " + e.Export
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the Graphviz svg header with one whose
// viewBox starts at the origin and whose size matches it.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}

// Render produces g in format: "dot", "svg", "pdf" or "png".
func Render(ctx context.Context, g *link.Graph, format string, opts Options) ([]byte, error) {
	src := ToDOT(g, opts)
	if format == "dot" {
		return []byte(src), nil
	}
	switch format {
	case "svg", "pdf", "png":
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unsupported graph format %q", format)
	}
	svg, err := RenderSVG(ctx, src)
	if err != nil {
		return nil, err
	}
	switch format {
	case "pdf":
		return render.ToPDF(ctx, svg)
	case "png":
		return render.ToPNG(ctx, svg, 2.0)
	}
	return svg, nil
}

// FormatOf returns the output format implied by path's extension.
func FormatOf(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "dot", "gv":
		return "dot", nil
	case "svg", "pdf", "png":
		return ext, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "cannot infer graph format from %q (use .dot, .svg, .pdf or .png)", path)
}

// WriteFile renders g into path, choosing the format from its extension.
func WriteFile(ctx context.Context, path string, g *link.Graph, opts Options) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Render(ctx, g, format, opts)
	if err != nil {
		return errors.Annotate(err, "render graph")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
