package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/witlink/pkg/closure"
	"github.com/matzehuels/witlink/pkg/emit"
	"github.com/matzehuels/witlink/pkg/errors"
	"github.com/matzehuels/witlink/pkg/link"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printWarnings prints every accumulated warning.
func printWarnings(ws []errors.Warning) {
	for _, w := range ws {
		printWarning("%s", w.String())
	}
}

// printStats prints graph statistics on a single line.
func printStats(g *link.Graph) {
	parts := []string{
		fmt.Sprintf("%d instances", len(g.Instances)),
		fmt.Sprintf("%d wires", g.Count(link.Resolved)),
	}
	if n := g.Count(link.Passthrough); n > 0 {
		parts = append(parts, fmt.Sprintf("%d passthrough", n))
	}
	if g.Main != "" {
		parts = append(parts, "main "+g.Main)
	}
	fmt.Println("  " + StyleDim.Render(strings.Join(parts, " · ")))
}

// =============================================================================
// Tables
// =============================================================================

// renderManifestTable renders one row per instance of m.
func renderManifestTable(m *emit.Manifest) string {
	rows := make([][]string, 0, len(m.Instances))
	for _, in := range m.Instances {
		name := in.Name
		if in.Name == m.Main {
			name += " *"
		}
		rows = append(rows, []string{
			name,
			in.PackageIdentity,
			in.Profile,
			in.Source,
			importSummary(in.Imports),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Instance", "Package", "Profile", "Source", "Imports").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			return styleCell
		})
	return t.Render()
}

// importSummary renders bindings as "name<-provider.export" and passthrough
// imports as "name (env)".
func importSummary(imports []emit.Import) string {
	if len(imports) == 0 {
		return "-"
	}
	parts := make([]string, len(imports))
	for i, imp := range imports {
		switch imp.Status {
		case link.Resolved:
			parts[i] = imp.Name + " <- " + imp.Provider + "." + imp.Export
		default:
			parts[i] = imp.Name + " (env)"
		}
	}
	return strings.Join(parts, "\n")
}

// printReport prints a closure report.
func printReport(r *closure.Report) {
	if r.OK() {
		printSuccess("%s: all dependencies declared", r.Descriptor)
		return
	}
	printError("%s: %d missing dependencies", r.Descriptor, len(r.Missing))
	for _, s := range r.Suggestions {
		printDetail("%s", s)
	}
}
