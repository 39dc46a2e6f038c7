package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/witlink/pkg/emit"
	"github.com/matzehuels/witlink/pkg/link"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// InstanceListModel - Interactive manifest browser
// =============================================================================

// InstanceListModel is the bubbletea model for browsing the instances of a
// manifest. The cursor selects an instance; enter opens its import
// bindings and follows a binding to its provider.
type InstanceListModel struct {
	Manifest *emit.Manifest
	Cursor   int
	Height   int
	Offset   int
	// Detail is set while the bindings of the selected instance are shown.
	Detail bool
	// ImportCursor selects a binding in the detail view.
	ImportCursor int
}

// NewInstanceListModel creates a browser positioned on the main instance.
func NewInstanceListModel(m *emit.Manifest) InstanceListModel {
	model := InstanceListModel{Manifest: m, Height: 15}
	if i := model.indexOf(m.Main); i >= 0 {
		model.Cursor = i
	}
	return model
}

func (m InstanceListModel) indexOf(name string) int {
	for i, in := range m.Manifest.Instances {
		if in.Name == name {
			return i
		}
	}
	return -1
}

func (m InstanceListModel) current() emit.Instance {
	return m.Manifest.Instances[m.Cursor]
}

func (m InstanceListModel) Init() tea.Cmd {
	return nil
}

func (m InstanceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if len(m.Manifest.Instances) == 0 {
		if k, ok := msg.(tea.KeyMsg); ok && (k.String() == "q" || k.String() == "ctrl+c" || k.String() == "esc") {
			return m, tea.Quit
		}
		return m, nil
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Detail {
			return m.updateDetail(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Manifest.Instances)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", "right", "l":
			m.Detail = true
			m.ImportCursor = 0
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m InstanceListModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	imports := m.current().Imports
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "left", "h", "backspace":
		m.Detail = false
	case "up", "k":
		if m.ImportCursor > 0 {
			m.ImportCursor--
		}
	case "down", "j":
		if m.ImportCursor < len(imports)-1 {
			m.ImportCursor++
		}
	case "enter":
		if m.ImportCursor >= len(imports) {
			break
		}
		imp := imports[m.ImportCursor]
		if imp.Status != link.Resolved {
			break
		}
		if i := m.indexOf(imp.Provider); i >= 0 {
			m.Cursor = i
			m.ImportCursor = 0
			if m.Cursor < m.Offset || m.Cursor >= m.Offset+m.Height {
				m.Offset = m.Cursor
			}
		}
	}
	return m, nil
}

func (m InstanceListModel) View() string {
	if len(m.Manifest.Instances) == 0 {
		return StyleDim.Render("manifest has no instances") + "\n"
	}
	if m.Detail {
		return m.detailView()
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Instances"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ bindings  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Manifest.Instances))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		in := m.Manifest.Instances[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		main := ""
		if in.Name == m.Manifest.Main {
			main = "main"
		}
		rows = append(rows, []string{cursor, in.Name, in.PackageIdentity, in.Profile, in.Source, main})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Instance", "Package", "Profile", "Source", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col >= 3 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Manifest.Instances))))
	if n := len(m.Manifest.Warnings); n > 0 {
		b.WriteString("  " + StyleWarning.Render(fmt.Sprintf("%d warnings", n)))
	}
	return b.String()
}

func (m InstanceListModel) detailView() string {
	in := m.current()
	var b strings.Builder
	b.WriteString(StyleTitle.Render(in.Name))
	b.WriteString("  " + listDimStyle.Render(in.PackageIdentity+" · "+in.Profile))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(in.ArtifactPath))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ go to provider  ← back  q quit"))
	b.WriteString("\n\n")

	if len(in.Imports) == 0 {
		b.WriteString(listDimStyle.Render("  no imports"))
		b.WriteString("\n")
	}
	for i, imp := range in.Imports {
		cursor := "  "
		if i == m.ImportCursor {
			cursor = "> "
		}
		var target string
		switch imp.Status {
		case link.Resolved:
			target = imp.Provider + "." + imp.Export
		default:
			target = "(environment)"
		}
		line := fmt.Sprintf("%s%-32s %s %-24s %s", cursor, imp.Name, iconArrow, target, listDimStyle.Render(imp.Tier.String()))
		if i == m.ImportCursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	var warnings []string
	for _, w := range m.Manifest.Warnings {
		if w.Instance == in.Name {
			warnings = append(warnings, w.String())
		}
	}
	if len(warnings) > 0 {
		b.WriteString("\n")
		for _, w := range warnings {
			b.WriteString(StyleWarning.Render(iconWarning+" "+w) + "\n")
		}
	}
	return b.String()
}
