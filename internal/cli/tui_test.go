package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/witlink/pkg/emit"
	"github.com/matzehuels/witlink/pkg/link"
)

func testManifest() *emit.Manifest {
	return &emit.Manifest{
		Main: "a",
		Instances: []emit.Instance{
			{Name: "k", PackageIdentity: "ex:kv", Profile: "release", Source: "local"},
			{Name: "a", PackageIdentity: "ex:app", Profile: "debug", Source: "local", Imports: []emit.Import{
				{Name: "wasi:clocks/wall-clock@0.2.0", Status: link.Passthrough, Tier: link.TierPassthrough},
				{Name: "store", Status: link.Resolved, Tier: link.TierExplicit, Provider: "k", Export: "keyvalue"},
			}},
		},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m tea.Model, keys ...string) tea.Model {
	for _, k := range keys {
		m, _ = m.Update(key(k))
	}
	return m
}

func TestInstanceListStartsOnMain(t *testing.T) {
	m := NewInstanceListModel(testManifest())
	if m.Cursor != 1 {
		t.Errorf("Cursor = %d, want the main instance", m.Cursor)
	}
	if !strings.Contains(m.View(), "[2/2]") {
		t.Errorf("View:\n%s", m.View())
	}
}

func TestInstanceListNavigation(t *testing.T) {
	m := press(NewInstanceListModel(testManifest()), "k", "k").(InstanceListModel)
	if m.Cursor != 0 {
		t.Errorf("Cursor = %d after up, want 0", m.Cursor)
	}
	m = press(m, "j", "j", "j").(InstanceListModel)
	if m.Cursor != 1 {
		t.Errorf("Cursor = %d after down, want 1", m.Cursor)
	}
}

func TestInstanceListFollowBinding(t *testing.T) {
	m := press(NewInstanceListModel(testManifest()), "enter").(InstanceListModel)
	if !m.Detail {
		t.Fatal("enter did not open the detail view")
	}
	if v := m.View(); !strings.Contains(v, "k.keyvalue") || !strings.Contains(v, "(environment)") {
		t.Errorf("detail view:\n%s", v)
	}

	// a passthrough binding has no provider to follow
	m = press(m, "enter").(InstanceListModel)
	if m.Cursor != 1 {
		t.Errorf("Cursor = %d, passthrough should not move", m.Cursor)
	}

	m = press(m, "j", "enter").(InstanceListModel)
	if m.Cursor != 0 || !m.Detail {
		t.Errorf("Cursor = %d Detail = %v, want provider k in detail view", m.Cursor, m.Detail)
	}
	if v := m.View(); !strings.Contains(v, "no imports") {
		t.Errorf("provider view:\n%s", v)
	}

	m = press(m, "esc").(InstanceListModel)
	if m.Detail {
		t.Error("esc did not close the detail view")
	}
}

func TestInstanceListQuit(t *testing.T) {
	_, cmd := NewInstanceListModel(testManifest()).Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}

	empty := NewInstanceListModel(&emit.Manifest{})
	if !strings.Contains(empty.View(), "no instances") {
		t.Errorf("empty view: %q", empty.View())
	}
}
