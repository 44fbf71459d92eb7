package app

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opendeck/opendeck/internal/api"
	"github.com/opendeck/opendeck/internal/state"
)

func newTestModel() *Model {
	store := state.NewStore()
	return New(nil, store, nil, nil, nil, nil, nil)
}

func resize(m *Model, w, h int) {
	m.Update(tea.WindowSizeMsg{Width: w, Height: h})
}

func TestViewBeforeFirstResize(t *testing.T) {
	m := newTestModel()
	if v := m.View(); !strings.Contains(v, "Initializing") {
		t.Errorf("View() = %q, want initializing placeholder", v)
	}
}

func TestSessionListRendersTitles(t *testing.T) {
	m := newTestModel()
	m.store.ReplaceSessions([]api.Session{
		{ID: "ses_a", Title: "fix the parser"},
		{ID: "ses_b", Title: "write docs"},
	})
	resize(m, 100, 30)

	v := m.View()
	if !strings.Contains(v, "fix the parser") {
		t.Error("first session title missing from view")
	}
	if !strings.Contains(v, "write docs") {
		t.Error("second session title missing from view")
	}
	if !strings.Contains(v, "2 sessions") {
		t.Error("session count missing from status bar")
	}
}

func TestNavigationMovesSelection(t *testing.T) {
	m := newTestModel()
	m.store.ReplaceSessions([]api.Session{
		{ID: "ses_a", Title: "a"},
		{ID: "ses_b", Title: "b"},
	})
	resize(m, 100, 30)

	if got := m.list.Current(); got != "ses_a" {
		t.Fatalf("initial selection = %q, want ses_a", got)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if got := m.list.Current(); got != "ses_b" {
		t.Errorf("after j, selection = %q, want ses_b", got)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if got := m.list.Current(); got != "ses_a" {
		t.Errorf("selection should wrap, got %q", got)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	if got := m.list.Current(); got != "ses_b" {
		t.Errorf("after k, selection = %q, want ses_b", got)
	}
}

func TestSelectionErrorShownInStatusBar(t *testing.T) {
	m := newTestModel()
	resize(m, 100, 30)

	gen := m.store.BeginSelection("ses_a")
	m.store.FailSelection(gen, state.ErrConnectionLost)
	m.Update(storeChangedMsg{})

	if v := m.View(); !strings.Contains(v, "connection lost") {
		t.Error("selection error missing from status bar")
	}
}

func TestRunningCountTracksStatus(t *testing.T) {
	m := newTestModel()
	m.store.ReplaceSessions([]api.Session{
		{ID: "ses_a", Title: "a"},
		{ID: "ses_b", Title: "b"},
	})
	m.store.ApplyBatch([]state.Event{
		state.SessionStatusChanged{SessionID: "ses_a", Status: api.StatusRunning},
	})
	resize(m, 100, 30)

	if v := m.View(); !strings.Contains(v, "1 running") {
		t.Error("running count missing from status bar")
	}
}

func TestPermissionOverlayAppears(t *testing.T) {
	m := newTestModel()
	m.gate = state.NewGate(m.store, nil, nil)
	m.store.MergePermissions([]api.Permission{
		{ID: "perm_1", SessionID: "ses_a", Title: "Run rm -rf build"},
	})
	resize(m, 100, 30)

	v := m.View()
	if !strings.Contains(v, "Permission requested") {
		t.Error("permission overlay missing")
	}
	if !strings.Contains(v, "Run rm -rf build") {
		t.Error("permission title missing from overlay")
	}
}

func TestTodoPanelRenders(t *testing.T) {
	m := newTestModel()
	m.store.ReplaceSessions([]api.Session{{ID: "ses_a", Title: "a"}})
	gen := m.store.BeginSelection("ses_a")
	m.store.SetTodos(gen, "ses_a", []api.TodoItem{
		{ID: "1", Content: "write the parser", Status: "completed"},
		{ID: "2", Content: "wire the cli", Status: "in_progress"},
	})
	resize(m, 100, 30)

	v := m.View()
	if !strings.Contains(v, "Todos 1/2") {
		t.Error("todo progress header missing")
	}
	if !strings.Contains(v, "wire the cli") {
		t.Error("todo content missing")
	}
}

func TestQuitStopsTheLoop(t *testing.T) {
	m := newTestModel()
	resize(m, 100, 30)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit produced no command")
	}
	if m.ctx.Err() == nil {
		t.Error("quit did not cancel the root context")
	}
}
