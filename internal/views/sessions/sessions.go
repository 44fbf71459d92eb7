// Package sessions renders the session list panel.
package sessions

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/opendeck/opendeck/internal/api"
	"github.com/opendeck/opendeck/internal/theme"
)

// Row pairs a session with its live status for rendering.
type Row struct {
	Session api.Session
	Status  string
}

// Model holds the session list state.
type Model struct {
	Rows     []Row
	Selected int
	Width    int
	Height   int
}

// New creates a session list model.
func New() Model {
	return Model{}
}

// MoveDown advances the selection, wrapping at the end.
func (m *Model) MoveDown() {
	if len(m.Rows) > 0 {
		m.Selected = (m.Selected + 1) % len(m.Rows)
	}
}

// MoveUp retreats the selection, wrapping at the start.
func (m *Model) MoveUp() {
	if len(m.Rows) > 0 {
		m.Selected = (m.Selected - 1 + len(m.Rows)) % len(m.Rows)
	}
}

// Current returns the selected session ID, or "" when the list is empty.
func (m Model) Current() string {
	if m.Selected < 0 || m.Selected >= len(m.Rows) {
		return ""
	}
	return m.Rows[m.Selected].Session.ID
}

// SetRows replaces the list, clamping the selection so it stays valid and,
// when possible, keeping it on the same session ID.
func (m *Model) SetRows(rows []Row) {
	prev := m.Current()
	m.Rows = rows
	if prev != "" {
		for i, r := range rows {
			if r.Session.ID == prev {
				m.Selected = i
				return
			}
		}
	}
	if m.Selected >= len(rows) {
		m.Selected = 0
	}
}

// View renders the session list.
func (m Model) View() string {
	width := m.Width
	if width < 24 {
		width = 24
	}

	lines := []string{theme.StyleHeader.Render("Sessions")}
	if len(m.Rows) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  none yet"))
	}
	for i, r := range m.Rows {
		prefix := "  "
		if i == m.Selected {
			prefix = "> "
		}
		glyph := lipgloss.NewStyle().
			Foreground(theme.StatusColor(r.Status)).
			Render(theme.StatusGlyph(r.Status))

		name := displayName(r.Session, width-6)
		nameStyle := lipgloss.NewStyle().Foreground(theme.ColorBright)
		if i != m.Selected {
			nameStyle = theme.StyleDimmed
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", prefix, glyph, nameStyle.Render(name)))
	}

	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	style := theme.StyleBorder.Width(width).Padding(0, 1)
	if m.Height > 2 {
		style = style.Height(m.Height - 2)
	}
	return style.Render(body)
}

// displayName returns the best label for a session, truncated to maxLen.
func displayName(s api.Session, maxLen int) string {
	name := s.Title
	if name == "" {
		name = s.Slug
	}
	if name == "" && len(s.ID) >= 8 {
		name = s.ID[:8]
	}
	if maxLen > 3 && len(name) > maxLen {
		name = name[:maxLen-1] + "…"
	}
	return name
}
