// Package todos renders the session todo panel.
package todos

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/opendeck/opendeck/internal/api"
	"github.com/opendeck/opendeck/internal/theme"
)

// Model holds the todo panel state.
type Model struct {
	Items []api.TodoItem
	Width int
}

// New creates a todo panel model.
func New() Model {
	return Model{}
}

// View renders the todo panel, or an empty string when there is nothing
// to show.
func (m Model) View() string {
	if len(m.Items) == 0 {
		return ""
	}
	width := m.Width
	if width < 24 {
		width = 24
	}

	done := 0
	for _, it := range m.Items {
		if it.Status == "completed" {
			done++
		}
	}

	lines := []string{theme.StyleHeader.Render(fmt.Sprintf("Todos %d/%d", done, len(m.Items)))}
	for _, it := range m.Items {
		glyph := lipgloss.NewStyle().
			Foreground(theme.TodoColor(it.Status)).
			Render(theme.TodoGlyph(it.Status))

		content := it.Content
		if max := width - 6; max > 3 && len(content) > max {
			content = content[:max-1] + "…"
		}
		style := lipgloss.NewStyle().Foreground(theme.ColorBright)
		if it.Status == "completed" {
			style = theme.StyleDimmed.Strikethrough(true)
		}
		lines = append(lines, "  "+glyph+" "+style.Render(content))
	}

	return theme.StyleBorder.Width(width).Padding(0, 1).Render(
		lipgloss.JoinVertical(lipgloss.Left, lines...),
	)
}
