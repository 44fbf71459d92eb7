// Package permission renders the modal overlay for a pending permission
// request.
package permission

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opendeck/opendeck/internal/state"
	"github.com/opendeck/opendeck/internal/theme"
)

const panelWidth = 64

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorWarning).
			Padding(0, 1)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorWarning)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(10)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)
)

// Model holds the permission overlay state.
type Model struct {
	Request *state.PendingPermission
	Queued  int
	Busy    bool
}

// New creates a permission overlay for the given request.
func New(req *state.PendingPermission, queued int) Model {
	return Model{Request: req, Queued: queued}
}

// View renders the overlay. Returns an empty string when nothing is pending.
func (m Model) View() string {
	if m.Request == nil {
		return ""
	}
	r := m.Request

	var b strings.Builder
	title := "Permission requested"
	if m.Queued > 1 {
		title = fmt.Sprintf("Permission requested (%d queued)", m.Queued)
	}
	b.WriteString(styleTitle.Render(title) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	writeRow(&b, "Action", r.Title)
	if r.Type != "" {
		writeRow(&b, "Type", r.Type)
	}
	writeRow(&b, "Session", truncate(r.SessionID, 36))
	b.WriteString("\n")

	if m.Busy {
		b.WriteString(theme.StyleDimmed.Render("  sending reply..."))
	} else {
		b.WriteString(theme.StyleDimmed.Render("  y:allow once  a:always  n:reject"))
	}

	return stylePanel.Width(panelWidth).Render(b.String())
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label) + styleValue.Render(value) + "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
