// Package statusbar renders the connection and engine summary bar.
package statusbar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opendeck/opendeck/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Sessions  int
	Running   int
	Pending   int

	// Managed engine stats, zero when connecting to an external engine.
	EnginePID int
	EngineRSS uint64
	EngineCPU float64

	Err   string
	Width int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	counts := fmt.Sprintf("%d sessions  %d running", m.Sessions, m.Running)

	parts := []string{connStr, counts}
	if m.Pending > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(
			fmt.Sprintf("%d permission(s) pending", m.Pending),
		))
	}
	if m.EnginePID != 0 {
		parts = append(parts, theme.StyleDimmed.Render(
			fmt.Sprintf("engine pid %d  %s  %.1f%% cpu", m.EnginePID, formatBytes(m.EngineRSS), m.EngineCPU),
		))
	}
	if m.Err != "" {
		parts = append(parts, theme.StyleError.Render(m.Err))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := strings.Join(parts, sep)

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func formatBytes(b uint64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
