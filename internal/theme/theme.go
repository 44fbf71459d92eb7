// Package theme provides the Lip Gloss color palette and reusable styles
// for the control panel. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Session status colors.
var (
	ColorRunning = lipgloss.Color("#2563eb")
	ColorIdle    = lipgloss.Color("#4b5563")
)

// Message role colors.
var (
	ColorUser      = lipgloss.Color("#22c55e")
	ColorAssistant = lipgloss.Color("#a855f7")
	ColorRole      = lipgloss.Color("#9ca3af")
)

// Provider colors for the model badge.
var (
	ColorAnthropic = lipgloss.Color("#d97706")
	ColorOpenAI    = lipgloss.Color("#10b981")
	ColorGoogle    = lipgloss.Color("#4285f4")
	ColorProvider  = lipgloss.Color("#9ca3af")
)

// Todo status colors.
var (
	ColorTodoPending    = lipgloss.Color("#6b7280")
	ColorTodoInProgress = lipgloss.Color("#d97706")
	ColorTodoCompleted  = lipgloss.Color("#16a34a")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// StatusColor returns the color for a session status string.
func StatusColor(status string) lipgloss.Color {
	if status == "running" {
		return ColorRunning
	}
	return ColorIdle
}

// StatusGlyph returns a glyph for a session status string.
func StatusGlyph(status string) string {
	if status == "running" {
		return "●"
	}
	return "○"
}

// RoleColor returns the color for a message role.
func RoleColor(role string) lipgloss.Color {
	switch role {
	case "user":
		return ColorUser
	case "assistant":
		return ColorAssistant
	default:
		return ColorRole
	}
}

// ProviderColor returns the badge color for a provider ID.
func ProviderColor(providerID string) lipgloss.Color {
	switch {
	case strings.Contains(providerID, "anthropic"):
		return ColorAnthropic
	case strings.Contains(providerID, "openai"):
		return ColorOpenAI
	case strings.Contains(providerID, "google"):
		return ColorGoogle
	default:
		return ColorProvider
	}
}

// TodoColor returns the color for a todo status.
func TodoColor(status string) lipgloss.Color {
	switch status {
	case "in_progress":
		return ColorTodoInProgress
	case "completed":
		return ColorTodoCompleted
	default:
		return ColorTodoPending
	}
}

// TodoGlyph returns a checkbox glyph for a todo status.
func TodoGlyph(status string) string {
	switch status {
	case "in_progress":
		return "◐"
	case "completed":
		return "✓"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)
)
