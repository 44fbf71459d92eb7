// Package transcript renders a session's message history with streamed
// parts, markdown-formatted inside a scrollable viewport.
package transcript

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/opendeck/opendeck/internal/api"
	"github.com/opendeck/opendeck/internal/state"
	"github.com/opendeck/opendeck/internal/theme"
)

// Entry is one message plus its parts, in transcript order.
type Entry struct {
	Message state.Message
	Parts   []api.Part
}

// Model holds the transcript state.
type Model struct {
	vp       viewport.Model
	renderer *glamour.TermRenderer
	width    int
	follow   bool
}

// New creates a transcript model. Rendering falls back to plain text until
// a renderer can be built for the current width.
func New() Model {
	return Model{
		vp:     viewport.New(0, 0),
		follow: true,
	}
}

// SetSize resizes the viewport and rebuilds the markdown renderer for the
// new wrap width.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.vp.Width = width
	m.vp.Height = height

	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.renderer = r
	}
}

// SetEntries replaces the transcript content. When following, the viewport
// stays pinned to the bottom so streaming output remains visible.
func (m *Model) SetEntries(entries []Entry) {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderEntry(e))
	}
	m.vp.SetContent(b.String())
	if m.follow {
		m.vp.GotoBottom()
	}
}

// ScrollUp moves the view up and stops following the stream.
func (m *Model) ScrollUp() {
	m.follow = false
	m.vp.LineUp(3)
}

// ScrollDown moves the view down, resuming follow at the bottom.
func (m *Model) ScrollDown() {
	m.vp.LineDown(3)
	if m.vp.AtBottom() {
		m.follow = true
	}
}

// View renders the transcript viewport.
func (m Model) View() string {
	return m.vp.View()
}

func (m Model) renderEntry(e Entry) string {
	info := e.Message.Info
	role := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.RoleColor(info.Role)).
		Render(strings.ToUpper(info.Role))

	header := role
	if info.ModelID != "" {
		badge := lipgloss.NewStyle().
			Foreground(theme.ProviderColor(info.ProviderID)).
			Render(info.ModelID)
		header += "  " + badge
	}
	if e.Message.Kind == state.MessagePlaceholder {
		header += "  " + theme.StyleDimmed.Render("…")
	}

	lines := []string{header}
	for _, p := range e.Parts {
		if s := m.renderPart(info.Role, p); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) == 1 && e.Message.Kind == state.MessagePlaceholder {
		lines = append(lines, theme.StyleDimmed.Render("  working..."))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPart(role string, p api.Part) string {
	switch p.Type {
	case api.PartText:
		if p.Text == "" {
			return ""
		}
		if role == "assistant" && m.renderer != nil {
			if out, err := m.renderer.Render(p.Text); err == nil {
				return strings.TrimRight(out, "\n")
			}
		}
		return p.Text
	case "tool":
		label := p.Tool
		if label == "" {
			label = "tool"
		}
		return theme.StyleDimmed.Render(fmt.Sprintf("  ⚙ %s", label))
	default:
		return ""
	}
}
