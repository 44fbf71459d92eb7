// Package prompt wraps the text input used to send messages to a session.
package prompt

import (
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/opendeck/opendeck/internal/theme"
)

// Model holds the prompt input state.
type Model struct {
	input   textarea.Model
	focused bool
}

// New creates an unfocused prompt input.
func New() Model {
	ta := textarea.New()
	ta.Placeholder = "Type a prompt, enter to send"
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	return Model{input: ta}
}

// Focus activates the input.
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	return m.input.Focus()
}

// Blur deactivates the input.
func (m *Model) Blur() {
	m.focused = false
	m.input.Blur()
}

// Focused reports whether the input has focus.
func (m Model) Focused() bool { return m.focused }

// Value returns the current text.
func (m Model) Value() string { return m.input.Value() }

// Reset clears the text.
func (m *Model) Reset() { m.input.Reset() }

// SetWidth resizes the input.
func (m *Model) SetWidth(width int) { m.input.SetWidth(width - 4) }

// Update forwards messages to the underlying textarea.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the input with a border that signals focus.
func (m Model) View() string {
	border := theme.ColorBorder
	if m.focused {
		border = theme.ColorHealthy
	}
	return theme.StyleBorder.BorderForeground(border).Render(m.input.View())
}
