package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the panel.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Enter      key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Prompt     key.Binding
	Escape     key.Binding
	NewSession key.Binding
	Abort      key.Binding
	Refresh    key.Binding
	AllowOnce  key.Binding
	Always     key.Binding
	Reject     key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev session"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next session"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open session"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("ctrl+u", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("ctrl+d", "scroll down"),
		),
		Prompt: key.NewBinding(
			key.WithKeys("i", "tab"),
			key.WithHelp("i", "write prompt"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "new session"),
		),
		Abort: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "abort run"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		AllowOnce: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "allow once"),
		),
		Always: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "always allow"),
		),
		Reject: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "reject"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
