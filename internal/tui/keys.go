package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the inspector key bindings
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Filter     key.Binding
	Escape     key.Binding
	Accept     key.Binding
	Invalidate key.Binding
	ClearAll   key.Binding
	Refresh    key.Binding
	Quit       key.Binding

	// Confirmations
	Confirm key.Binding
	Deny    key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		Accept: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply filter"),
		),
		Invalidate: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "invalidate"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "clear all"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "yes"),
		),
		Deny: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n", "no"),
		),
	}
}

// footerBindings are shown in the footer, in order
func (k KeyMap) footerBindings() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Filter, k.Invalidate, k.ClearAll, k.Refresh, k.Quit}
}
