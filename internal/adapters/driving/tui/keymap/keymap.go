// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	Quit   key.Binding
	Help   key.Binding
	Back   key.Binding
	Up     key.Binding
	Down   key.Binding
	Select key.Binding

	// Refresh reloads the ledger and run status.
	Refresh key.Binding

	// Filter cycles the status filter of the gap list.
	Filter key.Binding

	// RetrySemantic, RetryCode and RetryDoc force the next strategy of a gap.
	RetrySemantic key.Binding
	RetryCode     key.Binding
	RetryDoc      key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter"),
		),
		RetrySemantic: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "retry semantic"),
		),
		RetryCode: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "retry code scan"),
		),
		RetryDoc: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "retry doc scan"),
		),
	}
}

// ShortHelp returns a short list of keybindings for the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// ListHelp returns keybindings for the gap list.
func (k *KeyMap) ListHelp() []key.Binding {
	return []key.Binding{k.Select, k.Filter, k.Refresh, k.Quit}
}

// DetailHelp returns keybindings for the gap detail view.
func (k *KeyMap) DetailHelp() []key.Binding {
	return []key.Binding{k.RetrySemantic, k.RetryCode, k.RetryDoc, k.Back}
}

// FullHelp returns the full list of keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Filter, k.Refresh, k.Back},
		{k.RetrySemantic, k.RetryCode, k.RetryDoc},
		{k.Help, k.Quit},
	}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
