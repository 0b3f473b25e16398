package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the interactive views.
type KeyMap struct {
	// Cancel abandons the wait for a running operation.
	Cancel key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c", "esc", "q"),
			key.WithHelp("esc", "cancel"),
		),
	}
}
