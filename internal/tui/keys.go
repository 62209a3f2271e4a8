package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings of the demo UI.
type keyMap struct {
	// Global
	Quit key.Binding
	Help key.Binding

	// Counter
	Increment key.Binding
	Decrement key.Binding
	Reset     key.Binding

	// Theme
	CycleTheme key.Binding

	// Cart
	AddA      key.Binding
	AddB      key.Binding
	AddC      key.Binding
	ClearCart key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Increment: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "increment"),
		),
		Decrement: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "decrement"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset counter"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "cycle theme"),
		),
		AddA: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "add product A"),
		),
		AddB: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "add product B"),
		),
		AddC: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "add product C"),
		),
		ClearCart: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear cart"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Increment, k.Decrement, k.CycleTheme, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Increment, k.Decrement, k.Reset},
		{k.CycleTheme},
		{k.AddA, k.AddB, k.AddC, k.ClearCart},
		{k.Help, k.Quit},
	}
}
