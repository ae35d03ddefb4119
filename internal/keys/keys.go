package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding

	// Notification panel
	Notifications key.Binding
	MarkAllRead   key.Binding
	ClearAll      key.Binding
	EnableAlerts  key.Binding
	SampleAlerts  key.Binding

	// Ticket actions
	NewTicket  key.Binding
	Comment    key.Binding
	Transition key.Binding

	// Status filter
	CycleFilter key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Notifications: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "notifications"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark all read"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear all"),
		),
		EnableAlerts: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "enable desktop alerts"),
		),
		SampleAlerts: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "demo notifications"),
		),
		NewTicket: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "new ticket"),
		),
		Comment: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "comment"),
		),
		Transition: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "change status"),
		),
		CycleFilter: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "cycle status filter"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Notifications, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Notifications, k.MarkAllRead, k.ClearAll, k.EnableAlerts},
		{k.NewTicket, k.Comment, k.Transition, k.CycleFilter},
		{k.Refresh, k.SampleAlerts, k.Help},
	}
}
