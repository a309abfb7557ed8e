package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Refresh    key.Binding

	// View switching
	ViewFeed          key.Binding
	ViewUsers         key.Binding
	ViewProfile       key.Binding
	ViewNotifications key.Binding
	ViewLogs          key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Actions
	Compose    key.Binding
	Follow     key.Binding
	Unfollow   key.Binding
	SwitchUser key.Binding
	MarkRead   key.Binding
	Delete     key.Binding

	// Input
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh view"),
		),

		ViewFeed: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Feed"),
		),
		ViewUsers: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Users"),
		),
		ViewProfile: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Profile"),
		),
		ViewNotifications: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "Notifications"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Client log"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		Compose: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "New post"),
		),
		Follow: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Follow user"),
		),
		Unfollow: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Unfollow user"),
		),
		SwitchUser: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Switch user"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Mark read"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Delete notification"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ViewFeed, k.ViewUsers, k.ViewProfile, k.ViewNotifications, k.ViewLogs, k.Tab},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Compose, k.Follow, k.Unfollow, k.SwitchUser, k.MarkRead, k.Delete},
		{k.Refresh, k.CycleTheme, k.Help, k.Quit},
	}
}
