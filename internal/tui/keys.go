package tui

import "github.com/charmbracelet/bubbles/key"

// BrowserKeyMap defines keybindings for the catalog and downloads panels.
type BrowserKeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Enter      key.Binding
	Back       key.Binding
	Select     key.Binding
	SwitchPane key.Binding
	Pause      key.Binding
	Delete     key.Binding
	Open       key.Binding
	Refresh    key.Binding
	MoreSlots  key.Binding
	LessSlots  key.Binding
	Cancel     key.Binding
	Quit       key.Binding
}

// LoginKeyMap defines keybindings for the login form.
type LoginKeyMap struct {
	Next   key.Binding
	Submit key.Binding
	Quit   key.Binding
}

// ConfirmKeyMap defines keybindings for the deletion confirmation modal.
type ConfirmKeyMap struct {
	DeleteFiles key.Binding
	RemoveOnly  key.Binding
	Remember    key.Binding
	Cancel      key.Binding
}

type KeyMap struct {
	Browser BrowserKeyMap
	Login   LoginKeyMap
	Confirm ConfirmKeyMap
}

var Keys = KeyMap{
	Browser: BrowserKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open/download"),
		),
		Back: key.NewBinding(
			key.WithKeys("backspace", "left"),
			key.WithHelp("←", "parent folder"),
		),
		Select: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "select"),
		),
		SwitchPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "x"),
			key.WithHelp("d", "delete selected"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open file"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh catalog"),
		),
		MoreSlots: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "more slots"),
		),
		LessSlots: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "fewer slots"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel drag"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	},
	Login: LoginKeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "sign in"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	},
	Confirm: ConfirmKeyMap{
		DeleteFiles: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete files"),
		),
		RemoveOnly: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "remove from list"),
		),
		Remember: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "remember choice"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "n"),
			key.WithHelp("esc", "cancel"),
		),
	},
}

func (k BrowserKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Select, k.Pause, k.Delete, k.Open, k.Refresh, k.MoreSlots, k.Quit}
}

func (k BrowserKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Back, k.SwitchPane},
		{k.Select, k.Pause, k.Delete, k.Open},
		{k.Refresh, k.MoreSlots, k.LessSlots, k.Quit},
	}
}
