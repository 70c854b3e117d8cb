package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines keybindings for the response view
type keyMap struct {
	PrevQuestion key.Binding
	NextQuestion key.Binding
	Up           key.Binding
	Down         key.Binding
	Vote         key.Binding
	Filter       key.Binding
	Consider     key.Binding
	Jump         key.Binding
	Stats        key.Binding
	AutoRefresh  key.Binding
	Refresh      key.Binding
	Dismiss      key.Binding
	Quit         key.Binding
	Help         key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevQuestion, k.NextQuestion, k.Vote, k.Filter, k.Quit, k.Help}
}

// FullHelp returns keybindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevQuestion, k.NextQuestion, k.Jump, k.Up, k.Down},
		{k.Vote, k.Filter, k.Consider, k.Stats},
		{k.AutoRefresh, k.Refresh, k.Dismiss, k.Quit},
	}
}

var keys = keyMap{
	PrevQuestion: key.NewBinding(
		key.WithKeys("left", "h", "p"),
		key.WithHelp("←/h", "previous question"),
	),
	NextQuestion: key.NewBinding(
		key.WithKeys("right", "l", "n"),
		key.WithHelp("→/l", "next question"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Vote: key.NewBinding(
		key.WithKeys("v", "enter"),
		key.WithHelp("v", "vote"),
	),
	Filter: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "cycle filter"),
	),
	Consider: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "consider prompts"),
	),
	Jump: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "go to question"),
	),
	Stats: key.NewBinding(
		key.WithKeys("s", "tab"),
		key.WithHelp("s", "statistics"),
	),
	AutoRefresh: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "toggle auto-refresh"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "dismiss error"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more"),
	),
}
