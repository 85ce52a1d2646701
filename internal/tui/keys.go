package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	ToggleMark key.Binding
	MarkOld    key.Binding
	MarkAll    key.Binding
	ClearMarks key.Binding
	Delete     key.Binding
	Sort       key.Binding
	Details    key.Binding
	Rescan     key.Binding
	StopScan   key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		ToggleMark: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "mark"),
		),
		MarkOld: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "mark old"),
		),
		MarkAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "mark all"),
		),
		ClearMarks: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "clear marks"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete marked"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort"),
		),
		Details: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "details"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		StopScan: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop scan"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleMark, k.MarkOld, k.Delete, k.Sort, k.Rescan, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.ToggleMark, k.MarkOld, k.MarkAll, k.ClearMarks},
		{k.Delete, k.Sort, k.Details, k.Rescan, k.StopScan, k.Help, k.Quit},
	}
}
