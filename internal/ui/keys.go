package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit       key.Binding
	Select     key.Binding
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Home       key.Binding
	End        key.Binding
	Clear      key.Binding
	DeleteWord key.Binding
	Copy       key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "resume")),
	Up:         key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑↓", "move")),
	Down:       key.NewBinding(key.WithKeys("down", "ctrl+n")),
	PageUp:     key.NewBinding(key.WithKeys("pgup")),
	PageDown:   key.NewBinding(key.WithKeys("pgdown")),
	Home:       key.NewBinding(key.WithKeys("home")),
	End:        key.NewBinding(key.WithKeys("end")),
	Clear:      key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("^u", "clear")),
	DeleteWord: key.NewBinding(key.WithKeys("ctrl+w")),
	Copy:       key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("^y", "copy command")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Up, k.Clear, k.Copy, k.Quit}
}
