package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	back     key.Binding
	download key.Binding
	favorite key.Binding
	refresh  key.Binding
	play     key.Binding
	rewind   key.Binding
	forward  key.Binding
	pause    key.Binding
	cancel   key.Binding
	next     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/play")),
		back:     key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		download: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
		favorite: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "favorite")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		play:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		rewind:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "-15s")),
		forward:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "+15s")),
		pause:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
		cancel:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel")),
		next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.download, k.favorite, k.refresh},
		{k.play, k.rewind, k.forward},
		{k.pause, k.cancel, k.next, k.quit},
	}
}
