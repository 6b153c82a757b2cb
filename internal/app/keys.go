package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Toggle   key.Binding
	Tab      key.Binding
	Images   key.Binding
	Videos   key.Binding
	Audio    key.Binding
	SeekBack key.Binding
	SeekFwd  key.Binding
	Stop     key.Binding
	Reload   key.Binding
	Debug    key.Binding
	Escape   key.Binding
	Quit     key.Binding

	// Viewer.
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	PanLeft   key.Binding
	PanRight  key.Binding
	PanUp     key.Binding
	PanDown   key.Binding
	Fit       key.Binding
	NextImage key.Binding
	PrevImage key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev item"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next item"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open / play"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play / pause"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "cycle tab"),
		),
		Images: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "images"),
		),
		Videos: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "videos"),
		),
		Audio: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "audio"),
		),
		SeekBack: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "back 10s"),
		),
		SeekFwd: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "forward 10s"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "event log"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		ZoomIn: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "zoom in"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "zoom out"),
		),
		PanLeft: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "pan left"),
		),
		PanRight: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "pan right"),
		),
		PanUp: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "pan up"),
		),
		PanDown: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "pan down"),
		),
		Fit: key.NewBinding(
			key.WithKeys("0", "f"),
			key.WithHelp("0", "fit"),
		),
		NextImage: key.NewBinding(
			key.WithKeys("n", "pgdown"),
			key.WithHelp("n", "next image"),
		),
		PrevImage: key.NewBinding(
			key.WithKeys("p", "pgup"),
			key.WithHelp("p", "prev image"),
		),
	}
}
