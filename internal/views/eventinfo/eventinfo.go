// Package eventinfo renders the event header: title, date, and the markdown
// description rendered with Glamour.
package eventinfo

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"k8s.io/klog/v2"

	"github.com/journal/mediadeck/internal/media"
	"github.com/journal/mediadeck/internal/theme"
)

var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleMeta = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)
)

// Model holds the event and its rendered description. Rendering is cached
// per width since Glamour is comparatively slow.
type Model struct {
	Event *media.Event

	width    int
	rendered string
}

// New creates an empty event header.
func New() Model {
	return Model{}
}

// SetEvent replaces the event and re-renders the description.
func (m *Model) SetEvent(ev *media.Event) {
	m.Event = ev
	m.render()
}

// SetWidth re-renders the description when the width changes.
func (m *Model) SetWidth(width int) {
	if width == m.width {
		return
	}
	m.width = width
	m.render()
}

func (m *Model) render() {
	m.rendered = ""
	if m.Event == nil || strings.TrimSpace(m.Event.Description) == "" {
		return
	}
	out, err := Render(m.Event.Description, m.width)
	if err != nil {
		klog.Warningf("render description of %s: %v", m.Event.ID, err)
		m.rendered = m.Event.Description
		return
	}
	m.rendered = strings.Trim(out, "\n")
}

// Render renders markdown for a terminal of the given width.
func Render(markdown string, width int) (string, error) {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return "", err
	}
	return r.Render(markdown)
}

// View renders the header, limited to maxLines of description.
func (m Model) View(maxLines int) string {
	if m.Event == nil {
		return styleMeta.Render("  loading event...")
	}
	ev := m.Event
	var b strings.Builder
	title := ev.Title
	if title == "" {
		title = ev.ID
	}
	b.WriteString(styleTitle.Render(title))
	var meta []string
	if ev.Type != "" {
		meta = append(meta, ev.Type)
	}
	if !ev.CreatedAt.IsZero() {
		meta = append(meta, ev.CreatedAt.Local().Format("Mon 2 Jan 2006 15:04"))
	}
	if len(meta) > 0 {
		b.WriteString("  " + styleMeta.Render(strings.Join(meta, " · ")))
	}

	if m.rendered != "" && maxLines > 0 {
		lines := strings.Split(m.rendered, "\n")
		if len(lines) > maxLines {
			lines = append(lines[:maxLines-1], styleMeta.Render("  …"))
		}
		b.WriteString("\n" + strings.Join(lines, "\n"))
	}
	return b.String()
}
