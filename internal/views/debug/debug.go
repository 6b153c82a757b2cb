// Package debug provides the scrollable event log overlay: connection
// changes, playback transitions, navigation and errors.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/journal/mediadeck/internal/theme"
)

const maxEntries = 200

// Log kinds.
const (
	KindWS   = "ws"
	KindPlay = "play"
	KindNav  = "nav"
	KindErr  = "err"
	KindCfg  = "cfg"
)

// Entry is a single event log line. Repeats counts identical consecutive
// messages folded into it.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
	Repeats int
}

// Model holds debug log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset from the bottom
}

// New creates an empty debug model.
func New() Model {
	return Model{}
}

// Add appends a log entry, folding it into the previous one if identical.
func (m *Model) Add(kind, message string) {
	now := time.Now()
	if n := len(m.Entries); n > 0 {
		last := &m.Entries[n-1]
		if last.Kind == kind && last.Message == message {
			last.Repeats++
			last.Time = now
			m.Offset = 0
			return
		}
	}
	m.Entries = append(m.Entries, Entry{Time: now, Kind: kind, Message: message})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Addf is Add with formatting.
func (m *Model) Addf(kind, format string, args ...any) {
	m.Add(kind, fmt.Sprintf(format, args...))
}

// ScrollUp moves the viewport towards older entries.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport towards newer entries.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the log as an overlay panel of the given outer size.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visible := max(height-6, 3)

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing logged yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visible, 0)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(e.Kind)
		msg := e.Message
		if e.Repeats > 0 {
			msg += fmt.Sprintf(" (×%d)", e.Repeats+1)
		}
		if limit := innerW - 20; limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		lines = append(lines, ts+" "+kind+" "+msg)
	}

	scroll := ""
	if m.Offset > 0 {
		scroll = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), scroll, help)
	return panelStyle(innerW).Render(content)
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindWS:
		return theme.ColorLogWS
	case KindPlay:
		return theme.ColorPlaying
	case KindNav:
		return theme.ColorLogNav
	case KindErr:
		return theme.ColorErrored
	case KindCfg:
		return theme.ColorWarning
	default:
		return theme.ColorDimmed
	}
}
