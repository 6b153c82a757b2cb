package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/journal/mediadeck/internal/media"
	"github.com/journal/mediadeck/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Title     string
	Tab       media.Tab
	Counts    map[media.Tab]int
	Live      bool // a live-update channel is configured
	Connected bool
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{Counts: make(map[media.Tab]int)}
}

// SetCounts records how many items each tab holds.
func (m *Model) SetCounts(images, videos, audio int) {
	m.Counts[media.TabImages] = images
	m.Counts[media.TabVideos] = videos
	m.Counts[media.TabAudio] = audio
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var tabs []string
	for _, t := range media.Tabs {
		label := fmt.Sprintf("%s %s %d", theme.KindGlyph(t.Kind().String()), t, m.Counts[t])
		if t == m.Tab {
			tabs = append(tabs, theme.StyleTabActive.Render(label))
		} else {
			tabs = append(tabs, theme.StyleTabInactive.Render(label))
		}
	}
	content := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	if m.Title != "" {
		content += sep + theme.StyleHeader.Render(m.Title)
	}
	if m.Live {
		var connStr string
		if m.Connected {
			connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
		} else {
			connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
		}
		content += sep + connStr
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
