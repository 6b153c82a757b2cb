package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/journal/mediadeck/internal/media"
	"github.com/journal/mediadeck/internal/theme"
)

// renderList draws the current tab's items in at most rows lines, keeping
// the selection in view.
func (m Model) renderList(rows int) string {
	items := m.items[m.tab]
	if len(items) == 0 {
		msg := fmt.Sprintf("  No %s in this event", m.tab)
		if m.event == nil {
			msg = "  Loading..."
		}
		return theme.StyleDimmed.Render(msg)
	}

	sel := m.selected[m.tab]
	start := 0
	if sel >= rows {
		start = sel - rows + 1
	}
	end := min(start+rows, len(items))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderItem(items[i], i == sel))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderItem(d media.Descriptor, selected bool) string {
	prefix := "  "
	if selected {
		prefix = "> "
	}

	kind := media.Classify(d)
	glyph := theme.KindGlyph(kind.String())
	if kind.Playable() {
		active := m.state.ActiveID == d.ID
		glyph = theme.PlaybackGlyph(
			active && m.state.IsPlaying,
			active && !m.state.IsPlaying,
			m.state.PendingID == d.ID,
			m.state.ErrorID == d.ID,
		)
	}

	name := lipgloss.NewStyle().Foreground(theme.KindColor(kind.String())).Render(d.Name())
	if selected {
		name = theme.StyleSelected.Render(d.Name())
	}

	var meta []string
	if d.Size > 0 {
		meta = append(meta, humanize.Bytes(uint64(d.Size)))
	}
	if kind == media.KindImage {
		if size, ok := m.viewer.NaturalSize(d.ID); ok {
			meta = append(meta, fmt.Sprintf("%.0f×%.0f", size.Width, size.Height))
		}
	}

	line := prefix + glyph + " " + name
	if len(meta) > 0 {
		line += "  " + theme.StyleDimmed.Render(strings.Join(meta, "  "))
	}
	if m.state.ErrorID == d.ID && m.state.Error != "" {
		line += "  " + theme.StyleError.Render(m.state.Error)
	}
	return line
}
