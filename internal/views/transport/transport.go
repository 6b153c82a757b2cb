// Package transport renders the playback bar: what is playing, a progress
// bar and the position.
package transport

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/journal/mediadeck/internal/playback"
	"github.com/journal/mediadeck/internal/theme"
)

// Model holds the transport bar state.
type Model struct {
	State playback.PlaybackState
	Name  string // display name of the active resource
	Width int
}

// New creates a transport bar model.
func New() Model {
	return Model{}
}

// View renders the transport bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	st := m.State

	var head string
	switch {
	case st.Transitioning():
		head = lipgloss.NewStyle().Foreground(theme.ColorLoading).Render("◌ loading " + m.name())
	case st.ActiveID == "":
		head = theme.StyleDimmed.Render("■ stopped")
	case st.IsPlaying:
		head = lipgloss.NewStyle().Foreground(theme.ColorPlaying).Render("▶ " + m.name())
	case st.Completed():
		head = lipgloss.NewStyle().Foreground(theme.ColorDimmed).Render("✓ " + m.name())
	default:
		head = lipgloss.NewStyle().Foreground(theme.ColorPaused).Render("⏸ " + m.name())
	}

	clock := FormatClock(st.Position) + " / " + FormatClock(st.Duration)
	barWidth := width - lipgloss.Width(head) - len(clock) - 8
	if barWidth < 10 {
		barWidth = 10
	}
	bar := ProgressBar(st.Position, st.Duration, barWidth)

	content := head + "  " + bar + "  " + theme.StyleDimmed.Render(clock)
	return lipgloss.NewStyle().Width(width).Padding(0, 1).Render(content)
}

func (m Model) name() string {
	switch {
	case m.Name != "":
		return m.Name
	case m.State.PendingID != "":
		return m.State.PendingID
	}
	return m.State.ActiveID
}

// ProgressBar renders position/duration as a bar of the given width. An
// unknown duration renders an empty track.
func ProgressBar(position, duration float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if duration > 0 {
		frac := math.Max(0, math.Min(1, position/duration))
		filled = int(math.Round(frac * float64(width)))
	}
	done := lipgloss.NewStyle().Foreground(theme.ColorPlaying).Render(strings.Repeat("━", filled))
	rest := lipgloss.NewStyle().Foreground(theme.ColorTrack).Render(strings.Repeat("─", width-filled))
	return done + rest
}

// FormatClock renders seconds as m:ss, or h:mm:ss past an hour.
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	s := int(seconds)
	h, s := s/3600, s%3600
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, s/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
