// Package theme provides the Lip Gloss color palette and reusable styles
// for the mediadeck TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Media kind colors.
var (
	ColorImage   = lipgloss.Color("#06b6d4")
	ColorVideo   = lipgloss.Color("#a855f7")
	ColorAudio   = lipgloss.Color("#22c55e")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// Playback colors.
var (
	ColorPlaying = lipgloss.Color("#16a34a")
	ColorPaused  = lipgloss.Color("#d97706")
	ColorLoading = lipgloss.Color("#7c3aed")
	ColorErrored = lipgloss.Color("#dc2626")
)

// Log kind colors.
var (
	ColorLogWS  = lipgloss.Color("#2563eb")
	ColorLogNav = lipgloss.Color("#7c3aed")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorTrack   = lipgloss.Color("#374151")
)

// KindColor returns the color for a media kind name.
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case "image":
		return ColorImage
	case "video":
		return ColorVideo
	case "audio":
		return ColorAudio
	default:
		return ColorDefault
	}
}

// KindGlyph returns a glyph for a media kind name.
func KindGlyph(kind string) string {
	switch kind {
	case "image":
		return "▣"
	case "video":
		return "▶"
	case "audio":
		return "♪"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)

	StyleTabActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBg).
		Background(ColorBright).
		Padding(0, 1)

	StyleTabInactive = lipgloss.NewStyle().
		Foreground(ColorDimmed).
		Padding(0, 1)
)

// PlaybackGlyph returns the glyph for a playback state.
func PlaybackGlyph(playing, paused, loading, errored bool) string {
	switch {
	case errored:
		return "✗"
	case loading:
		return "◌"
	case playing:
		return "▶"
	case paused:
		return "⏸"
	default:
		return " "
	}
}
