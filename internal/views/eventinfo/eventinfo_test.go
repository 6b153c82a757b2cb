package eventinfo

import (
	"strings"
	"testing"
	"time"

	"github.com/journal/mediadeck/internal/media"
)

func TestViewRendersMarkdown(t *testing.T) {
	m := New()
	m.SetWidth(60)
	m.SetEvent(&media.Event{
		ID:          "ev1",
		Title:       "Summit day",
		Type:        "trip",
		CreatedAt:   time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
		Description: "We reached the **summit** at noon.",
	})

	v := m.View(10)
	if !strings.Contains(v, "Summit day") || !strings.Contains(v, "trip") {
		t.Errorf("header missing title or type: %q", v)
	}
	if !strings.Contains(v, "summit") || strings.Contains(v, "**summit**") {
		t.Errorf("description not rendered as markdown: %q", v)
	}
}

func TestViewTruncatesDescription(t *testing.T) {
	m := New()
	m.SetWidth(60)
	var md strings.Builder
	for i := 0; i < 30; i++ {
		md.WriteString("- line\n")
	}
	m.SetEvent(&media.Event{ID: "ev1", Description: md.String()})

	v := m.View(4)
	// Title line plus four description lines.
	if n := len(strings.Split(v, "\n")); n != 5 {
		t.Errorf("got %d lines, want 5", n)
	}
	if !strings.Contains(v, "…") {
		t.Error("truncated description lacks an ellipsis")
	}
	if !strings.Contains(v, "ev1") {
		t.Error("untitled event should fall back to its id")
	}
}

func TestViewWithoutEvent(t *testing.T) {
	if v := New().View(5); !strings.Contains(v, "loading") {
		t.Errorf("view = %q", v)
	}
}
