// Package media describes the media attached to a journal event and sorts it
// into the kinds the viewer and the playback coordinator handle.
package media

import (
	"context"
	"path"
	"strings"
	"time"
)

// Kind is the broad media category of a descriptor.
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindVideo
	KindAudio
)

var kindNames = map[Kind]string{
	KindOther: "other",
	KindImage: "image",
	KindVideo: "video",
	KindAudio: "audio",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Playable reports whether the kind goes through the playback coordinator.
func (k Kind) Playable() bool {
	return k == KindAudio || k == KindVideo
}

// Descriptor is one media item of an event as supplied by the event source.
type Descriptor struct {
	ID   string `json:"id"`
	URI  string `json:"uri"`
	MIME string `json:"mime,omitempty"` // MIME type or bare extension
	Size int64  `json:"size,omitempty"`
}

// Name returns the last path element of the URI.
func (d Descriptor) Name() string {
	u := d.URI
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}

// Event is a journal event together with its media.
type Event struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"` // markdown
	Type        string       `json:"type,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Media       []Descriptor `json:"media"`
}

// Source supplies events and their media. The core never fetches or caches
// media itself; it only classifies what a Source returns.
type Source interface {
	EventMedia(ctx context.Context, eventID string) (*Event, error)
}

var extKinds = map[string]Kind{
	"jpg": KindImage, "jpeg": KindImage, "png": KindImage, "gif": KindImage,
	"webp": KindImage, "bmp": KindImage, "heic": KindImage, "heif": KindImage,

	"mp4": KindVideo, "mov": KindVideo, "m4v": KindVideo, "webm": KindVideo,
	"mkv": KindVideo, "avi": KindVideo, "3gp": KindVideo,

	"mp3": KindAudio, "m4a": KindAudio, "aac": KindAudio, "wav": KindAudio,
	"ogg": KindAudio, "oga": KindAudio, "opus": KindAudio, "flac": KindAudio,
	"caf": KindAudio, "amr": KindAudio,
}

// Classify determines the kind of d from its MIME type, falling back to the
// extension in the MIME field or the URI.
func Classify(d Descriptor) Kind {
	m := strings.ToLower(strings.TrimSpace(d.MIME))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	switch {
	case strings.HasPrefix(m, "image/"):
		return KindImage
	case strings.HasPrefix(m, "video/"):
		return KindVideo
	case strings.HasPrefix(m, "audio/"):
		return KindAudio
	}
	if m != "" && !strings.Contains(m, "/") {
		if k, ok := extKinds[strings.TrimPrefix(m, ".")]; ok {
			return k
		}
	}
	return kindFromExt(d.Name())
}

func kindFromExt(name string) Kind {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if k, ok := extKinds[ext]; ok {
		return k
	}
	return KindOther
}

// Filter returns the descriptors of kind k, preserving order.
func Filter(items []Descriptor, k Kind) []Descriptor {
	var out []Descriptor
	for _, d := range items {
		if Classify(d) == k {
			out = append(out, d)
		}
	}
	return out
}

// Tab is a content tab of the event screen.
type Tab int

const (
	TabImages Tab = iota
	TabVideos
	TabAudio
)

// Tabs lists the content tabs in display order.
var Tabs = []Tab{TabImages, TabVideos, TabAudio}

func (t Tab) String() string {
	switch t {
	case TabImages:
		return "images"
	case TabVideos:
		return "videos"
	case TabAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Kind returns the media kind shown on the tab.
func (t Tab) Kind() Kind {
	switch t {
	case TabImages:
		return KindImage
	case TabVideos:
		return KindVideo
	case TabAudio:
		return KindAudio
	default:
		return KindOther
	}
}

// Next returns the tab after t, wrapping around.
func (t Tab) Next() Tab {
	return Tab((int(t) + 1) % len(Tabs))
}
