// Package client provides HTTP and WebSocket clients for the journal backend.
// Types mirror the backend wire protocol.
package client

import (
	"encoding/json"
	"time"

	"github.com/journal/mediadeck/internal/media"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgEventUpdated MessageType = "event.updated"
	MsgEventDeleted MessageType = "event.deleted"
	MsgError        MessageType = "error"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// EventUpdatedPayload announces that an event or its media changed. Event is
// included when the server sends the new version inline.
type EventUpdatedPayload struct {
	EventID string         `json:"eventId"`
	Event   *EventResponse `json:"event,omitempty"`
}

// EventDeletedPayload announces that an event was removed.
type EventDeletedPayload struct {
	EventID string `json:"eventId"`
}

// --- HTTP response types ---

// MediaResponse is one media attachment as returned by the API.
type MediaResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MIMEType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// EventResponse mirrors GET /api/events/{id}.
type EventResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Media       []MediaResponse `json:"media"`
}

// EventSummary is one entry of GET /api/events.
type EventSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Type       string    `json:"type,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	MediaCount int       `json:"mediaCount"`
}

// toEvent converts the wire form, resolving media URLs with resolve.
func (e *EventResponse) toEvent(resolve func(string) string) *media.Event {
	ev := &media.Event{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Type:        e.Type,
		CreatedAt:   e.CreatedAt,
		Media:       make([]media.Descriptor, 0, len(e.Media)),
	}
	for _, m := range e.Media {
		ev.Media = append(ev.Media, media.Descriptor{
			ID:   m.ID,
			URI:  resolve(m.URL),
			MIME: m.MIMEType,
			Size: m.Size,
		})
	}
	return ev
}
