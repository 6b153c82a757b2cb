// Package playback coordinates audio and video playback so that at most one
// resource plays at a time, and adapts individual playable resources to a
// uniform session contract.
package playback

import (
	"context"

	"github.com/journal/mediadeck/internal/media"
)

// Item identifies a playable resource.
type Item struct {
	ID   string
	Kind media.Kind
	URI  string
}

// ItemFrom builds an Item from a media descriptor.
func ItemFrom(d media.Descriptor) Item {
	return Item{ID: d.ID, Kind: media.Classify(d), URI: d.URI}
}

// Status is a periodic report from a playing resource. Positions are in
// seconds.
type Status struct {
	Position  float64
	Duration  float64
	Playing   bool
	Completed bool

	// Decoded frame size, video only.
	Width  int
	Height int
}

// Resource is the underlying handle returned by a Provider.
type Resource interface {
	Load(ctx context.Context) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	Stop(ctx context.Context) error
	Unload(ctx context.Context) error
}

// Provider opens playable resources. onStatus may be called from any
// goroutine until Unload returns.
type Provider interface {
	Open(item Item, onStatus func(Status)) (Resource, error)
}

// PlaybackState is a snapshot of the coordinator.
type PlaybackState struct {
	ActiveID  string
	Kind      media.Kind
	IsPlaying bool
	Position  float64
	Duration  float64

	// PendingID is the resource mid-transition, if any.
	PendingID string

	// ErrorID and Error describe the last load failure.
	ErrorID string
	Error   string
}

// Transitioning reports whether a play request is in flight.
func (s PlaybackState) Transitioning() bool { return s.PendingID != "" }

// Completed reports whether the active resource reached its end.
func (s PlaybackState) Completed() bool {
	return s.ActiveID != "" && !s.IsPlaying && s.Duration > 0 && s.Position >= s.Duration
}
