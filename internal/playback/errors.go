package playback

import (
	"errors"
	"fmt"

	"github.com/journal/mediadeck/internal/media"
)

var (
	// ErrUnloaded is returned by every operation on a session after Unload.
	ErrUnloaded = errors.New("session unloaded")
	// ErrNotLoaded is returned by transport operations before Load.
	ErrNotLoaded = errors.New("session not loaded")
	// ErrNotPlayable is returned when Play is given an image or unknown kind.
	ErrNotPlayable = errors.New("media kind is not playable")
	// ErrClosed is returned once the owning screen has unmounted.
	ErrClosed = errors.New("coordinator closed")
)

// LoadError reports that a resource failed to load or start. The resource
// never became active; the caller may retry.
type LoadError struct {
	ID   string
	Kind media.Kind
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
