package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/journal/mediadeck/internal/media"
)

// Session is one loaded audio or video resource. Stop succeeds even if the
// session was never started; after Unload every operation, Unload included,
// returns ErrUnloaded.
type Session interface {
	ID() string
	Kind() media.Kind
	Load(ctx context.Context) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	Stop(ctx context.Context) error
	Unload(ctx context.Context) error
}

// StatusFunc receives status reports tagged with the reporting resource id.
type StatusFunc func(id string, st Status)

// session holds the lifecycle bookkeeping shared by audio and video.
type session struct {
	item     Item
	res      Resource
	onStatus StatusFunc

	mu       sync.Mutex // serialises operations on res
	loaded   bool
	started  bool
	unloaded atomic.Bool
}

func (s *session) ID() string       { return s.item.ID }
func (s *session) Kind() media.Kind { return s.item.Kind }

func (s *session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unloaded.Load() {
		return ErrUnloaded
	}
	if s.loaded {
		return nil
	}
	if err := s.res.Load(ctx); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

func (s *session) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if err := s.res.Play(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	return s.res.Pause(ctx)
}

func (s *session) Seek(ctx context.Context, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if seconds < 0 {
		seconds = 0
	}
	return s.res.Seek(ctx, seconds)
}

func (s *session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unloaded.Load() {
		return ErrUnloaded
	}
	if !s.loaded || !s.started {
		return nil
	}
	if err := s.res.Stop(ctx); err != nil {
		return err
	}
	s.started = false
	return nil
}

// Unload releases the resource. The session is unusable afterwards even if
// the underlying release fails.
func (s *session) Unload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unloaded.Swap(true) {
		return ErrUnloaded
	}
	s.loaded = false
	s.started = false
	return s.res.Unload(ctx)
}

func (s *session) usableLocked() error {
	if s.unloaded.Load() {
		return ErrUnloaded
	}
	if !s.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (s *session) report(st Status) {
	if s.unloaded.Load() || s.onStatus == nil {
		return
	}
	s.onStatus(s.item.ID, st)
}

// AudioSession plays a sound resource.
type AudioSession struct {
	session
}

// NewAudioSession opens item through p. Status reports go to onStatus.
func NewAudioSession(item Item, p Provider, onStatus StatusFunc) (*AudioSession, error) {
	if item.Kind != media.KindAudio {
		return nil, fmt.Errorf("audio session for %s item %s: %w", item.Kind, item.ID, ErrNotPlayable)
	}
	s := &AudioSession{session: session{item: item, onStatus: onStatus}}
	res, err := p.Open(item, func(st Status) {
		st.Width, st.Height = 0, 0
		s.report(st)
	})
	if err != nil {
		return nil, err
	}
	s.res = res
	return s, nil
}

// VideoSession plays a video resource and remembers its decoded frame size.
type VideoSession struct {
	session

	frameMu sync.Mutex
	width   int
	height  int
}

// NewVideoSession opens item through p. Status reports go to onStatus.
func NewVideoSession(item Item, p Provider, onStatus StatusFunc) (*VideoSession, error) {
	if item.Kind != media.KindVideo {
		return nil, fmt.Errorf("video session for %s item %s: %w", item.Kind, item.ID, ErrNotPlayable)
	}
	s := &VideoSession{session: session{item: item, onStatus: onStatus}}
	res, err := p.Open(item, s.handleStatus)
	if err != nil {
		return nil, err
	}
	s.res = res
	return s, nil
}

func (s *VideoSession) handleStatus(st Status) {
	if st.Width > 0 && st.Height > 0 {
		s.frameMu.Lock()
		s.width, s.height = st.Width, st.Height
		s.frameMu.Unlock()
	}
	s.report(st)
}

// FrameSize returns the last reported decoded frame size, zero if unknown.
func (s *VideoSession) FrameSize() (width, height int) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.width, s.height
}

// Stop halts playback and clears the recorded frame size.
func (s *VideoSession) Stop(ctx context.Context) error {
	if err := s.session.Stop(ctx); err != nil {
		return err
	}
	s.frameMu.Lock()
	s.width, s.height = 0, 0
	s.frameMu.Unlock()
	return nil
}

// NewSession opens an audio or video session depending on item.Kind.
func NewSession(item Item, p Provider, onStatus StatusFunc) (Session, error) {
	switch item.Kind {
	case media.KindAudio:
		s, err := NewAudioSession(item, p, onStatus)
		if err != nil {
			return nil, err
		}
		return s, nil
	case media.KindVideo:
		s, err := NewVideoSession(item, p, onStatus)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("session for %s item %s: %w", item.Kind, item.ID, ErrNotPlayable)
	}
}
