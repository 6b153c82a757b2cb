package player

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/journal/mediadeck/internal/media"
	"github.com/journal/mediadeck/internal/playback"
)

// SimulatedOptions configures the demo provider.
type SimulatedOptions struct {
	Tick        time.Duration // status interval
	Speed       float64       // simulated seconds per real second
	LoadLatency time.Duration // upper bound of the random load delay
	// FailIDs makes Load fail for these resource IDs.
	FailIDs map[string]bool
}

// Simulated fakes playback without decoding anything: each resource gets a
// duration derived from its ID and advances on a ticker.
type Simulated struct {
	opts SimulatedOptions
}

// NewSimulated returns a demo provider.
func NewSimulated(opts SimulatedOptions) *Simulated {
	if opts.Tick <= 0 {
		opts.Tick = 250 * time.Millisecond
	}
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	return &Simulated{opts: opts}
}

func (s *Simulated) Open(item playback.Item, onStatus func(playback.Status)) (playback.Resource, error) {
	if !item.Kind.Playable() {
		return nil, fmt.Errorf("simulate %s: %w", item.ID, playback.ErrNotPlayable)
	}
	return &simResource{
		opts:     s.opts,
		item:     item,
		onStatus: onStatus,
		duration: simDuration(item.ID),
	}, nil
}

// simDuration picks a stable duration between 20s and 3m for id.
func simDuration(id string) float64 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return float64(20 + h.Sum32()%160)
}

type simResource struct {
	opts     SimulatedOptions
	item     playback.Item
	onStatus func(playback.Status)
	duration float64

	mu       sync.Mutex
	loaded   bool
	playing  bool
	position float64
	done     bool
	cancel   context.CancelFunc
}

func (r *simResource) Load(ctx context.Context) error {
	if r.opts.LoadLatency > 0 {
		delay := time.Duration(rand.Int63n(int64(r.opts.LoadLatency)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.opts.FailIDs[r.item.ID] {
		return errors.New("simulated decoder failure")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = true
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.run(runCtx)
	return nil
}

func (r *simResource) run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if !r.playing {
				r.mu.Unlock()
				continue
			}
			r.position += r.opts.Tick.Seconds() * r.opts.Speed
			if r.position >= r.duration {
				r.position = r.duration
				r.playing = false
				r.done = true
			}
			st := r.statusLocked()
			r.mu.Unlock()
			r.emit(st)
		}
	}
}

func (r *simResource) statusLocked() playback.Status {
	st := playback.Status{
		Position:  r.position,
		Duration:  r.duration,
		Playing:   r.playing,
		Completed: r.done,
	}
	if r.item.Kind == media.KindVideo {
		st.Width, st.Height = 1280, 720
	}
	return st
}

func (r *simResource) emit(st playback.Status) {
	if r.onStatus != nil {
		r.onStatus(st)
	}
}

func (r *simResource) set(f func()) {
	r.mu.Lock()
	f()
	st := r.statusLocked()
	r.mu.Unlock()
	r.emit(st)
}

func (r *simResource) Play(ctx context.Context) error {
	r.set(func() {
		if r.done {
			r.position, r.done = 0, false
		}
		r.playing = true
	})
	return nil
}

func (r *simResource) Pause(ctx context.Context) error {
	r.set(func() { r.playing = false })
	return nil
}

func (r *simResource) Seek(ctx context.Context, seconds float64) error {
	r.set(func() {
		r.position = min(max(seconds, 0), r.duration)
		r.done = false
	})
	return nil
}

func (r *simResource) Stop(ctx context.Context) error {
	r.set(func() {
		r.playing = false
		r.position = 0
		r.done = false
	})
	return nil
}

func (r *simResource) Unload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.loaded = false
	r.playing = false
	return nil
}
