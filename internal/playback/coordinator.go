package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/journal/mediadeck/internal/media"
)

// Coordinator owns the single active-resource slot of a screen. It
// guarantees that at most one resource plays at a time: every tracked
// session is stopped and unloaded before another one is loaded.
//
// Play blocks on I/O and is meant to run off the UI goroutine; StopAll and
// the lifecycle hooks may be called from the UI goroutine at any time and
// never wait for an in-flight Play.
type Coordinator struct {
	provider Provider

	// transition is held from the teardown of the previous resource until
	// the new one is playing, so two decoders never overlap.
	transition sync.Mutex

	mu       sync.Mutex
	sessions map[string]Session
	state    PlaybackState
	token    string          // identity of the newest play request
	gen      uint64          // bumped by every StopAll
	draining []chan struct{} // closed as each StopAll teardown finishes
	tab      media.Tab
	subs     []chan PlaybackState
	last     PlaybackState
	closed   bool
}

// NewCoordinator returns a coordinator opening resources through p.
func NewCoordinator(p Provider) *Coordinator {
	return &Coordinator{
		provider: p,
		sessions: make(map[string]Session),
	}
}

// State returns a snapshot of the playback state.
func (c *Coordinator) State() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel receiving state snapshots. Slow readers only
// ever see the latest snapshot. The channel is closed on unmount.
func (c *Coordinator) Subscribe() <-chan PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan PlaybackState, 1)
	if c.closed {
		close(ch)
		return ch
	}
	ch <- c.state
	c.subs = append(c.subs, ch)
	return ch
}

// Generation identifies the current stop epoch. Every StopAll advances it.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Play stops and unloads whatever is tracked, then loads and starts item. A
// second Play for a resource already mid-transition is a no-op, and Play on
// the paused active resource resumes it. If the request is superseded by a
// later Play or StopAll before it completes, the freshly loaded resource is
// unloaded and Play returns nil. Load and start failures return a
// *LoadError.
func (c *Coordinator) Play(ctx context.Context, item Item) error {
	return c.PlayAt(ctx, item, c.Generation())
}

// PlayAt is Play for a request issued under generation gen. If StopAll has
// run since, the request is dropped and PlayAt returns nil.
func (c *Coordinator) PlayAt(ctx context.Context, item Item, gen uint64) error {
	if !item.Kind.Playable() {
		return fmt.Errorf("play %s: %w", item.ID, ErrNotPlayable)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.gen != gen {
		c.mu.Unlock()
		klog.V(1).Infof("play %s: stopped before start", item.ID)
		return nil
	}
	if c.state.PendingID == item.ID {
		c.mu.Unlock()
		klog.V(1).Infof("play %s: already transitioning", item.ID)
		return nil
	}
	if c.state.ActiveID == item.ID && c.state.PendingID == "" {
		playing := c.state.IsPlaying
		c.mu.Unlock()
		if playing {
			return nil
		}
		return c.Resume(ctx)
	}
	token := uuid.NewString()
	c.token = token
	c.state.PendingID = item.ID
	c.state.ErrorID, c.state.Error = "", ""
	c.publishLocked()
	c.mu.Unlock()

	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		klog.V(1).Infof("play %s: superseded before start", item.ID)
		return nil
	}
	prev := c.detachLocked()
	c.publishLocked()
	draining := append([]chan struct{}(nil), c.draining...)
	c.mu.Unlock()
	c.teardown(ctx, prev)

	// StopAll tears down outside the transition lock; wait for it.
	for _, done := range draining {
		select {
		case <-done:
		case <-ctx.Done():
			return c.fail(token, item, ctx.Err())
		}
	}

	s, err := NewSession(item, c.provider, c.OnStatusUpdate)
	if err != nil {
		return c.fail(token, item, err)
	}
	if err := s.Load(ctx); err != nil {
		c.discard(ctx, s)
		return c.fail(token, item, err)
	}
	if !c.current(token) {
		c.discard(ctx, s)
		klog.V(1).Infof("play %s: superseded after load", item.ID)
		return nil
	}
	if err := s.Play(ctx); err != nil {
		c.discard(ctx, s)
		return c.fail(token, item, err)
	}

	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		c.discard(ctx, s)
		klog.V(1).Infof("play %s: superseded after start", item.ID)
		return nil
	}
	c.sessions[item.ID] = s
	c.state = PlaybackState{
		ActiveID:  item.ID,
		Kind:      item.Kind,
		IsPlaying: true,
	}
	c.token = ""
	c.publishLocked()
	c.mu.Unlock()

	klog.Infof("playing %s %s", item.Kind, item.ID)
	return nil
}

// Toggle pauses item if it is playing, resumes it if it is the paused active
// resource, and plays it otherwise.
func (c *Coordinator) Toggle(ctx context.Context, item Item) error {
	return c.ToggleAt(ctx, item, c.Generation())
}

// ToggleAt is Toggle for a request issued under generation gen. It does
// nothing if StopAll has run since.
func (c *Coordinator) ToggleAt(ctx context.Context, item Item, gen uint64) error {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	active := c.state.ActiveID == item.ID && c.state.PendingID == ""
	playing := c.state.IsPlaying
	c.mu.Unlock()

	switch {
	case active && playing:
		return c.Pause(ctx)
	case active:
		return c.Resume(ctx)
	default:
		return c.PlayAt(ctx, item, gen)
	}
}

// Pause pauses the active resource. No-op if nothing is playing.
func (c *Coordinator) Pause(ctx context.Context) error {
	s, id := c.activeSession()
	if s == nil {
		return nil
	}
	c.mu.Lock()
	playing := c.state.IsPlaying
	c.mu.Unlock()
	if !playing {
		return nil
	}
	if err := s.Pause(ctx); err != nil {
		return fmt.Errorf("pause %s: %w", id, err)
	}
	c.mu.Lock()
	if c.state.ActiveID == id {
		c.state.IsPlaying = false
		c.publishLocked()
	}
	c.mu.Unlock()
	return nil
}

// Resume restarts the paused active resource, from the beginning if it had
// completed. No-op if nothing is active.
func (c *Coordinator) Resume(ctx context.Context) error {
	s, id := c.activeSession()
	if s == nil {
		return nil
	}
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st.IsPlaying {
		return nil
	}
	if st.Completed() {
		if err := s.Seek(ctx, 0); err != nil {
			return fmt.Errorf("rewind %s: %w", id, err)
		}
	}
	if err := s.Play(ctx); err != nil {
		return fmt.Errorf("resume %s: %w", id, err)
	}
	c.mu.Lock()
	if c.state.ActiveID == id {
		c.state.IsPlaying = true
		if st.Completed() {
			c.state.Position = 0
		}
		c.publishLocked()
	}
	c.mu.Unlock()
	return nil
}

// Seek moves the active resource to seconds, clamped to [0, duration]. While
// the duration is still unknown only the lower bound applies. No-op if
// nothing is active.
func (c *Coordinator) Seek(ctx context.Context, seconds float64) error {
	s, id := c.activeSession()
	if s == nil {
		return nil
	}
	c.mu.Lock()
	seconds = clampPosition(seconds, c.state.Duration)
	c.mu.Unlock()

	if err := s.Seek(ctx, seconds); err != nil {
		return fmt.Errorf("seek %s: %w", id, err)
	}
	c.mu.Lock()
	if c.state.ActiveID == id {
		c.state.Position = seconds
		c.publishLocked()
	}
	c.mu.Unlock()
	return nil
}

// SeekBy moves the active resource by delta seconds.
func (c *Coordinator) SeekBy(ctx context.Context, delta float64) error {
	c.mu.Lock()
	pos := c.state.Position + delta
	c.mu.Unlock()
	return c.Seek(ctx, pos)
}

// StopAll stops and unloads every tracked session and clears the active
// slot. Any in-flight Play is invalidated and will unload its resource when
// it completes, and requests issued before the call are dropped. Calling
// StopAll with nothing active changes nothing.
func (c *Coordinator) StopAll(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.token = ""
	prev := c.detachLocked()
	c.state.PendingID = ""
	c.publishLocked()
	var done chan struct{}
	if len(prev) > 0 {
		done = make(chan struct{})
		c.draining = append(c.draining, done)
	}
	c.mu.Unlock()

	if done == nil {
		return
	}
	c.teardown(ctx, prev)
	close(done)
	c.mu.Lock()
	for i, ch := range c.draining {
		if ch == done {
			c.draining = append(c.draining[:i], c.draining[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// OnStatusUpdate applies a status report from a session. Reports from
// anything but the active resource are stale and dropped.
func (c *Coordinator) OnStatusUpdate(id string, st Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "" || id != c.state.ActiveID {
		klog.V(2).Infof("dropping stale status for %s", id)
		return
	}
	if st.Duration > 0 {
		c.state.Duration = st.Duration
	}
	c.state.Position = clampPosition(st.Position, c.state.Duration)
	c.state.IsPlaying = st.Playing
	if st.Completed {
		c.state.IsPlaying = false
		if c.state.Duration > 0 {
			c.state.Position = c.state.Duration
		}
	}
	c.publishLocked()
}

// OnFocusLost stops all playback. Call it from the focus-loss handler
// itself, not from a deferred command.
func (c *Coordinator) OnFocusLost(ctx context.Context) {
	klog.V(1).Info("focus lost, stopping playback")
	c.StopAll(ctx)
}

// OnTabChanged stops all playback when the content tab changes.
func (c *Coordinator) OnTabChanged(ctx context.Context, tab media.Tab) {
	c.mu.Lock()
	same := c.tab == tab
	c.tab = tab
	c.mu.Unlock()
	if same {
		return
	}
	klog.V(1).Infof("tab changed to %s, stopping playback", tab)
	c.StopAll(ctx)
}

// OnUnmount stops all playback and closes subscriptions. The coordinator
// rejects Play afterwards.
func (c *Coordinator) OnUnmount(ctx context.Context) {
	c.StopAll(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
}

func (c *Coordinator) activeSession() (Session, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ActiveID == "" || c.state.PendingID != "" {
		return nil, ""
	}
	return c.sessions[c.state.ActiveID], c.state.ActiveID
}

func (c *Coordinator) current(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token == token
}

// detachLocked removes every tracked session and clears the active slot,
// returning the sessions for teardown outside the lock.
func (c *Coordinator) detachLocked() []Session {
	prev := make([]Session, 0, len(c.sessions))
	for id, s := range c.sessions {
		prev = append(prev, s)
		delete(c.sessions, id)
	}
	c.state.ActiveID = ""
	c.state.Kind = media.KindOther
	c.state.IsPlaying = false
	c.state.Position = 0
	c.state.Duration = 0
	return prev
}

// teardown stops and unloads sessions concurrently and waits for all of
// them. Failures are logged and swallowed.
func (c *Coordinator) teardown(ctx context.Context, sessions []Session) {
	if len(sessions) == 0 {
		return
	}
	var g errgroup.Group
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			c.discard(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) discard(ctx context.Context, s Session) {
	if err := s.Stop(ctx); err != nil {
		klog.Warningf("stop %s %s: %v", s.Kind(), s.ID(), err)
	}
	if err := s.Unload(ctx); err != nil && !errors.Is(err, ErrUnloaded) {
		klog.Warningf("unload %s %s: %v", s.Kind(), s.ID(), err)
	}
}

func (c *Coordinator) fail(token string, item Item, err error) error {
	lerr := &LoadError{ID: item.ID, Kind: item.Kind, Err: err}
	klog.Errorf("%v", lerr)
	c.mu.Lock()
	if c.token == token {
		c.token = ""
		c.state.PendingID = ""
		c.state.ErrorID = item.ID
		c.state.Error = err.Error()
		c.publishLocked()
	}
	c.mu.Unlock()
	return lerr
}

// publishLocked delivers the state to subscribers when it changed.
func (c *Coordinator) publishLocked() {
	if c.state == c.last {
		return
	}
	c.last = c.state
	for _, ch := range c.subs {
		select {
		case ch <- c.state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c.state:
			default:
			}
		}
	}
}

func clampPosition(pos, duration float64) float64 {
	if pos < 0 || math.IsNaN(pos) {
		return 0
	}
	if duration > 0 && pos > duration {
		return duration
	}
	return pos
}
