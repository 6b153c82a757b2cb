package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/journal/mediadeck/internal/media"
)

var (
	audioA1 = Item{ID: "a1", Kind: media.KindAudio, URI: "/media/a1.m4a"}
	audioA2 = Item{ID: "a2", Kind: media.KindAudio, URI: "/media/a2.m4a"}
	videoV1 = Item{ID: "v1", Kind: media.KindVideo, URI: "/media/v1.mp4"}
)

func TestPlaySetsActive(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)

	if err := c.Play(context.Background(), audioA1); err != nil {
		t.Fatalf("Play: %v", err)
	}
	st := c.State()
	if st.ActiveID != "a1" || !st.IsPlaying || st.Kind != media.KindAudio {
		t.Errorf("state = %+v, want a1 playing", st)
	}
	if st.Transitioning() {
		t.Error("still transitioning after Play returned")
	}
	if !p.last("a1").isPlaying() {
		t.Error("resource a1 not playing")
	}
}

func TestPlayOtherStopsAndUnloadsPrevious(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(ctx, videoV1); err != nil {
		t.Fatal(err)
	}

	st := c.State()
	if st.ActiveID != "v1" || !st.IsPlaying {
		t.Errorf("state = %+v, want v1 playing", st)
	}
	a1 := p.last("a1")
	if a1.isPlaying() || !a1.isUnloaded() {
		t.Errorf("a1 playing=%v unloaded=%v, want stopped and unloaded", a1.isPlaying(), a1.isUnloaded())
	}
	if p.peakLoaded() != 1 {
		t.Errorf("peak loaded decoders = %d, want 1", p.peakLoaded())
	}

	ev := p.events()
	unloadA1 := indexOf(ev, "unload a1")
	loadV1 := indexOf(ev, "load-start v1")
	if unloadA1 < 0 || loadV1 < 0 || unloadA1 > loadV1 {
		t.Errorf("a1 must be unloaded before v1 starts loading; events = %v", ev)
	}
}

func TestPlayWaitsForConcurrentStopAll(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	gate := p.gateUnload("a1")

	stopped := make(chan struct{})
	go func() {
		c.StopAll(ctx)
		close(stopped)
	}()
	waitFor(t, "a1 unloading", func() bool { return indexOf(p.events(), "unload-start a1") >= 0 })

	played := make(chan error, 1)
	go func() { played <- c.Play(ctx, videoV1) }()
	waitFor(t, "v1 pending", func() bool { return c.State().PendingID == "v1" })

	time.Sleep(20 * time.Millisecond)
	if i := indexOf(p.events(), "load-start v1"); i >= 0 {
		t.Fatalf("v1 started loading while a1 was unloading; events = %v", p.events())
	}

	close(gate)
	<-stopped
	if err := <-played; err != nil {
		t.Fatalf("Play v1: %v", err)
	}

	ev := p.events()
	if unloadA1, loadV1 := indexOf(ev, "unload a1"), indexOf(ev, "load-start v1"); unloadA1 < 0 || loadV1 < unloadA1 {
		t.Errorf("a1 must finish unloading before v1 loads; events = %v", ev)
	}
	if p.peakLoaded() != 1 {
		t.Errorf("peak loaded decoders = %d, want 1", p.peakLoaded())
	}
	if st := c.State(); st.ActiveID != "v1" || !st.IsPlaying {
		t.Errorf("state = %+v, want v1 playing", st)
	}
}

func TestRequestsIssuedBeforeStopAllAreDropped(t *testing.T) {
	tests := []struct {
		name string
		run  func(c *Coordinator, gen uint64) error
	}{
		{"play", func(c *Coordinator, gen uint64) error { return c.PlayAt(context.Background(), audioA1, gen) }},
		{"toggle", func(c *Coordinator, gen uint64) error { return c.ToggleAt(context.Background(), audioA1, gen) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			c := NewCoordinator(p)
			gen := c.Generation()

			c.StopAll(context.Background())
			if c.Generation() == gen {
				t.Fatal("StopAll did not advance the generation")
			}
			if err := tt.run(c, gen); err != nil {
				t.Fatalf("stale request: %v", err)
			}
			if st := c.State(); st.ActiveID != "" || st.Transitioning() {
				t.Errorf("stale request changed state: %+v", st)
			}
			if n := p.count("a1"); n != 0 {
				t.Errorf("a1 opened %d times, want 0", n)
			}

			if err := tt.run(c, c.Generation()); err != nil {
				t.Fatalf("current request: %v", err)
			}
			if st := c.State(); st.ActiveID != "a1" || !st.IsPlaying {
				t.Errorf("state = %+v, want a1 playing", st)
			}
		})
	}
}

func TestDuplicatePlayWhileTransitioningIsNoop(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()
	gate := p.gate("a1")

	done := make(chan error, 1)
	go func() { done <- c.Play(ctx, audioA1) }()
	waitFor(t, "a1 pending", func() bool { return c.State().PendingID == "a1" })

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatalf("duplicate Play: %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Play: %v", err)
	}

	if n := p.count("a1"); n != 1 {
		t.Errorf("a1 opened %d times, want 1", n)
	}
	if st := c.State(); st.ActiveID != "a1" || !st.IsPlaying {
		t.Errorf("state = %+v, want a1 playing", st)
	}
}

func TestPlayWhileLoadingSupersedesEarlierRequest(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()
	gate := p.gate("a1")

	first := make(chan error, 1)
	go func() { first <- c.Play(ctx, audioA1) }()
	waitFor(t, "a1 loading", func() bool { return indexOf(p.events(), "load-start a1") >= 0 })

	second := make(chan error, 1)
	go func() { second <- c.Play(ctx, videoV1) }()
	waitFor(t, "v1 pending", func() bool { return c.State().PendingID == "v1" })

	close(gate)
	if err := <-first; err != nil {
		t.Errorf("superseded Play returned %v, want nil", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("Play v1: %v", err)
	}

	st := c.State()
	if st.ActiveID != "v1" || !st.IsPlaying {
		t.Errorf("state = %+v, want v1 playing", st)
	}
	if !p.last("a1").isUnloaded() {
		t.Error("superseded a1 was not unloaded")
	}
	if p.peakLoaded() != 1 {
		t.Errorf("peak loaded decoders = %d, want 1", p.peakLoaded())
	}
}

func TestStopAllDuringLoadDiscardsLateCompletion(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()
	gate := p.gate("a1")

	done := make(chan error, 1)
	go func() { done <- c.Play(ctx, audioA1) }()
	waitFor(t, "a1 loading", func() bool { return indexOf(p.events(), "load-start a1") >= 0 })

	c.StopAll(ctx)
	if st := c.State(); st.ActiveID != "" || st.IsPlaying || st.Transitioning() {
		t.Errorf("state after StopAll = %+v, want idle", st)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Play: %v", err)
	}
	if st := c.State(); st.ActiveID != "" || st.IsPlaying {
		t.Errorf("late completion changed state: %+v", st)
	}
	if !p.last("a1").isUnloaded() {
		t.Error("late-loaded a1 was not unloaded")
	}
}

func TestStopAllWhenIdleIsNoop(t *testing.T) {
	c := NewCoordinator(newFakeProvider())
	sub := c.Subscribe()
	<-sub // initial snapshot

	c.StopAll(context.Background())
	c.StopAll(context.Background())

	if st := c.State(); st != (PlaybackState{}) {
		t.Errorf("state = %+v, want zero", st)
	}
	select {
	case st := <-sub:
		t.Errorf("StopAll on idle published %+v", st)
	default:
	}
}

func TestLoadFailureIsRecoverable(t *testing.T) {
	p := newFakeProvider()
	p.loadErr["a1"] = errBoom
	c := NewCoordinator(p)
	ctx := context.Background()

	err := c.Play(ctx, audioA1)
	var lerr *LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("Play error = %v, want *LoadError", err)
	}
	if lerr.ID != "a1" || !errors.Is(err, errBoom) {
		t.Errorf("LoadError = %+v, want id a1 wrapping errBoom", lerr)
	}

	st := c.State()
	if st.ActiveID != "" || st.IsPlaying || st.Transitioning() {
		t.Errorf("state = %+v, want nothing active", st)
	}
	if st.ErrorID != "a1" || st.Error == "" {
		t.Errorf("error fields = %q/%q, want a1 error", st.ErrorID, st.Error)
	}
	if !p.last("a1").isUnloaded() {
		t.Error("failed resource not released")
	}

	// Coordinator still works afterwards and clears the error.
	delete(p.loadErr, "a1")
	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatalf("retry Play: %v", err)
	}
	if st := c.State(); st.ActiveID != "a1" || st.ErrorID != "" {
		t.Errorf("state after retry = %+v", st)
	}
}

func TestOpenFailureIsLoadError(t *testing.T) {
	p := newFakeProvider()
	p.openErr["v1"] = errBoom
	c := NewCoordinator(p)

	var lerr *LoadError
	if err := c.Play(context.Background(), videoV1); !errors.As(err, &lerr) {
		t.Fatalf("Play error = %v, want *LoadError", err)
	}
}

func TestStopFailureIsSwallowed(t *testing.T) {
	p := newFakeProvider()
	p.stopErr["a1"] = errBoom
	c := NewCoordinator(p)
	ctx := context.Background()

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(ctx, audioA2); err != nil {
		t.Fatalf("Play after failing stop: %v", err)
	}
	if st := c.State(); st.ActiveID != "a2" {
		t.Errorf("active = %q, want a2", st.ActiveID)
	}
	if !p.last("a1").isUnloaded() {
		t.Error("a1 not unloaded after failed stop")
	}
}

func TestPlayRejectsImages(t *testing.T) {
	c := NewCoordinator(newFakeProvider())
	err := c.Play(context.Background(), Item{ID: "i1", Kind: media.KindImage})
	if !errors.Is(err, ErrNotPlayable) {
		t.Errorf("Play(image) = %v, want ErrNotPlayable", err)
	}
}

func TestPauseResume(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()

	// No-ops with nothing active.
	if err := c.Pause(ctx); err != nil {
		t.Errorf("Pause idle: %v", err)
	}
	if err := c.Resume(ctx); err != nil {
		t.Errorf("Resume idle: %v", err)
	}

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if st := c.State(); st.IsPlaying || st.ActiveID != "a1" {
		t.Errorf("after Pause state = %+v", st)
	}
	if p.last("a1").isPlaying() {
		t.Error("resource still playing after Pause")
	}

	if err := c.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if st := c.State(); !st.IsPlaying {
		t.Errorf("after Resume state = %+v", st)
	}

	// Play on the paused active item resumes rather than reloading.
	if err := c.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	if n := p.count("a1"); n != 1 {
		t.Errorf("a1 opened %d times, want 1", n)
	}
	if !c.State().IsPlaying {
		t.Error("Play on paused item did not resume")
	}
}

func TestToggle(t *testing.T) {
	c := NewCoordinator(newFakeProvider())
	ctx := context.Background()

	steps := []struct {
		item        Item
		wantActive  string
		wantPlaying bool
	}{
		{audioA1, "a1", true},
		{audioA1, "a1", false},
		{audioA1, "a1", true},
		{videoV1, "v1", true},
	}
	for i, s := range steps {
		if err := c.Toggle(ctx, s.item); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		st := c.State()
		if st.ActiveID != s.wantActive || st.IsPlaying != s.wantPlaying {
			t.Errorf("step %d: state = %+v, want %s playing=%v", i, st, s.wantActive, s.wantPlaying)
		}
	}
}

func TestSeekClamps(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()

	if err := c.Seek(ctx, 10); err != nil {
		t.Errorf("Seek idle: %v", err)
	}
	if st := c.State(); st.Position != 0 {
		t.Errorf("Seek idle moved position to %v", st.Position)
	}

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	p.last("a1").emit(Status{Position: 1, Duration: 60, Playing: true})

	tests := []struct {
		seek float64
		want float64
	}{
		{30, 30},
		{-5, 0},
		{120, 60},
		{60, 60},
	}
	for _, tt := range tests {
		if err := c.Seek(ctx, tt.seek); err != nil {
			t.Fatalf("Seek(%v): %v", tt.seek, err)
		}
		if got := c.State().Position; got != tt.want {
			t.Errorf("Seek(%v) position = %v, want %v", tt.seek, got, tt.want)
		}
	}

	if err := c.SeekBy(ctx, -15); err != nil {
		t.Fatal(err)
	}
	if got := c.State().Position; got != 45 {
		t.Errorf("SeekBy(-15) position = %v, want 45", got)
	}
}

func TestStatusUpdates(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	r := p.last("a1")

	r.emit(Status{Position: 12, Duration: 30, Playing: true})
	st := c.State()
	if st.Position != 12 || st.Duration != 30 || !st.IsPlaying {
		t.Errorf("state = %+v", st)
	}

	r.emit(Status{Position: 99, Duration: 30, Playing: true})
	if got := c.State().Position; got != 30 {
		t.Errorf("position = %v, want clamped 30", got)
	}

	r.emit(Status{Position: 30, Duration: 30, Completed: true})
	st = c.State()
	if st.IsPlaying || st.ActiveID != "a1" || !st.Completed() {
		t.Errorf("after completion state = %+v, want a1 completed and not playing", st)
	}

	// Resuming a completed resource rewinds.
	if err := c.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if st := c.State(); st.Position != 0 || !st.IsPlaying {
		t.Errorf("after resume state = %+v", st)
	}
	if indexOf(p.events(), "seek a1 0.0") < 0 {
		t.Errorf("resume after completion did not rewind; events = %v", p.events())
	}
}

func TestStaleStatusIgnored(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	old := p.last("a1")
	if err := c.Play(ctx, videoV1); err != nil {
		t.Fatal(err)
	}
	p.last("v1").emit(Status{Position: 3, Duration: 90, Playing: true})
	before := c.State()

	// Direct callback with a superseded id, and a report through the
	// unloaded session.
	c.OnStatusUpdate("a1", Status{Position: 50, Duration: 55, Completed: true})
	old.emit(Status{Position: 51, Duration: 55, Completed: true})

	if after := c.State(); after != before {
		t.Errorf("stale status changed state: before %+v after %+v", before, after)
	}
}

func TestTabChangeStopsPlayback(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()

	c.OnTabChanged(ctx, media.TabAudio)
	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}

	c.OnTabChanged(ctx, media.TabAudio)
	if !c.State().IsPlaying {
		t.Fatal("re-selecting the same tab stopped playback")
	}

	c.OnTabChanged(ctx, media.TabVideos)
	st := c.State()
	if st.IsPlaying || st.ActiveID != "" {
		t.Errorf("after tab change state = %+v, want idle", st)
	}
	if !p.last("a1").isUnloaded() {
		t.Error("a1 not unloaded after tab change")
	}
}

func TestFocusLostStopsPlayback(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()

	if err := c.Play(ctx, videoV1); err != nil {
		t.Fatal(err)
	}
	c.OnFocusLost(ctx)
	if st := c.State(); st.IsPlaying || st.ActiveID != "" {
		t.Errorf("after focus loss state = %+v", st)
	}
	if !p.last("v1").isUnloaded() {
		t.Error("v1 not unloaded after focus loss")
	}
}

func TestUnmountClosesCoordinator(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()
	sub := c.Subscribe()

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	c.OnUnmount(ctx)
	c.OnUnmount(ctx)

	if !p.last("a1").isUnloaded() {
		t.Error("a1 not unloaded on unmount")
	}
	if err := c.Play(ctx, audioA2); !errors.Is(err, ErrClosed) {
		t.Errorf("Play after unmount = %v, want ErrClosed", err)
	}

	for range sub {
	}
	if _, ok := <-c.Subscribe(); ok {
		t.Error("Subscribe after unmount returned an open channel")
	}
}

func TestSubscribeCoalesces(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()
	sub := c.Subscribe()

	if err := c.Play(ctx, audioA1); err != nil {
		t.Fatal(err)
	}
	r := p.last("a1")
	for i := 1; i <= 10; i++ {
		r.emit(Status{Position: float64(i), Duration: 20, Playing: true})
	}

	st := <-sub
	if st.Position != 10 || st.ActiveID != "a1" {
		t.Errorf("subscriber got %+v, want latest snapshot at position 10", st)
	}
	select {
	case extra := <-sub:
		t.Errorf("unexpected extra snapshot %+v", extra)
	default:
	}
}

func TestAtMostOnePlaying(t *testing.T) {
	p := newFakeProvider()
	c := NewCoordinator(p)
	ctx := context.Background()

	items := []Item{audioA1, videoV1, audioA2, audioA1, videoV1}
	for _, it := range items {
		if err := c.Play(ctx, it); err != nil {
			t.Fatal(err)
		}
		playing := 0
		for _, id := range []string{"a1", "a2", "v1"} {
			if r := p.last(id); r != nil && r.isPlaying() {
				playing++
			}
		}
		if playing != 1 {
			t.Errorf("after Play(%s) %d resources playing, want 1", it.ID, playing)
		}
	}
	if p.peakLoaded() != 1 {
		t.Errorf("peak loaded decoders = %d, want 1", p.peakLoaded())
	}
}
