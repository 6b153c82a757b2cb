package playback

import (
	"context"
	"errors"
	"testing"

	"github.com/journal/mediadeck/internal/media"
)

func TestNewSessionKinds(t *testing.T) {
	p := newFakeProvider()
	tests := []struct {
		item    Item
		wantErr error
	}{
		{Item{ID: "a", Kind: media.KindAudio}, nil},
		{Item{ID: "v", Kind: media.KindVideo}, nil},
		{Item{ID: "i", Kind: media.KindImage}, ErrNotPlayable},
		{Item{ID: "o", Kind: media.KindOther}, ErrNotPlayable},
	}
	for _, tt := range tests {
		s, err := NewSession(tt.item, p, nil)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("NewSession(%s) err = %v, want %v", tt.item.Kind, err, tt.wantErr)
			continue
		}
		if tt.wantErr == nil && (s == nil || s.ID() != tt.item.ID || s.Kind() != tt.item.Kind) {
			t.Errorf("NewSession(%s) = %v", tt.item.Kind, s)
		}
		if tt.wantErr != nil && s != nil {
			t.Errorf("NewSession(%s) returned non-nil session on error", tt.item.Kind)
		}
	}

	if _, err := NewAudioSession(videoV1, p, nil); !errors.Is(err, ErrNotPlayable) {
		t.Errorf("NewAudioSession(video) = %v, want ErrNotPlayable", err)
	}
	if _, err := NewVideoSession(audioA1, p, nil); !errors.Is(err, ErrNotPlayable) {
		t.Errorf("NewVideoSession(audio) = %v, want ErrNotPlayable", err)
	}
}

func TestSessionOpsBeforeLoad(t *testing.T) {
	ctx := context.Background()
	s, err := NewAudioSession(audioA1, newFakeProvider(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Play(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Play = %v, want ErrNotLoaded", err)
	}
	if err := s.Pause(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Pause = %v, want ErrNotLoaded", err)
	}
	if err := s.Seek(ctx, 1); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Seek = %v, want ErrNotLoaded", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop before load = %v, want nil", err)
	}
}

func TestSessionStopNeverStarted(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	s, err := NewVideoSession(videoV1, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop = %v, want nil", err)
	}
	if indexOf(p.events(), "stop v1") >= 0 {
		t.Error("Stop on a never-started session reached the resource")
	}
}

func TestSessionUnload(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	var got []Status
	s, err := NewAudioSession(audioA1, p, func(id string, st Status) { got = append(got, st) })
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Play(ctx); err != nil {
		t.Fatal(err)
	}
	res := p.last("a1")
	res.emit(Status{Position: 1, Playing: true})

	if err := s.Unload(ctx); err != nil {
		t.Fatalf("Unload = %v", err)
	}
	res.emit(Status{Position: 2, Playing: true})
	if len(got) != 1 {
		t.Errorf("got %d status reports, want 1 (post-unload reports dropped)", len(got))
	}

	ops := map[string]func() error{
		"Load":   func() error { return s.Load(ctx) },
		"Play":   func() error { return s.Play(ctx) },
		"Pause":  func() error { return s.Pause(ctx) },
		"Seek":   func() error { return s.Seek(ctx, 0) },
		"Stop":   func() error { return s.Stop(ctx) },
		"Unload": func() error { return s.Unload(ctx) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrUnloaded) {
			t.Errorf("%s after Unload = %v, want ErrUnloaded", name, err)
		}
	}
}

func TestSessionSeekClampsNegative(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	s, err := NewAudioSession(audioA1, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Seek(ctx, -3); err != nil {
		t.Fatal(err)
	}
	if indexOf(p.events(), "seek a1 0.0") < 0 {
		t.Errorf("negative seek not clamped; events = %v", p.events())
	}
}

func TestAudioSessionDropsFrameSize(t *testing.T) {
	p := newFakeProvider()
	var got Status
	if _, err := NewAudioSession(audioA1, p, func(id string, st Status) { got = st }); err != nil {
		t.Fatal(err)
	}
	p.last("a1").emit(Status{Position: 1, Width: 640, Height: 480})
	if got.Width != 0 || got.Height != 0 {
		t.Errorf("audio status carried frame size %dx%d", got.Width, got.Height)
	}
}

func TestVideoSessionFrameSize(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	s, err := NewVideoSession(videoV1, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := s.FrameSize(); w != 0 || h != 0 {
		t.Errorf("initial frame size %dx%d, want 0x0", w, h)
	}
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Play(ctx); err != nil {
		t.Fatal(err)
	}

	res := p.last("v1")
	res.emit(Status{Position: 0.5, Playing: true, Width: 1920, Height: 1080})
	res.emit(Status{Position: 1, Playing: true})
	if w, h := s.FrameSize(); w != 1920 || h != 1080 {
		t.Errorf("frame size %dx%d, want 1920x1080", w, h)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if w, h := s.FrameSize(); w != 0 || h != 0 {
		t.Errorf("frame size after Stop %dx%d, want 0x0", w, h)
	}
}

func TestLoadErrorFormat(t *testing.T) {
	err := &LoadError{ID: "clip.mp4", Kind: media.KindVideo, Err: errBoom}
	if got, want := err.Error(), "load video clip.mp4: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, errBoom) {
		t.Error("LoadError does not unwrap")
	}
}
