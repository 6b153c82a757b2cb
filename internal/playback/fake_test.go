package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeProvider hands out fakeResources and tracks how many decoders are
// loaded at once.
type fakeProvider struct {
	mu        sync.Mutex
	resources map[string][]*fakeResource
	log       []string
	loaded    int
	maxLoaded int

	// Per-id hooks.
	loadGate   map[string]chan struct{}
	unloadGate map[string]chan struct{}
	loadErr    map[string]error
	openErr    map[string]error
	stopErr    map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		resources:  make(map[string][]*fakeResource),
		loadGate:   make(map[string]chan struct{}),
		unloadGate: make(map[string]chan struct{}),
		loadErr:    make(map[string]error),
		openErr:    make(map[string]error),
		stopErr:    make(map[string]error),
	}
}

func (p *fakeProvider) Open(item Item, onStatus func(Status)) (Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.openErr[item.ID]; err != nil {
		return nil, err
	}
	r := &fakeResource{p: p, id: item.ID, onStatus: onStatus}
	p.resources[item.ID] = append(p.resources[item.ID], r)
	p.log = append(p.log, "open "+item.ID)
	return r, nil
}

func (p *fakeProvider) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, fmt.Sprintf(format, args...))
}

func (p *fakeProvider) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

func (p *fakeProvider) last(id string) *fakeResource {
	p.mu.Lock()
	defer p.mu.Unlock()
	rs := p.resources[id]
	if len(rs) == 0 {
		return nil
	}
	return rs[len(rs)-1]
}

func (p *fakeProvider) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources[id])
}

func (p *fakeProvider) peakLoaded() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxLoaded
}

func (p *fakeProvider) gate(id string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.loadGate[id] = ch
	return ch
}

// gateUnload blocks Unload of id until the returned channel is closed.
func (p *fakeProvider) gateUnload(id string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.unloadGate[id] = ch
	return ch
}

type fakeResource struct {
	p        *fakeProvider
	id       string
	onStatus func(Status)

	mu       sync.Mutex
	loaded   bool
	playing  bool
	unloaded bool
	position float64
	stops    int
}

func (r *fakeResource) Load(ctx context.Context) error {
	r.p.mu.Lock()
	gate := r.p.loadGate[r.id]
	err := r.p.loadErr[r.id]
	r.p.mu.Unlock()

	r.p.record("load-start %s", r.id)
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		r.p.record("load-fail %s", r.id)
		return err
	}

	r.mu.Lock()
	r.loaded = true
	r.mu.Unlock()

	r.p.mu.Lock()
	r.p.loaded++
	if r.p.loaded > r.p.maxLoaded {
		r.p.maxLoaded = r.p.loaded
	}
	r.p.log = append(r.p.log, "load-done "+r.id)
	r.p.mu.Unlock()
	return nil
}

func (r *fakeResource) Play(ctx context.Context) error {
	r.mu.Lock()
	r.playing = true
	r.mu.Unlock()
	r.p.record("play %s", r.id)
	return nil
}

func (r *fakeResource) Pause(ctx context.Context) error {
	r.mu.Lock()
	r.playing = false
	r.mu.Unlock()
	r.p.record("pause %s", r.id)
	return nil
}

func (r *fakeResource) Seek(ctx context.Context, seconds float64) error {
	r.mu.Lock()
	r.position = seconds
	r.mu.Unlock()
	r.p.record("seek %s %.1f", r.id, seconds)
	return nil
}

func (r *fakeResource) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.playing = false
	r.stops++
	r.mu.Unlock()
	r.p.record("stop %s", r.id)
	r.p.mu.Lock()
	err := r.p.stopErr[r.id]
	r.p.mu.Unlock()
	return err
}

func (r *fakeResource) Unload(ctx context.Context) error {
	r.p.mu.Lock()
	gate := r.p.unloadGate[r.id]
	r.p.mu.Unlock()
	if gate != nil {
		r.p.record("unload-start %s", r.id)
		<-gate
	}

	r.mu.Lock()
	wasLoaded := r.loaded
	r.loaded = false
	r.playing = false
	r.unloaded = true
	r.mu.Unlock()

	r.p.mu.Lock()
	if wasLoaded {
		r.p.loaded--
	}
	r.p.log = append(r.p.log, "unload "+r.id)
	r.p.mu.Unlock()
	return nil
}

func (r *fakeResource) isPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

func (r *fakeResource) isUnloaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unloaded
}

func (r *fakeResource) emit(st Status) {
	r.onStatus(st)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func indexOf(events []string, ev string) int {
	for i, e := range events {
		if e == ev {
			return i
		}
	}
	return -1
}

var errBoom = errors.New("boom")
