// Package player provides playback.Provider implementations: an mpv-backed
// provider driven over mpv's JSON IPC socket, and a simulated provider for
// demo mode.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/journal/mediadeck/internal/media"
	"github.com/journal/mediadeck/internal/playback"
)

// MPVOptions configures the mpv provider.
type MPVOptions struct {
	Binary      string        // mpv executable, looked up on PATH if not absolute
	SocketDir   string        // where IPC sockets are created, os.TempDir() if empty
	ExtraArgs   []string      // appended to every mpv invocation
	StopTimeout time.Duration // grace period before the process tree is killed
}

// MPV opens one mpv process per resource.
type MPV struct {
	opts MPVOptions
}

// NewMPV returns an mpv provider.
func NewMPV(opts MPVOptions) *MPV {
	if opts.Binary == "" {
		opts.Binary = "mpv"
	}
	if opts.SocketDir == "" {
		opts.SocketDir = os.TempDir()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	return &MPV{opts: opts}
}

// Open prepares a resource; no process is started until Load.
func (m *MPV) Open(item playback.Item, onStatus func(playback.Status)) (playback.Resource, error) {
	if !item.Kind.Playable() {
		return nil, fmt.Errorf("mpv open %s: %w", item.ID, playback.ErrNotPlayable)
	}
	if item.URI == "" {
		return nil, fmt.Errorf("mpv open %s: empty uri", item.ID)
	}
	return &mpvResource{
		opts:     m.opts,
		item:     item,
		onStatus: onStatus,
		socket:   filepath.Join(m.opts.SocketDir, "mediadeck-"+uuid.NewString()+".sock"),
	}, nil
}

// mpvArgs builds the mpv command line for one resource.
func mpvArgs(kind media.Kind, socket string, extra []string) []string {
	args := []string{
		"--idle=yes",
		"--pause",
		"--no-terminal",
		"--keep-open=yes",
		"--input-ipc-server=" + socket,
	}
	switch kind {
	case media.KindAudio:
		args = append(args, "--no-video", "--audio-display=no")
	case media.KindVideo:
		args = append(args, "--force-window=yes")
	}
	return append(args, extra...)
}

// observed properties, by observe id
var observedProps = []string{"time-pos", "duration", "pause", "eof-reached", "width", "height"}

type mpvResource struct {
	opts     MPVOptions
	item     playback.Item
	onStatus func(playback.Status)
	socket   string

	cmd    *exec.Cmd
	exited chan struct{}
	conn   *ipc

	loaded chan error // receives the outcome of loadfile

	mu     sync.Mutex
	status playback.Status
}

func (r *mpvResource) Load(ctx context.Context) error {
	r.cmd = exec.Command(r.opts.Binary, mpvArgs(r.item.Kind, r.socket, r.opts.ExtraArgs)...)
	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.opts.Binary, err)
	}
	r.exited = make(chan struct{})
	go func() {
		err := r.cmd.Wait()
		klog.V(1).Infof("mpv %s exited: %v", r.item.ID, err)
		close(r.exited)
	}()
	klog.V(1).Infof("mpv %s started pid %d", r.item.ID, r.cmd.Process.Pid)

	conn, err := r.dial(ctx)
	if err != nil {
		r.kill()
		return err
	}
	r.loaded = make(chan error, 1)
	r.conn = newIPC(conn, r.handleEvent)

	for i, name := range observedProps {
		if _, err := r.conn.command(ctx, "observe_property", i+1, name); err != nil {
			r.kill()
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}
	if _, err := r.conn.command(ctx, "loadfile", r.item.URI, "replace"); err != nil {
		r.kill()
		return fmt.Errorf("loadfile: %w", err)
	}

	select {
	case err := <-r.loaded:
		if err != nil {
			r.kill()
		}
		return err
	case <-r.exited:
		r.kill()
		return errors.New("mpv exited while loading")
	case <-ctx.Done():
		r.kill()
		return ctx.Err()
	}
}

// dial waits for mpv to create its IPC socket.
func (r *mpvResource) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	backoff := 10 * time.Millisecond
	for {
		conn, err := d.DialContext(ctx, "unix", r.socket)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial mpv ipc: %w", ctx.Err())
		case <-r.exited:
			return nil, errors.New("mpv exited before opening its ipc socket")
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

func (r *mpvResource) Play(ctx context.Context) error {
	_, err := r.conn.command(ctx, "set_property", "pause", false)
	return err
}

func (r *mpvResource) Pause(ctx context.Context) error {
	_, err := r.conn.command(ctx, "set_property", "pause", true)
	return err
}

func (r *mpvResource) Seek(ctx context.Context, seconds float64) error {
	_, err := r.conn.command(ctx, "seek", seconds, "absolute")
	return err
}

// Stop pauses and rewinds; the file stays loaded until Unload.
func (r *mpvResource) Stop(ctx context.Context) error {
	if _, err := r.conn.command(ctx, "set_property", "pause", true); err != nil {
		return err
	}
	_, err := r.conn.command(ctx, "seek", 0, "absolute")
	return err
}

// Unload asks mpv to quit and kills the process tree if it does not exit
// within the stop timeout.
func (r *mpvResource) Unload(ctx context.Context) error {
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	defer os.Remove(r.socket)

	if r.conn != nil {
		qctx, cancel := context.WithTimeout(ctx, r.opts.StopTimeout)
		_, err := r.conn.command(qctx, "quit")
		cancel()
		if err != nil && !errors.Is(err, errIPCClosed) {
			klog.V(1).Infof("mpv %s quit: %v", r.item.ID, err)
		}
		r.conn.Close()
	}

	select {
	case <-r.exited:
		return nil
	case <-time.After(r.opts.StopTimeout):
	case <-ctx.Done():
	}
	klog.Warningf("mpv %s did not exit, killing", r.item.ID)
	return r.kill()
}

func (r *mpvResource) kill() error {
	if r.conn != nil {
		r.conn.Close()
	}
	os.Remove(r.socket)
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.StopTimeout)
	defer cancel()
	return killTree(ctx, int32(r.cmd.Process.Pid), r.exited)
}

func (r *mpvResource) handleEvent(msg ipcMessage) {
	switch msg.Event {
	case "file-loaded":
		r.signalLoaded(nil)
		return
	case "end-file":
		if msg.Reason == "error" {
			r.signalLoaded(fmt.Errorf("mpv could not open %s", r.item.URI))
		}
		return
	case "property-change":
	default:
		return
	}

	r.mu.Lock()
	switch msg.Name {
	case "time-pos":
		r.status.Position = decodeFloat(msg.Data)
	case "duration":
		r.status.Duration = decodeFloat(msg.Data)
	case "pause":
		r.status.Playing = !decodeBool(msg.Data)
	case "eof-reached":
		r.status.Completed = decodeBool(msg.Data)
		if r.status.Completed {
			r.status.Playing = false
		}
	case "width":
		r.status.Width = int(decodeFloat(msg.Data))
	case "height":
		r.status.Height = int(decodeFloat(msg.Data))
	default:
		r.mu.Unlock()
		return
	}
	st := r.status
	r.mu.Unlock()

	if r.onStatus != nil {
		r.onStatus(st)
	}
}

func (r *mpvResource) signalLoaded(err error) {
	if r.loaded == nil {
		return
	}
	select {
	case r.loaded <- err:
	default:
	}
}

// decodeFloat reads a numeric property value; null or missing is zero.
func decodeFloat(data json.RawMessage) float64 {
	var f float64
	if len(data) == 0 || json.Unmarshal(data, &f) != nil {
		return 0
	}
	return f
}

func decodeBool(data json.RawMessage) bool {
	var b bool
	if len(data) == 0 || json.Unmarshal(data, &b) != nil {
		return false
	}
	return b
}
