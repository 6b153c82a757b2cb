package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"k8s.io/klog/v2"
)

var errIPCClosed = errors.New("mpv ipc closed")

// ipcRequest is one line sent to mpv's JSON IPC socket.
type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is one line received from mpv: either a reply carrying
// request_id or an asynchronous event.
type ipcMessage struct {
	RequestID *int64          `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	Event  string `json:"event,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ipc multiplexes commands and events over a single mpv IPC connection.
type ipc struct {
	conn    net.Conn
	onEvent func(ipcMessage)

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan ipcMessage
	closed  bool
	done    chan struct{}
}

func newIPC(conn net.Conn, onEvent func(ipcMessage)) *ipc {
	c := &ipc{
		conn:    conn,
		onEvent: onEvent,
		pending: make(map[int64]chan ipcMessage),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// command sends args and waits for mpv's reply.
func (c *ipc) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errIPCClosed
	}
	c.nextID++
	id := c.nextID
	reply := make(chan ipcMessage, 1)
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("mpv write: %w", err)
	}

	select {
	case msg := <-reply:
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-c.done:
		return nil, errIPCClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *ipc) readLoop() {
	defer c.shutdown()
	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			klog.V(2).Infof("mpv ipc: skipping malformed line: %v", err)
			continue
		}
		if msg.Event != "" {
			if c.onEvent != nil {
				c.onEvent(msg)
			}
			continue
		}
		if msg.RequestID == nil {
			continue
		}
		c.mu.Lock()
		ch := c.pending[*msg.RequestID]
		c.mu.Unlock()
		if ch != nil {
			select {
			case ch <- msg:
			default:
			}
		}
	}
	if err := sc.Err(); err != nil {
		klog.V(1).Infof("mpv ipc read: %v", err)
	}
}

func (c *ipc) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Close closes the connection; pending commands fail with errIPCClosed.
func (c *ipc) Close() error {
	err := c.conn.Close()
	c.shutdown()
	return err
}

// Done is closed once the connection is gone.
func (c *ipc) Done() <-chan struct{} { return c.done }
