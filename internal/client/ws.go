package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// WSClient manages the live-update WebSocket for one event.
type WSClient struct {
	url     string
	token   string
	eventID string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (ping, subscribe)
	conn    *websocket.Conn
	seq     uint64
	pingCtx context.CancelFunc // cancels the active ping goroutine
}

// NewWSClient creates a client that connects to url and subscribes to
// updates of eventID.
func NewWSClient(url, token, eventID string) *WSClient {
	return &WSClient{url: url, token: token, eventID: eventID}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSEventUpdatedMsg announces a change to the subscribed event.
type WSEventUpdatedMsg struct{ Payload EventUpdatedPayload }

// WSEventDeletedMsg announces that the subscribed event was deleted.
type WSEventDeletedMsg struct{ Payload EventDeletedPayload }

// WSErrorMsg wraps a server-side error.
type WSErrorMsg struct{ Raw json.RawMessage }

// Listen returns a Bubble Tea command that connects and subscribes. It
// retries with exponential backoff until it succeeds or ctx is done.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
			if err != nil {
				klog.V(1).Infof("ws dial error: %v (retry in %v)", err, delay)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				delay = min(delay*2, reconnectMaxDelay)
				continue
			}

			// The connection isn't shared yet, so no write mutex.
			if err := c.handshake(conn); err != nil {
				klog.Warningf("ws handshake: %v", err)
				conn.Close()
				continue
			}

			c.mu.Lock()
			if c.pingCtx != nil {
				c.pingCtx()
			}
			pingCtx, pingCancel := context.WithCancel(ctx)
			c.conn = conn
			c.seq = 0
			c.pingCtx = pingCancel
			c.mu.Unlock()

			go c.pingLoop(pingCtx, conn)

			klog.Infof("ws connected to %s", c.url)
			return WSConnectedMsg{}
		}
	}
}

func (c *WSClient) handshake(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	if c.token != "" {
		if err := conn.WriteJSON(map[string]string{"type": "auth", "token": c.token}); err != nil {
			return err
		}
	}
	if c.eventID != "" {
		if err := conn.WriteJSON(map[string]string{"type": "subscribe", "eventId": c.eventID}); err != nil {
			return err
		}
	}
	return nil
}

// ReadLoop returns a Bubble Tea command that reads until the next message
// relevant to the UI. Re-issue it after each message it returns.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
				}
				c.mu.Unlock()
				conn.Close()
				return WSDisconnectedMsg{Err: err}
			}

			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				klog.V(2).Infof("ws: skipping malformed message: %v", err)
				continue
			}

			c.mu.Lock()
			c.seq = msg.Seq
			c.mu.Unlock()

			if teaMsg := c.dispatch(msg); teaMsg != nil {
				return teaMsg
			}
		}
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close drops the current connection, if any.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.pingCtx != nil {
		c.pingCtx()
		c.pingCtx = nil
	}
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Seq returns the last seen sequence number.
func (c *WSClient) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func (c *WSClient) dispatch(msg WSMessage) tea.Msg {
	switch msg.Type {
	case MsgEventUpdated:
		var p EventUpdatedPayload
		if json.Unmarshal(msg.Payload, &p) == nil && c.relevant(p.EventID) {
			return WSEventUpdatedMsg{Payload: p}
		}
	case MsgEventDeleted:
		var p EventDeletedPayload
		if json.Unmarshal(msg.Payload, &p) == nil && c.relevant(p.EventID) {
			return WSEventDeletedMsg{Payload: p}
		}
	case MsgError:
		return WSErrorMsg{Raw: msg.Payload}
	}
	return nil
}

func (c *WSClient) relevant(eventID string) bool {
	return c.eventID == "" || eventID == c.eventID
}
