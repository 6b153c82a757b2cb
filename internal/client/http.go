package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/journal/mediadeck/internal/media"
)

// HTTPClient makes REST calls to the journal backend.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8080").
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetEvent fetches /api/events/{id}.
func (c *HTTPClient) GetEvent(ctx context.Context, id string) (*EventResponse, error) {
	var e EventResponse
	if err := c.get(ctx, "/api/events/"+url.PathEscape(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEvents fetches /api/events.
func (c *HTTPClient) ListEvents(ctx context.Context) ([]EventSummary, error) {
	var out []EventSummary
	if err := c.get(ctx, "/api/events", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventMedia fetches an event and returns it with absolute media URIs. It
// makes HTTPClient a media.Source.
func (c *HTTPClient) EventMedia(ctx context.Context, eventID string) (*media.Event, error) {
	e, err := c.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ev := e.toEvent(c.ResolveURL)
	klog.V(1).Infof("event %s: %d media items", eventID, len(ev.Media))
	return ev, nil
}

// ResolveURL makes a server-relative media URL absolute.
func (c *HTTPClient) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}
