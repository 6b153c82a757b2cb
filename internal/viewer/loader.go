package viewer

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
	"k8s.io/klog/v2"

	"github.com/journal/mediadeck/internal/gesture"
)

// Loader opens the bytes behind a media URI.
type Loader interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// FileLoader reads local paths.
type FileLoader struct{}

func (FileLoader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	return os.Open(strings.TrimPrefix(uri, "file://"))
}

// HTTPLoader fetches http(s) URIs with an optional bearer token. Anything
// else is read from disk.
type HTTPLoader struct {
	token  string
	client *http.Client
}

// NewHTTPLoader returns a loader authenticating with token, if set.
func NewHTTPLoader(token string, timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPLoader{token: token, client: &http.Client{Timeout: timeout}}
}

func (l *HTTPLoader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		return FileLoader{}.Open(ctx, uri)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %d %s", uri, resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// MeasureURI decodes only the image header behind uri and returns its pixel
// size.
func MeasureURI(ctx context.Context, l Loader, uri string) (gesture.Size, error) {
	rc, err := l.Open(ctx, uri)
	if err != nil {
		return gesture.Size{}, fmt.Errorf("open %s: %w", uri, err)
	}
	defer rc.Close()
	cfg, _, err := image.DecodeConfig(rc)
	if err != nil {
		return gesture.Size{}, fmt.Errorf("decode %s: %w", uri, err)
	}
	return gesture.Size{Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
}

// DecodeURI decodes the full image behind uri.
func DecodeURI(ctx context.Context, l Loader, uri string) (image.Image, error) {
	rc, err := l.Open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	defer rc.Close()
	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", uri, err)
	}
	return img, nil
}

// Measure measures the open image through l and records the result. On
// failure the image stays unmeasured.
func (v *Viewer) Measure(ctx context.Context, l Loader) error {
	cur, ok := v.Current()
	if !ok {
		return nil
	}
	size, err := MeasureURI(ctx, l, cur.URI)
	if err != nil {
		klog.Warningf("measure %s: %v", cur.ID, err)
		return err
	}
	v.SetNaturalSize(cur.ID, size)
	return nil
}
