package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// descriptionFiles are read, in order, as an offline event's description.
var descriptionFiles = []string{"description.md", "README.md"}

// DirSource serves events from a local directory: every sub-directory of
// Root is one event and the media files below it are its media.
type DirSource struct {
	Root string
}

// NewDirSource returns a source rooted at root.
func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

// EventMedia walks the event directory and returns its media sorted by path.
func (s *DirSource) EventMedia(ctx context.Context, eventID string) (*Event, error) {
	dir, err := s.eventDir(eventID)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", eventID, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("event %q: not a directory", eventID)
	}

	ev := &Event{
		ID:        eventID,
		Title:     eventID,
		CreatedAt: fi.ModTime(),
	}

	err = godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if path != dir && strings.HasPrefix(filepath.Base(path), ".") {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			d := Descriptor{
				ID:   filepath.ToSlash(rel),
				URI:  path,
				MIME: mime.TypeByExtension(filepath.Ext(path)),
			}
			if Classify(d) == KindOther {
				klog.V(2).Infof("skipping non-media file %s", path)
				return nil
			}
			if st, err := os.Stat(path); err == nil {
				d.Size = st.Size()
			}
			ev.Media = append(ev.Media, d)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	for _, name := range descriptionFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			ev.Description = string(data)
			break
		}
	}

	klog.V(1).Infof("event %s: %d media files", eventID, len(ev.Media))
	return ev, nil
}

// Events lists the event IDs available under Root.
func (s *DirSource) Events() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Watch signals on the returned channel whenever the event directory changes.
// The channel is closed when ctx is done.
func (s *DirSource) Watch(ctx context.Context, eventID string) (<-chan struct{}, error) {
	dir, err := s.eventDir(eventID)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer close(changed)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				klog.V(1).Infof("event dir change: %v", event)
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					select {
					case changed <- struct{}{}:
					default:
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				klog.Warningf("event dir watch: %v", err)
			}
		}
	}()
	return changed, nil
}

func (s *DirSource) eventDir(eventID string) (string, error) {
	if eventID == "" || strings.ContainsAny(eventID, `/\`) || eventID == "." || eventID == ".." {
		return "", fmt.Errorf("invalid event id %q", eventID)
	}
	return filepath.Join(s.Root, eventID), nil
}
