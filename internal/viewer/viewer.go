// Package viewer implements the full-screen image browser of an event: which
// image is open, paging between images, and the zoom/pan transform of the
// open image.
package viewer

import (
	"k8s.io/klog/v2"

	"github.com/journal/mediadeck/internal/gesture"
	"github.com/journal/mediadeck/internal/media"
)

// Options configures a Viewer.
type Options struct {
	Spring gesture.SpringConfig
}

// Viewer is the image viewer session. The zero value is not usable; call New.
// A Viewer is driven from a single goroutine.
type Viewer struct {
	items []media.Descriptor
	open  bool
	index int

	// natural image sizes by descriptor ID, kept across page changes
	sizes    map[string]gesture.Size
	viewport gesture.Size

	gesture *gesture.State
}

// New returns a closed viewer over the images among items. Non-image
// descriptors are dropped.
func New(items []media.Descriptor, opts Options) *Viewer {
	return &Viewer{
		items:   media.Filter(items, media.KindImage),
		sizes:   make(map[string]gesture.Size),
		gesture: gesture.New(opts.Spring),
	}
}

// Len returns the number of images.
func (v *Viewer) Len() int { return len(v.items) }

// Items returns the images in display order.
func (v *Viewer) Items() []media.Descriptor { return v.items }

// IsOpen reports whether the viewer is displaying an image.
func (v *Viewer) IsOpen() bool { return v.open }

// Index returns the open image's index, or -1 when closed.
func (v *Viewer) Index() int {
	if !v.open {
		return -1
	}
	return v.index
}

// Current returns the open image.
func (v *Viewer) Current() (media.Descriptor, bool) {
	if !v.open {
		return media.Descriptor{}, false
	}
	return v.items[v.index], true
}

// SetItems replaces the image list, keeping the open image if it is still
// present. Otherwise the viewer stays open at the clamped index with a fresh
// transform, or closes if no images remain.
func (v *Viewer) SetItems(items []media.Descriptor) {
	var openID string
	if cur, ok := v.Current(); ok {
		openID = cur.ID
	}
	v.items = media.Filter(items, media.KindImage)
	if !v.open {
		return
	}
	for i, d := range v.items {
		if d.ID == openID {
			v.index = i
			return
		}
	}
	if len(v.items) == 0 {
		v.Close()
		return
	}
	v.show(v.index)
}

// Open displays the image at i, clamped into range, with a fresh transform.
// No-op when there are no images.
func (v *Viewer) Open(i int) {
	if len(v.items) == 0 {
		klog.V(1).Info("viewer: open with no images")
		return
	}
	v.open = true
	v.show(i)
}

// Close leaves the viewer and resets the transform.
func (v *Viewer) Close() {
	v.open = false
	v.index = 0
	v.gesture.Reset()
	v.gesture.SetContentSize(gesture.Size{})
}

// Next advances to the following image. No-op on the last image or when
// closed.
func (v *Viewer) Next() bool {
	if !v.open || v.index >= len(v.items)-1 {
		return false
	}
	v.show(v.index + 1)
	return true
}

// Previous goes back one image. No-op on the first image or when closed.
func (v *Viewer) Previous() bool {
	if !v.open || v.index <= 0 {
		return false
	}
	v.show(v.index - 1)
	return true
}

func (v *Viewer) show(i int) {
	if i < 0 {
		i = 0
	}
	if i > len(v.items)-1 {
		i = len(v.items) - 1
	}
	v.index = i
	v.gesture.Reset()
	v.syncContent()
}

// OnImageMeasured records the natural pixel size of the open image. Until it
// is called the image counts as unmeasured: zoom stays at 1 and panning is
// disabled.
func (v *Viewer) OnImageMeasured(width, height float64) {
	cur, ok := v.Current()
	if !ok {
		return
	}
	v.SetNaturalSize(cur.ID, gesture.Size{Width: width, Height: height})
}

// SetNaturalSize records the natural size of the image with the given id.
// Measurements that arrive after the user paged away are kept for when the
// image is shown again.
func (v *Viewer) SetNaturalSize(id string, size gesture.Size) {
	if size.IsZero() {
		delete(v.sizes, id)
	} else {
		v.sizes[id] = size
	}
	if cur, ok := v.Current(); ok && cur.ID == id {
		v.syncContent()
	}
}

// NaturalSize returns the recorded natural size of the image with id.
func (v *Viewer) NaturalSize(id string) (gesture.Size, bool) {
	s, ok := v.sizes[id]
	return s, ok
}

// SetViewport sets the display area the image is laid out in.
func (v *Viewer) SetViewport(width, height float64) {
	v.viewport = gesture.Size{Width: width, Height: height}
	v.gesture.SetViewport(v.viewport)
	v.syncContent()
}

// Viewport returns the display area.
func (v *Viewer) Viewport() gesture.Size { return v.viewport }

// ContentSize returns the natural size of the open image that pan bounds are
// computed from, zero when unmeasured.
func (v *Viewer) ContentSize() gesture.Size { return v.gesture.ContentSize() }

// LayoutSize returns the open image contain-fitted into the viewport, the
// size it is drawn at scale 1. Zero when unmeasured.
func (v *Viewer) LayoutSize() gesture.Size {
	return gesture.FitContain(v.gesture.ContentSize(), v.viewport)
}

func (v *Viewer) syncContent() {
	var natural gesture.Size
	if cur, ok := v.Current(); ok {
		natural = v.sizes[cur.ID]
	}
	v.gesture.SetContentSize(natural)
}

// Transform returns the open image's transform.
func (v *Viewer) Transform() gesture.Transform { return v.gesture.Transform() }

// Measured reports whether the open image has a known size.
func (v *Viewer) Measured() bool { return v.gesture.Measured() }

// BeginPinch starts a pinch on the open image.
func (v *Viewer) BeginPinch() {
	if v.open {
		v.gesture.BeginPinch()
	}
}

// UpdatePinch sets the pinch factor relative to where the pinch began.
func (v *Viewer) UpdatePinch(factor float64) {
	if v.open {
		v.gesture.UpdatePinch(factor)
	}
}

// EndPinch commits the pinched scale.
func (v *Viewer) EndPinch() {
	if v.open {
		v.gesture.EndPinch()
	}
}

// BeginPan starts a pan on the open image.
func (v *Viewer) BeginPan() {
	if v.open {
		v.gesture.BeginPan()
	}
}

// UpdatePan sets the pan offset relative to where the pan began.
func (v *Viewer) UpdatePan(delta gesture.Vec2) {
	if v.open {
		v.gesture.UpdatePan(delta)
	}
}

// EndPan finishes the pan.
func (v *Viewer) EndPan() {
	if v.open {
		v.gesture.EndPan()
	}
}

// ZoomBy runs a whole pinch gesture with the given factor.
func (v *Viewer) ZoomBy(factor float64) {
	v.BeginPinch()
	v.UpdatePinch(factor)
	v.EndPinch()
}

// PanBy runs a whole pan gesture with the given delta.
func (v *Viewer) PanBy(delta gesture.Vec2) {
	v.BeginPan()
	v.UpdatePan(delta)
	v.EndPan()
}

// Fit starts animating the open image back to the identity transform.
func (v *Viewer) Fit() {
	if v.open {
		v.gesture.Fit()
	}
}

// Step advances the fit animation by one frame and reports whether it is
// still running.
func (v *Viewer) Step() bool { return v.gesture.Step() }

// Animating reports whether a fit animation is in progress.
func (v *Viewer) Animating() bool { return v.gesture.Animating() }
