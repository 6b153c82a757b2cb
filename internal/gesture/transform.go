// Package gesture holds the zoom and pan transform of the image currently
// shown by the viewer. Pinch and pan are independent recognizers that each
// capture a baseline on begin and compute their result from that baseline on
// every update, so repeated begin/update/end cycles never accumulate drift.
package gesture

import "math"

// Scale limits.
const (
	MinScale = 1.0
	MaxScale = 5.0
)

// Vec2 is a 2D offset in device-independent pixels.
type Vec2 struct {
	X float64
	Y float64
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Size is a width/height pair in device-independent pixels.
type Size struct {
	Width  float64
	Height float64
}

// IsZero reports whether either dimension is unknown.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Transform is the zoom factor and pan offset applied to an image.
type Transform struct {
	Scale       float64
	Translation Vec2
}

// Identity returns the at-rest transform.
func Identity() Transform {
	return Transform{Scale: MinScale}
}

// IsIdentity reports whether t is exactly the at-rest transform.
func (t Transform) IsIdentity() bool {
	return t.Scale == MinScale && t.Translation == Vec2{}
}

// ClampScale limits s to [MinScale, MaxScale]. NaN collapses to MinScale.
func ClampScale(s float64) float64 {
	if math.IsNaN(s) || s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// PanBounds returns the largest absolute translation allowed per axis when
// content is drawn at scale inside viewport. An axis where the scaled content
// does not overflow the viewport gets a bound of 0.
func PanBounds(content, viewport Size, scale float64) Vec2 {
	if content.IsZero() {
		return Vec2{}
	}
	return Vec2{
		X: math.Max(0, (content.Width*scale-viewport.Width)/2),
		Y: math.Max(0, (content.Height*scale-viewport.Height)/2),
	}
}

// ClampTranslation limits t per axis to [-bounds, +bounds].
func ClampTranslation(t, bounds Vec2) Vec2 {
	return Vec2{
		X: clampAxis(t.X, bounds.X),
		Y: clampAxis(t.Y, bounds.Y),
	}
}

func clampAxis(v, bound float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}

// FitContain returns the size natural takes when scaled uniformly to fit
// entirely inside viewport, preserving aspect ratio. Zero in, zero out.
func FitContain(natural, viewport Size) Size {
	if natural.IsZero() || viewport.IsZero() {
		return Size{}
	}
	ratio := math.Min(viewport.Width/natural.Width, viewport.Height/natural.Height)
	return Size{Width: natural.Width * ratio, Height: natural.Height * ratio}
}
