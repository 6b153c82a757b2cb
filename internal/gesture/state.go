package gesture

import (
	"math"

	"github.com/charmbracelet/harmonica"
)

// settleEpsilon is how close to identity (and how slow) the fit animation
// must get before it snaps and stops.
const settleEpsilon = 0.001

// SpringConfig parameterises the fit-to-screen animation.
type SpringConfig struct {
	FPS       int
	Frequency float64
	Damping   float64
}

// DefaultSpring returns a critically damped spring at 60 FPS.
func DefaultSpring() SpringConfig {
	return SpringConfig{FPS: 60, Frequency: 6.0, Damping: 1.0}
}

// State is the transform of one displayed image plus the baselines captured
// when each gesture began. It is owned by a single viewer and is not safe for
// concurrent use; the pinch and pan handlers share only the pure clamp math.
type State struct {
	current  Transform
	baseline Transform

	content  Size
	viewport Size

	pinching bool
	panning  bool

	spring harmonica.Spring
	anim   *fitAnimation
}

type fitAnimation struct {
	scaleVel float64
	xVel     float64
	yVel     float64
}

// New returns an identity transform using the given spring for Fit.
func New(cfg SpringConfig) *State {
	if cfg.FPS <= 0 {
		cfg = DefaultSpring()
	}
	return &State{
		current:  Identity(),
		baseline: Identity(),
		spring:   harmonica.NewSpring(harmonica.FPS(cfg.FPS), cfg.Frequency, cfg.Damping),
	}
}

// Transform returns the current transform.
func (s *State) Transform() Transform { return s.current }

// Baseline returns the transform captured at the last gesture boundary.
func (s *State) Baseline() Transform { return s.baseline }

// Scale returns the current zoom factor.
func (s *State) Scale() float64 { return s.current.Scale }

// Translation returns the current pan offset.
func (s *State) Translation() Vec2 { return s.current.Translation }

// ContentSize returns the measured content size, zero when unmeasured.
func (s *State) ContentSize() Size { return s.content }

// Viewport returns the display surface size.
func (s *State) Viewport() Size { return s.viewport }

// Measured reports whether a content size has been supplied.
func (s *State) Measured() bool { return !s.content.IsZero() }

// Animating reports whether a Fit animation is running.
func (s *State) Animating() bool { return s.anim != nil }

// SetContentSize records the laid-out size of the image at scale 1. A zero
// size marks the image as unmeasured, which locks scale at 1 and disables
// pan.
func (s *State) SetContentSize(size Size) {
	s.content = size
	if size.IsZero() {
		s.content = Size{}
		s.snapIdentity()
		return
	}
	s.reclamp()
}

// SetViewport records the display surface size and re-clamps the pan.
func (s *State) SetViewport(size Size) {
	s.viewport = size
	s.reclamp()
}

// BeginPinch captures the current scale as the pinch baseline.
func (s *State) BeginPinch() {
	s.anim = nil
	s.pinching = true
	s.baseline.Scale = s.current.Scale
}

// UpdatePinch applies factor, relative to the pinch baseline. The result
// depends only on the baseline and factor, so repeating an update with the
// same factor is idempotent.
func (s *State) UpdatePinch(factor float64) {
	if !s.pinching {
		s.BeginPinch()
	}
	if !s.Measured() {
		s.current.Scale = MinScale
		return
	}
	s.current.Scale = ClampScale(s.baseline.Scale * factor)
	s.reclamp()
}

// EndPinch commits the current scale as the baseline for the next gesture.
func (s *State) EndPinch() {
	s.pinching = false
	s.baseline.Scale = s.current.Scale
	// Zooming may have shrunk the pan bounds under a committed translation.
	if !s.panning {
		s.baseline.Translation = s.current.Translation
	}
}

// BeginPan captures the current translation as the pan baseline.
func (s *State) BeginPan() {
	s.anim = nil
	s.panning = true
	s.baseline.Translation = s.current.Translation
}

// UpdatePan applies delta, relative to the pan baseline. Pan has no effect
// at rest zoom.
func (s *State) UpdatePan(delta Vec2) {
	if !s.panning {
		s.BeginPan()
	}
	if s.current.Scale <= MinScale {
		s.current.Translation = Vec2{}
		return
	}
	s.current.Translation = ClampTranslation(s.baseline.Translation.Add(delta), s.bounds())
}

// EndPan commits the current translation as the baseline.
func (s *State) EndPan() {
	s.panning = false
	s.baseline.Translation = s.current.Translation
}

// Reset snaps to identity, drops any in-progress gesture and re-baselines.
func (s *State) Reset() {
	s.snapIdentity()
}

// Fit starts a spring animation back to identity. Call Step once per frame
// until it returns false. A new gesture cancels the animation where it is.
func (s *State) Fit() {
	if s.current.IsIdentity() {
		s.snapIdentity()
		return
	}
	s.pinching = false
	s.panning = false
	s.anim = &fitAnimation{}
}

// Step advances a running Fit animation by one frame and reports whether it
// is still running.
func (s *State) Step() bool {
	if s.anim == nil {
		return false
	}
	a := s.anim
	var scale, x, y float64
	scale, a.scaleVel = s.spring.Update(s.current.Scale, a.scaleVel, MinScale)
	x, a.xVel = s.spring.Update(s.current.Translation.X, a.xVel, 0)
	y, a.yVel = s.spring.Update(s.current.Translation.Y, a.yVel, 0)

	s.current.Scale = ClampScale(scale)
	s.current.Translation = ClampTranslation(Vec2{X: x, Y: y}, s.bounds())

	if s.settled() {
		s.snapIdentity()
		return false
	}
	s.baseline = s.current
	return true
}

func (s *State) settled() bool {
	a := s.anim
	return math.Abs(s.current.Scale-MinScale) < settleEpsilon &&
		math.Abs(s.current.Translation.X) < settleEpsilon &&
		math.Abs(s.current.Translation.Y) < settleEpsilon &&
		math.Abs(a.scaleVel) < settleEpsilon &&
		math.Abs(a.xVel) < settleEpsilon &&
		math.Abs(a.yVel) < settleEpsilon
}

func (s *State) snapIdentity() {
	s.anim = nil
	s.pinching = false
	s.panning = false
	s.current = Identity()
	s.baseline = Identity()
}

func (s *State) bounds() Vec2 {
	return PanBounds(s.content, s.viewport, s.current.Scale)
}

// reclamp pulls the translation back inside the bounds for the current
// scale, and clears it entirely at rest zoom.
func (s *State) reclamp() {
	if s.current.Scale <= MinScale {
		s.current.Translation = Vec2{}
		return
	}
	s.current.Translation = ClampTranslation(s.current.Translation, s.bounds())
}
