// Package view owns the purely presentational interaction state: the
// pan/zoom transform and the per-node expand/collapse flags.
//
// Both are independent of the data pipeline - user gestures never trigger
// layout recomputation - and are composed with layout output only at render
// time. Their lifecycle is scoped to the owning session: a session reset
// clears them together with the data layer, never separately, so stale
// expansion entries can't leak into the next investigation.
package view

import "math"

// Zoom bounds. The scale is always clamped to this range, whatever factors
// the caller accumulates.
const (
	MinScale = 0.1
	MaxScale = 3.0
)

// State is the serializable viewport transform.
type State struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// DefaultState returns the identity transform.
func DefaultState() State {
	return State{Scale: 1}
}

// Viewport holds the pan/zoom transform. All operations are synchronous and
// idempotent given the same inputs. Pan is unconstrained: content may be
// dragged fully offscreen, which keeps the transform trivial to reason
// about.
type Viewport struct {
	state State

	// Drag gestures are anchored: panning is relative to the transform
	// captured at drag start, not cumulative per-event, so event-rate
	// variance can't cause drift.
	dragging      bool
	anchorX       float64
	anchorY       float64
	anchorOriginX float64
	anchorOriginY float64
}

// NewViewport creates a viewport at the identity transform.
func NewViewport() *Viewport {
	return &Viewport{state: DefaultState()}
}

// State returns the current transform.
func (v *Viewport) State() State { return v.state }

// Pan shifts the transform by the given deltas.
func (v *Viewport) Pan(dx, dy float64) {
	v.state.TranslateX += dx
	v.state.TranslateY += dy
}

// BeginDrag captures the gesture anchor at the given pointer position.
// Subsequent DragTo calls pan relative to this anchor.
func (v *Viewport) BeginDrag(x, y float64) {
	v.dragging = true
	v.anchorX = x
	v.anchorY = y
	v.anchorOriginX = v.state.TranslateX
	v.anchorOriginY = v.state.TranslateY
}

// DragTo pans so the content follows the pointer from the drag anchor.
// A DragTo without a preceding BeginDrag is ignored.
func (v *Viewport) DragTo(x, y float64) {
	if !v.dragging {
		return
	}
	v.state.TranslateX = v.anchorOriginX + (x - v.anchorX)
	v.state.TranslateY = v.anchorOriginY + (y - v.anchorY)
}

// EndDrag finishes the gesture.
func (v *Viewport) EndDrag() { v.dragging = false }

// Zoom multiplies the scale by factor, clamped to [MinScale, MaxScale].
// When a focal point is given, the translation is adjusted so the content
// under the focal point stays put while the rest scales around it.
func (v *Viewport) Zoom(factor float64, focal ...float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}

	oldScale := v.state.Scale
	newScale := clampScale(oldScale * factor)
	if newScale == oldScale {
		return
	}

	if len(focal) >= 2 {
		fx, fy := focal[0], focal[1]
		ratio := newScale / oldScale
		v.state.TranslateX = fx - (fx-v.state.TranslateX)*ratio
		v.state.TranslateY = fy - (fy-v.state.TranslateY)*ratio
	}
	v.state.Scale = newScale
}

// Reset restores the identity transform and drops any active gesture.
func (v *Viewport) Reset() {
	v.state = DefaultState()
	v.dragging = false
}

func clampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}
