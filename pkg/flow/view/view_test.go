package view

import (
	"reflect"
	"testing"
)

func TestZoomClamp(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		want   float64
	}{
		{"repeated zoom in clamps at max", 10.0, MaxScale},
		{"repeated zoom out clamps at min", 0.01, MinScale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViewport()
			for i := 0; i < 20; i++ {
				v.Zoom(tt.factor)
			}
			if got := v.State().Scale; got != tt.want {
				t.Errorf("Scale = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZoomInvalidFactorIgnored(t *testing.T) {
	v := NewViewport()
	before := v.State()
	for _, factor := range []float64{0, -1} {
		v.Zoom(factor)
	}
	if v.State() != before {
		t.Errorf("State changed on invalid factor: %+v", v.State())
	}
}

func TestZoomFocalPointStaysPut(t *testing.T) {
	v := NewViewport()
	v.Pan(50, -30)

	// Content coordinate under the focal point before zooming.
	const fx, fy = 200.0, 150.0
	s := v.State()
	cx := (fx - s.TranslateX) / s.Scale
	cy := (fy - s.TranslateY) / s.Scale

	v.Zoom(2.0, fx, fy)

	s = v.State()
	gotX := cx*s.Scale + s.TranslateX
	gotY := cy*s.Scale + s.TranslateY
	if gotX != fx || gotY != fy {
		t.Errorf("focal point moved to (%.2f, %.2f), want (%.0f, %.0f)", gotX, gotY, fx, fy)
	}
}

func TestPanUnconstrained(t *testing.T) {
	v := NewViewport()
	v.Pan(-1e6, 1e6)
	s := v.State()
	if s.TranslateX != -1e6 || s.TranslateY != 1e6 {
		t.Errorf("State = %+v, want fully offscreen pan applied", s)
	}
}

func TestDragAnchored(t *testing.T) {
	v := NewViewport()
	v.BeginDrag(100, 100)

	// Intermediate drag events at any rate land on the same final
	// transform: panning is relative to the anchor, not cumulative.
	v.DragTo(110, 100)
	v.DragTo(150, 90)
	v.DragTo(120, 130)

	s := v.State()
	if s.TranslateX != 20 || s.TranslateY != 30 {
		t.Errorf("State = %+v, want translate (20, 30)", s)
	}

	v.EndDrag()
	v.DragTo(500, 500) // no gesture active
	if v.State() != s {
		t.Errorf("DragTo after EndDrag moved the viewport: %+v", v.State())
	}
}

func TestViewportReset(t *testing.T) {
	v := NewViewport()
	v.Pan(10, 20)
	v.Zoom(2.0)
	v.Reset()
	if v.State() != DefaultState() {
		t.Errorf("State = %+v, want default", v.State())
	}
}

func TestExpansionToggle(t *testing.T) {
	e := NewExpansion()

	e.Toggle("a")
	if !e.IsExpanded("a") {
		t.Error("a not expanded after toggle")
	}

	e.Toggle("a")
	if e.IsExpanded("a") {
		t.Error("a still expanded after second toggle")
	}

	e.Toggle("") // ignored
	if e.Len() != 0 {
		t.Errorf("Len = %d, want 0", e.Len())
	}
}

func TestExpansionIDsSorted(t *testing.T) {
	e := NewExpansion()
	for _, id := range []string{"c", "a", "b"} {
		e.Toggle(id)
	}
	if got := e.IDs(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("IDs() = %v", got)
	}
}

func TestExpansionReset(t *testing.T) {
	e := NewExpansion()
	e.Toggle("a")
	e.Toggle("b")
	e.Reset()
	if e.Len() != 0 || e.IsExpanded("a") {
		t.Error("Reset did not clear the set")
	}
}
