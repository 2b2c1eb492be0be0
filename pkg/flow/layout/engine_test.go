package layout

import (
	"testing"

	"github.com/probelens/probelens/pkg/flow"
	"github.com/probelens/probelens/pkg/flow/lane"
)

// ingest appends the node and recomputes layout for its change set, the way
// the session engine drives the pipeline.
func ingest(t *testing.T, s *flow.Store, e *Engine, n flow.Node) {
	t.Helper()
	ch, err := s.Append(n)
	if err != nil {
		t.Fatalf("append %s: %v", n.ID, err)
	}
	e.Recompute(ch.Affected(n.ParentID))
}

func newTestEngine(t *testing.T) (*flow.Store, *Engine) {
	t.Helper()
	s := flow.NewStore()
	return s, NewEngine(s, lane.Default(), DefaultSpacing())
}

func TestMainLaneSuccessiveLevels(t *testing.T) {
	s, e := newTestEngine(t)

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "d", Kind: flow.KindDecision, Label: "Decide", ParentID: "r"})

	sp := DefaultSpacing()
	tests := []struct {
		id    string
		level int
	}{
		{"r", 0},
		{"d", 1},
	}
	for _, tt := range tests {
		p, ok := e.Position(tt.id)
		if !ok {
			t.Fatalf("no position for %s", tt.id)
		}
		if p.Level != tt.level || p.Lane != "main" {
			t.Errorf("%s: level=%d lane=%s, want level=%d lane=main", tt.id, p.Level, p.Lane, tt.level)
		}
		wantX := sp.BaseX + float64(tt.level)*sp.LevelSpacing
		if p.X != wantX || p.Y != sp.CenterY {
			t.Errorf("%s: (%.0f,%.0f), want (%.0f,%.0f)", tt.id, p.X, p.Y, wantX, sp.CenterY)
		}
	}
}

func TestThematicLanePlacement(t *testing.T) {
	s, e := newTestEngine(t)

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "d", Kind: flow.KindDecision, Label: "Decide", ParentID: "r"})
	ingest(t, s, e, flow.Node{ID: "n1", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "d"})
	ingest(t, s, e, flow.Node{ID: "n2", Kind: flow.KindAnalysis, Label: "News deep dive", ParentID: "n1"})

	p1, _ := e.Position("n1")
	p2, _ := e.Position("n2")

	if p1.Lane != "news" || p2.Lane != "news" {
		t.Fatalf("lanes = %s, %s, want news", p1.Lane, p2.Lane)
	}
	// The branch starts past the fork point (main flow ended at level 1).
	if p1.Level < 2 {
		t.Errorf("n1 level = %d, want >= 2", p1.Level)
	}
	if p2.Level != p1.Level+1 {
		t.Errorf("n2 level = %d, want %d", p2.Level, p1.Level+1)
	}
	// Same-lane nodes are staggered vertically, never overlapping.
	if p1.Y == p2.Y {
		t.Errorf("same-lane overlap: both at y=%.0f", p1.Y)
	}
	// The news lane sits above the center line and staggers away from it.
	sp := DefaultSpacing()
	if p1.Y >= sp.CenterY {
		t.Errorf("n1 y = %.0f, want above center %.0f", p1.Y, sp.CenterY)
	}
	if p2.Y >= p1.Y {
		t.Errorf("stagger moved toward center: n1=%.0f n2=%.0f", p1.Y, p2.Y)
	}
}

func TestValidationReservation(t *testing.T) {
	s, e := newTestEngine(t)

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "n1", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "r"})
	ingest(t, s, e, flow.Node{ID: "n2", Kind: flow.KindAnalysis, Label: "News follow-up", ParentID: "n1"})
	ingest(t, s, e, flow.Node{ID: "n3", Kind: flow.KindAnalysis, Label: "News verification", ParentID: "n2"})

	lastThematic, _ := e.Position("n3")

	ingest(t, s, e, flow.Node{ID: "v1", Kind: flow.KindValidation, Label: "Cross-validation", ParentID: "n3"})

	v, ok := e.Position("v1")
	if !ok {
		t.Fatal("no position for v1")
	}
	if v.Lane != "validation" {
		t.Fatalf("v1 lane = %s", v.Lane)
	}
	// The reservation is max(2, laneSize) past the last assigned level.
	// The news lane holds 3 nodes, so the gap must be at least 3.
	if got := v.Level - lastThematic.Level; got < 3 {
		t.Errorf("validation gap = %d, want >= 3", got)
	}
}

func TestValidationTwoLevelMinimum(t *testing.T) {
	s, e := newTestEngine(t)

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "n1", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "r"})
	ingest(t, s, e, flow.Node{ID: "v1", Kind: flow.KindValidation, Label: "Cross-validation", ParentID: "n1"})

	n1, _ := e.Position("n1")
	v, _ := e.Position("v1")
	// A single-node branch still gets the two-level lookahead.
	if got := v.Level - n1.Level; got < 2 {
		t.Errorf("validation gap = %d, want >= 2", got)
	}
}

func TestFinalPlacement(t *testing.T) {
	s, e := newTestEngine(t)

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "n1", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "r"})
	ingest(t, s, e, flow.Node{ID: "v1", Kind: flow.KindValidation, Label: "Cross-validation", ParentID: "n1"})
	ingest(t, s, e, flow.Node{ID: "m1", Kind: flow.KindInference, Label: "Master Inference", ParentID: "v1"})

	v, _ := e.Position("v1")
	m, _ := e.Position("m1")
	if m.Lane != "final" {
		t.Fatalf("m1 lane = %s", m.Lane)
	}
	if m.Level != v.Level+1 {
		t.Errorf("final level = %d, want %d", m.Level, v.Level+1)
	}
	if m.Y != DefaultSpacing().CenterY {
		t.Errorf("final y = %.0f, want centered at %.0f", m.Y, DefaultSpacing().CenterY)
	}
}

func TestMonotonicLayout(t *testing.T) {
	s, e := newTestEngine(t)

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "n1", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "r"})

	before := map[string]Position{}
	for _, p := range e.Positions() {
		before[p.NodeID] = p
	}

	// Unrelated later arrivals across every lane.
	ingest(t, s, e, flow.Node{ID: "f1", Kind: flow.KindAnalysis, Label: "Earnings analysis", ParentID: "r"})
	ingest(t, s, e, flow.Node{ID: "m1", Kind: flow.KindAnalysis, Label: "Market context", ParentID: "r"})
	ingest(t, s, e, flow.Node{ID: "v1", Kind: flow.KindValidation, Label: "Cross-validation", ParentID: "f1"})
	ingest(t, s, e, flow.Node{ID: "x1", Kind: flow.KindDecision, Label: "Follow-up decision", ParentID: "r"})

	for id, want := range before {
		got, ok := e.Position(id)
		if !ok {
			t.Fatalf("position for %s disappeared", id)
		}
		if got != want {
			t.Errorf("%s position changed: %+v -> %+v", id, want, got)
		}
	}
}

func TestDeferredResolution(t *testing.T) {
	s, e := newTestEngine(t)

	// Child before parent: no position until the parent is ingested.
	ingest(t, s, e, flow.Node{ID: "c", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "p"})

	if _, ok := e.Position("c"); ok {
		t.Fatal("deferred node has a position before its parent arrived")
	}
	if got := e.Deferred(); len(got) != 1 || got[0] != "c" {
		t.Fatalf("Deferred() = %v, want [c]", got)
	}

	// Parent arrives; the child resolves without re-ingestion.
	ingest(t, s, e, flow.Node{ID: "p", Kind: flow.KindDataFetch, Label: "Fetch data"})

	c, ok := e.Position("c")
	if !ok {
		t.Fatal("child not positioned after parent arrived")
	}
	if c.Lane != "news" || c.Level < 1 {
		t.Errorf("child placed at level=%d lane=%s, want level>=1 lane=news", c.Level, c.Lane)
	}
	if got := e.Deferred(); len(got) != 0 {
		t.Errorf("Deferred() = %v, want empty", got)
	}
}

func TestDeferredChain(t *testing.T) {
	s, e := newTestEngine(t)

	// Grandchild and child both precede the root.
	ingest(t, s, e, flow.Node{ID: "gc", Kind: flow.KindAnalysis, Label: "News deep dive", ParentID: "c"})
	ingest(t, s, e, flow.Node{ID: "c", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "r"})

	if len(e.Positions()) != 0 {
		t.Fatalf("positions assigned before root: %v", e.Positions())
	}

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})

	// The whole chain resolves from one arrival.
	for _, id := range []string{"r", "c", "gc"} {
		if _, ok := e.Position(id); !ok {
			t.Errorf("%s not positioned", id)
		}
	}
}

func TestFinalizeDangling(t *testing.T) {
	s, e := newTestEngine(t)

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "orphan", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "ghost"})

	maxBefore := e.MaxLevel()

	placed := e.FinalizeDangling()
	if len(placed) != 1 || placed[0] != "orphan" {
		t.Fatalf("FinalizeDangling() = %v, want [orphan]", placed)
	}

	p, ok := e.Position("orphan")
	if !ok {
		t.Fatal("orphan not positioned")
	}
	// Best-effort placement trails every resolved node.
	if p.Level <= maxBefore {
		t.Errorf("orphan level = %d, want > %d", p.Level, maxBefore)
	}
	if got := e.Deferred(); len(got) != 0 {
		t.Errorf("Deferred() = %v, want empty", got)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	s, e := newTestEngine(t)

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})
	before, _ := e.Position("r")

	// Recomputing an already-placed node must not move it or place it twice.
	if placed := e.Recompute([]string{"r"}); len(placed) != 0 {
		t.Errorf("Recompute placed already-positioned node: %v", placed)
	}
	after, _ := e.Position("r")
	if before != after {
		t.Errorf("position changed: %+v -> %+v", before, after)
	}
	if len(e.Positions()) != 1 {
		t.Errorf("Positions() has %d entries, want 1", len(e.Positions()))
	}
}

func TestResetClearsEverything(t *testing.T) {
	s, e := newTestEngine(t)

	ingest(t, s, e, flow.Node{ID: "r", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "orphan", Kind: flow.KindAnalysis, Label: "News", ParentID: "ghost"})

	e.Reset()

	if len(e.Positions()) != 0 {
		t.Errorf("Positions() = %v, want empty", e.Positions())
	}
	if len(e.Deferred()) != 0 {
		t.Errorf("Deferred() = %v, want empty", e.Deferred())
	}
	if e.MaxLevel() != -1 {
		t.Errorf("MaxLevel() = %d, want -1", e.MaxLevel())
	}
}
