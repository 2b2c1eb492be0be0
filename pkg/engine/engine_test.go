package engine

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	pkgerrors "github.com/probelens/probelens/pkg/errors"
	"github.com/probelens/probelens/pkg/flow"
	"github.com/probelens/probelens/pkg/flow/layout"
	"github.com/probelens/probelens/pkg/flow/view"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	return New(opts...)
}

func mustIngest(t *testing.T, e *Engine, ev Event) {
	t.Helper()
	if err := e.Ingest(ev); err != nil {
		t.Fatalf("Ingest(%s %s): %v", ev.Type, ev.NodeID, err)
	}
}

func TestScenarioRootNewsValidation(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{
		Type: EventNodeCreated, NodeID: "R", Kind: "data-fetch", Label: "Fetch stock data",
	})

	snap := e.Snapshot()
	if len(snap.Positions) != 1 {
		t.Fatalf("positions after root = %d, want 1", len(snap.Positions))
	}
	if p := snap.Positions[0]; p.Level != 0 || p.Lane != "main" {
		t.Fatalf("root placed at level %d lane %q, want level 0 lane main", p.Level, p.Lane)
	}

	mustIngest(t, e, Event{
		Type: EventNodeCreated, NodeID: "N1", Kind: "analysis",
		Label: "News Sentiment Analysis", ParentID: "R",
	})

	snap = e.Snapshot()
	n1, ok := snap.Position("N1")
	if !ok {
		t.Fatal("N1 missing from positions")
	}
	if n1.Lane != "news" {
		t.Errorf("N1 lane = %q, want news", n1.Lane)
	}
	if n1.Level < 1 {
		t.Errorf("N1 level = %d, want >= 1", n1.Level)
	}

	mustIngest(t, e, Event{
		Type: EventNodeCreated, NodeID: "V1", Kind: "validation",
		Label: "Cross-validation", ParentID: "N1",
	})

	snap = e.Snapshot()
	v1, ok := snap.Position("V1")
	if !ok {
		t.Fatal("V1 missing from positions")
	}
	// One thematic node in the news lane, so the reservation is max(2, 1).
	if got := v1.Level - n1.Level; got < 2 {
		t.Errorf("V1 level %d is %d past N1 level %d, want gap >= 2", v1.Level, got, n1.Level)
	}
	if v1.Lane != "validation" {
		t.Errorf("V1 lane = %q, want validation", v1.Lane)
	}
}

func TestResetScenario(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "a", Kind: "data_fetch", Label: "root"})
	for _, id := range []string{"b", "c", "d", "e"} {
		mustIngest(t, e, Event{
			Type: EventNodeCreated, NodeID: id, Kind: "analysis",
			Label: "News branch " + id, ParentID: "a",
		})
	}
	e.ToggleExpand("b")
	e.ToggleExpand("c")
	e.Pan(50, 50)
	e.Zoom(2.0)

	if got := e.NodeCount(); got != 5 {
		t.Fatalf("NodeCount = %d, want 5", got)
	}

	e.Reset()

	snap := e.Snapshot()
	if len(snap.Positions) != 0 {
		t.Errorf("positions after reset = %d, want 0", len(snap.Positions))
	}
	if len(snap.Edges) != 0 {
		t.Errorf("edges after reset = %d, want 0", len(snap.Edges))
	}
	if len(snap.Nodes) != 0 {
		t.Errorf("nodes after reset = %d, want 0", len(snap.Nodes))
	}
	if len(snap.Expanded) != 0 {
		t.Errorf("expanded after reset = %v, want empty", snap.Expanded)
	}
	if snap.ViewState != view.DefaultState() {
		t.Errorf("view state after reset = %+v, want default", snap.ViewState)
	}
	if snap.Status != SessionRunning {
		t.Errorf("status after reset = %s, want running", snap.Status)
	}
	if len(snap.Diagnostics) != 0 {
		t.Errorf("diagnostics after reset = %v, want empty", snap.Diagnostics)
	}
}

func TestDuplicateConflictRejected(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "x", Kind: "analysis", Label: "first"})

	err := e.Ingest(Event{Type: EventNodeUpdated, NodeID: "x", Kind: "decision"})
	if err == nil {
		t.Fatal("expected conflict error for kind change")
	}
	if !pkgerrors.Is(err, pkgerrors.ErrCodeDuplicateConflict) {
		t.Errorf("error code = %s, want DUPLICATE_CONFLICT", pkgerrors.GetCode(err))
	}

	snap := e.Snapshot()
	n, ok := snap.Node("x")
	if !ok {
		t.Fatal("node x missing")
	}
	if n.Kind != flow.KindAnalysis {
		t.Errorf("kind after rejected event = %s, want analysis (prior state unaffected)", n.Kind)
	}
	if len(snap.Diagnostics) != 1 || snap.Diagnostics[0].Kind != flow.DiagDuplicateConflict {
		t.Errorf("diagnostics = %+v, want one duplicate_conflict", snap.Diagnostics)
	}
}

func TestMalformedPayloadStillPositioned(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "r", Kind: "data_fetch", Label: "root"})
	// Validation payload without validated_sources degrades to the generic
	// fallback.
	mustIngest(t, e, Event{
		Type: EventNodeCompleted, NodeID: "v", Kind: "validation",
		Label: "Validate", ParentID: "r",
		Data: map[string]any{"note": "incomplete"},
	})

	snap := e.Snapshot()
	if _, ok := snap.Position("v"); !ok {
		t.Error("malformed node should still be positioned")
	}
	found := false
	for _, d := range snap.Diagnostics {
		if d.Kind == flow.DiagMalformedPayload && d.NodeID == "v" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want malformed_payload for v", snap.Diagnostics)
	}
	n, _ := snap.Node("v")
	if len(n.Fields) == 0 {
		t.Error("fallback payload should still render key-value fields")
	}
}

func TestTerminateRetainsStateAndFlagsDangling(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "r", Kind: "data_fetch", Label: "root"})
	// Child of a parent that never arrives.
	mustIngest(t, e, Event{
		Type: EventNodeCreated, NodeID: "orphan", Kind: "analysis",
		Label: "News orphan", ParentID: "ghost",
	})

	snap := e.Snapshot()
	if _, ok := snap.Position("orphan"); ok {
		t.Fatal("orphan should be deferred before terminate")
	}

	e.Terminate()

	snap = e.Snapshot()
	if snap.Status != SessionTerminated {
		t.Errorf("status = %s, want terminated", snap.Status)
	}
	if _, ok := snap.Position("orphan"); !ok {
		t.Error("orphan should receive a best-effort position on terminate")
	}
	found := false
	for _, d := range snap.Diagnostics {
		if d.Kind == flow.DiagDanglingReference && d.NodeID == "orphan" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want dangling_reference for orphan", snap.Diagnostics)
	}

	// State is retained and interaction still works.
	if _, ok := snap.Position("r"); !ok {
		t.Error("terminate must retain existing positions")
	}
	e.ToggleExpand("r")
	if got := e.Snapshot().Expanded; len(got) != 1 || got[0] != "r" {
		t.Errorf("expansion after terminate = %v, want [r]", got)
	}
}

func TestIngestAfterTerminalEventRejected(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "r", Kind: "data_fetch", Label: "root"})
	mustIngest(t, e, Event{Type: EventInvestigationComplete})

	if got := e.Status(); got != SessionCompleted {
		t.Fatalf("status = %s, want completed", got)
	}

	err := e.Ingest(Event{Type: EventNodeCreated, NodeID: "late", Kind: "analysis", Label: "late"})
	if !pkgerrors.Is(err, pkgerrors.ErrCodeSessionTerminated) {
		t.Errorf("error code = %s, want SESSION_TERMINATED", pkgerrors.GetCode(err))
	}
	if e.NodeCount() != 1 {
		t.Errorf("NodeCount = %d, want 1 (late event must not be applied)", e.NodeCount())
	}
}

func TestTimeoutEventRecordsDiagnostic(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "r", Kind: "data_fetch", Label: "root"})
	mustIngest(t, e, Event{Type: EventInvestigationTimeout, Message: "backend gave up"})

	snap := e.Snapshot()
	if snap.Status != SessionTimedOut {
		t.Errorf("status = %s, want timed_out", snap.Status)
	}
	if len(snap.Diagnostics) != 1 || snap.Diagnostics[0].Kind != flow.DiagTimeout {
		t.Fatalf("diagnostics = %+v, want one timeout", snap.Diagnostics)
	}
	if snap.Diagnostics[0].Detail != "backend gave up" {
		t.Errorf("detail = %q", snap.Diagnostics[0].Detail)
	}
}

func TestSafetyTimeout(t *testing.T) {
	e := newTestEngine(t, WithSafetyTimeout(20*time.Millisecond))

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "r", Kind: "data_fetch", Label: "root"})

	deadline := time.Now().Add(2 * time.Second)
	for e.Status() == SessionRunning {
		if time.Now().After(deadline) {
			t.Fatal("safety timeout never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap := e.Snapshot()
	if snap.Status != SessionTimedOut {
		t.Fatalf("status = %s, want timed_out", snap.Status)
	}
	found := false
	for _, d := range snap.Diagnostics {
		if d.Kind == flow.DiagTimeout {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want timeout", snap.Diagnostics)
	}

	// Reset re-arms the session.
	e.Reset()
	if got := e.Status(); got != SessionRunning {
		t.Errorf("status after reset = %s, want running", got)
	}
}

func TestIdempotentIngest(t *testing.T) {
	e := newTestEngine(t)

	ev := Event{
		Type: EventNodeCreated, NodeID: "r", Kind: "data_fetch", Label: "root",
		Data: map[string]any{"symbol": "ACME"},
	}
	mustIngest(t, e, ev)
	first := e.Snapshot()

	mustIngest(t, e, ev)
	second := e.Snapshot()

	if len(first.Positions) != len(second.Positions) {
		t.Fatalf("position count changed on replay: %d -> %d", len(first.Positions), len(second.Positions))
	}
	for i := range first.Positions {
		if first.Positions[i] != second.Positions[i] {
			t.Errorf("position %d changed on replay: %+v -> %+v", i, first.Positions[i], second.Positions[i])
		}
	}
	if e.NodeCount() != 1 {
		t.Errorf("NodeCount = %d, want 1", e.NodeCount())
	}
}

func TestExpansionIndependence(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "r", Kind: "data_fetch", Label: "root"})
	mustIngest(t, e, Event{
		Type: EventNodeCreated, NodeID: "n", Kind: "analysis",
		Label: "News check", ParentID: "r",
	})
	before := e.Snapshot().Positions

	e.ToggleExpand("r")

	after := e.Snapshot().Positions
	if len(before) != len(after) {
		t.Fatalf("position count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].X != after[i].X || before[i].Y != after[i].Y {
			t.Errorf("expansion moved node %s: (%v,%v) -> (%v,%v)",
				before[i].NodeID, before[i].X, before[i].Y, after[i].X, after[i].Y)
		}
	}
}

func TestDeferredChildAppearsAfterParent(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{
		Type: EventNodeCreated, NodeID: "child", Kind: "analysis",
		Label: "News early", ParentID: "root",
	})
	if _, ok := e.Snapshot().Position("child"); ok {
		t.Fatal("child should be absent from positions until parent arrives")
	}

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "root", Kind: "data_fetch", Label: "root"})

	snap := e.Snapshot()
	p, ok := snap.Position("child")
	if !ok {
		t.Fatal("child should be positioned once parent arrives")
	}
	if p.Level < 1 || p.Lane != "news" {
		t.Errorf("child placed at level %d lane %q, want level >= 1 lane news", p.Level, p.Lane)
	}
}

func TestCrossReferenceEdges(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{Type: EventNodeCreated, NodeID: "r", Kind: "data_fetch", Label: "root"})
	mustIngest(t, e, Event{
		Type: EventNodeCompleted, NodeID: "n1", Kind: "analysis",
		Label: "News read", ParentID: "r",
		Data: map[string]any{"overall_sentiment": "positive", "sentiment_score": 0.8},
	})
	mustIngest(t, e, Event{
		Type: EventNodeCompleted, NodeID: "v1", Kind: "validation",
		Label: "Validate", ParentID: "r",
		Data: map[string]any{
			"consistency_score": 0.9,
			"validated_sources": []any{"n1"},
		},
	})

	snap := e.Snapshot()
	foundCross := false
	for _, edge := range snap.Edges {
		if string(edge.Class) == "cross_ref" && edge.From == "n1" && edge.To == "v1" {
			foundCross = true
		}
	}
	if !foundCross {
		t.Errorf("edges = %+v, want cross_ref n1 -> v1", snap.Edges)
	}
}

func TestUnknownEventType(t *testing.T) {
	e := newTestEngine(t)
	err := e.Ingest(Event{Type: "node_exploded", NodeID: "x"})
	if !pkgerrors.Is(err, pkgerrors.ErrCodeInvalidEvent) {
		t.Errorf("error code = %s, want INVALID_EVENT", pkgerrors.GetCode(err))
	}
}

func TestDeclaredChildGetsStructuralEdge(t *testing.T) {
	e := newTestEngine(t)

	mustIngest(t, e, Event{
		Type: EventNodeCreated, NodeID: "p", Kind: "decision", Label: "Plan",
		ChildIDs: []string{"c"},
	})
	// The child never names its parent; only the declaration links them.
	mustIngest(t, e, Event{
		Type: EventNodeCreated, NodeID: "c", Kind: "analysis", Label: "Follow-up",
	})

	snap := e.Snapshot()
	found := false
	for _, edge := range snap.Edges {
		if edge.From == "p" && edge.To == "c" && edge.Class == layout.EdgeStructural {
			found = true
		}
	}
	if !found {
		t.Errorf("no structural edge p->c in %v", snap.Edges)
	}

	cp, ok := snap.Position("c")
	if !ok {
		t.Fatal("c has no position")
	}
	if cp.Level == 0 {
		t.Errorf("c placed at level 0 like a root, want a child level")
	}
}
