package layout

import (
	"reflect"
	"testing"

	"github.com/probelens/probelens/pkg/flow"
)

func TestRebuildStructuralEdges(t *testing.T) {
	s, e := newTestEngine(t)
	r := NewResolver(e)

	ingest(t, s, e, flow.Node{ID: "root", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "n1", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "root"})

	want := []Edge{{From: "root", To: "n1", Class: EdgeStructural}}
	if got := r.Rebuild(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rebuild() = %v, want %v", got, want)
	}
}

func TestRebuildSuppressesUnpositionedEndpoints(t *testing.T) {
	s, e := newTestEngine(t)
	r := NewResolver(e)

	// Child before parent: the child has no position, so no edge renders.
	ingest(t, s, e, flow.Node{ID: "c", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "p"})

	if got := r.Rebuild(); len(got) != 0 {
		t.Fatalf("Rebuild() = %v, want no partial edges", got)
	}

	// Once the parent resolves, the edge appears.
	ingest(t, s, e, flow.Node{ID: "p", Kind: flow.KindDataFetch, Label: "Fetch data"})

	want := []Edge{{From: "p", To: "c", Class: EdgeStructural}}
	if got := r.Rebuild(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rebuild() = %v, want %v", got, want)
	}
}

func TestRebuildCrossReferenceEdges(t *testing.T) {
	s, e := newTestEngine(t)
	r := NewResolver(e)

	ingest(t, s, e, flow.Node{ID: "root", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "n1", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "root"})
	ingest(t, s, e, flow.Node{ID: "f1", Kind: flow.KindAnalysis, Label: "Earnings analysis", ParentID: "root"})
	ingest(t, s, e, flow.Node{
		ID:       "v1",
		Kind:     flow.KindValidation,
		Label:    "Cross-validation",
		ParentID: "f1",
		Payload:  &flow.ValidationPayload{ValidatedSources: []string{"n1", "f1"}},
	})

	edges := r.Rebuild()

	var cross []Edge
	for _, edge := range edges {
		if edge.Class == EdgeCrossRef {
			cross = append(cross, edge)
		}
	}
	// f1 is v1's direct parent: the citation must not double the structural
	// edge. Only the n1 citation becomes a cross-reference edge.
	want := []Edge{{From: "n1", To: "v1", Class: EdgeCrossRef}}
	if !reflect.DeepEqual(cross, want) {
		t.Errorf("cross-reference edges = %v, want %v", cross, want)
	}
}

func TestRebuildCrossRefUnknownTarget(t *testing.T) {
	s, e := newTestEngine(t)
	r := NewResolver(e)

	ingest(t, s, e, flow.Node{ID: "root", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{
		ID:       "v1",
		Kind:     flow.KindValidation,
		Label:    "Cross-validation",
		ParentID: "root",
		Payload:  &flow.ValidationPayload{ValidatedSources: []string{"never-seen"}},
	})

	for _, edge := range r.Rebuild() {
		if edge.Class == EdgeCrossRef {
			t.Errorf("unexpected cross-reference edge to unknown node: %v", edge)
		}
	}
}

func TestRebuildDeduplicates(t *testing.T) {
	s, e := newTestEngine(t)
	r := NewResolver(e)

	ingest(t, s, e, flow.Node{ID: "root", Kind: flow.KindDataFetch, Label: "Fetch data"})
	ingest(t, s, e, flow.Node{ID: "n1", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "root"})
	ingest(t, s, e, flow.Node{
		ID:       "m1",
		Kind:     flow.KindInference,
		Label:    "Master Inference",
		ParentID: "root",
		Payload:  &flow.InferencePayload{ConfidenceScore: 0.9, EvidenceIDs: []string{"n1", "n1"}},
	})

	count := 0
	for _, edge := range r.Rebuild() {
		if edge.Class == EdgeCrossRef && edge.From == "n1" && edge.To == "m1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate citation produced %d edges, want 1", count)
	}
}
