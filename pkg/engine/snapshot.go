package engine

import (
	"slices"
	"time"

	"github.com/probelens/probelens/pkg/flow"
	"github.com/probelens/probelens/pkg/flow/layout"
	"github.com/probelens/probelens/pkg/flow/view"
)

// Snapshot is the complete renderable projection of a session. It is the
// only way presentation layers read engine state. Taking a snapshot has no
// side effects and the same state always yields the same snapshot.
type Snapshot struct {
	Positions   []layout.Position `json:"positions"`
	Edges       []layout.Edge     `json:"edges"`
	Nodes       []NodeView        `json:"nodes"`
	ViewState   view.State        `json:"view_state"`
	Expanded    []string          `json:"expanded"`
	Diagnostics []flow.Diagnostic `json:"diagnostics,omitempty"`
	Status      SessionStatus     `json:"status"`
	TakenAt     time.Time         `json:"taken_at"`
}

// NodeView is the display projection of one node: enough for a renderer to
// draw the card and its expansion overlay without reaching into the model.
type NodeView struct {
	ID          string      `json:"id"`
	Kind        flow.Kind   `json:"kind"`
	Label       string      `json:"label"`
	Description string      `json:"description,omitempty"`
	Status      flow.Status `json:"status"`
	ParentID    string      `json:"parent_id,omitempty"`
	Fields      []FieldView `json:"fields,omitempty"`
	Expanded    bool        `json:"expanded,omitempty"`
}

// FieldView is one renderable payload key-value pair.
type FieldView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Snapshot returns the current renderable state. Deferred nodes (waiting for
// an unpositioned parent) have a NodeView but no Position; renderers skip
// what they cannot place.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Positions:   e.layout.Positions(),
		Edges:       slices.Clone(e.edges),
		ViewState:   e.viewport.State(),
		Expanded:    e.expansion.IDs(),
		Diagnostics: slices.Clone(e.diagnostics),
		Status:      e.status,
		TakenAt:     time.Now(),
	}

	nodes := e.store.All()
	snap.Nodes = make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		nv := NodeView{
			ID:          n.ID,
			Kind:        n.Kind,
			Label:       n.Label,
			Description: n.Description,
			Status:      n.Status,
			ParentID:    n.ParentID,
			Expanded:    e.expansion.IsExpanded(n.ID),
		}
		if n.Payload != nil {
			for _, f := range n.Payload.Fields() {
				nv.Fields = append(nv.Fields, FieldView{Key: f.Key, Value: f.Value})
			}
		}
		snap.Nodes = append(snap.Nodes, nv)
	}
	return snap
}

// NodeCount returns the number of nodes in the session.
func (e *Engine) NodeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Len()
}

// Position returns the computed placement of one node, if it has one.
func (s Snapshot) Position(nodeID string) (layout.Position, bool) {
	for _, p := range s.Positions {
		if p.NodeID == nodeID {
			return p, true
		}
	}
	return layout.Position{}, false
}

// Node returns the display projection of one node, if present.
func (s Snapshot) Node(nodeID string) (NodeView, bool) {
	for _, n := range s.Nodes {
		if n.ID == nodeID {
			return n, true
		}
	}
	return NodeView{}, false
}
