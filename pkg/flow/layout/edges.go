package layout

// EdgeClass distinguishes the two rendered connection types.
type EdgeClass string

const (
	// EdgeStructural mirrors a parent→child spawn relationship.
	EdgeStructural EdgeClass = "structural"

	// EdgeCrossRef represents an aggregation relationship: the target cites
	// the source as evidence without having been spawned by it. Rendered
	// with distinct stroke styling.
	EdgeCrossRef EdgeClass = "cross_ref"
)

// Edge is one rendered connection between two positioned nodes.
type Edge struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Class EdgeClass `json:"class"`
}

// Resolver derives the rendered edge set from node relationships, resolved
// against the engine's current positions. An edge with an unpositioned
// endpoint is suppressed until both ends resolve; no partial edge is ever
// produced.
type Resolver struct {
	engine *Engine
}

// NewResolver creates a resolver over the engine's store and positions.
func NewResolver(engine *Engine) *Resolver {
	return &Resolver{engine: engine}
}

// Rebuild returns the full edge set in deterministic order: structural
// edges in node arrival order, then cross-reference edges. Duplicate
// citations collapse to one edge, and a citation of the direct parent never
// produces a second edge on top of the structural one.
func (r *Resolver) Rebuild() []Edge {
	var edges []Edge
	seen := make(map[[2]string]bool)

	nodes := r.engine.store.All()

	for _, n := range nodes {
		if n.ParentID == "" {
			continue
		}
		if !r.positioned(n.ParentID) || !r.positioned(n.ID) {
			continue
		}
		key := [2]string{n.ParentID, n.ID}
		if !seen[key] {
			seen[key] = true
			edges = append(edges, Edge{From: n.ParentID, To: n.ID, Class: EdgeStructural})
		}
	}

	for _, n := range nodes {
		if !r.positioned(n.ID) {
			continue
		}
		for _, ref := range n.References() {
			if !r.positioned(ref) {
				continue
			}
			// Evidence flows into the aggregating node.
			key := [2]string{ref, n.ID}
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, Edge{From: ref, To: n.ID, Class: EdgeCrossRef})
		}
	}

	return edges
}

func (r *Resolver) positioned(id string) bool {
	_, ok := r.engine.Position(id)
	return ok
}
