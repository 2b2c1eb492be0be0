package layout

import (
	"slices"

	"github.com/probelens/probelens/pkg/flow"
	"github.com/probelens/probelens/pkg/flow/lane"
)

// Spacing holds the fixed placement constants. Overlap avoidance is by
// construction: as long as the constants exceed the rendered node size,
// no two nodes can collide.
type Spacing struct {
	BaseX            float64 // X of level 0
	CenterY          float64 // Y of the main flow line
	LevelSpacing     float64 // Horizontal distance between levels
	IntraLaneSpacing float64 // Vertical stagger between same-lane nodes
}

// DefaultSpacing returns the spacing constants used when no configuration
// is supplied.
func DefaultSpacing() Spacing {
	return Spacing{
		BaseX:            80,
		CenterY:          400,
		LevelSpacing:     240,
		IntraLaneSpacing: 120,
	}
}

// Position is the derived 2-D placement of one node. Owned by the engine,
// recomputed as the graph grows, never persisted externally.
type Position struct {
	NodeID string  `json:"node_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Level  int     `json:"level"`
	Lane   string  `json:"lane"`
}

// Engine assigns levels, lanes, and coordinates incrementally.
//
// Layout is monotonic: a position, once computed, is stable under any
// sequence of unrelated later insertions. The only nodes ever revisited are
// deferred ones - children that arrived before their parent was positioned.
//
// Engine is not safe for concurrent use; the owning session serializes all
// mutation on one event loop.
type Engine struct {
	store      *flow.Store
	classifier *lane.Classifier
	spacing    Spacing

	positions map[string]Position
	placed    []string        // placement order, for deterministic snapshots
	deferred  map[string]bool // waiting for a positioned parent

	nextMainLevel   int
	laneFork        map[string]int // thematic lane -> frozen fork level
	laneCount       map[string]int // lane -> nodes placed so far
	validationLevel int            // frozen at first validation placement
	finalLevel      int            // frozen at first final placement
	maxLevel        int            // highest level assigned so far
}

// NewEngine creates a layout engine over the given store and classifier.
func NewEngine(store *flow.Store, classifier *lane.Classifier, spacing Spacing) *Engine {
	e := &Engine{
		store:      store,
		classifier: classifier,
		spacing:    spacing,
	}
	e.Reset()
	return e
}

// Reset clears all derived state. The engine forgets every position; the
// store itself is reset separately by the owning session.
func (e *Engine) Reset() {
	e.positions = make(map[string]Position)
	e.placed = nil
	e.deferred = make(map[string]bool)
	e.nextMainLevel = 0
	e.laneFork = make(map[string]int)
	e.laneCount = make(map[string]int)
	e.validationLevel = -1
	e.finalLevel = -1
	e.maxLevel = -1
}

// Recompute positions the affected nodes and anything their placement
// unblocks. Already-positioned nodes are skipped (monotonic layout), unknown
// ids are ignored, and nodes whose parent has no position yet are deferred.
// Returns the newly assigned positions in placement order.
func (e *Engine) Recompute(affected []string) []Position {
	queue := slices.Clone(affected)
	var placed []Position

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		node, ok := e.store.Get(id)
		if !ok {
			continue
		}
		if _, done := e.positions[id]; done {
			continue
		}

		if node.ParentID != "" {
			if _, parentPlaced := e.positions[node.ParentID]; !parentPlaced {
				e.deferred[id] = true
				continue
			}
		}

		pos := e.place(node)
		placed = append(placed, pos)
		delete(e.deferred, id)

		// Placing this node may unblock children deferred on it.
		for _, child := range e.store.Children(id) {
			if e.deferred[child] {
				queue = append(queue, child)
			}
		}
	}

	return placed
}

// place computes and records the position for a node whose dependencies are
// resolved. Level and lane are assigned exactly once.
func (e *Engine) place(node flow.Node) Position {
	l := e.classifier.Classify(node)

	var level int
	var y float64

	switch l.Role {
	case lane.RoleThematic:
		fork, known := e.laneFork[l.Name]
		if !known {
			// Freeze the branch point at the current end of the main flow
			// so the whole branch renders after where it forked.
			fork = e.nextMainLevel - 1
			if fork < 0 {
				fork = 0
			}
			e.laneFork[l.Name] = fork
		}
		idx := e.laneCount[l.Name]
		level = fork + 1 + idx
		y = e.spacing.CenterY + l.YOffset + staggerDirection(l.YOffset)*float64(idx)*e.spacing.IntraLaneSpacing

	case lane.RoleValidation:
		if e.validationLevel < 0 {
			// Reserve at least two levels past everything assigned so far,
			// more when a thematic branch is longer, so validation always
			// renders after the branches regardless of branch length.
			e.validationLevel = e.maxLevel + max(2, e.maxThematicLaneSize())
		}
		idx := e.laneCount[l.Name]
		level = e.validationLevel + idx
		y = e.spacing.CenterY + l.YOffset + float64(idx)*e.spacing.IntraLaneSpacing

	case lane.RoleFinal:
		if e.finalLevel < 0 {
			after := e.maxLevel
			if e.validationLevel < 0 {
				// No validation pass happened: reserve its block anyway so
				// the synthesis still trails every branch.
				after = e.maxLevel + max(2, e.maxThematicLaneSize()) - 1
			}
			e.finalLevel = after + 1
		}
		idx := e.laneCount[l.Name]
		level = e.finalLevel + idx
		y = e.spacing.CenterY

	default: // lane.RoleMain
		level = e.nextMainLevel
		e.nextMainLevel++
		y = e.spacing.CenterY
	}

	e.laneCount[l.Name]++
	if level > e.maxLevel {
		e.maxLevel = level
	}

	pos := Position{
		NodeID: node.ID,
		X:      e.spacing.BaseX + float64(level)*e.spacing.LevelSpacing,
		Y:      y,
		Level:  level,
		Lane:   l.Name,
	}
	e.positions[node.ID] = pos
	e.placed = append(e.placed, node.ID)
	return pos
}

// maxThematicLaneSize returns the largest thematic lane population.
func (e *Engine) maxThematicLaneSize() int {
	size := 0
	for _, l := range e.classifier.Thematic() {
		if n := e.laneCount[l.Name]; n > size {
			size = n
		}
	}
	return size
}

// staggerDirection keeps the intra-lane stagger moving away from the center
// line, whichever side the lane sits on.
func staggerDirection(yOffset float64) float64 {
	if yOffset < 0 {
		return -1
	}
	return 1
}

// Position returns the computed position for the node, if assigned.
func (e *Engine) Position(id string) (Position, bool) {
	p, ok := e.positions[id]
	return p, ok
}

// Positions returns all assigned positions in placement order.
func (e *Engine) Positions() []Position {
	out := make([]Position, 0, len(e.placed))
	for _, id := range e.placed {
		out = append(out, e.positions[id])
	}
	return out
}

// Deferred returns the ids currently waiting for a positioned parent,
// sorted for stable output.
func (e *Engine) Deferred() []string {
	ids := make([]string, 0, len(e.deferred))
	for id := range e.deferred {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MaxLevel returns the highest level assigned so far, or -1 when empty.
func (e *Engine) MaxLevel() int { return e.maxLevel }

// FinalizeDangling places every still-deferred node at a best-effort
// position appended after all resolved nodes, in the default lane. Called
// when the session terminates: from then on no parent can arrive, so the
// deferred set is permanently dangling. Returns the ids placed this way so
// the caller can report DanglingReference diagnostics.
func (e *Engine) FinalizeDangling() []string {
	ids := e.Deferred()
	for _, id := range ids {
		node, ok := e.store.Get(id)
		if !ok {
			continue
		}
		level := e.maxLevel + 1
		e.maxLevel = level
		pos := Position{
			NodeID: node.ID,
			X:      e.spacing.BaseX + float64(level)*e.spacing.LevelSpacing,
			Y:      e.spacing.CenterY,
			Level:  level,
			Lane:   e.classifier.Classify(node).Name,
		}
		e.positions[id] = pos
		e.placed = append(e.placed, id)
		delete(e.deferred, id)
	}
	return ids
}
