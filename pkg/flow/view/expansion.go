package view

import "slices"

// Expansion tracks which nodes are currently expanded. Membership is purely
// additive/removable with no ordering semantics. Expanding a node only
// affects that node's rendered verbosity (full reasoning text vs. truncated
// preview, drawn as an overlay); it never shifts sibling positions.
type Expansion struct {
	expanded map[string]bool
}

// NewExpansion creates an empty expansion set.
func NewExpansion() *Expansion {
	return &Expansion{expanded: make(map[string]bool)}
}

// Toggle flips the node's membership in the expanded set.
func (e *Expansion) Toggle(nodeID string) {
	if nodeID == "" {
		return
	}
	if e.expanded[nodeID] {
		delete(e.expanded, nodeID)
	} else {
		e.expanded[nodeID] = true
	}
}

// IsExpanded reports whether the node is expanded.
func (e *Expansion) IsExpanded(nodeID string) bool {
	return e.expanded[nodeID]
}

// IDs returns the expanded node ids, sorted for stable output.
func (e *Expansion) IDs() []string {
	ids := make([]string, 0, len(e.expanded))
	for id := range e.expanded {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of expanded nodes.
func (e *Expansion) Len() int { return len(e.expanded) }

// Reset clears the set.
func (e *Expansion) Reset() {
	e.expanded = make(map[string]bool)
}
