package flow

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Store.Append] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateConflict is returned by [Store.Append] when a merge would
	// change an immutable field (kind, parent). Identity reuse with
	// incompatible fields signals an upstream protocol violation, so it is
	// reported instead of silently accepted. The prior state is unaffected.
	ErrDuplicateConflict = errors.New("conflicting redefinition of node")
)

// Change describes the effect of one append so that layout can recompute
// exactly the nodes whose subgraph is affected: the appended node, its parent
// (whose lane gained a member), and any children that arrived earlier and
// were waiting for this node.
type Change struct {
	NodeID   string   // The appended or merged node
	Created  bool     // False when the append merged into an existing node
	Resolved []string // Previously-deferred children now resolvable
}

// Affected returns all node ids the change touches, in a stable order:
// the node itself, its parent if known, then resolved children.
func (c Change) Affected(parentID string) []string {
	ids := make([]string, 0, 2+len(c.Resolved))
	ids = append(ids, c.NodeID)
	if parentID != "" {
		ids = append(ids, parentID)
	}
	return append(ids, c.Resolved...)
}

// Store is the append-only, deduplicated collection of investigation nodes.
// It derives the parent→children adjacency from both directions of the
// relationship (a parent's declared ChildIDs and a child's ParentID) and
// keeps them consistent after every ingestion, whatever the arrival order.
//
// The zero value is not usable - use NewStore. Store is not safe for
// concurrent use without external synchronization; the engine serializes
// all mutation on one event loop.
type Store struct {
	nodes    map[string]*Node
	children map[string][]string // parentID -> ordered child IDs
	order    []string            // arrival order of created nodes
	waiting  map[string][]string // unseen parentID -> child IDs awaiting it
	declared map[string]string   // childID -> parentID that declared it
}

// NewStore creates an empty node store.
func NewStore() *Store {
	return &Store{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		waiting:  make(map[string][]string),
		declared: make(map[string]string),
	}
}

// Append inserts a node or merges it into an existing one by id.
//
// For a new id the node is stored as-is and linked into the adjacency. For a
// known id only the mutable fields are merged: status advances monotonically
// (an earlier status in the event is ignored), payload and completion time
// fill in, label and description fill in when previously empty. A parent can
// be filled in when previously unknown, but changing kind or an established
// parent returns ErrDuplicateConflict and leaves the store untouched.
//
// Append is idempotent: replaying the same event yields an identical store.
func (s *Store) Append(n Node) (Change, error) {
	if n.ID == "" {
		return Change{}, ErrInvalidNodeID
	}

	existing, ok := s.nodes[n.ID]
	if ok {
		return s.merge(existing, n)
	}

	node := n.Clone()
	s.nodes[n.ID] = &node
	s.order = append(s.order, n.ID)

	// An earlier node may have declared this id in its ChildIDs. The
	// declaration establishes the reverse link, so the node is not a root.
	if node.ParentID == "" {
		if p, ok := s.declared[node.ID]; ok {
			node.ParentID = p
		}
	}

	if node.ParentID != "" {
		s.link(node.ParentID, node.ID)
		if _, seen := s.nodes[node.ParentID]; !seen {
			if !slices.Contains(s.waiting[node.ParentID], node.ID) {
				s.waiting[node.ParentID] = append(s.waiting[node.ParentID], node.ID)
			}
		}
	}
	s.declareChildren(node.ID, node.ChildIDs)

	resolved := s.waiting[node.ID]
	delete(s.waiting, node.ID)

	node.ChildIDs = slices.Clone(s.children[node.ID])
	return Change{NodeID: node.ID, Created: true, Resolved: resolved}, nil
}

// merge folds the mutable fields of in into the stored node.
func (s *Store) merge(node *Node, in Node) (Change, error) {
	if in.Kind != "" && in.Kind != node.Kind {
		return Change{}, fmt.Errorf("%w: %s kind %s -> %s", ErrDuplicateConflict, node.ID, node.Kind, in.Kind)
	}
	if in.ParentID != "" && node.ParentID != "" && in.ParentID != node.ParentID {
		return Change{}, fmt.Errorf("%w: %s parent %s -> %s", ErrDuplicateConflict, node.ID, node.ParentID, in.ParentID)
	}

	if in.ParentID != "" && node.ParentID == "" {
		node.ParentID = in.ParentID
		s.link(in.ParentID, node.ID)
		if _, seen := s.nodes[in.ParentID]; !seen {
			if !slices.Contains(s.waiting[in.ParentID], node.ID) {
				s.waiting[in.ParentID] = append(s.waiting[in.ParentID], node.ID)
			}
		}
	}

	if statusRank(in.Status) > statusRank(node.Status) {
		node.Status = in.Status
	}
	if in.Payload != nil {
		node.Payload = in.Payload
	}
	if node.CompletedAt.IsZero() {
		node.CompletedAt = in.CompletedAt
	}
	if node.Label == "" {
		node.Label = in.Label
	}
	if node.Description == "" {
		node.Description = in.Description
	}

	s.declareChildren(node.ID, in.ChildIDs)
	node.ChildIDs = slices.Clone(s.children[node.ID])

	return Change{NodeID: node.ID}, nil
}

// link registers child under parent, preserving first-seen order.
func (s *Store) link(parentID, childID string) {
	if !slices.Contains(s.children[parentID], childID) {
		s.children[parentID] = append(s.children[parentID], childID)
	}
	if p, ok := s.nodes[parentID]; ok {
		p.ChildIDs = slices.Clone(s.children[parentID])
	}
}

// declareChildren applies a parent's declared fan-out order. The declared
// order is authoritative: already-linked children are reordered to match,
// and links discovered only via ParentID keep their arrival order after the
// declared ones.
func (s *Store) declareChildren(parentID string, declared []string) {
	if len(declared) == 0 {
		return
	}
	merged := make([]string, 0, len(declared)+len(s.children[parentID]))
	for _, c := range declared {
		if c == "" || slices.Contains(merged, c) {
			continue
		}
		// A child already owned elsewhere is not grafted; the first
		// established parent wins, like any immutable field.
		if owner, taken := s.declared[c]; taken && owner != parentID {
			continue
		}
		if child, ok := s.nodes[c]; ok && child.ParentID != "" && child.ParentID != parentID {
			continue
		}
		merged = append(merged, c)
		s.declared[c] = parentID
		// Back-fill the reverse link on a child that arrived first
		// without naming its parent.
		if child, ok := s.nodes[c]; ok && child.ParentID == "" {
			child.ParentID = parentID
		}
	}
	for _, c := range s.children[parentID] {
		if !slices.Contains(merged, c) {
			merged = append(merged, c)
		}
	}
	s.children[parentID] = merged
	if p, ok := s.nodes[parentID]; ok {
		p.ChildIDs = slices.Clone(merged)
	}
}

// Get returns a copy of the node with the given id.
func (s *Store) Get(id string) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// Has reports whether a node with the given id exists.
func (s *Store) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Children returns the ordered child ids of the node. The order is the
// parent's declared fan-out order, with undeclared children appended in
// arrival order. Returns nil for unknown or childless nodes.
func (s *Store) Children(id string) []string {
	return slices.Clone(s.children[id])
}

// Roots returns the nodes with no parent, in arrival order.
func (s *Store) Roots() []Node {
	var roots []Node
	for _, id := range s.order {
		if n := s.nodes[id]; n.ParentID == "" {
			roots = append(roots, n.Clone())
		}
	}
	return roots
}

// All returns every node in arrival order.
func (s *Store) All() []Node {
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

// Waiting returns the ids of nodes whose declared parent has not arrived,
// in arrival order. These are the candidates for DanglingReference
// diagnostics when the session terminates.
func (s *Store) Waiting() []string {
	var ids []string
	for _, id := range s.order {
		n := s.nodes[id]
		if n.ParentID != "" {
			if _, seen := s.nodes[n.ParentID]; !seen {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int { return len(s.nodes) }
