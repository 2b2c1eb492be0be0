package flow

import (
	"slices"
	"time"
)

// Kind identifies what an investigation node represents.
// The set is closed: the backend only ever emits these six kinds.
type Kind string

// Node kinds emitted by the investigation backend.
const (
	KindDataFetch  Kind = "data_fetch"
	KindAnalysis   Kind = "analysis"
	KindDecision   Kind = "decision"
	KindInference  Kind = "inference"
	KindValidation Kind = "validation"
	KindSpawn      Kind = "spawn"
)

// ValidKind reports whether k is one of the closed kind set.
func ValidKind(k Kind) bool {
	switch k {
	case KindDataFetch, KindAnalysis, KindDecision, KindInference, KindValidation, KindSpawn:
		return true
	}
	return false
}

// Status is the lifecycle state of a node. Transitions are monotonically
// forward: a merge carrying an earlier status is ignored, never an error.
type Status string

// Node statuses in forward order.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// statusRank orders statuses for monotonic merging.
// Unknown statuses rank below pending so they never win a merge.
func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted:
		return 3
	case StatusError:
		return 4
	}
	return 0
}

// Node is a single step of the investigation graph.
//
// Identity (ID), Kind, and ParentID are fixed at creation. Status, Payload,
// and CompletedAt are filled in by later update events referencing the same
// id. ChildIDs is authoritative for fan-out ordering; the reverse ParentID
// links on children are redundant but must stay consistent (the Store
// enforces this on every append).
type Node struct {
	ID          string    // Opaque unique identifier, stable for the session
	Kind        Kind      // One of the closed kind set
	Label       string    // Display heading
	Description string    // Longer display text
	Status      Status    // Monotonically forward lifecycle state
	Payload     Payload   // Kind-dependent structured record (never nil after decode)
	ParentID    string    // Spawning node, empty for roots
	ChildIDs    []string  // Spawned nodes in fan-out order
	CreatedAt   time.Time // Arrival timestamp from the backend
	CompletedAt time.Time // Zero until the node completes
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.ParentID == "" }

// IsDone reports whether the node reached a terminal status.
func (n *Node) IsDone() bool {
	return n.Status == StatusCompleted || n.Status == StatusError
}

// Clone returns a deep-enough copy for safe external use: the child slice is
// cloned, the payload is shared (payloads are read-only after decode).
func (n *Node) Clone() Node {
	c := *n
	c.ChildIDs = slices.Clone(n.ChildIDs)
	return c
}

// References returns the ids of nodes this node cites outside its direct
// parent chain, extracted from the payload. Synthesis and validation nodes
// use these to point at the evidence they aggregate.
func (n *Node) References() []string {
	if n.Payload == nil {
		return nil
	}
	refs := n.Payload.Refs()
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r != "" && r != n.ID && r != n.ParentID {
			out = append(out, r)
		}
	}
	return out
}
