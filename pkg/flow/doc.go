// Package flow holds the node model and node store for a streamed
// investigation graph.
//
// An investigation arrives as an unbounded sequence of node events: the
// backend never announces the final shape of the graph up front. The Store is
// the single source of truth for "what exists" - an append-only, deduplicated
// collection of nodes plus the derived parent→children adjacency. Layout,
// classification, and rendering all consume the Store through read-only
// queries.
//
// Nodes are immutable once created; later events referencing the same id only
// fill in mutable fields (status, payload, completion time). A merge that
// would change an immutable field (kind, parent) is rejected with
// ErrDuplicateConflict, since it signals a protocol violation upstream.
//
// Out-of-order delivery is expected: a child may arrive before its parent.
// The Store accepts the child immediately and reports it as resolvable once
// the parent shows up, so downstream consumers can defer work instead of
// dropping data.
package flow
