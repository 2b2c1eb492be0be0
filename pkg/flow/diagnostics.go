package flow

import "time"

// DiagnosticKind classifies a non-fatal ingestion problem.
type DiagnosticKind string

// Diagnostic kinds. None of these abort the session: every failure degrades
// to a best-effort visual placeholder, because losing visibility into an
// in-progress investigation is worse than showing an imperfect node.
const (
	// DiagDuplicateConflict: identity reuse with incompatible immutable
	// fields. The offending event was rejected; prior state is unaffected.
	DiagDuplicateConflict DiagnosticKind = "duplicate_conflict"

	// DiagDanglingReference: a node references a parent that was never
	// observed. The node renders at a best-effort trailing position.
	DiagDanglingReference DiagnosticKind = "dangling_reference"

	// DiagMalformedPayload: the payload was missing fields required for its
	// typed shape. The node is stored and rendered as a key-value listing.
	DiagMalformedPayload DiagnosticKind = "malformed_payload"

	// DiagTimeout: the session safety timeout fired before the
	// investigation completed.
	DiagTimeout DiagnosticKind = "timeout"
)

// Diagnostic is a structured, non-fatal problem report surfaced through the
// snapshot instead of being thrown mid-recomputation.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	NodeID string         `json:"node_id,omitempty"`
	Detail string         `json:"detail,omitempty"`
	At     time.Time      `json:"at"`
}
