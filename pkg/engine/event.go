package engine

import (
	"strings"
	"time"

	"github.com/probelens/probelens/pkg/flow"
)

// EventType identifies a wire event from the investigation backend.
type EventType string

// Wire event types. Node events carry a node record; the remaining three are
// session-level signals.
const (
	EventNodeCreated   EventType = "node_created"
	EventNodeUpdated   EventType = "node_updated"
	EventNodeCompleted EventType = "node_completed"

	EventInvestigationComplete EventType = "investigation_complete"
	EventInvestigationTimeout  EventType = "investigation_timeout"
	EventError                 EventType = "error"
)

// Event is one arrival event as delivered by the transport. The engine
// processes events strictly in arrival order and never reorders them.
//
// For node events, NodeID and (on creation) Kind identify the node; Data
// carries the kind-dependent payload as raw key-values and is decoded into a
// typed payload on ingestion. Session events use only Type, Message, and
// Timestamp.
type Event struct {
	Type        EventType      `json:"type"`
	NodeID      string         `json:"node_id,omitempty"`
	Kind        string         `json:"kind,omitempty"`
	Label       string         `json:"label,omitempty"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	ChildIDs    []string       `json:"child_ids,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Message     string         `json:"message,omitempty"`
	Timestamp   time.Time      `json:"timestamp,omitempty"`
}

// IsNodeEvent reports whether the event carries a node record.
func (ev Event) IsNodeEvent() bool {
	switch ev.Type {
	case EventNodeCreated, EventNodeUpdated, EventNodeCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether the event ends the session's ingestion phase.
func (ev Event) IsTerminal() bool {
	switch ev.Type {
	case EventInvestigationComplete, EventInvestigationTimeout, EventError:
		return true
	}
	return false
}

// normalizeKind maps wire kind spellings onto the closed kind set. The
// backend historically emitted hyphenated kinds ("data-fetch"), the model
// uses underscores.
func normalizeKind(k string) flow.Kind {
	return flow.Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "-", "_"))
}

// normalizeStatus maps wire status spellings onto the status set.
func normalizeStatus(s string) flow.Status {
	return flow.Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
}

// node converts a node event into a model node, decoding the payload. The
// second return is false when the payload did not match the typed shape for
// the kind and degraded to the generic fallback.
func (ev Event) node() (flow.Node, bool) {
	kind := normalizeKind(ev.Kind)
	status := normalizeStatus(ev.Status)

	switch ev.Type {
	case EventNodeCreated:
		if status == "" {
			status = flow.StatusPending
		}
	case EventNodeUpdated:
		if status == "" {
			status = flow.StatusInProgress
		}
	case EventNodeCompleted:
		status = flow.StatusCompleted
	}

	n := flow.Node{
		ID:          ev.NodeID,
		Kind:        kind,
		Label:       ev.Label,
		Description: ev.Description,
		Status:      status,
		ParentID:    ev.ParentID,
		ChildIDs:    ev.ChildIDs,
		CreatedAt:   ev.Timestamp,
	}
	if status == flow.StatusCompleted || status == flow.StatusError {
		n.CompletedAt = ev.Timestamp
	}

	wellFormed := true
	if len(ev.Data) > 0 {
		payload, ok := flow.DecodePayload(kind, ev.Data)
		n.Payload = payload
		wellFormed = ok
	}
	return n, wellFormed
}
