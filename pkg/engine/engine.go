// Package engine composes the node store, lane classifier, layout engine,
// edge resolver, and viewport state into one investigation session.
//
// All mutation is serialized: arrival events and user gestures are processed
// as discrete operations under a single lock, so the underlying components
// never see concurrent access. Snapshot is a pure, repeatable projection of
// the current state and may be taken at any time.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	pkgerrors "github.com/probelens/probelens/pkg/errors"
	"github.com/probelens/probelens/pkg/flow"
	"github.com/probelens/probelens/pkg/flow/lane"
	"github.com/probelens/probelens/pkg/flow/layout"
	"github.com/probelens/probelens/pkg/flow/view"
	"github.com/probelens/probelens/pkg/observability"
)

// SessionStatus is the lifecycle phase of a session.
type SessionStatus string

const (
	// SessionRunning accepts ingestion and interaction.
	SessionRunning SessionStatus = "running"

	// SessionCompleted saw an investigation_complete event. Ingestion is
	// closed, rendering and interaction continue.
	SessionCompleted SessionStatus = "completed"

	// SessionTimedOut hit the safety timeout or received an
	// investigation_timeout event.
	SessionTimedOut SessionStatus = "timed_out"

	// SessionFailed received a session-level error event.
	SessionFailed SessionStatus = "failed"

	// SessionTerminated was stopped explicitly via Terminate.
	SessionTerminated SessionStatus = "terminated"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier replaces the default lane classifier.
func WithClassifier(c *lane.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithSpacing replaces the default layout spacing constants.
func WithSpacing(s layout.Spacing) Option {
	return func(e *Engine) { e.spacing = s }
}

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSafetyTimeout arms a deadline after which the session terminates on
// its own, as if an investigation_timeout event had arrived. The timer
// re-arms on Reset. Zero disables the timeout.
func WithSafetyTimeout(d time.Duration) Option {
	return func(e *Engine) { e.safetyTimeout = d }
}

// Engine is one investigation session.
//
// All exported methods are safe for concurrent use; internally every
// operation runs to completion under one lock, which gives the serialized
// event-loop semantics the layout components require.
type Engine struct {
	mu sync.Mutex

	log           *log.Logger
	classifier    *lane.Classifier
	spacing       layout.Spacing
	safetyTimeout time.Duration

	store     *flow.Store
	layout    *layout.Engine
	resolver  *layout.Resolver
	viewport  *view.Viewport
	expansion *view.Expansion

	edges       []layout.Edge
	diagnostics []flow.Diagnostic
	status      SessionStatus

	timer *time.Timer
}

// New creates a session with default lanes, spacing, and no safety timeout.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:        log.Default(),
		classifier: lane.Default(),
		spacing:    layout.DefaultSpacing(),
		viewport:   view.NewViewport(),
		expansion:  view.NewExpansion(),
		status:     SessionRunning,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rebuildLocked()
	e.armTimerLocked()
	return e
}

// rebuildLocked replaces the data-layer components with fresh ones.
func (e *Engine) rebuildLocked() {
	e.store = flow.NewStore()
	e.layout = layout.NewEngine(e.store, e.classifier, e.spacing)
	e.resolver = layout.NewResolver(e.layout)
	e.edges = nil
	e.diagnostics = nil
}

func (e *Engine) armTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.safetyTimeout <= 0 {
		return
	}
	e.timer = time.AfterFunc(e.safetyTimeout, e.onSafetyTimeout)
}

// onSafetyTimeout fires off the timer goroutine; it serializes with every
// other operation through the lock.
func (e *Engine) onSafetyTimeout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != SessionRunning {
		return
	}
	e.log.Warn("safety timeout fired, terminating session", "timeout", e.safetyTimeout)
	e.terminateLocked(SessionTimedOut)
	e.diagnostics = append(e.diagnostics, flow.Diagnostic{
		Kind:   flow.DiagTimeout,
		Detail: "safety timeout elapsed before the investigation completed",
		At:     time.Now(),
	})
}

// Ingest applies one arrival event.
//
// Node events insert or merge a node, recompute the affected layout, and
// rebuild edges. A DuplicateConflict is returned to the caller and recorded
// as a diagnostic; prior state is unaffected. A payload that does not match
// its kind's typed shape degrades to the generic fallback with a
// MalformedPayload diagnostic; the node is still stored and positioned.
// Session events close ingestion but keep the state renderable.
//
// After a terminal event every further Ingest returns a SESSION_TERMINATED
// error.
func (e *Engine) Ingest(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx := context.Background()
	start := time.Now()
	observability.Engine().OnIngest(ctx, string(ev.Type), ev.NodeID)

	err := e.ingestLocked(ctx, ev)
	observability.Engine().OnIngestComplete(ctx, string(ev.Type), ev.NodeID, time.Since(start), err)
	return err
}

func (e *Engine) ingestLocked(ctx context.Context, ev Event) error {
	if e.status != SessionRunning {
		return pkgerrors.New(pkgerrors.ErrCodeSessionTerminated,
			"session is %s, event %s rejected", e.status, ev.Type)
	}

	switch {
	case ev.IsNodeEvent():
		return e.ingestNodeLocked(ctx, ev)
	case ev.Type == EventInvestigationComplete:
		e.log.Info("investigation complete", "nodes", e.store.Len())
		e.terminateLocked(SessionCompleted)
		return nil
	case ev.Type == EventInvestigationTimeout:
		e.log.Warn("investigation timeout reported by backend")
		e.terminateLocked(SessionTimedOut)
		e.diagnostics = append(e.diagnostics, flow.Diagnostic{
			Kind:   flow.DiagTimeout,
			Detail: ev.Message,
			At:     eventTime(ev),
		})
		return nil
	case ev.Type == EventError:
		e.log.Error("investigation error reported by backend", "message", ev.Message)
		e.terminateLocked(SessionFailed)
		return nil
	default:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidEvent, "unknown event type %q", ev.Type)
	}
}

func (e *Engine) ingestNodeLocked(ctx context.Context, ev Event) error {
	if err := pkgerrors.ValidateNodeID(ev.NodeID); err != nil {
		return err
	}

	n, wellFormed := ev.node()
	if !wellFormed {
		e.diagnostics = append(e.diagnostics, flow.Diagnostic{
			Kind:   flow.DiagMalformedPayload,
			NodeID: n.ID,
			Detail: "payload does not match the typed shape for kind " + string(n.Kind),
			At:     eventTime(ev),
		})
	}

	ch, err := e.store.Append(n)
	if err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.ErrCodeDuplicateConflict, err,
			"event %s rejected for node %s", ev.Type, n.ID)
		e.diagnostics = append(e.diagnostics, flow.Diagnostic{
			Kind:   flow.DiagDuplicateConflict,
			NodeID: n.ID,
			Detail: err.Error(),
			At:     eventTime(ev),
		})
		return wrapped
	}

	affected := ch.Affected(n.ParentID)
	observability.Engine().OnLayoutStart(ctx, len(affected))
	layoutStart := time.Now()
	placed := e.layout.Recompute(affected)
	e.edges = e.resolver.Rebuild()
	observability.Engine().OnLayoutComplete(ctx, len(placed), time.Since(layoutStart))

	e.log.Debug("event applied",
		"type", ev.Type, "node", n.ID, "created", ch.Created, "placed", len(placed))
	return nil
}

// Reset atomically clears all session state: node store, layout, edges,
// viewport, expansion set, and diagnostics. The session returns to running
// and the safety timer re-arms. Partial reset is impossible by construction.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	observability.Engine().OnReset(context.Background())
	e.rebuildLocked()
	e.viewport.Reset()
	e.expansion.Reset()
	e.status = SessionRunning
	e.armTimerLocked()
	e.log.Info("session reset")
}

// Terminate stops accepting further ingestion but retains the current state
// for continued rendering and interaction. Nodes still waiting for an unseen
// parent receive a best-effort trailing placement and a DanglingReference
// diagnostic. Terminate is idempotent.
func (e *Engine) Terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != SessionRunning {
		return
	}
	e.terminateLocked(SessionTerminated)
}

func (e *Engine) terminateLocked(status SessionStatus) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	dangling := e.store.Waiting()
	if len(dangling) > 0 {
		placed := e.layout.FinalizeDangling()
		e.edges = e.resolver.Rebuild()
		now := time.Now()
		for _, id := range dangling {
			n, _ := e.store.Get(id)
			e.diagnostics = append(e.diagnostics, flow.Diagnostic{
				Kind:   flow.DiagDanglingReference,
				NodeID: id,
				Detail: "parent " + n.ParentID + " never observed",
				At:     now,
			})
		}
		e.log.Warn("placed dangling nodes at trailing positions", "count", len(placed))
	}

	e.status = status
	observability.Engine().OnTerminate(context.Background(), string(status))
}

// Status returns the session lifecycle phase.
func (e *Engine) Status() SessionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Pan shifts the viewport by the given screen-space delta.
// Interaction never touches the data layer; positions are unaffected.
func (e *Engine) Pan(dx, dy float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.Pan(dx, dy)
}

// BeginDrag starts a pan gesture anchored at the given point.
func (e *Engine) BeginDrag(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.BeginDrag(x, y)
}

// DragTo continues the active pan gesture.
func (e *Engine) DragTo(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.DragTo(x, y)
}

// EndDrag finishes the active pan gesture.
func (e *Engine) EndDrag() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.EndDrag()
}

// Zoom scales the viewport by factor, optionally anchored at a focal point.
func (e *Engine) Zoom(factor float64, focal ...float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.Zoom(factor, focal...)
}

// ResetView restores the identity viewport transform without touching data.
func (e *Engine) ResetView() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport.Reset()
}

// ToggleExpand flips the expansion flag of one node. No other node's
// position or expansion is affected.
func (e *Engine) ToggleExpand(nodeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expansion.Toggle(nodeID)
}

func eventTime(ev Event) time.Time {
	if !ev.Timestamp.IsZero() {
		return ev.Timestamp
	}
	return time.Now()
}
