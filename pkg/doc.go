// Package pkg provides the core libraries for ProbeLens investigation visualization.
//
// # Overview
//
// ProbeLens turns the event stream of an autonomous agent investigation into
// a live, navigable graph: nodes arrive one at a time, are classified into
// horizontal lanes, positioned incrementally, and rendered while the
// investigation is still running. The pkg directory is organized into five
// main areas:
//
//  1. [flow] - Domain model (nodes, payloads, lanes, layout, viewport)
//  2. [engine] - Session orchestration (ingest → classify → place → snapshot)
//  3. [render] - Output surfaces (SVG, DOT/graphviz, JSON)
//  4. [server] - HTTP and websocket API for live sessions
//  5. [cache] - Artifact caching (file, redis, null backends)
//
// # Architecture
//
// The typical data flow through ProbeLens:
//
//	Investigation Backend (JSONL / HTTP / websocket)
//	         ↓
//	    [engine] package (validate, decode, diagnose)
//	         ↓
//	    [flow/lane] package (rule-based lane classification)
//	         ↓
//	    [flow/layout] package (incremental placement + edges)
//	         ↓
//	    [render] package (SVG / DOT / PNG / JSON output)
//
// # Quick Start
//
// Feed events into a session and render the result:
//
//	import (
//	    "github.com/probelens/probelens/pkg/engine"
//	    "github.com/probelens/probelens/pkg/render"
//	)
//
//	// 1. Create a session
//	eng := engine.New()
//	defer eng.Terminate()
//
//	// 2. Apply events as they arrive
//	_ = eng.Ingest(engine.Event{
//	    Type:   engine.EventNodeCreated,
//	    NodeID: "root",
//	    Kind:   "analysis",
//	    Label:  "Investigate ACME Corp",
//	})
//
//	// 3. Snapshot and render
//	svg := render.SVG(eng.Snapshot())
//
// # Main Packages
//
// ## Domain Model
//
// [flow] - Node records, typed payloads, lifecycle statuses, and the
// append-only store. Diagnostics describe non-fatal ingestion problems.
//
// [flow/lane] - Rule-based classification of nodes into lanes (main flow,
// thematic branches, validation, final synthesis).
//
// [flow/layout] - Incremental placement: levels along the main line,
// fork-frozen thematic branches, reserved validation levels, and the derived
// edge set including cross-references.
//
// [flow/view] - Presentational interaction state: the pan/zoom transform and
// per-node expansion flags, independent of the data pipeline.
//
// ## Orchestration
//
// [engine] - One investigation session: strict arrival-order ingestion,
// lifecycle management (reset, terminate, safety timeout), and immutable
// renderable snapshots.
//
// ## Presentation
//
// [render] - Self-contained SVG documents, graphviz DOT (with SVG/PNG
// rasterization), and deterministic JSON snapshots.
//
// ## Infrastructure
//
// [server] - Session registry, REST endpoints for events/snapshots/renders,
// and a websocket feed that pushes a snapshot after every applied event.
//
// [cache] - Content-addressed artifact caching with file, redis, and null
// backends.
//
// [observability] - Pluggable hooks for engine, render, and cache activity.
//
// [errors] - Coded errors shared across packages and mapped to HTTP status
// codes by the server.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/engine/...   # Specific package
//	go test -run Example       # Examples only
//
// [flow]: https://pkg.go.dev/github.com/probelens/probelens/pkg/flow
// [flow/lane]: https://pkg.go.dev/github.com/probelens/probelens/pkg/flow/lane
// [flow/layout]: https://pkg.go.dev/github.com/probelens/probelens/pkg/flow/layout
// [flow/view]: https://pkg.go.dev/github.com/probelens/probelens/pkg/flow/view
// [engine]: https://pkg.go.dev/github.com/probelens/probelens/pkg/engine
// [render]: https://pkg.go.dev/github.com/probelens/probelens/pkg/render
// [server]: https://pkg.go.dev/github.com/probelens/probelens/pkg/server
// [cache]: https://pkg.go.dev/github.com/probelens/probelens/pkg/cache
// [observability]: https://pkg.go.dev/github.com/probelens/probelens/pkg/observability
// [errors]: https://pkg.go.dev/github.com/probelens/probelens/pkg/errors
package pkg
