// Package render turns session snapshots into visual outputs.
//
// # Overview
//
// This package contains the presentation side of the pipeline: it consumes
// the pure snapshot projection exposed by the engine and produces artifacts.
// It provides:
//
//   - Deterministic snapshot JSON for replay files and the HTTP API
//   - A self-contained SVG renderer (lane bands, node cards, edge routes,
//     viewport transform, expansion overlays)
//   - DOT output with Graphviz conversion to SVG or PNG
//
// # JSON
//
// [EncodeJSON] and [DecodeJSON] round-trip a snapshot. The encoding is
// deterministic for a given snapshot, so content hashes of the output are
// stable cache keys.
//
// # SVG
//
// [SVG] renders the snapshot directly, without external tools. The layout
// engine already computed positions; this renderer only projects them
// through the viewport transform and draws.
//
//	svg := render.SVG(snap, render.WithSize(1600, 900))
//
// # DOT / Graphviz
//
// [ToDOT] emits the graph in DOT for interop with Graphviz tooling, and
// [GraphvizSVG] / [GraphvizPNG] run the embedded Graphviz engine over it.
// Unlike [SVG], Graphviz computes its own layout; use it when a classic
// ranked diagram is wanted instead of the lane layout.
package render
