// Package layout computes stable 2-D positions for a streamed investigation
// graph and derives the rendered edge set.
//
// The graph's final shape is unknown: nodes arrive one at a time and the
// layout must stay legible under continuous growth. The engine therefore
// places nodes by construction - fixed spacing constants per lane and level -
// instead of iterative force-directed relaxation. The trade is density for
// predictability: a node's level and lane, once assigned, are never revised
// by later arrivals, so the picture a user is looking at never reshuffles
// under them.
//
// Placement rules per lane role:
//
//   - main: successive levels along the center line, in resolution order
//   - thematic: levels past the main-flow fork point, staggered vertically
//     within the lane so same-lane nodes never overlap
//   - validation: a reserved block of levels after all thematic branches,
//     using a two-level lookahead so short branches cannot pull validation
//     into branch territory
//   - final: one level past validation, centered vertically
//
// A node whose parent has not been positioned yet is deferred, not dropped;
// it is recomputed once the dependency resolves. A node whose parent never
// arrives is placed best-effort after all resolved nodes when the session
// finalizes, so investigation progress remains visible.
package layout
