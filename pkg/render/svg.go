package render

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/probelens/probelens/pkg/engine"
	"github.com/probelens/probelens/pkg/flow"
	"github.com/probelens/probelens/pkg/flow/layout"
)

// Card geometry. The layout spacing constants are larger than these, so
// cards never overlap.
const (
	cardWidth    = 180.0
	cardHeight   = 64.0
	overlayWidth = 220.0
	fieldLine    = 16.0
)

var laneFills = map[string]string{
	"main":       "#e7f5ff",
	"news":       "#fff4e6",
	"financial":  "#ebfbee",
	"market":     "#f3f0ff",
	"validation": "#fff9db",
	"final":      "#ffe3e3",
}

var statusStrokes = map[flow.Status]string{
	flow.StatusPending:    "#adb5bd",
	flow.StatusInProgress: "#339af0",
	flow.StatusCompleted:  "#40c057",
	flow.StatusError:      "#fa5252",
}

// SVGOption configures the snapshot renderer.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	width    float64
	height   float64
	title    string
	overlays bool
}

// WithSize sets the output dimensions in pixels.
func WithSize(w, h float64) SVGOption {
	return func(r *svgRenderer) { r.width, r.height = w, h }
}

// WithTitle draws a heading in the top-left corner.
func WithTitle(title string) SVGOption {
	return func(r *svgRenderer) { r.title = title }
}

// WithoutOverlays suppresses the expansion detail boxes even for expanded
// nodes.
func WithoutOverlays() SVGOption {
	return func(r *svgRenderer) { r.overlays = false }
}

// SVG renders the snapshot as a standalone SVG document. Positions come
// straight from the snapshot; the viewport transform is applied as a group
// transform so the output matches what an interactive view would show.
func SVG(snap engine.Snapshot, opts ...SVGOption) []byte {
	r := svgRenderer{width: 1600, height: 900, overlays: true}
	for _, opt := range opts {
		opt(&r)
	}

	byID := make(map[string]layout.Position, len(snap.Positions))
	for _, p := range snap.Positions {
		byID[p.NodeID] = p
	}
	views := make(map[string]engine.NodeView, len(snap.Nodes))
	for _, n := range snap.Nodes {
		views[n.ID] = n
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		r.width, r.height, r.width, r.height)
	buf.WriteString(`  <rect width="100%" height="100%" fill="#f8f9fa"/>` + "\n")

	if r.title != "" {
		fmt.Fprintf(&buf, `  <text x="24" y="36" font-family="sans-serif" font-size="20" font-weight="bold" fill="#212529">%s</text>`+"\n",
			escape(r.title))
	}

	vs := snap.ViewState
	fmt.Fprintf(&buf, `  <g transform="translate(%.2f %.2f) scale(%.3f)">`+"\n",
		vs.TranslateX, vs.TranslateY, vs.Scale)

	renderEdges(&buf, snap.Edges, byID)

	cards := slices.Clone(snap.Positions)
	slices.SortFunc(cards, func(a, b layout.Position) int {
		return cmp.Compare(a.NodeID, b.NodeID)
	})
	for _, p := range cards {
		renderCard(&buf, p, views[p.NodeID])
	}
	if r.overlays {
		for _, p := range cards {
			if nv, ok := views[p.NodeID]; ok && nv.Expanded {
				renderOverlay(&buf, p, nv)
			}
		}
	}

	buf.WriteString("  </g>\n</svg>\n")
	return buf.Bytes()
}

func renderEdges(buf *bytes.Buffer, edges []layout.Edge, byID map[string]layout.Position) {
	for _, e := range edges {
		from, okF := byID[e.From]
		to, okT := byID[e.To]
		if !okF || !okT {
			continue
		}
		stroke, dash := "#868e96", ""
		if e.Class == layout.EdgeCrossRef {
			stroke, dash = "#f59f00", ` stroke-dasharray="6 4"`
		}
		// Cubic curve out of the parent's right edge into the child's left
		// edge, the midpoint bend keeping lane crossings legible.
		x1, y1 := from.X+cardWidth/2, from.Y
		x2, y2 := to.X-cardWidth/2, to.Y
		mx := (x1 + x2) / 2
		fmt.Fprintf(buf, `  <path d="M %.1f %.1f C %.1f %.1f %.1f %.1f %.1f %.1f" fill="none" stroke="%s" stroke-width="2"%s/>`+"\n",
			x1, y1, mx, y1, mx, y2, x2, y2, stroke, dash)
	}
}

func renderCard(buf *bytes.Buffer, p layout.Position, nv engine.NodeView) {
	fill, ok := laneFills[p.Lane]
	if !ok {
		fill = "#f1f3f5"
	}
	stroke, ok := statusStrokes[nv.Status]
	if !ok {
		stroke = statusStrokes[flow.StatusPending]
	}

	x, y := p.X-cardWidth/2, p.Y-cardHeight/2
	fmt.Fprintf(buf, `  <g id="node-%s">`+"\n", escape(p.NodeID))
	fmt.Fprintf(buf, `    <rect x="%.1f" y="%.1f" width="%.0f" height="%.0f" rx="8" fill="%s" stroke="%s" stroke-width="2"/>`+"\n",
		x, y, cardWidth, cardHeight, fill, stroke)

	label := nv.Label
	if label == "" {
		label = p.NodeID
	}
	fmt.Fprintf(buf, `    <text x="%.1f" y="%.1f" text-anchor="middle" font-family="sans-serif" font-size="13" fill="#212529">%s</text>`+"\n",
		p.X, p.Y-4, escape(truncate(label, 24)))
	fmt.Fprintf(buf, `    <text x="%.1f" y="%.1f" text-anchor="middle" font-family="sans-serif" font-size="10" fill="#868e96">%s · %s</text>`+"\n",
		p.X, p.Y+14, escape(string(nv.Kind)), escape(string(nv.Status)))
	buf.WriteString("  </g>\n")
}

func renderOverlay(buf *bytes.Buffer, p layout.Position, nv engine.NodeView) {
	lines := make([]string, 0, len(nv.Fields)+1)
	if nv.Description != "" {
		lines = append(lines, truncate(nv.Description, 32))
	}
	for _, f := range nv.Fields {
		lines = append(lines, truncate(f.Key+": "+f.Value, 32))
	}
	if len(lines) == 0 {
		return
	}

	h := float64(len(lines))*fieldLine + 12
	x, y := p.X-overlayWidth/2, p.Y+cardHeight/2+8
	fmt.Fprintf(buf, `  <g id="overlay-%s">`+"\n", escape(p.NodeID))
	fmt.Fprintf(buf, `    <rect x="%.1f" y="%.1f" width="%.0f" height="%.1f" rx="6" fill="#ffffff" stroke="#ced4da" stroke-width="1"/>`+"\n",
		x, y, overlayWidth, h)
	for i, line := range lines {
		fmt.Fprintf(buf, `    <text x="%.1f" y="%.1f" font-family="monospace" font-size="11" fill="#495057">%s</text>`+"\n",
			x+8, y+float64(i+1)*fieldLine, escape(line))
	}
	buf.WriteString("  </g>\n")
}

// truncate shortens s to at most n runes. Labels can carry non-ASCII text,
// so cutting on bytes would split a rune mid-sequence.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

func escape(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
