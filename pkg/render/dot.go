package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/probelens/probelens/pkg/engine"
	"github.com/probelens/probelens/pkg/flow/layout"
)

// ToDOT converts a snapshot to Graphviz DOT format. Nodes are clustered by
// lane so the ranked layout mirrors the lane structure; cross-reference
// edges render dashed. The result can be rendered with [GraphvizSVG] or
// [GraphvizPNG], or fed to external Graphviz tooling.
func ToDOT(snap engine.Snapshot) string {
	var buf bytes.Buffer
	buf.WriteString("digraph investigation {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.4;\n")
	buf.WriteString("\n")

	views := make(map[string]engine.NodeView, len(snap.Nodes))
	for _, n := range snap.Nodes {
		views[n.ID] = n
	}

	// Positioned nodes only, in placement order, grouped per lane.
	byLane := make(map[string][]layout.Position)
	var laneOrder []string
	for _, p := range snap.Positions {
		if _, seen := byLane[p.Lane]; !seen {
			laneOrder = append(laneOrder, p.Lane)
		}
		byLane[p.Lane] = append(byLane[p.Lane], p)
	}

	for i, lane := range laneOrder {
		fmt.Fprintf(&buf, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&buf, "    label=%q;\n", lane)
		buf.WriteString("    style=dashed;\n")
		buf.WriteString("    color=grey;\n")
		for _, p := range byLane[lane] {
			fmt.Fprintf(&buf, "    %q [%s];\n", p.NodeID, strings.Join(nodeAttrs(p, views[p.NodeID]), ", "))
		}
		buf.WriteString("  }\n")
	}

	buf.WriteString("\n")
	for _, e := range snap.Edges {
		if e.Class == layout.EdgeCrossRef {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=orange];\n", e.From, e.To)
		} else {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(p layout.Position, nv engine.NodeView) []string {
	label := nv.Label
	if label == "" {
		label = p.NodeID
	}
	label += "\n" + string(nv.Kind) + " / " + string(nv.Status)

	attrs := []string{fmt.Sprintf("label=%q", label)}
	if stroke, ok := statusStrokes[nv.Status]; ok {
		attrs = append(attrs, fmt.Sprintf("color=%q", stroke))
	}
	if fill, ok := laneFills[p.Lane]; ok {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
	}
	return attrs
}

// GraphvizSVG renders a DOT graph to SVG using the embedded Graphviz engine.
func GraphvizSVG(ctx context.Context, dot string) ([]byte, error) {
	return renderGraphviz(ctx, dot, graphviz.SVG, normalizeViewBox)
}

// GraphvizPNG renders a DOT graph to PNG using the embedded Graphviz engine.
func GraphvizPNG(ctx context.Context, dot string) ([]byte, error) {
	return renderGraphviz(ctx, dot, graphviz.PNG, nil)
}

func renderGraphviz(ctx context.Context, dot string, format graphviz.Format, post func([]byte) []byte) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	out := buf.Bytes()
	if post != nil {
		out = post(out)
	}
	return out, nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites Graphviz's svg element so the viewBox origin is
// zero and explicit pixel dimensions are set.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
