package layout_test

import (
	"fmt"

	"github.com/probelens/probelens/pkg/flow"
	"github.com/probelens/probelens/pkg/flow/lane"
	"github.com/probelens/probelens/pkg/flow/layout"
)

func ExampleEngine() {
	store := flow.NewStore()
	engine := layout.NewEngine(store, lane.Default(), layout.DefaultSpacing())

	// Stream three arrivals: root, decision, then a news branch.
	for _, n := range []flow.Node{
		{ID: "root", Kind: flow.KindDataFetch, Label: "Fetch AAPL data"},
		{ID: "decide", Kind: flow.KindDecision, Label: "Price movement decision", ParentID: "root"},
		{ID: "news", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "decide"},
	} {
		ch, _ := store.Append(n)
		engine.Recompute(ch.Affected(n.ParentID))
	}

	for _, p := range engine.Positions() {
		fmt.Printf("%s: level %d, lane %s\n", p.NodeID, p.Level, p.Lane)
	}
	// Output:
	// root: level 0, lane main
	// decide: level 1, lane main
	// news: level 2, lane news
}

func ExampleResolver() {
	store := flow.NewStore()
	engine := layout.NewEngine(store, lane.Default(), layout.DefaultSpacing())
	resolver := layout.NewResolver(engine)

	for _, n := range []flow.Node{
		{ID: "root", Kind: flow.KindDataFetch, Label: "Fetch data"},
		{ID: "news", Kind: flow.KindAnalysis, Label: "News sentiment", ParentID: "root"},
	} {
		ch, _ := store.Append(n)
		engine.Recompute(ch.Affected(n.ParentID))
	}

	for _, e := range resolver.Rebuild() {
		fmt.Printf("%s -> %s (%s)\n", e.From, e.To, e.Class)
	}
	// Output:
	// root -> news (structural)
}
