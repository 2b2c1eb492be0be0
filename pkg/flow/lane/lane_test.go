package lane

import (
	"testing"

	"github.com/probelens/probelens/pkg/flow"
)

func TestClassifyDefault(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		node flow.Node
		want string
	}{
		{"root data fetch", flow.Node{Kind: flow.KindDataFetch, Label: "Fetch AAPL data"}, "main"},
		{"decision", flow.Node{Kind: flow.KindDecision, Label: "Price movement decision"}, "main"},
		{"news branch", flow.Node{Kind: flow.KindAnalysis, Label: "Sentiment Analysis: AAPL News"}, "news"},
		{"news keyword case-insensitive", flow.Node{Kind: flow.KindSpawn, Label: "NEWS deep dive"}, "news"},
		{"earnings branch", flow.Node{Kind: flow.KindAnalysis, Label: "Earnings Analysis: AAPL Financial Performance"}, "financial"},
		{"market branch", flow.Node{Kind: flow.KindAnalysis, Label: "Market Context: AAPL Sector Analysis"}, "market"},
		{"validation by kind", flow.Node{Kind: flow.KindValidation, Label: "Agent Cross-Validation: AAPL"}, "validation"},
		{"master inference", flow.Node{Kind: flow.KindInference, Label: "Master Inference: AAPL"}, "final"},
		{"comprehensive inference", flow.Node{Kind: flow.KindInference, Label: "Comprehensive Analysis"}, "final"},
		{"plain inference falls through keywords", flow.Node{Kind: flow.KindInference, Label: "Sentiment inference"}, "news"},
		{"no rule matches", flow.Node{Kind: flow.KindSpawn, Label: "Spawn investigations"}, "main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.node); got.Name != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.node.Label, got.Name, tt.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := Default()
	n := flow.Node{Kind: flow.KindAnalysis, Label: "Sentiment Analysis: TSLA News"}
	first := c.Classify(n)
	for i := 0; i < 10; i++ {
		if got := c.Classify(n); got != first {
			t.Fatalf("classification changed on call %d: %v != %v", i, got, first)
		}
	}
}

func TestFirstMatchWins(t *testing.T) {
	lanes := []Lane{
		{Name: "main", Role: RoleMain},
		{Name: "a", Role: RoleThematic},
		{Name: "b", Role: RoleThematic},
	}
	rules := []Rule{
		{Keywords: []string{"shared"}, Lane: "a"},
		{Keywords: []string{"shared"}, Lane: "b"},
	}
	c, err := NewClassifier(lanes, rules, "main")
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	if got := c.Classify(flow.Node{Label: "shared keyword"}); got.Name != "a" {
		t.Errorf("Classify = %q, want first-match lane a", got.Name)
	}
}

func TestNewClassifierValidation(t *testing.T) {
	lanes := []Lane{{Name: "main", Role: RoleMain}}

	tests := []struct {
		name        string
		lanes       []Lane
		rules       []Rule
		defaultLane string
	}{
		{"empty lanes", nil, nil, "main"},
		{"unknown default", lanes, nil, "missing"},
		{"rule without predicate", lanes, []Rule{{Lane: "main"}}, "main"},
		{"rule targets unknown lane", lanes, []Rule{{Keywords: []string{"x"}, Lane: "ghost"}}, "main"},
		{"duplicate lane", []Lane{{Name: "main"}, {Name: "main"}}, nil, "main"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClassifier(tt.lanes, tt.rules, tt.defaultLane); err == nil {
				t.Error("NewClassifier() error = nil, want error")
			}
		})
	}
}

func TestThematic(t *testing.T) {
	c := Default()
	thematic := c.Thematic()
	want := []string{"news", "financial", "market"}
	if len(thematic) != len(want) {
		t.Fatalf("Thematic() = %v", thematic)
	}
	for i, l := range thematic {
		if l.Name != want[i] {
			t.Errorf("Thematic()[%d] = %q, want %q", i, l.Name, want[i])
		}
	}
}
