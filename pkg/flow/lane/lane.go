// Package lane assigns investigation nodes to logical lanes.
//
// A lane is a horizontal grouping of nodes by investigation theme: the main
// flow, one thematic lane per investigation branch (news, financial, market
// by default), a validation lane, and a final synthesis lane. Classification
// is a pure function of node attributes - label keywords and kind - evaluated
// against an ordered, first-match-wins rule table. It never consults history
// or arrival order, so re-classifying a node is always idempotent.
//
// Keyword routing on labels is inherently fragile, which is exactly why the
// rules live in an explicit, testable table (configurable via TOML) instead
// of being buried in rendering code.
package lane

import (
	"fmt"
	"strings"

	"github.com/probelens/probelens/pkg/flow"
)

// Role distinguishes how the layout engine places a lane's nodes.
type Role string

// Lane roles.
const (
	RoleMain       Role = "main"       // Successive levels along the center line
	RoleThematic   Role = "thematic"   // Branch offset past the fork point
	RoleValidation Role = "validation" // Reserved levels after all branches
	RoleFinal      Role = "final"      // One level past validation, centered
)

// Lane is one member of the fixed, ordered lane set.
type Lane struct {
	Name    string  // Unique lane name ("main", "news", ...)
	Role    Role    // Placement behavior
	YOffset float64 // Vertical offset from the center line (thematic lanes)
}

// Rule maps a node predicate to a lane. A rule matches when the node's kind
// is in Kinds (or Kinds is empty) and any keyword is a case-insensitive
// substring of the label (or Keywords is empty). A rule must carry at least
// one predicate.
type Rule struct {
	Keywords []string
	Kinds    []flow.Kind
	Lane     string
}

// Matches reports whether the rule applies to the node.
func (r Rule) Matches(n flow.Node) bool {
	if len(r.Kinds) > 0 {
		found := false
		for _, k := range r.Kinds {
			if n.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(r.Keywords) > 0 {
		label := strings.ToLower(n.Label)
		found := false
		for _, kw := range r.Keywords {
			if kw != "" && strings.Contains(label, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Classifier assigns nodes to lanes by evaluating its rule table in order.
// Nodes matching no rule fall into the default lane.
type Classifier struct {
	lanes       []Lane
	rules       []Rule
	defaultLane string
	byName      map[string]Lane
}

// NewClassifier builds a classifier from a lane set and rule table.
// It validates that every rule targets a known lane, every rule has at least
// one predicate, and the default lane exists.
func NewClassifier(lanes []Lane, rules []Rule, defaultLane string) (*Classifier, error) {
	if len(lanes) == 0 {
		return nil, fmt.Errorf("lane set must not be empty")
	}
	byName := make(map[string]Lane, len(lanes))
	for _, l := range lanes {
		if l.Name == "" {
			return nil, fmt.Errorf("lane name must not be empty")
		}
		if _, dup := byName[l.Name]; dup {
			return nil, fmt.Errorf("duplicate lane %q", l.Name)
		}
		byName[l.Name] = l
	}
	if _, ok := byName[defaultLane]; !ok {
		return nil, fmt.Errorf("default lane %q not in lane set", defaultLane)
	}
	for i, r := range rules {
		if len(r.Keywords) == 0 && len(r.Kinds) == 0 {
			return nil, fmt.Errorf("rule %d has no predicate", i)
		}
		if _, ok := byName[r.Lane]; !ok {
			return nil, fmt.Errorf("rule %d targets unknown lane %q", i, r.Lane)
		}
	}
	return &Classifier{
		lanes:       lanes,
		rules:       rules,
		defaultLane: defaultLane,
		byName:      byName,
	}, nil
}

// Classify returns the lane for the node. Deterministic and pure: the same
// node attributes always yield the same lane.
func (c *Classifier) Classify(n flow.Node) Lane {
	for _, r := range c.rules {
		if r.Matches(n) {
			return c.byName[r.Lane]
		}
	}
	return c.byName[c.defaultLane]
}

// Lane returns the lane with the given name.
func (c *Classifier) Lane(name string) (Lane, bool) {
	l, ok := c.byName[name]
	return l, ok
}

// Lanes returns the full lane set in its fixed order.
func (c *Classifier) Lanes() []Lane { return c.lanes }

// Thematic returns the thematic lanes in order.
func (c *Classifier) Thematic() []Lane {
	var out []Lane
	for _, l := range c.lanes {
		if l.Role == RoleThematic {
			out = append(out, l)
		}
	}
	return out
}

// Default returns the classifier used when no configuration is supplied:
// main flow plus news/financial/market branches, validation, and final
// synthesis, with rules matching the vocabulary the investigation backend
// emits.
func Default() *Classifier {
	c, err := NewClassifier(DefaultLanes(), DefaultRules(), "main")
	if err != nil {
		panic(err) // static configuration, validated by tests
	}
	return c
}

// DefaultLanes returns the built-in lane set.
func DefaultLanes() []Lane {
	return []Lane{
		{Name: "main", Role: RoleMain, YOffset: 0},
		{Name: "news", Role: RoleThematic, YOffset: -220},
		{Name: "financial", Role: RoleThematic, YOffset: 220},
		{Name: "market", Role: RoleThematic, YOffset: 440},
		{Name: "validation", Role: RoleValidation, YOffset: 0},
		{Name: "final", Role: RoleFinal, YOffset: 0},
	}
}

// DefaultRules returns the built-in rule table. Order matters: the final
// synthesis rule must run before the generic inference keywords, and kind
// rules before keyword rules that could shadow them.
func DefaultRules() []Rule {
	return []Rule{
		{Kinds: []flow.Kind{flow.KindInference}, Keywords: []string{"master", "comprehensive"}, Lane: "final"},
		{Kinds: []flow.Kind{flow.KindValidation}, Lane: "validation"},
		{Keywords: []string{"news", "sentiment"}, Lane: "news"},
		{Keywords: []string{"earnings", "financial"}, Lane: "financial"},
		{Keywords: []string{"market", "sector"}, Lane: "market"},
	}
}
