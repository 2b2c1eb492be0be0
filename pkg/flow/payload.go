package flow

import (
	"fmt"
	"maps"
	"slices"
)

// Payload is the kind-dependent structured record a node carries.
//
// The model is a closed variant keyed by node kind: each investigation branch
// produces its own strongly-typed shape, and anything unrecognized or partial
// degrades to GenericPayload so the node still renders. The core never probes
// untyped fields after decode - rendering goes through Fields, cross-reference
// edges through Refs.
type Payload interface {
	// Fields returns the display fields in a stable order.
	Fields() []Field

	// Refs returns ids of nodes this payload cites (evidence, validated
	// sources). Most payloads return nil.
	Refs() []string
}

// Field is one renderable key-value pair of a payload.
type Field struct {
	Key   string
	Value string
}

// =============================================================================
// Typed Variants
// =============================================================================

// SentimentPayload carries news-sentiment branch results.
type SentimentPayload struct {
	OverallSentiment string  // "positive", "negative", "neutral"
	SentimentScore   float64 // 0..1 share of positive coverage
	ArticlesAnalyzed int
	ConfidenceLevel  string
}

func (p *SentimentPayload) Fields() []Field {
	return []Field{
		{"sentiment", p.OverallSentiment},
		{"score", fmt.Sprintf("%.0f%%", p.SentimentScore*100)},
		{"articles", fmt.Sprintf("%d", p.ArticlesAnalyzed)},
		{"confidence", p.ConfidenceLevel},
	}
}

func (p *SentimentPayload) Refs() []string { return nil }

// EarningsPayload carries financial branch results.
type EarningsPayload struct {
	EPSBeat          bool
	EarningsSurprise float64 // surprise vs. estimates in percent
	RevenueGrowth    float64 // year-over-year percent
}

func (p *EarningsPayload) Fields() []Field {
	beat := "missed"
	if p.EPSBeat {
		beat = "beat"
	}
	return []Field{
		{"eps", beat},
		{"surprise", fmt.Sprintf("%+.1f%%", p.EarningsSurprise)},
		{"revenue growth", fmt.Sprintf("%+.1f%%", p.RevenueGrowth)},
	}
}

func (p *EarningsPayload) Refs() []string { return nil }

// MarketPayload carries market-context branch results.
type MarketPayload struct {
	RelativeStrength  string  // "outperforming", "underperforming", "neutral"
	SectorPerformance float64 // percent vs. sector
	MarketTrend       string  // "bullish", "bearish", "sideways"
}

func (p *MarketPayload) Fields() []Field {
	return []Field{
		{"relative strength", p.RelativeStrength},
		{"vs sector", fmt.Sprintf("%+.1f%%", p.SectorPerformance)},
		{"trend", p.MarketTrend},
	}
}

func (p *MarketPayload) Refs() []string { return nil }

// ValidationPayload carries cross-validation results. ValidatedSources names
// the investigation nodes whose findings were checked against each other.
type ValidationPayload struct {
	ValidatedSources    []string
	ConsistencyScore    float64 // 0..1 share of consistent findings
	ConsistentFindings  []string
	ConflictingFindings []string
	Conclusion          string
}

func (p *ValidationPayload) Fields() []Field {
	return []Field{
		{"sources", fmt.Sprintf("%d", len(p.ValidatedSources))},
		{"consistency", fmt.Sprintf("%.0f%%", p.ConsistencyScore*100)},
		{"consistent", fmt.Sprintf("%d", len(p.ConsistentFindings))},
		{"conflicting", fmt.Sprintf("%d", len(p.ConflictingFindings))},
		{"conclusion", p.Conclusion},
	}
}

func (p *ValidationPayload) Refs() []string { return p.ValidatedSources }

// InferencePayload carries the synthesis produced at the end of an
// investigation: an executive summary, a confidence score, and the ordered
// reasoning steps behind it. EvidenceIDs names the upstream findings the
// inference aggregates.
type InferencePayload struct {
	ExecutiveSummary string
	PrimaryCause     string
	ConfidenceScore  float64 // 0..1
	ReasoningSteps   []string
	EvidenceIDs      []string
}

func (p *InferencePayload) Fields() []Field {
	fields := []Field{
		{"summary", p.ExecutiveSummary},
		{"primary cause", p.PrimaryCause},
		{"confidence", fmt.Sprintf("%.0f%%", p.ConfidenceScore*100)},
	}
	for i, step := range p.ReasoningSteps {
		fields = append(fields, Field{fmt.Sprintf("step %d", i+1), step})
	}
	return fields
}

func (p *InferencePayload) Refs() []string { return p.EvidenceIDs }

// GenericPayload is the fallback for unrecognized or partial payloads:
// an opaque key-value bag rendered with sorted keys.
type GenericPayload struct {
	Values map[string]any
}

func (p *GenericPayload) Fields() []Field {
	keys := slices.Sorted(maps.Keys(p.Values))
	fields := make([]Field, len(keys))
	for i, k := range keys {
		fields[i] = Field{k, fmt.Sprintf("%v", p.Values[k])}
	}
	return fields
}

// Refs extracts citation ids from the conventional list keys if present,
// so aggregation edges survive even when the typed decode failed.
func (p *GenericPayload) Refs() []string {
	var refs []string
	for _, key := range []string{"validated_sources", "evidence_ids"} {
		refs = append(refs, stringList(p.Values[key])...)
	}
	return refs
}

// =============================================================================
// Decoding
// =============================================================================

// DecodePayload converts a raw key-value bag into the typed variant for the
// node kind. When required fields are missing the decode degrades to
// GenericPayload and reports ok=false so the caller can record a
// MalformedPayload diagnostic; the node is still stored and rendered.
func DecodePayload(kind Kind, raw map[string]any) (p Payload, ok bool) {
	if raw == nil {
		raw = map[string]any{}
	}
	switch kind {
	case KindAnalysis:
		if p, ok := decodeAnalysis(raw); ok {
			return p, true
		}
	case KindValidation:
		if sources, found := raw["validated_sources"]; found {
			return &ValidationPayload{
				ValidatedSources:    stringList(sources),
				ConsistencyScore:    floatValue(raw["consistency_score"]),
				ConsistentFindings:  stringList(raw["consistent_findings"]),
				ConflictingFindings: stringList(raw["conflicting_findings"]),
				Conclusion:          stringValue(raw["agent_conclusion"]),
			}, true
		}
	case KindInference:
		if _, found := raw["confidence_score"]; found {
			return &InferencePayload{
				ExecutiveSummary: stringValue(raw["executive_summary"]),
				PrimaryCause:     stringValue(raw["primary_cause"]),
				ConfidenceScore:  floatValue(raw["confidence_score"]),
				ReasoningSteps:   stringList(raw["reasoning_steps"]),
				EvidenceIDs:      stringList(raw["evidence_ids"]),
			}, true
		}
	case KindDataFetch, KindDecision, KindSpawn:
		// No dedicated shape: these kinds always render as key-value bags.
		return &GenericPayload{Values: raw}, true
	}
	return &GenericPayload{Values: raw}, false
}

// decodeAnalysis picks the thematic analysis shape by its marker field.
func decodeAnalysis(raw map[string]any) (Payload, bool) {
	if _, found := raw["overall_sentiment"]; found {
		return &SentimentPayload{
			OverallSentiment: stringValue(raw["overall_sentiment"]),
			SentimentScore:   floatValue(raw["sentiment_score"]),
			ArticlesAnalyzed: int(floatValue(raw["articles_analyzed"])),
			ConfidenceLevel:  stringValue(raw["confidence_level"]),
		}, true
	}
	if _, found := raw["eps_beat"]; found {
		return &EarningsPayload{
			EPSBeat:          boolValue(raw["eps_beat"]),
			EarningsSurprise: floatValue(raw["earnings_surprise"]),
			RevenueGrowth:    floatValue(raw["revenue_growth"]),
		}, true
	}
	if _, found := raw["relative_strength"]; found {
		return &MarketPayload{
			RelativeStrength:  stringValue(raw["relative_strength"]),
			SectorPerformance: floatValue(raw["sector_performance"]),
			MarketTrend:       stringValue(raw["market_trend"]),
		}, true
	}
	return nil, false
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
