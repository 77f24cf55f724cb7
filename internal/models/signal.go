package models

import (
	"fmt"
	"strings"
	"time"
)

// SignalType is the scorer's directional read on a news item.
type SignalType string

const (
	SignalBullish SignalType = "bullish"
	SignalBearish SignalType = "bearish"
	SignalNeutral SignalType = "neutral"
)

// ParseSignalType normalizes a scorer-provided signal string.
// Unknown values map to neutral so a sloppy model response never
// produces an actionable signal by accident.
func ParseSignalType(s string) SignalType {
	switch SignalType(strings.ToLower(strings.TrimSpace(s))) {
	case SignalBullish:
		return SignalBullish
	case SignalBearish:
		return SignalBearish
	default:
		return SignalNeutral
	}
}

// Actionable reports whether the signal can drive a notification.
func (s SignalType) Actionable() bool {
	return s == SignalBullish || s == SignalBearish
}

// AnalysisResult is one scorer verdict for one NewsItem. Immutable;
// consumed by the conviction aggregator.
type AnalysisResult struct {
	NewsItemID string     `json:"news_item_id"`
	Signal     SignalType `json:"signal"`
	Confidence int        `json:"confidence"` // [1,10]
	Symbols    []string   `json:"symbols"`    // affected instrument symbols
	Sector     string     `json:"sector"`
	Reasoning  string     `json:"reasoning"`
	SearchTerm string     `json:"search_term,omitempty"` // originating query term
	AnalyzedAt time.Time  `json:"analyzed_at"`
}

// Validate checks the scorer contract. A failing result is dropped from
// aggregation with a warning; it never aborts the session.
func (r *AnalysisResult) Validate() error {
	if r.Confidence < 1 || r.Confidence > 10 {
		return fmt.Errorf("confidence %d outside [1,10]", r.Confidence)
	}
	if len(r.Symbols) == 0 {
		return fmt.Errorf("empty instrument list")
	}
	return nil
}

// TechnicalSnapshot is the market-data view of one symbol at aggregation
// time: last traded price and an estimated support level.
type TechnicalSnapshot struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	EstimatedSupport float64   `json:"estimated_support"`
	AsOf             time.Time `json:"as_of"`
}

// SupportGap returns (price - support) / support, the overextension
// measure used by the technical filter.
func (t *TechnicalSnapshot) SupportGap() float64 {
	if t.EstimatedSupport <= 0 {
		return 0
	}
	return (t.Price - t.EstimatedSupport) / t.EstimatedSupport
}

// InstrumentAggregate is the running per-symbol tally within a session.
// AverageConfidence is always recomputed from the sum and count so
// late-arriving mentions keep it correct; it is never stored pre-divided.
type InstrumentAggregate struct {
	Symbol               string             `json:"symbol"`
	MentionCount         int                `json:"mention_count"`
	CumulativeConfidence int                `json:"cumulative_confidence"`
	Sector               string             `json:"sector"`
	IsSpecialized        bool               `json:"is_specialized"`
	Technical            *TechnicalSnapshot `json:"technical,omitempty"`
}

// AverageConfidence is the true per-mention mean. MentionCount and average
// confidence are reported as two independent fields: confirmation and
// quality are different signals and must not be blended into one score.
func (a *InstrumentAggregate) AverageConfidence() float64 {
	count := a.MentionCount
	if count < 1 {
		count = 1
	}
	return float64(a.CumulativeConfidence) / float64(count)
}

// InstrumentRecommendation is one entry of the final ranked output of a
// session. Immutable; consumed by the report and alert sinks.
type InstrumentRecommendation struct {
	Symbol            string  `json:"symbol"`
	MentionCount      int     `json:"mention_count"`
	AverageConfidence float64 `json:"average_confidence"`
	Sector            string  `json:"sector"`
	Rank              int     `json:"rank"` // 1-based
}
