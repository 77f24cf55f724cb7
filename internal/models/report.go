package models

import "time"

// ReportPosition is one instrument line in a consolidated session report.
type ReportPosition struct {
	Symbol       string  `json:"symbol"`
	NetScore     float64 `json:"net_score"` // confidence-weighted bull/bear consensus
	SignalsCount int     `json:"signals_count"`
	EntryPrice   float64 `json:"entry_price,omitempty"`
}

// SessionReport is the consolidated output of one processing session,
// persisted to the report sink alongside the ranked recommendations.
type SessionReport struct {
	ID               string                     `json:"id"`
	Title            string                     `json:"title"`
	SessionStartedAt time.Time                  `json:"session_started_at"`
	CreatedAt        time.Time                  `json:"created_at"`
	ExecutiveSummary string                     `json:"executive_summary"`
	MarketSentiment  string                     `json:"market_sentiment"` // Bullish | Bearish | Mixed
	ConvictionLevel  string                     `json:"conviction_level"` // High | Medium | Low
	DominantSector   string                     `json:"dominant_sector"`
	TotalSignals     int                        `json:"total_signals"`
	StrongBuys       []ReportPosition           `json:"strong_buys"`
	StrongSells      []ReportPosition           `json:"strong_sells"`
	Watchlist        []string                   `json:"watchlist"`
	Recommendations  []InstrumentRecommendation `json:"recommendations"`
}
