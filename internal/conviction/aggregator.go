package conviction

import (
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/models"
)

// Aggregator turns a session's analysis results into a short ranked list
// of instrument recommendations. Pure in-memory computation; the only
// external input is the optional technical snapshot map.
type Aggregator struct {
	minMentions      int
	topN             int
	maxOverextension float64
	broadMarket      map[string]bool
	logger           arbor.ILogger
}

// NewAggregator creates an Aggregator from conviction configuration.
// The broad-market symbol set is domain data, injected from config
// rather than hard-coded.
func NewAggregator(config *common.ConvictionConfig, logger arbor.ILogger) *Aggregator {
	broadMarket := make(map[string]bool, len(config.BroadMarketSymbols))
	for _, symbol := range config.BroadMarketSymbols {
		broadMarket[strings.ToUpper(symbol)] = true
	}

	return &Aggregator{
		minMentions:      config.MinMentions,
		topN:             config.TopN,
		maxOverextension: config.MaxOverextension,
		broadMarket:      broadMarket,
		logger:           logger,
	}
}

// Consolidate runs the full pipeline over one session: accumulate,
// frequency filter, specialization preference, technical overextension
// filter, rank, truncate. Result order is independent of input order.
// If fewer than topN symbols survive, fewer are returned; rejected
// symbols are never padded back in.
func (a *Aggregator) Consolidate(session *Session, technicals map[string]*models.TechnicalSnapshot) []models.InstrumentRecommendation {
	aggregates := a.accumulate(session.Results(), technicals)

	survivors := a.filterByMentions(aggregates)
	survivors = a.preferSpecialized(survivors)
	survivors = a.filterOverextended(survivors)

	return a.rank(survivors)
}

func (a *Aggregator) accumulate(results []models.AnalysisResult, technicals map[string]*models.TechnicalSnapshot) map[string]*models.InstrumentAggregate {
	aggregates := make(map[string]*models.InstrumentAggregate)

	for _, result := range results {
		for _, raw := range result.Symbols {
			symbol := strings.ToUpper(strings.TrimSpace(raw))
			if symbol == "" {
				continue
			}

			agg, ok := aggregates[symbol]
			if !ok {
				agg = &models.InstrumentAggregate{
					Symbol:        symbol,
					Sector:        result.Sector,
					IsSpecialized: !a.broadMarket[symbol],
					Technical:     technicals[symbol],
				}
				aggregates[symbol] = agg
			}

			agg.MentionCount++
			agg.CumulativeConfidence += result.Confidence
		}
	}

	return aggregates
}

func (a *Aggregator) filterByMentions(aggregates map[string]*models.InstrumentAggregate) []*models.InstrumentAggregate {
	survivors := make([]*models.InstrumentAggregate, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.MentionCount < a.minMentions {
			a.logger.Debug().
				Str("symbol", agg.Symbol).
				Int("mentions", agg.MentionCount).
				Int("required", a.minMentions).
				Msg("Symbol below mention threshold")
			continue
		}
		survivors = append(survivors, agg)
	}
	return survivors
}

// preferSpecialized keeps broad-market symbols out of the ranking unless
// no specialized symbol qualified at all. Broad exposure is a fallback,
// never a first choice.
func (a *Aggregator) preferSpecialized(survivors []*models.InstrumentAggregate) []*models.InstrumentAggregate {
	specialized := make([]*models.InstrumentAggregate, 0, len(survivors))
	broad := make([]*models.InstrumentAggregate, 0)

	for _, agg := range survivors {
		if agg.IsSpecialized {
			specialized = append(specialized, agg)
		} else {
			broad = append(broad, agg)
		}
	}

	if len(specialized) > 0 {
		return specialized
	}
	if len(broad) > 0 {
		a.logger.Info().
			Int("broad_count", len(broad)).
			Msg("No specialized symbols qualify, falling back to broad-market funds")
	}
	return broad
}

// filterOverextended drops symbols trading too far above estimated
// support. Symbols without a snapshot pass through unfiltered: missing
// market data must not suppress a recommendation.
func (a *Aggregator) filterOverextended(survivors []*models.InstrumentAggregate) []*models.InstrumentAggregate {
	kept := make([]*models.InstrumentAggregate, 0, len(survivors))
	for _, agg := range survivors {
		if agg.Technical == nil {
			a.logger.Debug().
				Str("symbol", agg.Symbol).
				Msg("No technical snapshot, passing through unfiltered")
			kept = append(kept, agg)
			continue
		}

		gap := agg.Technical.SupportGap()
		if gap > a.maxOverextension {
			a.logger.Info().
				Str("symbol", agg.Symbol).
				Float64("gap", gap).
				Float64("max", a.maxOverextension).
				Msg("Symbol overextended above support, rejecting")
			continue
		}
		kept = append(kept, agg)
	}
	return kept
}

func (a *Aggregator) rank(survivors []*models.InstrumentAggregate) []models.InstrumentRecommendation {
	for _, agg := range survivors {
		if agg.MentionCount < 1 {
			a.logger.Warn().
				Str("symbol", agg.Symbol).
				Msg("Aggregate with zero mention count, coercing to 1")
			agg.MentionCount = 1
		}
	}

	sort.Slice(survivors, func(i, j int) bool {
		ai, aj := survivors[i].AverageConfidence(), survivors[j].AverageConfidence()
		if ai != aj {
			return ai > aj
		}
		if survivors[i].MentionCount != survivors[j].MentionCount {
			return survivors[i].MentionCount > survivors[j].MentionCount
		}
		return survivors[i].Symbol < survivors[j].Symbol
	})

	if len(survivors) > a.topN {
		survivors = survivors[:a.topN]
	}

	recommendations := make([]models.InstrumentRecommendation, 0, len(survivors))
	for i, agg := range survivors {
		recommendations = append(recommendations, models.InstrumentRecommendation{
			Symbol:            agg.Symbol,
			MentionCount:      agg.MentionCount,
			AverageConfidence: agg.AverageConfidence(),
			Sector:            agg.Sector,
			Rank:              i + 1,
		})
	}
	return recommendations
}
