package conviction

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/models"
)

const (
	strongConsensusScore = 1.0
	watchlistFloor       = 0.3
	maxStrongBuys        = 5
	maxStrongSells       = 3
	maxWatchlist         = 10
)

type reportPosition struct {
	symbol       string
	netScore     float64
	signalsCount int
	entryPrice   float64
}

// BuildReport consolidates one session into a report for the report
// sink. Net score per symbol is the confidence-weighted bull/bear
// consensus: bullish adds confidence/10, bearish subtracts it, neutral
// contributes nothing. Returns nil for an empty session.
func BuildReport(session *Session, recommendations []models.InstrumentRecommendation, technicals map[string]*models.TechnicalSnapshot) *models.SessionReport {
	results := session.Results()
	if len(results) == 0 {
		return nil
	}

	positions := make(map[string]*reportPosition)
	bullish, bearish := 0, 0
	highConviction, mediumConviction := 0, 0
	sectorWeight := make(map[string]int)

	for _, result := range results {
		switch result.Signal {
		case models.SignalBullish:
			bullish++
		case models.SignalBearish:
			bearish++
		}

		if result.Confidence >= 8 {
			highConviction++
		} else if result.Confidence >= 6 {
			mediumConviction++
		}

		sector := result.Sector
		if sector == "" {
			sector = "Mixed"
		}
		sectorWeight[sector] += result.Confidence

		weight := float64(result.Confidence) / 10
		for _, raw := range result.Symbols {
			symbol := strings.ToUpper(strings.TrimSpace(raw))
			if symbol == "" {
				continue
			}
			pos, ok := positions[symbol]
			if !ok {
				pos = &reportPosition{symbol: symbol}
				if snapshot := technicals[symbol]; snapshot != nil {
					pos.entryPrice = snapshot.Price
				}
				positions[symbol] = pos
			}
			pos.signalsCount++
			switch result.Signal {
			case models.SignalBullish:
				pos.netScore += weight
			case models.SignalBearish:
				pos.netScore -= weight
			}
		}
	}

	strongBuys, strongSells := consensusPositions(positions)

	watchlist := make([]string, 0)
	for _, pos := range sortedPositions(positions) {
		abs := pos.netScore
		if abs < 0 {
			abs = -abs
		}
		if abs >= watchlistFloor && abs < strongConsensusScore {
			watchlist = append(watchlist, pos.symbol)
		}
	}
	if len(watchlist) > maxWatchlist {
		watchlist = watchlist[:maxWatchlist]
	}

	now := time.Now()
	return &models.SessionReport{
		ID:               common.NewReportID(),
		Title:            fmt.Sprintf("Signalman Signal Report - %s", now.Format("2006-01-02 15:04")),
		SessionStartedAt: session.StartedAt(),
		CreatedAt:        now,
		ExecutiveSummary: fmt.Sprintf(
			"Analyzed %d market signals. Primary focus: %s. %d strong buy recommendations, %d strong sell recommendations.",
			len(results), dominantSector(sectorWeight), len(strongBuys), len(strongSells)),
		MarketSentiment: sentiment(bullish, bearish, len(results)),
		ConvictionLevel: convictionLevel(highConviction, mediumConviction),
		DominantSector:  dominantSector(sectorWeight),
		TotalSignals:    len(results),
		StrongBuys:      strongBuys,
		StrongSells:     strongSells,
		Watchlist:       watchlist,
		Recommendations: recommendations,
	}
}

// consensusPositions extracts strong buy/sell lists. A position needs at
// least two confirming signals before it counts as consensus.
func consensusPositions(positions map[string]*reportPosition) (buys, sells []models.ReportPosition) {
	for _, pos := range positions {
		if pos.signalsCount < 2 {
			continue
		}
		if pos.netScore >= strongConsensusScore {
			buys = append(buys, models.ReportPosition{
				Symbol:       pos.symbol,
				NetScore:     pos.netScore,
				SignalsCount: pos.signalsCount,
				EntryPrice:   pos.entryPrice,
			})
		} else if pos.netScore <= -strongConsensusScore {
			sells = append(sells, models.ReportPosition{
				Symbol:       pos.symbol,
				NetScore:     pos.netScore,
				SignalsCount: pos.signalsCount,
				EntryPrice:   pos.entryPrice,
			})
		}
	}

	sort.Slice(buys, func(i, j int) bool { return buys[i].NetScore > buys[j].NetScore })
	sort.Slice(sells, func(i, j int) bool { return sells[i].NetScore < sells[j].NetScore })

	if len(buys) > maxStrongBuys {
		buys = buys[:maxStrongBuys]
	}
	if len(sells) > maxStrongSells {
		sells = sells[:maxStrongSells]
	}
	return buys, sells
}

func sortedPositions(positions map[string]*reportPosition) []*reportPosition {
	sorted := make([]*reportPosition, 0, len(positions))
	for _, pos := range positions {
		sorted = append(sorted, pos)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].symbol < sorted[j].symbol })
	return sorted
}

func sentiment(bullish, bearish, total int) string {
	if bullish*2 > total {
		return "Bullish"
	}
	if bearish*2 > total {
		return "Bearish"
	}
	return "Mixed"
}

func convictionLevel(high, medium int) string {
	if high > 0 {
		return "High"
	}
	if medium > 0 {
		return "Medium"
	}
	return "Low"
}

func dominantSector(weights map[string]int) string {
	best, bestWeight := "Mixed", 0
	for sector, weight := range weights {
		if weight > bestWeight || (weight == bestWeight && sector < best && bestWeight > 0) {
			best, bestWeight = sector, weight
		}
	}
	return best
}
