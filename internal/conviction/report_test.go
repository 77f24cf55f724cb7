package conviction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/models"
)

func signal(signalType models.SignalType, confidence int, symbols ...string) models.AnalysisResult {
	return models.AnalysisResult{
		NewsItemID: "news_1",
		Signal:     signalType,
		Confidence: confidence,
		Symbols:    symbols,
		Sector:     "AI",
	}
}

func TestBuildReport_EmptySession(t *testing.T) {
	session := NewSession(arbor.NewLogger())
	assert.Nil(t, BuildReport(session, nil, nil))
}

func TestBuildReport_StrongBuyConsensus(t *testing.T) {
	session := sessionWith(
		signal(models.SignalBullish, 8, "BOTZ"),
		signal(models.SignalBullish, 7, "BOTZ"),
		signal(models.SignalBearish, 9, "URA"),
		signal(models.SignalBearish, 8, "URA"),
	)

	report := BuildReport(session, nil, map[string]*models.TechnicalSnapshot{
		"BOTZ": {Symbol: "BOTZ", Price: 31.5},
	})
	require.NotNil(t, report)

	// BOTZ net score 0.8 + 0.7 = 1.5 with two confirmations.
	require.Len(t, report.StrongBuys, 1)
	assert.Equal(t, "BOTZ", report.StrongBuys[0].Symbol)
	assert.InDelta(t, 1.5, report.StrongBuys[0].NetScore, 1e-9)
	assert.Equal(t, 2, report.StrongBuys[0].SignalsCount)
	assert.InDelta(t, 31.5, report.StrongBuys[0].EntryPrice, 1e-9)

	// URA net score -1.7.
	require.Len(t, report.StrongSells, 1)
	assert.Equal(t, "URA", report.StrongSells[0].Symbol)
	assert.InDelta(t, -1.7, report.StrongSells[0].NetScore, 1e-9)
}

func TestBuildReport_SingleSignalIsNotConsensus(t *testing.T) {
	session := sessionWith(
		signal(models.SignalBullish, 10, "BOTZ"),
	)

	report := BuildReport(session, nil, nil)
	require.NotNil(t, report)
	assert.Empty(t, report.StrongBuys, "one signal is never consensus regardless of confidence")
	assert.Contains(t, report.Watchlist, "BOTZ")
}

func TestBuildReport_Watchlist(t *testing.T) {
	session := sessionWith(
		signal(models.SignalBullish, 5, "ICLN"), // net 0.5: watchlist
		signal(models.SignalBullish, 2, "ITA"),  // net 0.2: below floor
		signal(models.SignalBearish, 6, "URA"),  // net -0.6: watchlist by magnitude
	)

	report := BuildReport(session, nil, nil)
	require.NotNil(t, report)
	assert.ElementsMatch(t, []string{"ICLN", "URA"}, report.Watchlist)
}

func TestBuildReport_SentimentAndConviction(t *testing.T) {
	t.Run("bullish majority", func(t *testing.T) {
		session := sessionWith(
			signal(models.SignalBullish, 8, "BOTZ"),
			signal(models.SignalBullish, 7, "ROBO"),
			signal(models.SignalBearish, 6, "URA"),
		)
		report := BuildReport(session, nil, nil)
		assert.Equal(t, "Bullish", report.MarketSentiment)
		assert.Equal(t, "High", report.ConvictionLevel)
	})

	t.Run("no majority is mixed", func(t *testing.T) {
		session := sessionWith(
			signal(models.SignalBullish, 5, "BOTZ"),
			signal(models.SignalBearish, 5, "URA"),
		)
		report := BuildReport(session, nil, nil)
		assert.Equal(t, "Mixed", report.MarketSentiment)
		assert.Equal(t, "Low", report.ConvictionLevel)
	})
}

func TestBuildReport_CarriesRecommendations(t *testing.T) {
	session := sessionWith(
		signal(models.SignalBullish, 8, "BOTZ"),
		signal(models.SignalBullish, 7, "BOTZ"),
	)
	recs := []models.InstrumentRecommendation{
		{Symbol: "BOTZ", MentionCount: 2, AverageConfidence: 7.5, Sector: "AI", Rank: 1},
	}

	report := BuildReport(session, recs, nil)
	require.NotNil(t, report)
	assert.Equal(t, recs, report.Recommendations)
	assert.Equal(t, 2, report.TotalSignals)
	assert.Equal(t, "AI", report.DominantSector)
}
