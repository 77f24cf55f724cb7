package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/signalman/internal/models"
)

func TestBuildBatchPrompt(t *testing.T) {
	batch := &models.NewsBatch{
		ID: "batch_1",
		Items: []models.NewsItem{
			{ID: "news_1", Title: "Robotics orders surge", Source: "Reuters", Tickers: []string{"BOTZ"}},
			{ID: "news_2", Title: "Defense budget expands", Source: "Bloomberg", Content: "Spending bill passes"},
		},
	}

	prompt := buildBatchPrompt(batch)

	assert.Contains(t, prompt, "ITEM 0:")
	assert.Contains(t, prompt, "ITEM 1:")
	assert.Contains(t, prompt, "Robotics orders surge")
	assert.Contains(t, prompt, "Mentioned tickers: BOTZ")
	assert.Contains(t, prompt, `"not_financial"`)
}

func TestParseVerdicts(t *testing.T) {
	t.Run("plain array", func(t *testing.T) {
		verdicts, err := parseVerdicts(`[{"index":0,"relevance":"financial","signal":"Bullish","confidence":8,"affected_symbols":["BOTZ"],"sector":"AI","reasoning":"momentum"}]`)
		require.NoError(t, err)
		require.Len(t, verdicts, 1)
		assert.Equal(t, 8, verdicts[0].Confidence)
		assert.Equal(t, []string{"BOTZ"}, verdicts[0].Symbols)
	})

	t.Run("fenced markdown", func(t *testing.T) {
		verdicts, err := parseVerdicts("```json\n[{\"index\":1,\"relevance\":\"not_financial\"}]\n```")
		require.NoError(t, err)
		require.Len(t, verdicts, 1)
		assert.Equal(t, "not_financial", verdicts[0].Relevance)
	})

	t.Run("bare object", func(t *testing.T) {
		verdicts, err := parseVerdicts(`{"index":0,"relevance":"financial","signal":"Bearish","confidence":6}`)
		require.NoError(t, err)
		require.Len(t, verdicts, 1)
		assert.Equal(t, "Bearish", verdicts[0].Signal)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parseVerdicts("the market looks fine to me")
		assert.Error(t, err)
	})
}
