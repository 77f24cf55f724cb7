package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/models"
)

// notionStub fakes the two endpoints the sink touches: database query
// and page creation.
type notionStub struct {
	pages   map[string]string // record id -> page url
	created int
}

func (s *notionStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/databases/", func(w http.ResponseWriter, r *http.Request) {
		var query struct {
			Filter struct {
				RichText struct {
					Equals string `json:"equals"`
				} `json:"rich_text"`
			} `json:"filter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&query))

		results := []map[string]string{}
		if url, ok := s.pages[query.Filter.RichText.Equals]; ok {
			results = append(results, map[string]string{"url": url})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
	})
	mux.HandleFunc("/pages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Properties map[string]struct {
				RichText []struct {
					Text struct {
						Content string `json:"content"`
					} `json:"text"`
				} `json:"rich_text"`
			} `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		recordID := body.Properties["Record ID"].RichText[0].Text.Content
		s.created++
		url := fmt.Sprintf("https://notion.example/%s", recordID)
		s.pages[recordID] = url
		json.NewEncoder(w).Encode(map[string]string{"url": url})
	})
	return mux
}

func TestNotion_LogSignal(t *testing.T) {
	stub := &notionStub{pages: make(map[string]string)}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	sink := NewNotionClient("token", "signals-db", "reports-db", arbor.NewLogger(), WithBaseURL(server.URL))

	result := &models.AnalysisResult{
		NewsItemID: "news_abc",
		Signal:     models.SignalBullish,
		Confidence: 8,
		Symbols:    []string{"BOTZ"},
		Sector:     "AI",
		Reasoning:  "momentum confirmation",
	}

	url, err := sink.LogSignal(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, "https://notion.example/news_abc", url)
	assert.Equal(t, 1, stub.created)
}

func TestNotion_LogSignalIsIdempotent(t *testing.T) {
	stub := &notionStub{pages: make(map[string]string)}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	sink := NewNotionClient("token", "signals-db", "reports-db", arbor.NewLogger(), WithBaseURL(server.URL))

	result := &models.AnalysisResult{
		NewsItemID: "news_abc",
		Signal:     models.SignalBullish,
		Confidence: 8,
		Symbols:    []string{"BOTZ"},
	}

	first, err := sink.LogSignal(context.Background(), result)
	require.NoError(t, err)
	second, err := sink.LogSignal(context.Background(), result)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.created, "second log of the same record id must not create a new page")
}

func TestNotion_LogSessionReport(t *testing.T) {
	stub := &notionStub{pages: make(map[string]string)}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	sink := NewNotionClient("token", "signals-db", "reports-db", arbor.NewLogger(), WithBaseURL(server.URL))

	report := &models.SessionReport{
		ID:               "report_1",
		Title:            "Signalman Signal Report",
		ExecutiveSummary: "Analyzed 4 market signals.",
		MarketSentiment:  "Bullish",
		ConvictionLevel:  "High",
		TotalSignals:     4,
		StrongBuys:       []models.ReportPosition{{Symbol: "BOTZ", NetScore: 1.5, SignalsCount: 2}},
	}

	url, err := sink.LogSessionReport(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "https://notion.example/report_1", url)
}
