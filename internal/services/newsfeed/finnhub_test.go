package newsfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
)

func TestFinnhub_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		require.NotEmpty(t, r.URL.Query().Get("token"))

		switch symbol {
		case "BOTZ":
			fmt.Fprint(w, `[{"id":101,"datetime":1756500000,"headline":"Robotics orders surge on automation demand","source":"Reuters","summary":"Strong quarter for industrial robotics.","url":"https://example.com/a","related":"BOTZ,ROBO"}]`)
		case "URA":
			fmt.Fprint(w, `[{"id":102,"datetime":1756500100,"headline":"Uranium supply disruption hits miners","source":"Bloomberg","summary":"Production halted at major site.","url":"https://example.com/b","related":"URA"}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer server.Close()

	feed := NewFinnhubFeed(&common.NewsFeedConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		Tickers:       []string{"BOTZ", "URA"},
		Keywords:      []string{"robotics", "uranium"},
		LookbackHours: 24,
	}, arbor.NewLogger())

	items, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "news_fh_101", first.ID)
	assert.Equal(t, "Robotics orders surge on automation demand", first.Title)
	assert.Equal(t, []string{"BOTZ", "ROBO"}, first.Tickers)
	assert.Equal(t, []string{"robotics"}, first.Keywords)
	assert.Greater(t, first.Relevance, 0.0)
}

func TestFinnhub_FetchSkipsFailingTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BAD" {
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[{"id":103,"datetime":1756500000,"headline":"Defense budget expands procurement","source":"Reuters","summary":"Spending bill passes.","url":"https://example.com/c","related":"ITA"}]`)
	}))
	defer server.Close()

	feed := NewFinnhubFeed(&common.NewsFeedConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		Tickers:       []string{"BAD", "ITA"},
		LookbackHours: 24,
	}, arbor.NewLogger())

	items, err := feed.Fetch(context.Background())
	require.NoError(t, err, "one failing ticker does not abort the fetch")
	require.Len(t, items, 1)
	assert.Equal(t, "news_fh_103", items[0].ID)
}

func TestFinnhub_DeduplicatesAcrossTickers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Both tickers return the same article id.
		fmt.Fprint(w, `[{"id":104,"datetime":1756500000,"headline":"Sector-wide rally in thematic funds","source":"CNBC","summary":"Broad gains.","url":"https://example.com/d","related":"BOTZ,ROBO"}]`)
	}))
	defer server.Close()

	feed := NewFinnhubFeed(&common.NewsFeedConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		Tickers:       []string{"BOTZ", "ROBO"},
		LookbackHours: 24,
	}, arbor.NewLogger())

	items, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFinnhub_RequiresAPIKey(t *testing.T) {
	feed := NewFinnhubFeed(&common.NewsFeedConfig{}, arbor.NewLogger())
	_, err := feed.Fetch(context.Background())
	assert.Error(t, err)
}
