package newsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/interfaces"
	"github.com/ternarybob/signalman/internal/models"
	"github.com/ternarybob/signalman/internal/services/newsfilter"
)

// DefaultBaseURL is the base URL for the Finnhub API.
const DefaultBaseURL = "https://finnhub.io/api/v1"

// FinnhubFeed fetches company news for the tracked tickers. Item ids
// derive from Finnhub's numeric article id, so refetching the same
// article across cycles produces the same identity for deduplication.
type FinnhubFeed struct {
	baseURL    string
	apiKey     string
	tickers    []string
	keywords   []string
	lookback   time.Duration
	httpClient *http.Client
	logger     arbor.ILogger
}

// finnhubArticle is the wire format of one company-news entry.
type finnhubArticle struct {
	ID       int64  `json:"id"`
	Datetime int64  `json:"datetime"` // unix seconds
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Related  string `json:"related"` // comma-separated tickers
}

// FinnhubOption configures the FinnhubFeed.
type FinnhubOption func(*FinnhubFeed)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) FinnhubOption {
	return func(f *FinnhubFeed) {
		f.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) FinnhubOption {
	return func(f *FinnhubFeed) {
		f.httpClient = httpClient
	}
}

// NewFinnhubFeed creates a news feed from news-feed configuration.
func NewFinnhubFeed(config *common.NewsFeedConfig, logger arbor.ILogger, opts ...FinnhubOption) interfaces.NewsFeed {
	feed := &FinnhubFeed{
		baseURL:  DefaultBaseURL,
		apiKey:   config.APIKey,
		tickers:  config.Tickers,
		keywords: config.Keywords,
		lookback: time.Duration(config.LookbackHours) * time.Hour,
		httpClient: &http.Client{
			Timeout: common.MustDuration(config.Timeout, 30*time.Second),
		},
		logger: logger,
	}
	if config.BaseURL != "" {
		feed.baseURL = config.BaseURL
	}
	if feed.lookback <= 0 {
		feed.lookback = 24 * time.Hour
	}

	for _, opt := range opts {
		opt(feed)
	}

	return feed
}

// Fetch pulls company news for every tracked ticker within the
// lookback window. A single failing ticker is logged and skipped; the
// rest of the fetch proceeds.
func (f *FinnhubFeed) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	if f.apiKey == "" {
		return nil, fmt.Errorf("finnhub API key not configured")
	}

	now := time.Now()
	from := now.Add(-f.lookback)

	seen := make(map[string]bool)
	var items []models.NewsItem

	for _, ticker := range f.tickers {
		articles, err := f.companyNews(ctx, ticker, from, now)
		if err != nil {
			f.logger.Warn().
				Err(err).
				Str("ticker", ticker).
				Msg("Failed to fetch company news, skipping ticker")
			continue
		}

		for _, article := range articles {
			item := f.toNewsItem(article, ticker)
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			items = append(items, item)
		}
	}

	f.logger.Info().
		Int("tickers", len(f.tickers)).
		Int("items", len(items)).
		Msg("News fetch complete")

	return items, nil
}

func (f *FinnhubFeed) companyNews(ctx context.Context, ticker string, from, to time.Time) ([]finnhubArticle, error) {
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))
	params.Set("token", f.apiKey)

	reqURL := fmt.Sprintf("%s/company-news?%s", f.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("finnhub returned status %d: %s", resp.StatusCode, string(body))
	}

	var articles []finnhubArticle
	if err := json.NewDecoder(resp.Body).Decode(&articles); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return articles, nil
}

func (f *FinnhubFeed) toNewsItem(article finnhubArticle, ticker string) models.NewsItem {
	tickers := []string{strings.ToUpper(ticker)}
	for _, related := range strings.Split(article.Related, ",") {
		related = strings.ToUpper(strings.TrimSpace(related))
		if related != "" && related != tickers[0] {
			tickers = append(tickers, related)
		}
	}

	keywords := matchKeywords(article.Headline+" "+article.Summary, f.keywords)

	return models.NewsItem{
		ID:          fmt.Sprintf("news_fh_%d", article.ID),
		Title:       article.Headline,
		Content:     article.Summary,
		Source:      article.Source,
		URL:         article.URL,
		PublishedAt: time.Unix(article.Datetime, 0).UTC(),
		Tickers:     tickers,
		Keywords:    keywords,
		Relevance:   newsfilter.Relevance(len(tickers), len(keywords)),
	}
}

func matchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
			matched = append(matched, keyword)
		}
	}
	return matched
}
