package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/interfaces"
	"github.com/ternarybob/signalman/internal/models"
)

const (
	// DefaultBaseURL is the base URL for the Notion API.
	DefaultBaseURL = "https://api.notion.com/v1"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	notionVersion = "2022-06-28"

	// recordIDProperty is the database property used for idempotency.
	recordIDProperty = "Record ID"
)

// NotionClient persists signals and session reports as pages in two
// Notion databases. Writes are idempotent on record id: an existing
// page with the same record id is returned instead of duplicated.
type NotionClient struct {
	baseURL     string
	apiToken    string
	signalsDB   string
	reportsDB   string
	httpClient  *http.Client
	logger      arbor.ILogger
}

// NotionOption configures the NotionClient.
type NotionOption func(*NotionClient)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) NotionOption {
	return func(c *NotionClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) NotionOption {
	return func(c *NotionClient) {
		c.httpClient = httpClient
	}
}

// NewNotionClient creates a Notion report sink.
func NewNotionClient(apiToken, signalsDB, reportsDB string, logger arbor.ILogger, opts ...NotionOption) interfaces.ReportSink {
	c := &NotionClient{
		baseURL:   DefaultBaseURL,
		apiToken:  apiToken,
		signalsDB: signalsDB,
		reportsDB: reportsDB,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LogSignal persists one analysis result to the signals database and
// returns the page URL.
func (c *NotionClient) LogSignal(ctx context.Context, result *models.AnalysisResult) (string, error) {
	recordID := result.NewsItemID
	if recordID == "" {
		recordID = fmt.Sprintf("signal-%s-%d", strings.Join(result.Symbols, "-"), result.Confidence)
	}

	if url, found, err := c.findExisting(ctx, c.signalsDB, recordID); err != nil {
		return "", err
	} else if found {
		c.logger.Debug().Str("record_id", recordID).Msg("Signal already logged, reusing page")
		return url, nil
	}

	title := fmt.Sprintf("%s %s (%d/10)", titleCase(string(result.Signal)), strings.Join(result.Symbols, ", "), result.Confidence)
	properties := map[string]interface{}{
		"Name":           titleProperty(title),
		recordIDProperty: richTextProperty(recordID),
		"Signal":         selectProperty(titleCase(string(result.Signal))),
		"Confidence":     numberProperty(float64(result.Confidence)),
		"Symbols":        richTextProperty(strings.Join(result.Symbols, ", ")),
		"Sector":         selectProperty(orDefault(result.Sector, "Mixed")),
		"Reasoning":      richTextProperty(truncateText(result.Reasoning, 1900)),
	}

	return c.createPage(ctx, c.signalsDB, properties)
}

// LogSessionReport persists a consolidated session report to the
// reports database and returns the page URL.
func (c *NotionClient) LogSessionReport(ctx context.Context, report *models.SessionReport) (string, error) {
	if url, found, err := c.findExisting(ctx, c.reportsDB, report.ID); err != nil {
		return "", err
	} else if found {
		c.logger.Debug().Str("record_id", report.ID).Msg("Session report already logged, reusing page")
		return url, nil
	}

	properties := map[string]interface{}{
		"Name":             titleProperty(report.Title),
		recordIDProperty:   richTextProperty(report.ID),
		"Summary":          richTextProperty(report.ExecutiveSummary),
		"Sentiment":        selectProperty(report.MarketSentiment),
		"Conviction":       selectProperty(report.ConvictionLevel),
		"Sector":           selectProperty(orDefault(report.DominantSector, "Mixed")),
		"Total Signals":    numberProperty(float64(report.TotalSignals)),
		"Strong Buys":      richTextProperty(positionList(report.StrongBuys)),
		"Strong Sells":     richTextProperty(positionList(report.StrongSells)),
		"Watchlist":        richTextProperty(strings.Join(report.Watchlist, ", ")),
		"Recommendations":  richTextProperty(recommendationList(report.Recommendations)),
	}

	return c.createPage(ctx, c.reportsDB, properties)
}

// findExisting queries a database for a page carrying the record id.
func (c *NotionClient) findExisting(ctx context.Context, databaseID, recordID string) (string, bool, error) {
	query := map[string]interface{}{
		"filter": map[string]interface{}{
			"property": recordIDProperty,
			"rich_text": map[string]interface{}{
				"equals": recordID,
			},
		},
		"page_size": 1,
	}

	var response struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	}
	if err := c.post(ctx, fmt.Sprintf("/databases/%s/query", databaseID), query, &response); err != nil {
		return "", false, fmt.Errorf("notion query failed: %w", err)
	}
	if len(response.Results) == 0 {
		return "", false, nil
	}
	return response.Results[0].URL, true, nil
}

func (c *NotionClient) createPage(ctx context.Context, databaseID string, properties map[string]interface{}) (string, error) {
	body := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": databaseID},
		"properties": properties,
	}

	var response struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/pages", body, &response); err != nil {
		return "", fmt.Errorf("notion page creation failed: %w", err)
	}

	c.logger.Debug().
		Str("database_id", databaseID).
		Str("url", response.URL).
		Msg("Notion page created")

	return response.URL, nil
}

func (c *NotionClient) post(ctx context.Context, path string, payload interface{}, result interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notion returned status %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func titleProperty(text string) map[string]interface{} {
	return map[string]interface{}{
		"title": []map[string]interface{}{
			{"text": map[string]interface{}{"content": text}},
		},
	}
}

func richTextProperty(text string) map[string]interface{} {
	return map[string]interface{}{
		"rich_text": []map[string]interface{}{
			{"text": map[string]interface{}{"content": text}},
		},
	}
}

func selectProperty(name string) map[string]interface{} {
	return map[string]interface{}{
		"select": map[string]interface{}{"name": name},
	}
}

func numberProperty(value float64) map[string]interface{} {
	return map[string]interface{}{"number": value}
}

func positionList(positions []models.ReportPosition) string {
	parts := make([]string, 0, len(positions))
	for _, pos := range positions {
		parts = append(parts, fmt.Sprintf("%s (%.1f)", pos.Symbol, pos.NetScore))
	}
	return strings.Join(parts, ", ")
}

func recommendationList(recs []models.InstrumentRecommendation) string {
	parts := make([]string, 0, len(recs))
	for _, rec := range recs {
		parts = append(parts, fmt.Sprintf("%d. %s (avg %.1f, %d mentions)", rec.Rank, rec.Symbol, rec.AverageConfidence, rec.MentionCount))
	}
	return strings.Join(parts, "; ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
