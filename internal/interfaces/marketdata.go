package interfaces

import (
	"context"

	"github.com/ternarybob/signalman/internal/models"
)

// MarketDataService provides technical snapshots for the overextension
// filter. Symbols the provider cannot quote are absent from the result;
// the aggregator treats missing snapshots as fail-open.
type MarketDataService interface {
	// Snapshot fetches price and estimated support for the given
	// symbols. Partial results are valid.
	Snapshot(ctx context.Context, symbols []string) (map[string]*models.TechnicalSnapshot, error)
}

// NewsFeed produces raw news items for a processing cycle. This is the
// ingestion collaborator; the pipeline consumes whatever it returns.
type NewsFeed interface {
	// Fetch returns news published since the last poll for the
	// configured tickers and keywords.
	Fetch(ctx context.Context) ([]models.NewsItem, error)
}
