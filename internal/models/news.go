package models

import (
	"strings"
	"time"
)

// NewsItem is a single filtered news article handed to the pipeline.
// Immutable once created; produced by a news feed collaborator and
// consumed exactly once by the news batcher.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"` // body excerpt, not the full article
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Tickers     []string  `json:"tickers"`
	Keywords    []string  `json:"keywords,omitempty"`
	Relevance   float64   `json:"relevance"` // [0,1], set by the news filter
}

// BatchState tracks the lifecycle of a NewsBatch.
type BatchState string

const (
	BatchAccumulating BatchState = "accumulating"
	BatchFinalized    BatchState = "finalized"
)

// NewsBatch is an ordered group of NewsItems sized for one scoring call.
// Owned exclusively by the batcher until finalized, then handed to the
// signal scorer and discarded.
type NewsBatch struct {
	ID        string     `json:"id"`
	Items     []NewsItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	State     BatchState `json:"state"`
}

// Size returns the number of items currently in the batch.
func (b *NewsBatch) Size() int {
	return len(b.Items)
}

// Age returns how long the batch has been accumulating.
func (b *NewsBatch) Age(now time.Time) time.Duration {
	return now.Sub(b.CreatedAt)
}

// Tickers returns the union of ticker symbols mentioned across the batch,
// preserving first-seen order.
func (b *NewsBatch) Tickers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range b.Items {
		for _, t := range item.Tickers {
			sym := strings.ToUpper(strings.TrimSpace(t))
			if sym == "" || seen[sym] {
				continue
			}
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}
