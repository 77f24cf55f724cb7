package newsfilter

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/models"
)

// defaultSourceWeights is the reliability table used when the config
// does not supply one. Financial wire services rank highest.
var defaultSourceWeights = map[string]float64{
	"Reuters":         5,
	"Bloomberg":       5,
	"Financial Times": 5,
	"CNBC":            4,
	"MarketWatch":     4,
	"Yahoo Finance":   3,
	"Seeking Alpha":   3,
	"TechCrunch":      3,
	"Ars Technica":    2,
	"unknown":         1,
}

const minSourceWeight = 2

// Filter keeps AI scoring costs bounded by rejecting low-relevance,
// duplicate, and low-reliability headlines before they reach batching.
// It carries rolling state (seen hashes, recent titles, daily budget)
// across cycles within one process lifetime.
type Filter struct {
	maxDaily            int
	minRelevance        float64
	dedupWindow         time.Duration
	similarityThreshold float64
	sourceWeights       map[string]float64

	seenHashes   map[string]time.Time
	recentTitles []recentTitle
	dailyCount   int
	dailyReset   time.Time

	logger arbor.ILogger
	now    func() time.Time
}

type recentTitle struct {
	words map[string]bool
	at    time.Time
}

// New creates a Filter from filter configuration.
func New(config *common.FilterConfig, logger arbor.ILogger) *Filter {
	weights := config.SourceWeights
	if len(weights) == 0 {
		weights = defaultSourceWeights
	}

	return &Filter{
		maxDaily:            config.MaxDailyHeadlines,
		minRelevance:        config.MinRelevance,
		dedupWindow:         common.MustDuration(config.DedupWindow, 24*time.Hour),
		similarityThreshold: config.SimilarityThreshold,
		sourceWeights:       weights,
		seenHashes:          make(map[string]time.Time),
		logger:              logger,
		now:                 time.Now,
	}
}

// Apply runs every filter over the fetched items and returns the
// survivors in input order. Rejection reasons are logged per item so a
// silent day is explainable from the logs.
func (f *Filter) Apply(items []models.NewsItem) []models.NewsItem {
	f.rollDailyBudget()
	f.expireDedupState()

	accepted := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		if f.maxDaily > 0 && f.dailyCount >= f.maxDaily {
			f.logger.Info().
				Int("limit", f.maxDaily).
				Msg("Daily headline budget spent, dropping remaining items")
			break
		}

		if reason, ok := f.check(&item); !ok {
			f.logger.Debug().
				Str("news_id", item.ID).
				Str("reason", reason).
				Str("title", truncate(item.Title, 60)).
				Msg("News item rejected")
			continue
		}

		f.markSeen(&item)
		f.dailyCount++
		accepted = append(accepted, item)
	}

	f.logger.Info().
		Int("fetched", len(items)).
		Int("accepted", len(accepted)).
		Int("daily_used", f.dailyCount).
		Msg("News filtering complete")

	return accepted
}

func (f *Filter) check(item *models.NewsItem) (string, bool) {
	if len(item.Title) < 10 {
		return "insufficient_content", false
	}

	if f.sourceWeight(item.Source) < minSourceWeight {
		return "low_priority_source", false
	}

	if item.Relevance < f.minRelevance {
		return "low_relevance_score", false
	}

	if len(item.Tickers) == 0 {
		return "no_relevant_tickers", false
	}

	hash := contentHash(item)
	if _, seen := f.seenHashes[hash]; seen {
		return "duplicate_content", false
	}

	words := titleWords(item.Title)
	for _, recent := range f.recentTitles {
		if jaccard(words, recent.words) >= f.similarityThreshold {
			return "near_duplicate_title", false
		}
	}

	return "accepted", true
}

func (f *Filter) markSeen(item *models.NewsItem) {
	now := f.now()
	f.seenHashes[contentHash(item)] = now
	f.recentTitles = append(f.recentTitles, recentTitle{words: titleWords(item.Title), at: now})
}

func (f *Filter) sourceWeight(source string) float64 {
	if weight, ok := f.sourceWeights[source]; ok {
		return weight
	}
	if weight, ok := f.sourceWeights["unknown"]; ok {
		return weight
	}
	return 1
}

func (f *Filter) rollDailyBudget() {
	today := f.now().Truncate(24 * time.Hour)
	if today.After(f.dailyReset) {
		f.dailyReset = today
		f.dailyCount = 0
	}
}

func (f *Filter) expireDedupState() {
	cutoff := f.now().Add(-f.dedupWindow)

	for hash, at := range f.seenHashes {
		if at.Before(cutoff) {
			delete(f.seenHashes, hash)
		}
	}

	kept := f.recentTitles[:0]
	for _, recent := range f.recentTitles {
		if recent.at.After(cutoff) {
			kept = append(kept, recent)
		}
	}
	f.recentTitles = kept
}

// Relevance scores the item from ticker and keyword hits: tickers carry
// more weight than theme keywords, normalized into [0,1].
func Relevance(tickerHits, keywordHits int) float64 {
	score := (float64(tickerHits)*0.6 + float64(keywordHits)*0.4) / 10.0
	if score > 1 {
		return 1
	}
	return score
}

func contentHash(item *models.NewsItem) string {
	sum := sha256.Sum256([]byte(item.Title + "|" + item.Content))
	return hex.EncodeToString(sum[:16])
}

func titleWords(title string) map[string]bool {
	words := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(title)) {
		word = strings.Trim(word, ".,:;!?\"'()")
		if len(word) > 2 {
			words[word] = true
		}
	}
	return words
}

// jaccard is the word-set overlap ratio of two titles.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for word := range a {
		if b[word] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
