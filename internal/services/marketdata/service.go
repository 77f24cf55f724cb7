package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/eodhd"
	"github.com/ternarybob/signalman/internal/interfaces"
	"github.com/ternarybob/signalman/internal/models"
)

const (
	// defaultExchange is appended to bare tickers for EODHD lookups.
	defaultExchange = "US"

	// supportLookbackDays bounds the recent-low window used for
	// support estimation.
	supportLookbackDays = 7
)

// Service resolves technical snapshots for the overextension filter.
// Snapshot resolution is strictly best-effort: a symbol that cannot be
// quoted is simply absent from the result, and the filter fails open
// downstream.
type Service struct {
	client *eodhd.Client
	logger arbor.ILogger
}

// NewService creates a market data service on top of an EODHD client.
func NewService(client *eodhd.Client, logger arbor.ILogger) interfaces.MarketDataService {
	return &Service{
		client: client,
		logger: logger,
	}
}

// Snapshot fetches price and estimated support for each symbol. Missing
// symbols are logged and omitted, never errored: the aggregation
// pipeline treats an absent snapshot as "no technical opinion".
func (s *Service) Snapshot(ctx context.Context, symbols []string) (map[string]*models.TechnicalSnapshot, error) {
	snapshots := make(map[string]*models.TechnicalSnapshot, len(symbols))

	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}

		quote, err := s.client.GetRealTimeQuote(ctx, symbol+"."+defaultExchange)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("symbol", symbol).
				Msg("No quote available, symbol will pass filters unfiltered")
			continue
		}
		if quote.Close <= 0 {
			s.logger.Warn().
				Str("symbol", symbol).
				Msg("Quote carries no price, skipping")
			continue
		}

		asOf := quote.AsOf()
		if asOf.IsZero() {
			asOf = time.Now()
		}

		snapshots[symbol] = &models.TechnicalSnapshot{
			Symbol:           symbol,
			Price:            quote.Close,
			EstimatedSupport: s.estimateSupport(ctx, symbol, quote),
			AsOf:             asOf,
		}
	}

	s.logger.Debug().
		Int("requested", len(symbols)).
		Int("resolved", len(snapshots)).
		Msg("Technical snapshots resolved")

	return snapshots, nil
}

// estimateSupport prefers the lowest recent session low; when history
// is unavailable it falls back to a volatility-scaled discount off the
// current price (a day that moved 2% implies support roughly 4% below).
func (s *Service) estimateSupport(ctx context.Context, symbol string, quote *eodhd.RealTimeQuote) float64 {
	now := time.Now()
	history, err := s.client.GetEOD(ctx, symbol+"."+defaultExchange,
		eodhd.WithDateRange(now.AddDate(0, 0, -supportLookbackDays), now))
	if err == nil && len(history) > 0 {
		low := history[0].Low
		for _, day := range history[1:] {
			if day.Low > 0 && day.Low < low {
				low = day.Low
			}
		}
		if low > 0 && low < quote.Close {
			return low
		}
	}

	change := quote.ChangePct / 100
	if change < 0 {
		change = -change
	}
	return quote.Close * (1 - 2*change)
}
