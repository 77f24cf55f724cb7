package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/alerts"
	"github.com/ternarybob/signalman/internal/batcher"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/conviction"
	"github.com/ternarybob/signalman/internal/eodhd"
	"github.com/ternarybob/signalman/internal/interfaces"
	"github.com/ternarybob/signalman/internal/models"
	"github.com/ternarybob/signalman/internal/services/llm"
	"github.com/ternarybob/signalman/internal/services/marketdata"
	"github.com/ternarybob/signalman/internal/services/newsfeed"
	"github.com/ternarybob/signalman/internal/services/newsfilter"
	"github.com/ternarybob/signalman/internal/services/notify"
	"github.com/ternarybob/signalman/internal/services/report"
	"github.com/ternarybob/signalman/internal/services/scorer"
	badgerstorage "github.com/ternarybob/signalman/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB           *badgerstorage.BadgerDB
	AlertStorage interfaces.AlertStorage

	NewsFeed   interfaces.NewsFeed
	Filter     *newsfilter.Filter
	Batcher    *batcher.Batcher
	LLMFactory *llm.ProviderFactory
	Scorer     interfaces.SignalScorer
	MarketData interfaces.MarketDataService
	Aggregator *conviction.Aggregator

	AlertQueue   *alerts.Queue
	AlertBatcher *alerts.Batcher
	ReportSink   interfaces.ReportSink
}

// New wires every service from configuration. Components that need
// external credentials (Pushover, Notion) fall back to logging stand-ins
// when disabled, so a partial deployment still runs end to end.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	db, err := badgerstorage.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert storage: %w", err)
	}
	alertStorage := badgerstorage.NewAlertStorage(db, logger)

	a := &App{
		Config:       config,
		Logger:       logger,
		DB:           db,
		AlertStorage: alertStorage,
		Filter:       newsfilter.New(&config.Filter, logger),
		Batcher:      batcher.New(&config.Batching, logger),
		Aggregator:   conviction.NewAggregator(&config.Conviction, logger),
		AlertQueue:   alerts.NewQueue(&config.Alerts, alertStorage, logger),
	}

	switch config.NewsFeed.Provider {
	case "", "finnhub":
		a.NewsFeed = newsfeed.NewFinnhubFeed(&config.NewsFeed, logger)
	case "none":
		a.NewsFeed = noopFeed{}
		logger.Warn().Msg("News feed disabled, cycles will process carried-over items only")
	default:
		db.Close()
		return nil, fmt.Errorf("unknown news feed provider: %s", config.NewsFeed.Provider)
	}

	a.LLMFactory = llm.NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, logger)
	a.Scorer = scorer.New(a.LLMFactory, &config.LLM, a.scoringTimeout(), logger)

	marketClient := eodhd.NewClient(config.MarketData.APIKey,
		eodhd.WithBaseURL(config.MarketData.BaseURL),
		eodhd.WithRateLimit(config.MarketData.RateLimit),
		eodhd.WithLogger(logger),
	)
	a.MarketData = marketdata.NewService(marketClient, logger)

	var sink interfaces.NotificationSink
	if config.Pushover.Enabled {
		sink = notify.NewPushoverClient(config.Pushover.APIToken, config.Pushover.UserToken,
			notify.WithBaseURL(config.Pushover.BaseURL),
			notify.WithLogger(logger),
			notify.WithRateLimitPerHour(config.Pushover.RateLimitPerHour),
		)
	} else {
		sink = logSink{logger: logger}
		logger.Warn().Msg("Pushover disabled, notifications will be logged only")
	}
	a.AlertBatcher = alerts.NewBatcher(&config.Alerts, alertStorage, sink, logger)

	if config.Notion.Enabled {
		a.ReportSink = report.NewNotionClient(
			config.Notion.APIToken,
			config.Notion.SignalsDatabaseID,
			config.Notion.ReportsDatabaseID,
			logger,
			report.WithBaseURL(config.Notion.BaseURL),
		)
	} else {
		a.ReportSink = nullReportSink{}
		logger.Warn().Msg("Notion disabled, signals and reports will not be persisted externally")
	}

	return a, nil
}

// scoringTimeout picks the operation timeout of the default provider.
func (a *App) scoringTimeout() time.Duration {
	if a.Config.LLM.DefaultProvider == common.LLMProviderClaude {
		return common.MustDuration(a.Config.Claude.Timeout, 2*time.Minute)
	}
	return common.MustDuration(a.Config.Gemini.Timeout, 2*time.Minute)
}

// RunCycle executes one full pipeline pass: fetch, filter, batch, score,
// consolidate, report, enqueue, deliver. Stage failures degrade rather
// than abort; a cycle that scored nothing still flushes pending alerts.
func (a *App) RunCycle(ctx context.Context) error {
	start := time.Now()

	items, err := a.NewsFeed.Fetch(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("News fetch failed, continuing with delivery only")
	}

	accepted := a.Filter.Apply(items)

	titles := make(map[string]string, len(accepted))
	for _, item := range accepted {
		titles[item.ID] = item.Title
	}

	session := conviction.NewSession(a.Logger)
	reportURLs := make(map[string]string)

	for _, item := range accepted {
		if batch := a.Batcher.Accept(item); batch != nil {
			a.scoreBatch(ctx, batch, session, reportURLs)
		}
	}
	if batch := a.Batcher.PollReady(); batch != nil {
		a.scoreBatch(ctx, batch, session, reportURLs)
	}
	if batch := a.Batcher.EndCycle(); batch != nil {
		a.scoreBatch(ctx, batch, session, reportURLs)
	}

	if session.Size() > 0 {
		a.consolidate(ctx, session)
		a.enqueueSignals(ctx, session, titles, reportURLs)
	}

	if delivery, err := a.AlertBatcher.ProcessPending(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("Alert delivery failed")
	} else {
		a.Logger.Info().
			Int("sent", delivery.Sent).
			Int("skipped", delivery.Skipped).
			Int("failed", delivery.Failed).
			Int("discarded", delivery.Discarded).
			Msg("Alert delivery complete")
	}

	if removed, err := a.AlertBatcher.Cleanup(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Alert cleanup failed")
	} else if removed > 0 {
		a.Logger.Debug().Int("removed", removed).Msg("Retired alert records cleaned up")
	}

	a.Logger.Info().
		Int("fetched", len(items)).
		Int("accepted", len(accepted)).
		Int("scored", session.Size()).
		Dur("duration", time.Since(start)).
		Msg("Processing cycle complete")

	return nil
}

// scoreBatch runs one scoring call and feeds the results into the
// session and the report sink. Scoring errors drop the batch; news items
// are never re-queued for scoring.
func (a *App) scoreBatch(ctx context.Context, batch *models.NewsBatch, session *conviction.Session, reportURLs map[string]string) {
	results, err := a.Scorer.ScoreBatch(ctx, batch)
	if err != nil {
		a.Logger.Error().
			Err(err).
			Str("batch_id", batch.ID).
			Int("size", batch.Size()).
			Msg("Batch scoring failed, dropping batch")
		return
	}

	for _, result := range results {
		session.Add(result)

		url, err := a.ReportSink.LogSignal(ctx, &result)
		if err != nil {
			a.Logger.Warn().
				Err(err).
				Str("news_id", result.NewsItemID).
				Msg("Failed to log signal to report sink")
			continue
		}
		if url != "" {
			reportURLs[result.NewsItemID] = url
		}
	}
}

// consolidate builds the ranked recommendations and the session report.
func (a *App) consolidate(ctx context.Context, session *conviction.Session) {
	symbols := sessionSymbols(session)

	technicals, err := a.MarketData.Snapshot(ctx, symbols)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Market data snapshot failed, overextension filter is open")
		technicals = map[string]*models.TechnicalSnapshot{}
	}

	recommendations := a.Aggregator.Consolidate(session, technicals)

	sessionReport := conviction.BuildReport(session, recommendations, technicals)
	if sessionReport == nil {
		return
	}

	if url, err := a.ReportSink.LogSessionReport(ctx, sessionReport); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to log session report")
	} else if url != "" {
		a.Logger.Info().Str("url", url).Msg("Session report logged")
	}
}

// enqueueSignals queues actionable analysis results for delivery.
func (a *App) enqueueSignals(ctx context.Context, session *conviction.Session, titles, reportURLs map[string]string) {
	queued := 0
	for _, result := range session.Results() {
		if !result.Signal.Actionable() {
			continue
		}

		signal := models.AlertSignal{
			NewsItemID: result.NewsItemID,
			Signal:     result.Signal,
			Confidence: result.Confidence,
			Title:      titles[result.NewsItemID],
			Reasoning:  result.Reasoning,
			Symbols:    result.Symbols,
			Sector:     result.Sector,
			ReportURL:  reportURLs[result.NewsItemID],
			SearchTerm: result.SearchTerm,
		}

		if _, err := a.AlertQueue.Enqueue(ctx, signal); err != nil {
			a.Logger.Warn().
				Err(err).
				Str("news_id", result.NewsItemID).
				Msg("Failed to enqueue alert")
			continue
		}
		queued++
	}

	a.Logger.Info().
		Int("actionable", queued).
		Int("total", session.Size()).
		Msg("Signals enqueued for delivery")
}

// Close releases external resources. Safe to call once on shutdown.
func (a *App) Close() error {
	if a.LLMFactory != nil {
		if err := a.LLMFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM clients")
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func sessionSymbols(session *conviction.Session) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, result := range session.Results() {
		for _, symbol := range result.Symbols {
			if !seen[symbol] {
				seen[symbol] = true
				symbols = append(symbols, symbol)
			}
		}
	}
	return symbols
}

// noopFeed satisfies NewsFeed when ingestion is disabled.
type noopFeed struct{}

func (noopFeed) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	return nil, nil
}

// logSink satisfies NotificationSink when Pushover is disabled.
type logSink struct {
	logger arbor.ILogger
}

func (s logSink) Send(ctx context.Context, n *interfaces.Notification) error {
	s.logger.Info().
		Str("title", n.Title).
		Str("message", n.Message).
		Int("priority", n.Priority).
		Msg("Notification (delivery disabled)")
	return nil
}

// nullReportSink satisfies ReportSink when Notion is disabled.
type nullReportSink struct{}

func (nullReportSink) LogSignal(ctx context.Context, result *models.AnalysisResult) (string, error) {
	return "", nil
}

func (nullReportSink) LogSessionReport(ctx context.Context, report *models.SessionReport) (string, error) {
	return "", nil
}
