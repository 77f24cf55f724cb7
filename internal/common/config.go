package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	NewsFeed    NewsFeedConfig   `toml:"news_feed"`
	Filter      FilterConfig     `toml:"filter"`
	Batching    BatchingConfig   `toml:"batching"`
	Conviction  ConvictionConfig `toml:"conviction"`
	Alerts      AlertsConfig     `toml:"alerts"`
	Pushover    PushoverConfig   `toml:"pushover"`
	Notion      NotionConfig     `toml:"notion"`
	MarketData  MarketDataConfig `toml:"market_data"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Format string   `toml:"format"`                                            // "json" or "text"
	Output []string `toml:"output"`                                            // "stdout", "file"
}

// NewsFeedConfig configures the news ingestion collaborator.
type NewsFeedConfig struct {
	Provider      string   `toml:"provider"` // "finnhub" (default) or "none"
	APIKey        string   `toml:"api_key"`
	BaseURL       string   `toml:"base_url"`
	Tickers       []string `toml:"tickers"`        // tracked ticker symbols
	Keywords      []string `toml:"keywords"`       // tracked theme keywords
	LookbackHours int      `toml:"lookback_hours"` // how far back each fetch reaches
	Timeout       string   `toml:"timeout"`
}

// FilterConfig controls pre-AI news filtering. Filtering exists to keep
// scoring costs bounded without losing high-signal headlines.
type FilterConfig struct {
	MaxDailyHeadlines   int                `toml:"max_daily_headlines"`
	MinRelevance        float64            `toml:"min_relevance" validate:"gte=0,lte=1"`
	DedupWindow         string             `toml:"dedup_window"` // e.g. "24h"
	SimilarityThreshold float64            `toml:"similarity_threshold" validate:"gte=0,lte=1"`
	SourceWeights       map[string]float64 `toml:"source_weights"` // reliability weight per source name
}

// BatchingConfig controls the hybrid size/time news batching policy.
type BatchingConfig struct {
	MaxBatchSize int    `toml:"max_batch_size" validate:"gte=1"` // finalize immediately at this size
	MinBatchSize int    `toml:"min_batch_size" validate:"gte=1"` // below this a batch keeps waiting
	MaxWait      string `toml:"max_wait"`                        // wait bound before a min-size batch finalizes
	CarryOver    bool   `toml:"carry_over"`                      // carry sub-minimum batches into the next cycle instead of force-flushing
}

// ConvictionConfig controls session consolidation and ranking.
type ConvictionConfig struct {
	MinMentions        int      `toml:"min_mentions" validate:"gte=1"`             // mentions required to survive the frequency filter
	TopN               int      `toml:"top_n" validate:"gte=1"`                    // recommendation list size cap
	MaxOverextension   float64  `toml:"max_overextension" validate:"gt=0"`        // reject symbols further above support than this
	BroadMarketSymbols []string `toml:"broad_market_symbols" validate:"required"` // symbols treated as broad-market fallback, never first choice
}

// AlertsConfig controls queueing and delivery strategy thresholds.
type AlertsConfig struct {
	Strategy           string `toml:"strategy" validate:"oneof=immediate time_window daily_digest smart_batch"`
	QueueMinConfidence int    `toml:"queue_min_confidence"` // signals below this never enter the queue
	HighConfidence     int    `toml:"high_confidence" validate:"gte=1,lte=10"`   // smart_batch: send alone immediately at or above
	MediumConfidence   int    `toml:"medium_confidence" validate:"gte=1,lte=10"` // smart_batch: accumulate between medium and high
	MaxWait            string `toml:"max_wait"`                                  // smart_batch: oldest medium alert flush bound
	TimeWindow         string `toml:"time_window"`                               // time_window: fixed flush window
	TimeWindowMinCount int    `toml:"time_window_min_count"`                     // time_window: flush early at this many queued
	DigestInterval     string `toml:"digest_interval"`                           // daily_digest: minimum gap between digests
	MaxRetries         int    `toml:"max_retries" validate:"gte=1"`              // delivery attempts before an alert is marked failed
	DedupWindow        string `toml:"dedup_window"`                              // idempotent-enqueue window
	RetentionDays      int    `toml:"retention_days" validate:"gte=1"`           // sent/discarded record retention
	MaxDailyAlerts     int    `toml:"max_daily_alerts"`                          // notification volume cap per day (0 = unlimited)
}

// PushoverConfig contains push-notification delivery configuration.
type PushoverConfig struct {
	Enabled          bool   `toml:"enabled"`
	APIToken         string `toml:"api_token"`
	UserToken        string `toml:"user_token"`
	BaseURL          string `toml:"base_url"`
	RateLimitPerHour int    `toml:"rate_limit_per_hour"`
	Timeout          string `toml:"timeout"`
}

// NotionConfig contains report-sink configuration.
type NotionConfig struct {
	Enabled           bool   `toml:"enabled"`
	APIToken          string `toml:"api_token"`
	BaseURL           string `toml:"base_url"`
	SignalsDatabaseID string `toml:"signals_database_id"`
	ReportsDatabaseID string `toml:"reports_database_id"`
	Timeout           string `toml:"timeout"`
}

// MarketDataConfig contains EODHD market-data configuration.
type MarketDataConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GeminiConfig contains Google Gemini API configuration for AI scoring
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for scoring (default: "gemini-3-flash-preview")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// ClaudeConfig contains Anthropic Claude API configuration for AI scoring
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for scoring (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
}

// SchedulerConfig controls the periodic cycle runner.
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron expression
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings should be exposed in signalman.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		NewsFeed: NewsFeedConfig{
			Provider:      "finnhub",
			BaseURL:       "https://finnhub.io/api/v1",
			LookbackHours: 6,
			Timeout:       "30s",
		},
		Filter: FilterConfig{
			MaxDailyHeadlines:   20,
			MinRelevance:        0.3,
			DedupWindow:         "24h",
			SimilarityThreshold: 0.8,
			SourceWeights: map[string]float64{
				"Reuters":        5,
				"Bloomberg":      5,
				"CNBC":           4,
				"MarketWatch":    4,
				"Yahoo Finance":  3,
				"Seeking Alpha":  3,
				"TechCrunch":     3,
				"unknown":        1,
			},
		},
		Batching: BatchingConfig{
			MaxBatchSize: 5,
			MinBatchSize: 2,
			MaxWait:      "5m",
			CarryOver:    true,
		},
		Conviction: ConvictionConfig{
			MinMentions:      2,
			TopN:             3,
			MaxOverextension: 0.03,
			// Broad-market index funds are a fallback, never a first choice.
			BroadMarketSymbols: []string{"XLK", "QQQ", "VGT", "FTEC", "IYW", "VTI", "SPY"},
		},
		Alerts: AlertsConfig{
			Strategy:           "smart_batch",
			QueueMinConfidence: 1,
			HighConfidence:     9,
			MediumConfidence:   7,
			MaxWait:            "45m",
			TimeWindow:         "30m",
			TimeWindowMinCount: 3,
			DigestInterval:     "20h",
			MaxRetries:         3,
			DedupWindow:        "24h",
			RetentionDays:      7,
			MaxDailyAlerts:     0,
		},
		Pushover: PushoverConfig{
			Enabled:          false,
			BaseURL:          "https://api.pushover.net/1",
			RateLimitPerHour: 10,
			Timeout:          "10s",
		},
		Notion: NotionConfig{
			Enabled: false,
			BaseURL: "https://api.notion.com/v1",
			Timeout: "30s",
		},
		MarketData: MarketDataConfig{
			BaseURL:   "https://eodhd.com/api",
			RateLimit: 10,
			Timeout:   "30s",
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			Timeout:     "2m",
			Temperature: 0.3,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			Temperature: 0.3,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "*/15 * * * *", // every 15 minutes
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks structural constraints plus the cross-field rules the
// tag syntax cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Batching.MinBatchSize > c.Batching.MaxBatchSize {
		return fmt.Errorf("invalid configuration: batching.min_batch_size (%d) exceeds max_batch_size (%d)",
			c.Batching.MinBatchSize, c.Batching.MaxBatchSize)
	}
	if c.Alerts.MediumConfidence > c.Alerts.HighConfidence {
		return fmt.Errorf("invalid configuration: alerts.medium_confidence (%d) exceeds high_confidence (%d)",
			c.Alerts.MediumConfidence, c.Alerts.HighConfidence)
	}

	// Every duration string must parse; failing at startup beats failing
	// mid-cycle.
	durations := map[string]string{
		"batching.max_wait":      c.Batching.MaxWait,
		"alerts.max_wait":        c.Alerts.MaxWait,
		"alerts.time_window":     c.Alerts.TimeWindow,
		"alerts.digest_interval": c.Alerts.DigestInterval,
		"alerts.dedup_window":    c.Alerts.DedupWindow,
		"filter.dedup_window":    c.Filter.DedupWindow,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s %q: %w", name, value, err)
		}
	}

	return nil
}

// MustDuration parses a config duration string, falling back to the
// given default when the string is empty or malformed. Validate already
// rejects malformed values at load time, so the fallback only matters
// for hand-built configs in tests.
func MustDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SIGNALMAN_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Storage configuration
	if badgerPath := os.Getenv("SIGNALMAN_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("SIGNALMAN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SIGNALMAN_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Alert strategy
	if strategy := os.Getenv("SIGNALMAN_ALERT_STRATEGY"); strategy != "" {
		config.Alerts.Strategy = strategy
	}
	if maxDaily := os.Getenv("SIGNALMAN_MAX_DAILY_ALERTS"); maxDaily != "" {
		if n, err := strconv.Atoi(maxDaily); err == nil {
			config.Alerts.MaxDailyAlerts = n
		}
	}

	// API credentials
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		config.NewsFeed.APIKey = key
	}
	if key := os.Getenv("EODHD_API_KEY"); key != "" {
		config.MarketData.APIKey = key
	}
	if token := os.Getenv("PUSHOVER_API_TOKEN"); token != "" {
		config.Pushover.APIToken = token
	}
	if token := os.Getenv("PUSHOVER_USER_TOKEN"); token != "" {
		config.Pushover.UserToken = token
	}
	if token := os.Getenv("NOTION_API_TOKEN"); token != "" {
		config.Notion.APIToken = token
	}

	// LLM provider
	if provider := os.Getenv("SIGNALMAN_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
}
