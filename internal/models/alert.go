package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// BatchStrategy selects how queued alerts become outbound notifications.
// Strategies are mutually exclusive per deployment.
type BatchStrategy string

const (
	StrategyImmediate   BatchStrategy = "immediate"
	StrategyTimeWindow  BatchStrategy = "time_window"
	StrategyDailyDigest BatchStrategy = "daily_digest"
	StrategySmartBatch  BatchStrategy = "smart_batch"
)

// ParseBatchStrategy maps a config string to a strategy, defaulting to
// smart_batch for unknown values.
func ParseBatchStrategy(s string) BatchStrategy {
	switch BatchStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyImmediate:
		return StrategyImmediate
	case StrategyTimeWindow:
		return StrategyTimeWindow
	case StrategyDailyDigest:
		return StrategyDailyDigest
	default:
		return StrategySmartBatch
	}
}

// AlertStatus tracks the delivery lifecycle of a PendingAlert.
// Transitions: pending -> sent, pending -> failed -> pending (retry),
// pending -> discarded (strategy decided it will never be pushed).
type AlertStatus string

const (
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusSent      AlertStatus = "sent"
	AlertStatusFailed    AlertStatus = "failed"
	AlertStatusDiscarded AlertStatus = "discarded"
)

// AlertSignal is the signal payload embedded in a queued alert.
type AlertSignal struct {
	NewsItemID string     `json:"news_item_id,omitempty"`
	Signal     SignalType `json:"signal"`
	Confidence int        `json:"confidence"`
	Title      string     `json:"title"`
	Reasoning  string     `json:"reasoning"`
	Symbols    []string   `json:"symbols"`
	Sector     string     `json:"sector"`
	ReportURL  string     `json:"report_url,omitempty"`
	SearchTerm string     `json:"search_term,omitempty"`
}

// DedupKey derives the stable identity used for idempotent enqueue:
// the source news item plus the sorted instrument list. The same article
// mentioning the same symbols maps to the same key no matter how many
// times it is enqueued within the dedup window.
func (s *AlertSignal) DedupKey() string {
	symbols := make([]string, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(sym)))
	}
	sort.Strings(symbols)

	id := s.NewsItemID
	if id == "" {
		// Fall back to content identity when the signal did not originate
		// from a single article (e.g. batch-level signals).
		id = s.Title + "|" + s.Reasoning
	}

	sum := sha256.Sum256([]byte(id + "|" + strings.Join(symbols, ",")))
	return hex.EncodeToString(sum[:8])
}

// Priority derives the notification priority from confidence.
// Pushover-style scale: 1 for near-certain signals, 0 otherwise.
func (s *AlertSignal) Priority() int {
	if s.Confidence >= 9 {
		return 1
	}
	return 0
}

// PendingAlert is one not-yet-delivered notification in the queue.
// Created by AlertQueue.Enqueue; only the alert batcher transitions its
// status afterward.
type PendingAlert struct {
	ID         string        `json:"id"`
	DedupKey   string        `json:"dedup_key"`
	Signal     AlertSignal   `json:"signal"`
	Priority   int           `json:"priority"`
	Strategy   BatchStrategy `json:"strategy"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	Status     AlertStatus   `json:"status"`
	Attempts   int           `json:"attempts"`
	LastError  string        `json:"last_error,omitempty"`
}

// AlertBatchRecord is the append-only audit row persisted for every
// notification actually sent.
type AlertBatchRecord struct {
	ID       string        `json:"id"`
	Strategy BatchStrategy `json:"strategy"`
	AlertIDs []string      `json:"alert_ids"`
	Message  string        `json:"message"`
	SentAt   time.Time     `json:"sent_at"`
}

// DeliveryReport summarizes one ProcessPending invocation.
type DeliveryReport struct {
	Sent      int `json:"sent"`      // alerts delivered in this invocation
	Skipped   int `json:"skipped"`   // alerts left pending by the strategy
	Failed    int `json:"failed"`    // alerts whose delivery attempt failed
	Discarded int `json:"discarded"` // alerts the strategy retired unsent
	Batches   int `json:"batches"`   // outbound notifications produced
}
