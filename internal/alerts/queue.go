package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/interfaces"
	"github.com/ternarybob/signalman/internal/models"
)

// Queue is the enqueue side of the alert pipeline. It persists signals
// as pending alerts tagged with the active strategy, and absorbs
// duplicate submissions of the same underlying signal within the dedup
// window.
type Queue struct {
	storage       interfaces.AlertStorage
	strategy      models.BatchStrategy
	minConfidence int
	dedupWindow   time.Duration
	logger        arbor.ILogger
	now           func() time.Time
}

// NewQueue creates a Queue from alerts configuration.
func NewQueue(config *common.AlertsConfig, storage interfaces.AlertStorage, logger arbor.ILogger) *Queue {
	return &Queue{
		storage:       storage,
		strategy:      models.ParseBatchStrategy(config.Strategy),
		minConfidence: config.QueueMinConfidence,
		dedupWindow:   common.MustDuration(config.DedupWindow, 24*time.Hour),
		logger:        logger,
		now:           time.Now,
	}
}

// Enqueue persists a signal as a pending alert and returns its id.
// Enqueueing the same signal identity (news item + symbols) twice
// within the dedup window returns the existing alert's id instead of
// creating a second one, so one article never produces two
// notifications. Signals below the configured confidence floor are
// stored already retired: they stay in the audit trail but will never
// be pushed.
func (q *Queue) Enqueue(ctx context.Context, signal models.AlertSignal) (string, error) {
	key := signal.DedupKey()

	existing, err := q.storage.FindByDedupKey(ctx, key, q.now().Add(-q.dedupWindow))
	if err != nil {
		return "", fmt.Errorf("dedup lookup failed: %w", err)
	}
	if existing != nil {
		q.logger.Debug().
			Str("alert_id", existing.ID).
			Str("dedup_key", key).
			Str("title", signal.Title).
			Msg("Duplicate signal within dedup window, reusing existing alert")
		return existing.ID, nil
	}

	alert := &models.PendingAlert{
		ID:         common.NewAlertID(),
		DedupKey:   key,
		Signal:     signal,
		Priority:   signal.Priority(),
		Strategy:   q.strategy,
		EnqueuedAt: q.now(),
		Status:     models.AlertStatusPending,
	}

	if signal.Confidence < q.minConfidence {
		alert.Status = models.AlertStatusDiscarded
		q.logger.Debug().
			Str("alert_id", alert.ID).
			Int("confidence", signal.Confidence).
			Int("floor", q.minConfidence).
			Msg("Signal below queue confidence floor, storing as discarded")
	}

	if err := q.storage.SaveAlert(ctx, alert); err != nil {
		return "", fmt.Errorf("failed to enqueue alert: %w", err)
	}

	q.logger.Info().
		Str("alert_id", alert.ID).
		Str("signal", string(signal.Signal)).
		Int("confidence", signal.Confidence).
		Strs("symbols", signal.Symbols).
		Str("strategy", string(q.strategy)).
		Msg("Alert enqueued")

	return alert.ID, nil
}
