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

// Batcher is the delivery side of the alert pipeline. On every
// invocation it evaluates the active strategy against the pending
// queue, sends zero or more notifications, and transitions alert
// statuses. Delivery is at-most-once per alert: an alert is marked
// sent before it could ever re-enter a later delivery plan.
type Batcher struct {
	storage interfaces.AlertStorage
	sink    interfaces.NotificationSink

	strategy       models.BatchStrategy
	highThreshold  int
	mediumLow      int
	maxWait        time.Duration
	timeWindow     time.Duration
	windowMinCount int
	digestInterval time.Duration
	maxRetries     int
	maxDailyAlerts int
	retention      time.Duration

	logger arbor.ILogger
	now    func() time.Time
}

// deliveryGroup is one planned outbound notification.
type deliveryGroup struct {
	alerts []*models.PendingAlert
}

// NewBatcher creates a Batcher from alerts configuration.
func NewBatcher(config *common.AlertsConfig, storage interfaces.AlertStorage, sink interfaces.NotificationSink, logger arbor.ILogger) *Batcher {
	return &Batcher{
		storage:        storage,
		sink:           sink,
		strategy:       models.ParseBatchStrategy(config.Strategy),
		highThreshold:  config.HighConfidence,
		mediumLow:      config.MediumConfidence,
		maxWait:        common.MustDuration(config.MaxWait, 45*time.Minute),
		timeWindow:     common.MustDuration(config.TimeWindow, 30*time.Minute),
		windowMinCount: config.TimeWindowMinCount,
		digestInterval: common.MustDuration(config.DigestInterval, 20*time.Hour),
		maxRetries:     config.MaxRetries,
		maxDailyAlerts: config.MaxDailyAlerts,
		retention:      time.Duration(config.RetentionDays) * 24 * time.Hour,
		logger:         logger,
		now:            time.Now,
	}
}

// ProcessPending evaluates the strategy against the queue and delivers
// whatever is due. Alerts the strategy retires unsent are marked
// discarded; alerts not yet due stay pending for the next invocation.
func (b *Batcher) ProcessPending(ctx context.Context) (*models.DeliveryReport, error) {
	report := &models.DeliveryReport{}

	pending, err := b.storage.ListByStatus(ctx, models.AlertStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending alerts: %w", err)
	}
	if len(pending) == 0 {
		return report, nil
	}

	groups, discards, err := b.plan(ctx, pending)
	if err != nil {
		return nil, err
	}

	for _, alert := range discards {
		alert.Status = models.AlertStatusDiscarded
		if err := b.storage.SaveAlert(ctx, alert); err != nil {
			return report, fmt.Errorf("failed to discard alert %s: %w", alert.ID, err)
		}
		report.Discarded++
	}

	planned := 0
	for _, group := range groups {
		planned += len(group.alerts)
	}
	report.Skipped = len(pending) - planned - report.Discarded

	budget, err := b.remainingDailyBudget(ctx)
	if err != nil {
		return report, err
	}

	var lastSendErr error
	for _, group := range groups {
		if b.maxDailyAlerts > 0 && budget < len(group.alerts) {
			b.logger.Warn().
				Int("queued", len(group.alerts)).
				Int("budget", budget).
				Msg("Daily alert cap reached, deferring notification")
			report.Skipped += len(group.alerts)
			continue
		}

		if err := b.deliver(ctx, group, report); err != nil {
			lastSendErr = err
			continue
		}
		budget -= len(group.alerts)
	}

	b.logger.Info().
		Int("sent", report.Sent).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("discarded", report.Discarded).
		Int("batches", report.Batches).
		Msg("Alert processing complete")

	// A transient send failure is already reflected in the report and in
	// per-alert retry state; only surface it if nothing got through.
	if lastSendErr != nil && report.Sent == 0 {
		return report, lastSendErr
	}
	return report, nil
}

// plan partitions pending alerts into notification groups according to
// the active strategy. Alerts in neither a group nor the discard list
// stay pending. Input arrives in enqueue order and group membership
// preserves it.
func (b *Batcher) plan(ctx context.Context, pending []*models.PendingAlert) ([]deliveryGroup, []*models.PendingAlert, error) {
	switch b.strategy {
	case models.StrategyImmediate:
		groups := make([]deliveryGroup, 0, len(pending))
		for _, alert := range pending {
			groups = append(groups, deliveryGroup{alerts: []*models.PendingAlert{alert}})
		}
		return groups, nil, nil

	case models.StrategyTimeWindow:
		due := len(pending) >= b.windowMinCount
		if !due {
			last, err := b.storage.LastBatchSentAt(ctx, b.strategy)
			if err != nil {
				return nil, nil, err
			}
			due = last.IsZero() || b.now().Sub(last) >= b.timeWindow
		}
		if !due {
			return nil, nil, nil
		}
		return []deliveryGroup{{alerts: pending}}, nil, nil

	case models.StrategyDailyDigest:
		last, err := b.storage.LastBatchSentAt(ctx, b.strategy)
		if err != nil {
			return nil, nil, err
		}
		if !last.IsZero() && b.now().Sub(last) < b.digestInterval {
			return nil, nil, nil
		}
		return []deliveryGroup{{alerts: pending}}, nil, nil

	default: // smart_batch
		return b.planSmartBatch(pending), b.smartBatchDiscards(pending), nil
	}
}

// planSmartBatch: near-certain alerts go out alone immediately; medium
// ones accumulate until two are queued or the oldest has waited past
// the bound; everything below medium is handled by smartBatchDiscards.
func (b *Batcher) planSmartBatch(pending []*models.PendingAlert) []deliveryGroup {
	var groups []deliveryGroup
	var medium []*models.PendingAlert

	for _, alert := range pending {
		switch {
		case alert.Signal.Confidence >= b.highThreshold:
			groups = append(groups, deliveryGroup{alerts: []*models.PendingAlert{alert}})
		case alert.Signal.Confidence >= b.mediumLow:
			medium = append(medium, alert)
		}
	}

	if len(medium) == 0 {
		return groups
	}

	flush := len(medium) >= 2
	if !flush {
		oldest := medium[0]
		flush = b.now().Sub(oldest.EnqueuedAt) > b.maxWait
	}
	if flush {
		groups = append(groups, deliveryGroup{alerts: medium})
	}
	return groups
}

// smartBatchDiscards retires alerts below the medium threshold. They
// were already recorded to the report sink at enqueue time; they just
// never become push notifications.
func (b *Batcher) smartBatchDiscards(pending []*models.PendingAlert) []*models.PendingAlert {
	var discards []*models.PendingAlert
	for _, alert := range pending {
		if alert.Signal.Confidence < b.mediumLow {
			discards = append(discards, alert)
		}
	}
	return discards
}

// deliver sends one group as a single notification and transitions its
// alerts. On a send failure every member gets a retry accounting pass:
// it stays pending until the attempt budget is spent, then is marked
// failed for manual inspection. It is never silently dropped.
func (b *Batcher) deliver(ctx context.Context, group deliveryGroup, report *models.DeliveryReport) error {
	notification := FormatNotification(group.alerts)

	if err := b.sink.Send(ctx, notification); err != nil {
		b.logger.Warn().
			Err(err).
			Int("alerts", len(group.alerts)).
			Msg("Notification delivery failed")

		for _, alert := range group.alerts {
			alert.Attempts++
			alert.LastError = err.Error()
			if alert.Attempts >= b.maxRetries {
				alert.Status = models.AlertStatusFailed
				b.logger.Error().
					Str("alert_id", alert.ID).
					Int("attempts", alert.Attempts).
					Msg("Alert exhausted delivery attempts, marking failed")
			}
			if saveErr := b.storage.SaveAlert(ctx, alert); saveErr != nil {
				return saveErr
			}
			report.Failed++
		}
		return err
	}

	batchRecord := &models.AlertBatchRecord{
		ID:       common.NewBatchID(),
		Strategy: b.strategy,
		Message:  notification.Message,
		SentAt:   b.now(),
	}
	for _, alert := range group.alerts {
		alert.Status = models.AlertStatusSent
		if err := b.storage.SaveAlert(ctx, alert); err != nil {
			return fmt.Errorf("failed to mark alert %s sent: %w", alert.ID, err)
		}
		batchRecord.AlertIDs = append(batchRecord.AlertIDs, alert.ID)
		report.Sent++
	}
	if err := b.storage.SaveBatchRecord(ctx, batchRecord); err != nil {
		return err
	}
	report.Batches++

	return nil
}

func (b *Batcher) remainingDailyBudget(ctx context.Context) (int, error) {
	if b.maxDailyAlerts <= 0 {
		return int(^uint(0) >> 1), nil
	}
	sent, err := b.storage.CountSentSince(ctx, b.now().Add(-24*time.Hour))
	if err != nil {
		return 0, fmt.Errorf("failed to count sent alerts: %w", err)
	}
	remaining := b.maxDailyAlerts - sent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Cleanup purges sent and discarded records past the retention window.
// Pending alerts are never purged.
func (b *Batcher) Cleanup(ctx context.Context) (int, error) {
	return b.storage.Cleanup(ctx, b.now().Add(-b.retention))
}
