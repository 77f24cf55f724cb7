package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/interfaces"
	"github.com/ternarybob/signalman/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// AlertStorage implements the AlertStorage interface for Badger.
// It holds the pending-alert queue and the append-only sent-batch audit
// trail. A single mutex-free store instance is shared per process; the
// scheduler guarantees non-overlapping invocations, so each call is the
// single writer.
type AlertStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// PendingAlertRecord is the persisted form of a queued alert.
// The signal payload is stored as JSON so schema evolution in the
// embedded signal never invalidates existing rows.
type PendingAlertRecord struct {
	ID         string `badgerhold:"key"`
	DedupKey   string `badgerhold:"index"`
	Status     string `badgerhold:"index"`
	Strategy   string
	Priority   int
	SignalJSON []byte
	EnqueuedAt time.Time
	SentAt     *time.Time
	Attempts   int
	LastError  string
	UpdatedAt  time.Time
}

// SentBatchRecord is one append-only audit row per delivered notification.
type SentBatchRecord struct {
	ID           string `badgerhold:"key"`
	Strategy     string `badgerhold:"index"`
	AlertIDsJSON []byte
	Message      string
	SentAt       time.Time
}

// NewAlertStorage creates a new AlertStorage instance
func NewAlertStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AlertStorage {
	return &AlertStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AlertStorage) toRecord(alert *models.PendingAlert) (*PendingAlertRecord, error) {
	signalJSON, err := json.Marshal(alert.Signal)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert signal: %w", err)
	}

	record := &PendingAlertRecord{
		ID:         alert.ID,
		DedupKey:   alert.DedupKey,
		Status:     string(alert.Status),
		Strategy:   string(alert.Strategy),
		Priority:   alert.Priority,
		SignalJSON: signalJSON,
		EnqueuedAt: alert.EnqueuedAt,
		Attempts:   alert.Attempts,
		LastError:  alert.LastError,
		UpdatedAt:  time.Now(),
	}
	if alert.Status == models.AlertStatusSent {
		now := time.Now()
		record.SentAt = &now
	}
	return record, nil
}

func (s *AlertStorage) fromRecord(record *PendingAlertRecord) (*models.PendingAlert, error) {
	var signal models.AlertSignal
	if err := json.Unmarshal(record.SignalJSON, &signal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert signal for %s: %w", record.ID, err)
	}

	return &models.PendingAlert{
		ID:         record.ID,
		DedupKey:   record.DedupKey,
		Signal:     signal,
		Priority:   record.Priority,
		Strategy:   models.BatchStrategy(record.Strategy),
		EnqueuedAt: record.EnqueuedAt,
		Status:     models.AlertStatus(record.Status),
		Attempts:   record.Attempts,
		LastError:  record.LastError,
	}, nil
}

func (s *AlertStorage) SaveAlert(ctx context.Context, alert *models.PendingAlert) error {
	if alert.ID == "" {
		return fmt.Errorf("alert ID is required")
	}

	record, err := s.toRecord(alert)
	if err != nil {
		return err
	}

	// Preserve the original SentAt when re-saving an already-sent alert.
	var existing PendingAlertRecord
	if err := s.db.Store().Get(alert.ID, &existing); err == nil && existing.SentAt != nil {
		record.SentAt = existing.SentAt
	}

	s.logger.Trace().
		Str("alert_id", alert.ID).
		Str("status", string(alert.Status)).
		Msg("BadgerDB: Upserting PendingAlertRecord")

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		s.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("BadgerDB: Failed to upsert alert")
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

func (s *AlertStorage) GetAlert(ctx context.Context, id string) (*models.PendingAlert, error) {
	var record PendingAlertRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("alert not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return s.fromRecord(&record)
}

func (s *AlertStorage) FindByDedupKey(ctx context.Context, key string, since time.Time) (*models.PendingAlert, error) {
	var records []PendingAlertRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("DedupKey").Eq(key)); err != nil {
		return nil, fmt.Errorf("failed to query by dedup key: %w", err)
	}

	var newest *PendingAlertRecord
	for i := range records {
		if records[i].EnqueuedAt.Before(since) {
			continue
		}
		if newest == nil || records[i].EnqueuedAt.After(newest.EnqueuedAt) {
			newest = &records[i]
		}
	}
	if newest == nil {
		return nil, nil
	}
	return s.fromRecord(newest)
}

func (s *AlertStorage) ListByStatus(ctx context.Context, status models.AlertStatus) ([]*models.PendingAlert, error) {
	var records []PendingAlertRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Status").Eq(string(status))); err != nil {
		return nil, fmt.Errorf("failed to list alerts by status: %w", err)
	}

	// Enqueue order: oldest first. BadgerHold returns key order (random
	// UUIDs), so sort in memory.
	sort.Slice(records, func(i, j int) bool {
		return records[i].EnqueuedAt.Before(records[j].EnqueuedAt)
	})

	result := make([]*models.PendingAlert, 0, len(records))
	for i := range records {
		alert, err := s.fromRecord(&records[i])
		if err != nil {
			s.logger.Warn().Err(err).Str("alert_id", records[i].ID).Msg("Skipping undecodable alert record")
			continue
		}
		result = append(result, alert)
	}
	return result, nil
}

func (s *AlertStorage) SaveBatchRecord(ctx context.Context, record *models.AlertBatchRecord) error {
	if record.ID == "" {
		return fmt.Errorf("batch record ID is required")
	}

	alertIDsJSON, err := json.Marshal(record.AlertIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal alert ids: %w", err)
	}

	row := &SentBatchRecord{
		ID:           record.ID,
		Strategy:     string(record.Strategy),
		AlertIDsJSON: alertIDsJSON,
		Message:      record.Message,
		SentAt:       record.SentAt,
	}

	// Audit rows are append-only: Insert, never Upsert.
	if err := s.db.Store().Insert(row.ID, row); err != nil {
		s.logger.Error().Err(err).Str("batch_id", record.ID).Msg("BadgerDB: Failed to insert sent batch record")
		return fmt.Errorf("failed to save batch record: %w", err)
	}

	s.logger.Trace().
		Str("batch_id", record.ID).
		Str("strategy", string(record.Strategy)).
		Int("alert_count", len(record.AlertIDs)).
		Msg("BadgerDB: Sent batch recorded")
	return nil
}

func (s *AlertStorage) LastBatchSentAt(ctx context.Context, strategy models.BatchStrategy) (time.Time, error) {
	var records []SentBatchRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Strategy").Eq(string(strategy))); err != nil {
		return time.Time{}, fmt.Errorf("failed to query sent batches: %w", err)
	}

	var last time.Time
	for _, record := range records {
		if record.SentAt.After(last) {
			last = record.SentAt
		}
	}
	return last, nil
}

func (s *AlertStorage) CountSentSince(ctx context.Context, since time.Time) (int, error) {
	var records []PendingAlertRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Status").Eq(string(models.AlertStatusSent))); err != nil {
		return 0, fmt.Errorf("failed to count sent alerts: %w", err)
	}

	count := 0
	for _, record := range records {
		if record.SentAt != nil && record.SentAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *AlertStorage) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0

	// Purge retired alerts. Pending alerts are never purged regardless of age.
	var records []PendingAlertRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return 0, fmt.Errorf("failed to list alerts for cleanup: %w", err)
	}
	for _, record := range records {
		if record.Status == string(models.AlertStatusPending) {
			continue
		}
		if record.EnqueuedAt.After(olderThan) {
			continue
		}
		if err := s.db.Store().Delete(record.ID, &PendingAlertRecord{}); err != nil && err != badgerhold.ErrNotFound {
			s.logger.Warn().Err(err).Str("alert_id", record.ID).Msg("Failed to delete alert during cleanup")
			continue
		}
		removed++
	}

	// Purge old audit rows.
	var batches []SentBatchRecord
	if err := s.db.Store().Find(&batches, nil); err != nil {
		return removed, fmt.Errorf("failed to list sent batches for cleanup: %w", err)
	}
	for _, batch := range batches {
		if batch.SentAt.After(olderThan) {
			continue
		}
		if err := s.db.Store().Delete(batch.ID, &SentBatchRecord{}); err != nil && err != badgerhold.ErrNotFound {
			s.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("Failed to delete batch record during cleanup")
			continue
		}
		removed++
	}

	s.logger.Debug().
		Int("removed", removed).
		Str("older_than", olderThan.Format(time.RFC3339)).
		Msg("Alert storage cleanup complete")
	return removed, nil
}
