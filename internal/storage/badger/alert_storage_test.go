package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/interfaces"
	"github.com/ternarybob/signalman/internal/models"
)

func newTestStorage(t *testing.T) interfaces.AlertStorage {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{
		Path: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewAlertStorage(db, logger)
}

func testAlert(id, dedupKey string, status models.AlertStatus, enqueuedAt time.Time) *models.PendingAlert {
	return &models.PendingAlert{
		ID:       id,
		DedupKey: dedupKey,
		Signal: models.AlertSignal{
			NewsItemID: "news_" + id,
			Signal:     models.SignalBullish,
			Confidence: 8,
			Title:      "NVDA beats earnings expectations",
			Symbols:    []string{"NVDA"},
		},
		Priority:   0,
		Strategy:   models.StrategySmartBatch,
		EnqueuedAt: enqueuedAt,
		Status:     status,
	}
}

func TestAlertStorage_SaveAndGet(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	alert := testAlert("alert_1", "abcd1234", models.AlertStatusPending, time.Now())
	require.NoError(t, storage.SaveAlert(ctx, alert))

	got, err := storage.GetAlert(ctx, "alert_1")
	require.NoError(t, err)
	assert.Equal(t, "alert_1", got.ID)
	assert.Equal(t, "abcd1234", got.DedupKey)
	assert.Equal(t, models.AlertStatusPending, got.Status)
	assert.Equal(t, models.SignalBullish, got.Signal.Signal)
	assert.Equal(t, []string{"NVDA"}, got.Signal.Symbols)
}

func TestAlertStorage_GetMissing(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.GetAlert(context.Background(), "alert_missing")
	assert.Error(t, err)
}

func TestAlertStorage_FindByDedupKey(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, storage.SaveAlert(ctx, testAlert("alert_old", "key1", models.AlertStatusSent, now.Add(-48*time.Hour))))
	require.NoError(t, storage.SaveAlert(ctx, testAlert("alert_new", "key1", models.AlertStatusPending, now.Add(-time.Hour))))

	// Window excludes the 48h-old entry.
	got, err := storage.FindByDedupKey(ctx, "key1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alert_new", got.ID)

	// No match inside the window returns nil without error.
	got, err = storage.FindByDedupKey(ctx, "key2", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAlertStorage_ListByStatusOrdering(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, storage.SaveAlert(ctx, testAlert("alert_b", "k2", models.AlertStatusPending, now.Add(-time.Minute))))
	require.NoError(t, storage.SaveAlert(ctx, testAlert("alert_a", "k1", models.AlertStatusPending, now.Add(-time.Hour))))
	require.NoError(t, storage.SaveAlert(ctx, testAlert("alert_c", "k3", models.AlertStatusSent, now)))

	pending, err := storage.ListByStatus(ctx, models.AlertStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "alert_a", pending[0].ID, "oldest first")
	assert.Equal(t, "alert_b", pending[1].ID)
}

func TestAlertStorage_StatusTransitions(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	alert := testAlert("alert_1", "k1", models.AlertStatusPending, time.Now())
	require.NoError(t, storage.SaveAlert(ctx, alert))

	alert.Status = models.AlertStatusSent
	require.NoError(t, storage.SaveAlert(ctx, alert))

	got, err := storage.GetAlert(ctx, "alert_1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusSent, got.Status)

	count, err := storage.CountSentSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAlertStorage_BatchRecords(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	sentAt := time.Now().Truncate(time.Second)

	record := &models.AlertBatchRecord{
		ID:       common.NewBatchID(),
		Strategy: models.StrategySmartBatch,
		AlertIDs: []string{"alert_1", "alert_2"},
		Message:  "2 signals batched",
		SentAt:   sentAt,
	}
	require.NoError(t, storage.SaveBatchRecord(ctx, record))

	last, err := storage.LastBatchSentAt(ctx, models.StrategySmartBatch)
	require.NoError(t, err)
	assert.WithinDuration(t, sentAt, last, time.Second)

	// Strategy with no history returns the zero time.
	last, err = storage.LastBatchSentAt(ctx, models.StrategyDailyDigest)
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestAlertStorage_CleanupPreservesPending(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	old := time.Now().Add(-30 * 24 * time.Hour)

	require.NoError(t, storage.SaveAlert(ctx, testAlert("alert_pending", "k1", models.AlertStatusPending, old)))
	require.NoError(t, storage.SaveAlert(ctx, testAlert("alert_sent", "k2", models.AlertStatusSent, old)))
	require.NoError(t, storage.SaveAlert(ctx, testAlert("alert_recent", "k3", models.AlertStatusSent, time.Now())))

	removed, err := storage.Cleanup(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Pending survives regardless of age.
	got, err := storage.GetAlert(ctx, "alert_pending")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusPending, got.Status)

	// Retired and old is gone.
	_, err = storage.GetAlert(ctx, "alert_sent")
	assert.Error(t, err)

	// Recent sent survives.
	_, err = storage.GetAlert(ctx, "alert_recent")
	assert.NoError(t, err)
}
