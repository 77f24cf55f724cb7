package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/models"
)

func newTestQueue(storage *memoryStorage) (*Queue, *time.Time) {
	q := NewQueue(alertsConfig("smart_batch"), storage, arbor.NewLogger())
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	clock := &now
	q.now = func() time.Time { return *clock }
	return q, clock
}

func testSignal() models.AlertSignal {
	return models.AlertSignal{
		NewsItemID: "news_abc",
		Signal:     models.SignalBullish,
		Confidence: 8,
		Title:      "Robotics orders surge on automation demand",
		Reasoning:  "Multiple independent confirmations",
		Symbols:    []string{"BOTZ", "ROBO"},
		Sector:     "AI",
	}
}

func TestQueue_Enqueue(t *testing.T) {
	storage := newMemoryStorage()
	q, _ := newTestQueue(storage)

	id, err := q.Enqueue(context.Background(), testSignal())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	alert, err := storage.GetAlert(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusPending, alert.Status)
	assert.Equal(t, models.StrategySmartBatch, alert.Strategy)
	assert.Equal(t, 8, alert.Signal.Confidence)
}

func TestQueue_EnqueueIsIdempotent(t *testing.T) {
	storage := newMemoryStorage()
	q, _ := newTestQueue(storage)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, testSignal())
	require.NoError(t, err)

	// Same article, symbols in different order: same identity.
	duplicate := testSignal()
	duplicate.Symbols = []string{"robo", "botz"}
	second, err := q.Enqueue(ctx, duplicate)
	require.NoError(t, err)

	assert.Equal(t, first, second, "duplicate within the window reuses the existing alert")
	assert.Len(t, storage.alerts, 1)
}

func TestQueue_DedupWindowExpires(t *testing.T) {
	storage := newMemoryStorage()
	q, clock := newTestQueue(storage)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, testSignal())
	require.NoError(t, err)

	*clock = clock.Add(25 * time.Hour)
	second, err := q.Enqueue(ctx, testSignal())
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "outside the window the same signal enqueues fresh")
}

func TestQueue_DistinctSymbolsAreDistinctSignals(t *testing.T) {
	storage := newMemoryStorage()
	q, _ := newTestQueue(storage)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, testSignal())
	require.NoError(t, err)

	other := testSignal()
	other.Symbols = []string{"ITA"}
	second, err := q.Enqueue(ctx, other)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestQueue_ConfidenceFloorStoresDiscarded(t *testing.T) {
	storage := newMemoryStorage()
	config := alertsConfig("smart_batch")
	config.QueueMinConfidence = 6
	q := NewQueue(config, storage, arbor.NewLogger())

	signal := testSignal()
	signal.Confidence = 4
	id, err := q.Enqueue(context.Background(), signal)
	require.NoError(t, err)

	alert, err := storage.GetAlert(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusDiscarded, alert.Status, "below-floor signals are kept for audit but never pushed")
}
