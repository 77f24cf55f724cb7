package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/signalman/internal/models"
)

// AlertStorage is the persistent store behind the alert queue. It holds
// PendingAlert rows and the append-only sent-batch audit trail. The
// store is the one piece of shared mutable state across invocations, so
// implementations must serialize writes (single-writer per call).
type AlertStorage interface {
	// SaveAlert inserts or updates a pending alert row.
	SaveAlert(ctx context.Context, alert *models.PendingAlert) error

	// GetAlert fetches one alert by id.
	GetAlert(ctx context.Context, id string) (*models.PendingAlert, error)

	// FindByDedupKey returns the most recent alert carrying the dedup
	// key enqueued after the cutoff, or nil when none exists.
	FindByDedupKey(ctx context.Context, key string, since time.Time) (*models.PendingAlert, error)

	// ListByStatus returns alerts with the given status in enqueue order
	// (oldest first).
	ListByStatus(ctx context.Context, status models.AlertStatus) ([]*models.PendingAlert, error)

	// SaveBatchRecord appends one sent-batch audit row.
	SaveBatchRecord(ctx context.Context, record *models.AlertBatchRecord) error

	// LastBatchSentAt returns when the given strategy last produced a
	// notification, or the zero time when it never has.
	LastBatchSentAt(ctx context.Context, strategy models.BatchStrategy) (time.Time, error)

	// CountSentSince counts alerts delivered after the cutoff, used to
	// enforce the daily alert cap.
	CountSentSince(ctx context.Context, since time.Time) (int, error)

	// Cleanup purges sent and discarded alerts plus batch records older
	// than the cutoff. Pending alerts are never purged. Returns the
	// number of rows removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
}
