package interfaces

import (
	"context"

	"github.com/ternarybob/signalman/internal/models"
)

// Notification is a formatted outbound push message.
type Notification struct {
	Title    string
	Message  string
	Priority int
	URL      string // optional link to the full report
	URLTitle string
}

// NotificationSink delivers push notifications. Implementations do not
// retry; retry policy belongs to the alert batcher.
type NotificationSink interface {
	// Send delivers one notification. A non-nil error marks the attempt
	// as failed and the caller re-queues per its retry policy.
	Send(ctx context.Context, n *Notification) error
}

// ReportSink persists structured records: individual signals and
// consolidated session reports. Writes are idempotent on record id.
type ReportSink interface {
	// LogSignal records one analysis result. Returns the URL of the
	// stored record when the backend exposes one.
	LogSignal(ctx context.Context, result *models.AnalysisResult) (string, error)

	// LogSessionReport records a consolidated session report. Returns
	// the URL of the stored record when the backend exposes one.
	LogSessionReport(ctx context.Context, report *models.SessionReport) (string, error)
}
