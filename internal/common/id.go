package common

import (
	"github.com/google/uuid"
)

// NewAlertID generates a unique pending-alert ID.
// Format: alert_<uuid>
func NewAlertID() string {
	return "alert_" + uuid.New().String()
}

// NewBatchID generates a unique news-batch or sent-batch ID.
// Format: batch_<uuid>
func NewBatchID() string {
	return "batch_" + uuid.New().String()
}

// NewSessionID generates a unique processing-session ID.
// Format: session_<uuid>
func NewSessionID() string {
	return "session_" + uuid.New().String()
}

// NewReportID generates a unique session-report ID.
// Format: report_<uuid>
func NewReportID() string {
	return "report_" + uuid.New().String()
}
