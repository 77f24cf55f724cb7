package interfaces

import (
	"context"

	"github.com/ternarybob/signalman/internal/models"
)

// SignalScorer turns a finalized news batch into per-item analysis
// results. It must be called with the full batch, not item by item, so
// one model call covers the whole group (cost and rate constraints).
//
// Items the scorer judges not relevant are simply absent from the
// returned slice; a nil error with zero results is a valid outcome.
type SignalScorer interface {
	// ScoreBatch analyzes every item in the batch and returns one
	// AnalysisResult per relevant item. The call is blocking with a
	// bounded timeout taken from the provided context.
	ScoreBatch(ctx context.Context, batch *models.NewsBatch) ([]models.AnalysisResult, error)
}
