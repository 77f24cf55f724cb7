package batcher

import (
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
	"github.com/ternarybob/signalman/internal/models"
)

// Batcher accumulates news items into batches sized for analysis.
// A batch finalizes when it reaches the maximum size, or when the
// oldest item has waited past the deadline with at least the minimum
// count accumulated. Every accepted item ends up in exactly one
// finalized batch: items never expire out of the accumulator, and
// Flush drains whatever remains.
//
// Batcher is not safe for concurrent use. The pipeline runs batching
// on a single goroutine per cycle.
type Batcher struct {
	maxSize   int
	minSize   int
	maxWait   time.Duration
	carryOver bool

	current *models.NewsBatch
	logger  arbor.ILogger
	now     func() time.Time
}

// New creates a Batcher from batching configuration.
func New(config *common.BatchingConfig, logger arbor.ILogger) *Batcher {
	return &Batcher{
		maxSize:   config.MaxBatchSize,
		minSize:   config.MinBatchSize,
		maxWait:   common.MustDuration(config.MaxWait, 5*time.Minute),
		carryOver: config.CarryOver,
		logger:    logger,
		now:       time.Now,
	}
}

// Accept adds an item to the accumulating batch. If the item fills the
// batch to capacity, the batch is finalized and returned; otherwise
// Accept returns nil.
func (b *Batcher) Accept(item models.NewsItem) *models.NewsBatch {
	if b.current == nil {
		b.current = &models.NewsBatch{
			ID:        common.NewBatchID(),
			CreatedAt: b.now(),
			State:     models.BatchAccumulating,
		}
	}

	b.current.Items = append(b.current.Items, item)

	b.logger.Trace().
		Str("batch_id", b.current.ID).
		Str("news_id", item.ID).
		Int("size", b.current.Size()).
		Msg("Item accepted into batch")

	if b.current.Size() >= b.maxSize {
		return b.finalize("full")
	}
	return nil
}

// PollReady checks the deadline condition: if the batch has aged past
// the max wait and carries at least the minimum item count, it is
// finalized and returned. Returns nil when nothing is ready.
func (b *Batcher) PollReady() *models.NewsBatch {
	if b.current == nil {
		return nil
	}
	if b.current.Age(b.now()) < b.maxWait {
		return nil
	}
	if b.current.Size() < b.minSize {
		return nil
	}
	return b.finalize("deadline")
}

// Flush finalizes the accumulating batch regardless of size or age.
// Called at cycle end when carry-over is disabled, and at shutdown
// unconditionally, so accepted items are never dropped.
func (b *Batcher) Flush() *models.NewsBatch {
	if b.current == nil || b.current.Size() == 0 {
		b.current = nil
		return nil
	}
	return b.finalize("flush")
}

// EndCycle is the cycle-boundary hook. With carry-over enabled the
// partial batch is held for the next cycle and nil is returned;
// otherwise it behaves like Flush.
func (b *Batcher) EndCycle() *models.NewsBatch {
	if b.carryOver {
		if b.current != nil {
			b.logger.Debug().
				Str("batch_id", b.current.ID).
				Int("size", b.current.Size()).
				Msg("Carrying partial batch over to next cycle")
		}
		return nil
	}
	return b.Flush()
}

// Pending returns the number of items accumulated but not yet finalized.
func (b *Batcher) Pending() int {
	if b.current == nil {
		return 0
	}
	return b.current.Size()
}

func (b *Batcher) finalize(reason string) *models.NewsBatch {
	batch := b.current
	batch.State = models.BatchFinalized
	b.current = nil

	b.logger.Info().
		Str("batch_id", batch.ID).
		Int("size", batch.Size()).
		Str("reason", reason).
		Strs("tickers", batch.Tickers()).
		Msg("News batch finalized")

	return batch
}
