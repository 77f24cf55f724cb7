package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
)

func TestScheduler_RunNow(t *testing.T) {
	ran := 0
	svc := NewService(&common.SchedulerConfig{Schedule: "*/15 * * * *"}, func(ctx context.Context) error {
		ran++
		return nil
	}, arbor.NewLogger())

	require.NoError(t, svc.RunNow(context.Background()))
	assert.Equal(t, 1, ran)

	lastRun, lastErr := svc.LastRun()
	assert.False(t, lastRun.IsZero())
	assert.Empty(t, lastErr)
}

func TestScheduler_NoOverlappingCycles(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	svc := NewService(&common.SchedulerConfig{}, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, arbor.NewLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, svc.RunNow(context.Background()))
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first cycle never started")
	}

	err := svc.RunNow(context.Background())
	assert.Error(t, err, "second cycle must be rejected while the first is in flight")

	close(release)
	wg.Wait()
}

func TestScheduler_StartRejectsDoubleStart(t *testing.T) {
	svc := NewService(&common.SchedulerConfig{Schedule: "*/15 * * * *"}, func(ctx context.Context) error {
		return nil
	}, arbor.NewLogger())

	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.Error(t, svc.Start())
}

func TestScheduler_StartRejectsBadExpression(t *testing.T) {
	svc := NewService(&common.SchedulerConfig{Schedule: "not a cron expression"}, func(ctx context.Context) error {
		return nil
	}, arbor.NewLogger())

	assert.Error(t, svc.Start())
}
