package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/signalman/internal/common"
)

// CycleFunc is one full processing cycle. The scheduler owns when it
// runs; the function owns what happens inside.
type CycleFunc func(ctx context.Context) error

// Service runs the processing cycle on a cron schedule. Ticks never
// overlap: if a cycle is still running when the next tick fires, the
// tick is skipped and logged.
type Service struct {
	schedule string
	cycle    CycleFunc
	cron     *cron.Cron
	logger   arbor.ILogger

	mu        sync.Mutex
	isRunning bool
	running   bool
	lastRun   time.Time
	lastError string
}

// NewService creates a scheduler for the given cycle function.
func NewService(config *common.SchedulerConfig, cycle CycleFunc, logger arbor.ILogger) *Service {
	return &Service{
		schedule: config.Schedule,
		cycle:    cycle,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the cycle with the cron runner and begins scheduling.
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.schedule
	if schedule == "" {
		schedule = "*/15 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return fmt.Errorf("failed to register cycle schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Msg("Scheduler started")

	return nil
}

// Stop halts scheduling and waits for an in-flight cycle to finish.
func (s *Service) Stop() {
	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow executes one cycle immediately, subject to the same
// no-overlap rule as scheduled ticks.
func (s *Service) RunNow(ctx context.Context) error {
	if !s.tryAcquire() {
		return fmt.Errorf("cycle already in progress")
	}
	defer s.release()

	return s.runCycle(ctx)
}

func (s *Service) tick() {
	if !s.tryAcquire() {
		s.logger.Warn().Msg("Previous cycle still running, skipping tick")
		return
	}
	defer s.release()

	if err := s.runCycle(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled cycle failed")
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	start := time.Now()

	s.logger.Info().Msg("Cycle starting")

	err := s.cycle(ctx)

	s.mu.Lock()
	s.lastRun = start
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Msg("Cycle complete")

	return nil
}

func (s *Service) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return false
	}
	s.isRunning = true
	return true
}

func (s *Service) release() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// LastRun reports the start time of the most recent cycle and its
// error, if any. Zero time means no cycle has run yet.
func (s *Service) LastRun() (time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastError
}
