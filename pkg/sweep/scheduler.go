// Package sweep runs the effective-date sweep on a cron schedule. The sweep
// itself is idempotent, so overlapping or repeated runs are harmless.
package sweep

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/complyard/grc-engine/pkg/workflow"
)

// DefaultSchedule runs the sweep shortly after midnight, when effective
// dates roll over.
const DefaultSchedule = "5 0 * * *"

// Sweeper is the part of the workflow engine the scheduler drives.
type Sweeper interface {
	SweepEffectiveDates() (*workflow.SweepResult, error)
}

// Scheduler manages cron-based effective-date sweeps.
type Scheduler struct {
	cron    *cron.Cron
	engine  Sweeper
	logger  *slog.Logger
	mu      sync.Mutex
	entry   cron.EntryID
	started bool
}

// NewScheduler creates a sweep scheduler. logger may be nil.
func NewScheduler(engine Sweeper, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
		logger: logger,
	}
}

// Start registers the sweep at the given cron schedule (DefaultSchedule when
// empty) and starts the scheduler.
func (s *Scheduler) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == "" {
		schedule = DefaultSchedule
	}

	entry, err := s.cron.AddFunc(schedule, s.runOnce)
	if err != nil {
		return err
	}
	s.entry = entry
	s.cron.Start()
	s.started = true
	s.logger.Info("effective-date sweep scheduler started", "schedule", schedule)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	stopped := s.cron.Stop()
	s.started = false

	select {
	case <-stopped.Done():
		s.logger.Info("effective-date sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow triggers a sweep immediately, outside the cron schedule.
func (s *Scheduler) RunNow() (*workflow.SweepResult, error) {
	return s.engine.SweepEffectiveDates()
}

func (s *Scheduler) runOnce() {
	res, err := s.engine.SweepEffectiveDates()
	if err != nil {
		s.logger.Error("effective-date sweep failed", "error", err)
		return
	}
	s.logger.Info("effective-date sweep completed",
		"activated", res.FrameworksActivated,
		"scheduled", res.FrameworksScheduled,
		"deactivated", res.FrameworksDeactivated,
		"policiesUpdated", res.PoliciesUpdated,
		"slasExpired", res.SLAsExpired)
}
