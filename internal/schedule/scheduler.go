package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/shared/telemetry"
)

// Scheduler triggers janitor runs on a cron schedule.
type Scheduler struct {
	runner   janitor.Runner
	spec     string
	dryRun   bool
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
	location *time.Location
}

// New creates a scheduler for the given standard five-field cron expression,
// evaluated in UTC. An empty expression disables scheduling.
func New(runner janitor.Runner, spec string, dryRun bool) *Scheduler {
	return &Scheduler{
		runner:   runner,
		spec:     spec,
		dryRun:   dryRun,
		location: time.UTC,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}
}

// Validate reports whether the cron expression parses.
func Validate(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// Start registers the job and starts the cron loop. It stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spec == "" {
		telemetry.Info("schedule.disabled", nil)
		return nil
	}
	if err := Validate(s.spec); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule janitor run: %w", err)
	}

	s.cron.Start()
	s.running = true
	telemetry.Info("schedule.started", map[string]any{
		"schedule": s.spec,
		"dry_run":  s.dryRun,
	})

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	now := time.Now().In(s.location)
	sum, err := s.runner.Run(ctx, janitor.RunOptions{Now: now, DryRun: s.dryRun})
	switch {
	case errors.Is(err, janitor.ErrRunInProgress):
		telemetry.Warn("schedule.run.skipped", map[string]any{"reason": "run_in_progress"})
	case err != nil:
		telemetry.Error("schedule.run.failed", map[string]any{
			"run_id": sum.RunID,
			"error":  err.Error(),
		})
	default:
		telemetry.Info("schedule.run.completed", map[string]any{
			"run_id":  sum.RunID,
			"deleted": sum.Deleted,
			"warned":  sum.Warned,
		})
	}
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		telemetry.Info("schedule.stopped", nil)
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled run, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 || entries[0].Next.IsZero() {
		return nil
	}
	next := entries[0].Next
	return &next
}
