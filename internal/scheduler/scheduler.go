// Package scheduler runs the daemon's periodic jobs on top of gocron.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/wppbot/internal/logging"
)

// CheckpointJob is the name of the job that flushes the state store.
const CheckpointJob = "state-checkpoint"

// Scheduler owns a gocron scheduler pinned to UTC.
type Scheduler struct {
	cron   gocron.Scheduler
	logger *zap.Logger
}

// New creates a stopped scheduler. Call Start once jobs are registered.
func New(logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logging.GocronLogger(logger.Named("cron"))),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{cron: s, logger: logger}, nil
}

// Every registers fn to run every d. Runs of the same job never overlap.
func (s *Scheduler) Every(name string, d time.Duration, fn func()) error {
	if name == "" {
		return errors.New("empty job name")
	}
	if d <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", name, d)
	}
	if fn == nil {
		return fmt.Errorf("job %s: nil task", name)
	}

	job, err := s.cron.NewJob(
		gocron.DurationJob(d),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	fields := []zap.Field{zap.String("job", name), zap.Duration("every", d)}
	if next, err := job.NextRun(); err == nil && !next.IsZero() {
		fields = append(fields, zap.Time("next_run", next))
	}
	s.logger.Info("job scheduled", fields...)
	return nil
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.cron.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
