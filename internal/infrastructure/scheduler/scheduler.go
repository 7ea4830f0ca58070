package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

// Func is one unit of background work. Errors are logged, never retried here.
type Func func(ctx context.Context) error

// Scheduler runs periodic maintenance jobs in UTC. A job still running when its
// next tick arrives is skipped instead of overlapping.
type Scheduler struct {
	s       gocron.Scheduler
	logger  *logging.Logger
	timeout time.Duration
}

func New(logger *logging.Logger, timeout time.Duration) (*Scheduler, error) {
	if logger == nil {
		logger = logging.Default()
	}
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithGlobalJobOptions(gocron.WithSingletonMode(gocron.LimitModeReschedule)),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{s: s, logger: logger.Named("scheduler"), timeout: timeout}, nil
}

// Cron registers fn on a five-field crontab expression.
func (s *Scheduler) Cron(name, expr string, fn Func) error {
	if _, err := s.s.NewJob(gocron.CronJob(expr, false), s.task(name, fn), gocron.WithName(name)); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Every(name string, interval time.Duration, fn Func) error {
	if interval <= 0 {
		return fmt.Errorf("register %s: interval must be positive", name)
	}
	if _, err := s.s.NewJob(gocron.DurationJob(interval), s.task(name, fn), gocron.WithName(name)); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) task(name string, fn Func) gocron.Task {
	return gocron.NewTask(func(ctx context.Context) {
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		started := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.ErrorContext(ctx, "scheduled job failed", "job", name, "error", err, "duration_ms", time.Since(started).Milliseconds())
			return
		}
		s.logger.DebugContext(ctx, "scheduled job finished", "job", name, "duration_ms", time.Since(started).Milliseconds())
	})
}

func (s *Scheduler) Start() {
	s.s.Start()
	s.logger.Info("scheduler started", "jobs", len(s.s.Jobs()))
}

// Shutdown waits for running jobs to finish.
func (s *Scheduler) Shutdown() error {
	return s.s.Shutdown()
}
