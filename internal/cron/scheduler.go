package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

// Task is one unit of work in a sweep. Timeout bounds a single run; zero
// leaves it to the caller's context.
type Task struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Locker is the cross-worker guard a sweep runs under.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

type SchedulerParams struct {
	Logger   *logger.Logger
	Lease    Locker
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	Tasks    []Task
	Now      func() time.Time
}

// Scheduler sweeps its tasks in order every interval. Only the worker holding
// the lease sweeps; the others record a skip and wait for the next tick.
type Scheduler struct {
	logg     *logger.Logger
	lease    Locker
	metrics  *metrics.JobMetrics
	interval time.Duration
	tasks    []Task
	now      func() time.Time
}

func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Lease == nil {
		return nil, errors.New("lease required")
	}
	if len(params.Tasks) == 0 {
		return nil, errors.New("at least one task required")
	}
	seen := make(map[string]struct{}, len(params.Tasks))
	for _, task := range params.Tasks {
		if task.Name == "" || task.Run == nil {
			return nil, fmt.Errorf("task %q needs a name and a run func", task.Name)
		}
		if _, dup := seen[task.Name]; dup {
			return nil, fmt.Errorf("task %q registered twice", task.Name)
		}
		seen[task.Name] = struct{}{}
	}

	s := &Scheduler{
		logg:     params.Logger,
		lease:    params.Lease,
		metrics:  params.Metrics,
		interval: params.Interval,
		tasks:    append([]Task(nil), params.Tasks...),
		now:      params.Now,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run sweeps immediately, then once per interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron.sweep.failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs every task once under the lease. ran is false when another
// worker holds it. A failing task does not stop the ones after it, but a
// lost lease ends the sweep.
func (s *Scheduler) Sweep(ctx context.Context) (ran bool, err error) {
	acquired, err := s.lease.Acquire(ctx)
	if err != nil {
		return false, err
	}
	if !acquired {
		for _, task := range s.tasks {
			s.metrics.IncSkipped(task.Name)
		}
		s.logg.Debug(ctx, "cron.sweep.skipped")
		return false, nil
	}
	defer func() {
		// release even when ctx is already canceled
		if relErr := s.lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "cron.lease.release_failed")
		}
	}()

	for i, task := range s.tasks {
		if i > 0 {
			if extErr := s.lease.Extend(ctx); extErr != nil {
				return true, multierr.Append(err, fmt.Errorf("before %s: %w", task.Name, extErr))
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return true, multierr.Append(err, ctxErr)
		}
		if taskErr := s.runTask(ctx, task); taskErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", task.Name, taskErr))
		}
	}
	return true, err
}

func (s *Scheduler) runTask(ctx context.Context, task Task) error {
	runCtx := s.logg.WithField(ctx, "job", task.Name)
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, task.Timeout)
		defer cancel()
	}

	start := s.now()
	err := task.Run(runCtx)
	finished := s.now()
	elapsed := finished.Sub(start)
	s.metrics.ObserveRun(task.Name, err, elapsed, finished)

	runCtx = s.logg.WithField(runCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(runCtx, "cron.job.failed", err)
		return err
	}
	s.logg.Info(runCtx, "cron.job.completed")
	return nil
}
