// Package scheduler runs the periodic reminder and grace-period sweeps.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/and161185/warranty-keeper/internal/config"
	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/metrics"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/and161185/warranty-keeper/internal/service"
	"github.com/and161185/warranty-keeper/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Job names.
const (
	JobReminders   = "reminders"
	JobGracePeriod = "grace-period"
)

// JobResult summarizes one sweep.
type JobResult struct {
	Job        string    `json:"job"`
	Scanned    int       `json:"scanned"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Locker provides mutual exclusion across replicas. ok=false means another holder owns key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Options tunes the scheduler.
type Options struct {
	Interval  time.Duration
	BatchSize int
	LockTTL   time.Duration
	Policy    config.Policy
}

// Deps are the collaborators a Scheduler drives.
type Deps struct {
	Tx          repository.Transactor // optional
	Warranties  repository.WarrantyRepository
	Inspections repository.InspectionRepository
	Reminders   repository.ReminderRepository
	Lifecycle   service.WarrantyService
	Notifier    service.Notifier
	Locker      Locker // optional
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	Now         func() time.Time
}

// Scheduler runs each job single-flight: a job never overlaps itself in this process,
// nor across replicas when a Locker is configured.
type Scheduler struct {
	d    Deps
	opts Options
	jobs map[string]func(context.Context, *JobResult) error
	lock map[string]*sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler.
func New(d Deps, opts Options) *Scheduler {
	if d.Notifier == nil {
		d.Notifier = service.NopNotifier()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	s := &Scheduler{d: d, opts: opts}
	s.jobs = map[string]func(context.Context, *JobResult) error{
		JobReminders:   s.sweepReminders,
		JobGracePeriod: s.sweepGracePeriod,
	}
	s.lock = map[string]*sync.Mutex{JobReminders: {}, JobGracePeriod: {}}
	return s
}

// Start launches the periodic loop. Both sweeps run once per interval, grace first.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.opts.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, job := range []string{JobGracePeriod, JobReminders} {
					if _, err := s.TriggerJob(ctx, job); err != nil && !errors.Is(err, errs.ErrConflict) {
						s.d.Log.Error("scheduled job failed", zap.String("job", job), zap.Error(err))
					}
				}
			}
		}
	}()
	s.d.Log.Info("scheduler started", zap.Duration("interval", s.opts.Interval))
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.d.Log.Info("scheduler stopped")
}

// TriggerJob runs one job now. Returns errs.ErrConflict if it is already running
// and errs.ErrNotFound for an unknown job name.
func (s *Scheduler) TriggerJob(ctx context.Context, name string) (JobResult, error) {
	job, ok := s.jobs[name]
	if !ok {
		return JobResult{}, fmt.Errorf("job %q: %w", name, errs.ErrNotFound)
	}
	mu := s.lock[name]
	if !mu.TryLock() {
		return JobResult{}, fmt.Errorf("job %q already running: %w", name, errs.ErrConflict)
	}
	defer mu.Unlock()

	if s.d.Locker != nil {
		release, ok, err := s.d.Locker.TryLock(ctx, "warranty-keeper:job:"+name, s.opts.LockTTL)
		if err != nil {
			return JobResult{}, fmt.Errorf("job %q lock: %w", name, err)
		}
		if !ok {
			return JobResult{}, fmt.Errorf("job %q running on another replica: %w", name, errs.ErrConflict)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.d.Log.Warn("job lock release failed", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	ctx, span := tracing.Tracer().Start(ctx, "scheduler."+name)
	defer span.End()

	res := JobResult{Job: name, StartedAt: s.d.Now().UTC()}
	err := job(ctx, &res)
	res.FinishedAt = s.d.Now().UTC()

	span.SetAttributes(
		attribute.Int("job.scanned", res.Scanned),
		attribute.Int("job.processed", res.Processed),
		attribute.Int("job.skipped", res.Skipped),
		attribute.Int("job.failed", res.Failed),
	)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.d.Metrics.ObserveJob(name, outcome, res.Processed, res.Skipped, res.Failed, res.FinishedAt.Sub(res.StartedAt))
	s.d.Log.Info("job finished",
		zap.String("job", name),
		zap.Int("scanned", res.Scanned),
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Error(err))
	return res, err
}
