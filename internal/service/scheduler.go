package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/timmy/dropsync/internal/clock"
	"github.com/timmy/dropsync/internal/config"
	"github.com/timmy/dropsync/internal/domain"
	"github.com/timmy/dropsync/internal/logger"
)

// JobKeyDropSync is the lock key for the drop-sync job. One key per
// distinct scheduled job; this service currently schedules one.
const JobKeyDropSync = "drop-sync"

// ErrRunInFlight is returned by non-forced triggers while a run holds
// the job lock.
var ErrRunInFlight = errors.New("a run is already in flight")

// RunSummary is what entry points hand back to their callers: the
// closed run record plus the filenames that failed, for operator-facing
// warnings.
type RunSummary struct {
	Record      *domain.RunRecord
	FailedFiles []string
}

// Scheduler decides when to run the sync job and guarantees at most one
// active run per job key unless overlap is explicitly allowed. Failures
// inside a run are logged and never terminate the control loop.
type Scheduler struct {
	cfg     *config.ScheduleConfig
	job     *SyncJob
	loader  *LoaderService
	tracker *RunTracker
	clock   clock.Clock
	lock    *RunLock
	logger  *logger.Logger
	intn    func(int) int // jitter source, injectable for tests

	runCtx   context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. An invalid schedule configuration is
// fatal: the scheduler refuses to construct.
func NewScheduler(
	cfg *config.ScheduleConfig,
	job *SyncJob,
	loader *LoaderService,
	tracker *RunTracker,
	clk clock.Clock,
	log *logger.Logger,
) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cron != "" {
		if _, err := cronParser.Parse(cfg.Cron); err != nil {
			return nil, fmt.Errorf("invalid schedule: bad cron expression %q: %w", cfg.Cron, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:     cfg,
		job:     job,
		loader:  loader,
		tracker: tracker,
		clock:   clk,
		lock:    NewRunLock(),
		logger:  log,
		intn:    rand.Intn,
		runCtx:  ctx,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}, nil
}

// LockState exposes the job lock state for inspection.
func (s *Scheduler) LockState() LockState {
	return s.lock.State(JobKeyDropSync)
}

// ScheduleAndRun blocks, firing ticks on the configured cadence until
// Shutdown is called. The work for each tick executes on its own
// goroutine so the loop keeps ticking during a long run; the run lock
// decides what an overlapping tick does.
func (s *Scheduler) ScheduleAndRun() error {
	for {
		next, err := NextFire(s.clock.Now(), s.cfg)
		if err != nil {
			// Unreachable after construction-time validation
			return err
		}
		delay := next.Sub(s.clock.Now()) + Jitter(s.cfg.JitterSeconds, s.intn)
		if delay < 0 {
			delay = 0
		}

		s.logger.WithFields(logger.Fields{
			"next": next.Format(time.RFC3339),
		}).Debug("Next tick scheduled")

		timer := time.NewTimer(delay)
		select {
		case <-s.stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.executeTick(domain.RunTypeScheduled)
			}()
		}
	}
}

// executeTick runs one tick's worth of work under the overlap policy.
func (s *Scheduler) executeTick(runType domain.RunType) {
	if s.cfg.AllowOverlap {
		s.runGuarded(runType)
		return
	}

	if !s.lock.TryAcquire(JobKeyDropSync) {
		if s.cfg.OverlapPolicy == config.OverlapPolicyQueue {
			s.lock.MarkQueued(JobKeyDropSync)
			s.logger.WithField(logger.FieldJobKey, JobKeyDropSync).Info("Tick deferred: run in flight")
		} else {
			s.logger.WithField(logger.FieldJobKey, JobKeyDropSync).Info("Tick skipped: run in flight")
		}
		return
	}

	s.runGuarded(runType)
	s.releaseAndRunQueued()
}

// releaseAndRunQueued releases the job lock and honors a tick that was
// deferred while the lock was held: the deferred tick re-fires
// immediately, on whichever entry point held the lock when it queued.
func (s *Scheduler) releaseAndRunQueued() {
	for s.lock.Release(JobKeyDropSync) {
		if !s.lock.TryAcquire(JobKeyDropSync) {
			return
		}
		s.logger.WithField(logger.FieldJobKey, JobKeyDropSync).Info("Running deferred tick")
		s.runGuarded(domain.RunTypeScheduled)
	}
}

// runGuarded executes one run and swallows anything it throws. The
// scheduler is the only component allowed to do so: it logs and relies
// on the next tick.
func (s *Scheduler) runGuarded(runType domain.RunType) (summary *RunSummary) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Run panicked")
		}
	}()

	summary, err := s.runJob(runType)
	if err != nil {
		s.logger.WithError(err).Error("Run aborted")
	}
	return summary
}

// runJob executes a full sync-and-load pass and closes its run record.
func (s *Scheduler) runJob(runType domain.RunType) (*RunSummary, error) {
	ctx := s.runCtx
	// Run bookkeeping survives cooperative cancellation so even an
	// interrupted run closes its record.
	finishCtx := context.WithoutCancel(ctx)

	run, err := s.tracker.Start(finishCtx, runType)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetRunID(ctx, run.ID)

	started := s.clock.Now()
	res, err := s.job.Run(ctx)
	if err != nil {
		rec, ferr := s.tracker.FinishAborted(finishCtx, run.ID, err)
		if ferr != nil {
			s.logger.WithError(ferr).Error("Failed to close aborted run")
		}
		return &RunSummary{Record: rec}, err
	}

	stats := s.loader.IngestAll(ctx, run.ID, res.Downloaded)

	failed := stats.Failed + len(res.FailedDownloads)
	counts := RunCounts{
		Found:   stats.Loaded + stats.Skipped + failed,
		Loaded:  stats.Loaded,
		Skipped: stats.Skipped,
		Failed:  failed,
		Rows:    stats.RowsIngested,
	}

	rec, err := s.tracker.Finish(finishCtx, run.ID, counts)
	if err != nil {
		return nil, fmt.Errorf("failed to close run record: %w", err)
	}

	summary := &RunSummary{Record: rec}
	summary.FailedFiles = append(summary.FailedFiles, res.FailedDownloads...)
	for _, o := range stats.Outcomes {
		if o.Kind == domain.OutcomeFailed {
			summary.FailedFiles = append(summary.FailedFiles, o.FileName)
		}
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"found":                rec.FilesFound,
		"loaded":               rec.FilesLoaded,
		"skipped":              rec.Skipped,
		"failed":               rec.Failed,
		"rows":                 rec.RowsIngested,
		logger.FieldStatus:     rec.Status,
		logger.FieldDurationMs: s.clock.Now().Sub(started).Milliseconds(),
	}).Info("Run completed")

	return summary, nil
}

// Trigger executes one run immediately, outside the schedule. A
// non-forced trigger respects the job lock; force bypasses it and runs
// concurrently with whatever is in flight.
func (s *Scheduler) Trigger(force bool) (*RunSummary, error) {
	s.wg.Add(1)
	defer s.wg.Done()

	if force {
		return s.runJob(domain.RunTypeManual)
	}

	if !s.lock.TryAcquire(JobKeyDropSync) {
		return nil, ErrRunInFlight
	}
	defer s.releaseAndRunQueued()

	return s.runJob(domain.RunTypeManual)
}

// RunOnce executes exactly one tick's worth of work and returns. Used
// for ops and testing convenience; not part of the continuous loop.
func (s *Scheduler) RunOnce() (*RunSummary, error) {
	s.wg.Add(1)
	defer s.wg.Done()

	if !s.lock.TryAcquire(JobKeyDropSync) {
		return nil, ErrRunInFlight
	}
	defer s.releaseAndRunQueued()

	return s.runJob(domain.RunTypeScheduled)
}

// Shutdown stops scheduling new ticks immediately and waits up to the
// configured timeout for an in-flight run to finish on its own. In-
// flight per-file work completes; no new files start. On timeout it
// logs a warning and returns without forcibly terminating the work.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.cancel()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
	case <-time.After(s.cfg.ShutdownTimeout()):
		s.logger.Warn("Shutdown timeout elapsed with a run still in flight")
	}
}
