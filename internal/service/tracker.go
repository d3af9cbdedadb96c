package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/timmy/dropsync/internal/clock"
	"github.com/timmy/dropsync/internal/domain"
	"github.com/timmy/dropsync/internal/repository"
)

// RunCounts are the final aggregate counters of one run. FilesFound must
// equal Loaded + Skipped + Failed; the tracker enforces this rather than
// trusting callers.
type RunCounts struct {
	Found   int
	Loaded  int
	Skipped int
	Failed  int
	Rows    int
}

// RunTracker records per-run aggregate counters and the derived final
// status. Callers never set a run's status directly.
type RunTracker struct {
	runs  *repository.RunRepository
	clock clock.Clock
}

// NewRunTracker creates a new run tracker.
func NewRunTracker(runs *repository.RunRepository, clk clock.Clock) *RunTracker {
	return &RunTracker{runs: runs, clock: clk}
}

// Start opens a new run record and returns it.
func (t *RunTracker) Start(ctx context.Context, runType domain.RunType) (*domain.RunRecord, error) {
	run := &domain.RunRecord{
		ID:        uuid.New().String(),
		RunType:   runType,
		StartedAt: t.clock.Now(),
	}
	if err := t.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to open run record: %w", err)
	}
	return run, nil
}

// Finish closes a run with its final counts and derived status.
func (t *RunTracker) Finish(ctx context.Context, runID string, counts RunCounts) (*domain.RunRecord, error) {
	if counts.Found != counts.Loaded+counts.Skipped+counts.Failed {
		return nil, fmt.Errorf("inconsistent run counts: found=%d loaded=%d skipped=%d failed=%d",
			counts.Found, counts.Loaded, counts.Skipped, counts.Failed)
	}

	run := &domain.RunRecord{
		FilesFound:   counts.Found,
		FilesLoaded:  counts.Loaded,
		Skipped:      counts.Skipped,
		Failed:       counts.Failed,
		RowsIngested: counts.Rows,
		Status:       domain.DeriveRunStatus(counts.Loaded, counts.Skipped, counts.Failed, false),
	}
	if err := t.runs.Finish(ctx, runID, run, t.clock.Now()); err != nil {
		return nil, err
	}
	run.ID = runID
	return run, nil
}

// FinishAborted closes a run that failed at the job level before any
// file was processed. Aborted runs always derive to error.
func (t *RunTracker) FinishAborted(ctx context.Context, runID string, cause error) (*domain.RunRecord, error) {
	run := &domain.RunRecord{
		Status: domain.DeriveRunStatus(0, 0, 0, true),
		Error:  truncateErr(cause),
	}
	if err := t.runs.Finish(ctx, runID, run, t.clock.Now()); err != nil {
		return nil, err
	}
	run.ID = runID
	return run, nil
}
