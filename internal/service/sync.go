package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/dropsync/internal/clock"
	"github.com/timmy/dropsync/internal/domain"
	"github.com/timmy/dropsync/internal/logger"
	"github.com/timmy/dropsync/internal/remote"
)

// SyncJobConfig holds the knobs for one sync pass.
type SyncJobConfig struct {
	Folder       string
	StagingDir   string
	LookbackDays int
	MaxRetries   int
	RetryDelay   time.Duration
}

// SyncJob produces the list of newly-downloaded local file paths for a
// single run. Listing and index queries are never retried: their failure
// aborts the job and the scheduler's next tick is the retry mechanism.
// Individual downloads are retried and their failure is isolated.
type SyncJob struct {
	source remote.Source
	index  AlreadyIngestedIndex
	clock  clock.Clock
	cfg    SyncJobConfig
	logger *logger.Logger
}

// NewSyncJob creates a new sync job.
func NewSyncJob(source remote.Source, index AlreadyIngestedIndex, clk clock.Clock, cfg SyncJobConfig, log *logger.Logger) *SyncJob {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &SyncJob{
		source: source,
		index:  index,
		clock:  clk,
		cfg:    cfg,
		logger: log,
	}
}

func (j *SyncJob) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return j.logger
}

// Run executes one sync pass. A returned error is a job-level abort; a
// download that exhausted its retries is reported in the result instead
// and does not abort the job.
func (j *SyncJob) Run(ctx context.Context) (domain.SyncResult, error) {
	var result domain.SyncResult

	if err := j.source.Connect(ctx); err != nil {
		return result, fmt.Errorf("remote auth failed: %w", err)
	}

	since := j.clock.Now().AddDate(0, 0, -j.cfg.LookbackDays)
	seen, err := j.index.Query(ctx, since)
	if err != nil {
		return result, fmt.Errorf("ingested-index query failed: %w", err)
	}

	files, err := j.source.List(ctx, j.cfg.Folder)
	if err != nil {
		return result, fmt.Errorf("remote listing failed: %w", err)
	}

	var fresh []domain.RemoteFile
	for _, f := range files {
		if _, ok := seen[f.Name]; !ok {
			fresh = append(fresh, f)
		}
	}

	j.log(ctx).WithFields(logger.Fields{
		"listed": len(files),
		"new":    len(fresh),
	}).Info("Remote listing complete")

	for _, f := range fresh {
		// Cancellation is observed between downloads only; a download in
		// flight runs to completion.
		if ctx.Err() != nil {
			j.log(ctx).Warn("Sync interrupted, remaining downloads not started")
			break
		}

		path, err := j.download(ctx, f.Name)
		if err != nil {
			result.Found++
			result.FailedDownloads = append(result.FailedDownloads, f.Name)
			j.log(ctx).WithField(logger.FieldFile, f.Name).WithError(err).Error("Download failed after retries")
			continue
		}
		result.Found++
		result.Downloaded = append(result.Downloaded, path)
	}

	return result, nil
}

// download attempts one file with up to MaxRetries attempts separated by
// RetryDelay.
func (j *SyncJob) download(ctx context.Context, name string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= j.cfg.MaxRetries; attempt++ {
		// The attempt itself runs to completion; cancellation is only
		// observed in the retry wait and between files.
		path, err := j.source.Download(context.WithoutCancel(ctx), j.cfg.Folder, name, j.cfg.StagingDir)
		if err == nil {
			return path, nil
		}
		lastErr = err
		j.log(ctx).WithFields(logger.Fields{
			logger.FieldFile: name,
			"attempt":        attempt,
		}).WithError(err).Warn("Download attempt failed")

		if attempt < j.cfg.MaxRetries {
			if !wait(ctx, j.cfg.RetryDelay) {
				return "", fmt.Errorf("canceled while retrying: %w", lastErr)
			}
		}
	}
	return "", fmt.Errorf("exhausted %d attempts: %w", j.cfg.MaxRetries, lastErr)
}

// wait sleeps for d unless the context is canceled first. Returns false
// when canceled.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
