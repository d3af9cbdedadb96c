package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/timmy/dropsync/internal/clock"
	"github.com/timmy/dropsync/internal/domain"
	"github.com/timmy/dropsync/internal/hasher"
	"github.com/timmy/dropsync/internal/logger"
	"github.com/timmy/dropsync/internal/repository"
	"gorm.io/gorm"
)

// maxErrorLen bounds the error description stored on a log entry.
const maxErrorLen = 500

// LoaderService turns staged local files into committed rows exactly
// once per distinct content. Files are processed sequentially so each
// file's transaction is isolated and outcome counts are deterministic.
type LoaderService struct {
	db         *gorm.DB
	logs       *repository.IngestionLogRepository
	records    *repository.RecordRepository
	hasher     hasher.ContentHasher
	clock      clock.Clock
	archiveDir string
	logger     *logger.Logger

	// mu serializes the dedupe lookup through the terminal write. Runs
	// may overlap (forced trigger, allow_overlap), and without this
	// ordering two of them could both miss the success entry for the
	// same content and both commit it.
	mu sync.Mutex
}

// NewLoaderService creates a new loader.
func NewLoaderService(
	db *gorm.DB,
	logs *repository.IngestionLogRepository,
	records *repository.RecordRepository,
	h hasher.ContentHasher,
	clk clock.Clock,
	archiveDir string,
	log *logger.Logger,
) *LoaderService {
	return &LoaderService{
		db:         db,
		logs:       logs,
		records:    records,
		hasher:     h,
		clock:      clk,
		archiveDir: archiveDir,
		logger:     log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *LoaderService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// IngestAll processes the staged files in order. Cancellation is checked
// between files only: the file in flight finishes its transaction, then
// no further file starts. Files not started after cancellation are
// counted as failed so run totals stay consistent.
func (s *LoaderService) IngestAll(ctx context.Context, runID string, paths []string) domain.LoadStats {
	var stats domain.LoadStats

	for i, path := range paths {
		if ctx.Err() != nil {
			s.log(ctx).WithField(logger.FieldCount, len(paths)-i).Warn("Ingestion interrupted, remaining files not started")
			for _, rest := range paths[i:] {
				stats.Add(domain.FileOutcome{
					FileName: filepath.Base(rest),
					Kind:     domain.OutcomeFailed,
					Err:      "canceled before processing started",
				})
			}
			break
		}

		// The in-flight file is allowed to finish even during shutdown;
		// only the between-files check above observes cancellation.
		stats.Add(s.ingestOne(context.WithoutCancel(ctx), runID, path))
	}

	s.log(ctx).WithFields(logger.Fields{
		"loaded":  stats.Loaded,
		"skipped": stats.Skipped,
		"failed":  stats.Failed,
		"rows":    stats.RowsIngested,
	}).Info("Load batch completed")

	return stats
}

// ingestOne runs the full lifecycle for a single staged file. All
// failures are returned as outcomes; nothing escapes to the batch loop.
func (s *LoaderService) ingestOne(ctx context.Context, runID, path string) domain.FileOutcome {
	fileName := filepath.Base(path)

	hash, size, err := s.hasher.HashFile(path)
	if err != nil {
		return s.failEntry(ctx, runID, fileName, path, "", 0, fmt.Errorf("failed to hash file: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prior, err := s.logs.FindSuccessByHash(ctx, hash)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return s.failEntry(ctx, runID, fileName, path, hash, size, fmt.Errorf("failed to check duplicate: %w", err))
	}
	if prior != nil {
		// Identical content was loaded before: record a skipped entry
		// referencing the same hash, never parse or insert again.
		now := s.clock.Now()
		entry := &domain.IngestionLogEntry{
			ID:          uuid.New().String(),
			RunID:       runID,
			FileName:    fileName,
			FilePath:    path,
			ContentHash: hash,
			SizeBytes:   size,
			Status:      domain.FileStatusSkipped,
			StartedAt:   now,
			CompletedAt: &now,
		}
		if err := s.logs.Create(ctx, entry); err != nil {
			s.log(ctx).WithField(logger.FieldFile, fileName).WithError(err).Error("Failed to record skipped entry")
			return domain.FileOutcome{FileName: fileName, Kind: domain.OutcomeFailed, Err: truncateErr(err)}
		}
		s.archive(ctx, path)
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldFile: fileName,
			"hash":           hash,
		}).Info("Duplicate content, skipped")
		return domain.FileOutcome{FileName: fileName, Kind: domain.OutcomeSkipped}
	}

	entry := &domain.IngestionLogEntry{
		ID:          uuid.New().String(),
		RunID:       runID,
		FileName:    fileName,
		FilePath:    path,
		ContentHash: hash,
		SizeBytes:   size,
		Status:      domain.FileStatusRunning,
		StartedAt:   s.clock.Now(),
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.log(ctx).WithField(logger.FieldFile, fileName).WithError(err).Error("Failed to open log entry")
		return domain.FileOutcome{FileName: fileName, Kind: domain.OutcomeFailed, Err: truncateErr(err)}
	}

	rows, err := ParseReportFile(path)
	if err != nil {
		return s.closeWithError(ctx, entry, err)
	}

	now := s.clock.Now()
	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.Record{
			ID:         uuid.New().String(),
			EntryID:    entry.ID,
			FileName:   fileName,
			ReportDate: row.ReportDate,
			Metric:     row.Metric,
			Value:      row.Value,
			Extra:      row.Extra,
			CreatedAt:  now,
		})
	}

	// One transaction per file: sibling files are unaffected by this
	// file's commit or rollback.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.records.InsertAll(tx, records)
	})
	if err != nil {
		return s.closeWithError(ctx, entry, fmt.Errorf("failed to insert rows: %w", err))
	}

	if err := s.logs.MarkSuccess(ctx, entry.ID, len(records), s.clock.Now()); err != nil {
		s.log(ctx).WithField(logger.FieldFile, fileName).WithError(err).Error("Failed to close log entry")
		return domain.FileOutcome{FileName: fileName, Kind: domain.OutcomeFailed, Err: truncateErr(err)}
	}

	s.archive(ctx, path)
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldFile: fileName,
		"rows":           len(records),
	}).Info("File loaded")
	return domain.FileOutcome{FileName: fileName, Kind: domain.OutcomeLoaded, Rows: len(records)}
}

// failEntry records a terminal error entry for a file that failed before
// a running entry was opened for it.
func (s *LoaderService) failEntry(ctx context.Context, runID, fileName, path, hash string, size int64, cause error) domain.FileOutcome {
	now := s.clock.Now()
	entry := &domain.IngestionLogEntry{
		ID:          uuid.New().String(),
		RunID:       runID,
		FileName:    fileName,
		FilePath:    path,
		ContentHash: hash,
		SizeBytes:   size,
		Status:      domain.FileStatusError,
		Error:       truncateErr(cause),
		StartedAt:   now,
		CompletedAt: &now,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.log(ctx).WithField(logger.FieldFile, fileName).WithError(err).Error("Failed to record error entry")
	}
	s.log(ctx).WithField(logger.FieldFile, fileName).WithError(cause).Error("Failed to process file")
	return domain.FileOutcome{FileName: fileName, Kind: domain.OutcomeFailed, Err: truncateErr(cause)}
}

// closeWithError transitions an open running entry to error.
func (s *LoaderService) closeWithError(ctx context.Context, entry *domain.IngestionLogEntry, cause error) domain.FileOutcome {
	if err := s.logs.MarkError(ctx, entry.ID, truncateErr(cause), s.clock.Now()); err != nil {
		s.log(ctx).WithField(logger.FieldFile, entry.FileName).WithError(err).Error("Failed to close log entry")
	}
	s.log(ctx).WithField(logger.FieldFile, entry.FileName).WithError(cause).Error("Failed to load file")
	return domain.FileOutcome{FileName: entry.FileName, Kind: domain.OutcomeFailed, Err: truncateErr(cause)}
}

// archive moves a terminally processed file out of staging. Failure to
// archive never fails the file: its data is already committed.
func (s *LoaderService) archive(ctx context.Context, path string) {
	if s.archiveDir == "" {
		return
	}
	dest := filepath.Join(s.archiveDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		s.log(ctx).WithField(logger.FieldFile, filepath.Base(path)).WithError(err).Warn("Failed to archive file")
	}
}

func truncateErr(err error) string {
	msg := err.Error()
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
