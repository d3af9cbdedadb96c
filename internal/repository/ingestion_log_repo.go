package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/dropsync/internal/domain"
	"gorm.io/gorm"
)

// IngestionLogRepository handles the per-file ingestion audit log.
// Entries are append-mostly: terminal rows are immutable, and the only
// permitted mutation is the single running -> terminal transition.
type IngestionLogRepository struct {
	db *gorm.DB
}

// NewIngestionLogRepository creates a new IngestionLogRepository.
func NewIngestionLogRepository(db *gorm.DB) *IngestionLogRepository {
	return &IngestionLogRepository{db: db}
}

// Create inserts a new log entry.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: entry to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *IngestionLogRepository) Create(ctx context.Context, entry *domain.IngestionLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// MarkSuccess transitions a running entry to success with its row count.
// The guard on the current status makes the transition exactly-once: a
// second call, or a call against a terminal entry, affects zero rows and
// is reported as an error.
func (r *IngestionLogRepository) MarkSuccess(ctx context.Context, id string, rows int, completedAt time.Time) error {
	return r.markTerminal(ctx, id, map[string]interface{}{
		"status":        domain.FileStatusSuccess,
		"rows_ingested": rows,
		"completed_at":  completedAt,
	})
}

// MarkError transitions a running entry to error with a description.
func (r *IngestionLogRepository) MarkError(ctx context.Context, id, errMsg string, completedAt time.Time) error {
	return r.markTerminal(ctx, id, map[string]interface{}{
		"status":       domain.FileStatusError,
		"error":        errMsg,
		"completed_at": completedAt,
	})
}

func (r *IngestionLogRepository) markTerminal(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&domain.IngestionLogEntry{}).
		Where("id = ? AND status = ?", id, domain.FileStatusRunning).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("log entry %s is not in running state", id)
	}
	return nil
}

// FindSuccessByHash retrieves the success entry recorded for a content hash.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - hash: content hash to look up.
// Returns:
//   - *domain.IngestionLogEntry: success entry if found.
//   - error: gorm.ErrRecordNotFound when no success entry exists.
func (r *IngestionLogRepository) FindSuccessByHash(ctx context.Context, hash string) (*domain.IngestionLogEntry, error) {
	var entry domain.IngestionLogEntry
	err := r.db.WithContext(ctx).
		First(&entry, "content_hash = ? AND status = ?", hash, domain.FileStatusSuccess).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ExistsSuccessByHash checks whether a success entry exists for a content hash.
func (r *IngestionLogRepository) ExistsSuccessByHash(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.IngestionLogEntry{}).
		Where("content_hash = ? AND status = ?", hash, domain.FileStatusSuccess).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DistinctFilenamesSince returns the distinct filenames of entries whose
// processing started within the lookback window. Backing query for the
// already-ingested index: an empty result is a normal answer, not an error.
func (r *IngestionLogRepository) DistinctFilenamesSince(ctx context.Context, since time.Time) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&domain.IngestionLogEntry{}).
		Where("started_at >= ?", since).
		Distinct("file_name").
		Pluck("file_name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ListByRun returns all entries recorded for one run, oldest first.
func (r *IngestionLogRepository) ListByRun(ctx context.Context, runID string) ([]domain.IngestionLogEntry, error) {
	var entries []domain.IngestionLogEntry
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("started_at ASC").
		Find(&entries).Error
	return entries, err
}

// ListRecent returns recent entries, newest first, optionally filtered by status.
func (r *IngestionLogRepository) ListRecent(ctx context.Context, status domain.FileStatus, limit, offset int) ([]domain.IngestionLogEntry, error) {
	q := r.db.WithContext(ctx).Model(&domain.IngestionLogEntry{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var entries []domain.IngestionLogEntry
	err := q.Order("started_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, err
}
