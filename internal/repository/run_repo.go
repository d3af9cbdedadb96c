package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/dropsync/internal/domain"
	"gorm.io/gorm"
)

// RunRepository handles run-record persistence. A record is created open
// at job start and closed exactly once with final counts.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new open run record.
func (r *RunRepository) Create(ctx context.Context, run *domain.RunRecord) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Finish closes an open run exactly once. Closing an already-finished
// run affects zero rows and is reported as an error.
func (r *RunRepository) Finish(ctx context.Context, id string, run *domain.RunRecord, finishedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&domain.RunRecord{}).
		Where("id = ? AND finished_at IS NULL", id).
		Updates(map[string]interface{}{
			"finished_at":   finishedAt,
			"files_found":   run.FilesFound,
			"files_loaded":  run.FilesLoaded,
			"skipped":       run.Skipped,
			"failed":        run.Failed,
			"rows_ingested": run.RowsIngested,
			"status":        run.Status,
			"error":         run.Error,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("run %s is not open", id)
	}
	return nil
}

// GetByID retrieves a run record by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.RunRecord, error) {
	var run domain.RunRecord
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent returns recent runs ordered by start time, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit, offset int) ([]domain.RunRecord, error) {
	var runs []domain.RunRecord
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).Offset(offset).
		Find(&runs).Error
	return runs, err
}
