package repository

import (
	"context"

	"github.com/timmy/dropsync/internal/domain"
	"gorm.io/gorm"
)

// RecordRepository handles the business rows produced by parsing report
// files. Inserts run inside the caller's transaction so one file's rows
// commit or roll back as a unit.
type RecordRepository struct {
	db *gorm.DB
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// InsertAll bulk-inserts rows using the given transaction handle.
func (r *RecordRepository) InsertAll(tx *gorm.DB, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	return tx.CreateInBatches(records, 200).Error
}

// CountAll returns the total number of ingested rows.
func (r *RecordRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Record{}).Count(&count).Error
	return count, err
}

// CountByEntry returns the number of rows contributed by one log entry.
func (r *RecordRepository) CountByEntry(ctx context.Context, entryID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("entry_id = ?", entryID).
		Count(&count).Error
	return count, err
}
