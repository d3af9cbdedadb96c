package domain

import "time"

// FileStatus represents the status of a single file-ingestion attempt.
// Values include FileStatusRunning, FileStatusSuccess, FileStatusError, and FileStatusSkipped.
type FileStatus string

const (
	FileStatusRunning FileStatus = "running"
	FileStatusSuccess FileStatus = "success"
	FileStatusError   FileStatus = "error"
	FileStatusSkipped FileStatus = "skipped"
)

// Terminal reports whether the status is a final state. Only a running
// entry may still be mutated, exactly once, into a terminal state.
func (s FileStatus) Terminal() bool {
	return s == FileStatusSuccess || s == FileStatusError || s == FileStatusSkipped
}

// IngestionLogEntry records the fate of one file-ingestion attempt.
// Entries are never deleted; they form the audit trail and back
// content-hash duplicate detection. At most one success entry exists
// per content hash; re-delivered content yields a skipped entry.
type IngestionLogEntry struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	RunID        string     `gorm:"type:text;index:idx_ingestion_log_run" json:"run_id"`
	FileName     string     `gorm:"type:text;not null;index:idx_ingestion_log_name" json:"file_name"`
	FilePath     string     `gorm:"type:text" json:"file_path"`
	ContentHash  string     `gorm:"type:text;index:idx_ingestion_log_hash" json:"content_hash"`
	SizeBytes    int64      `json:"size_bytes"`
	RowsIngested int        `gorm:"default:0" json:"rows_ingested"`
	Status       FileStatus `gorm:"type:text;index:idx_ingestion_log_status" json:"status"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the database table name for IngestionLogEntry.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (IngestionLogEntry) TableName() string {
	return "ingestion_log"
}
