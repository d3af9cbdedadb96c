package domain

import "time"

// RunStatus represents the overall outcome of one sync-and-load run.
// Values include RunStatusSuccess, RunStatusPartial, and RunStatusError.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusError   RunStatus = "error"
)

// RunType distinguishes how a run was started.
type RunType string

const (
	RunTypeScheduled RunType = "scheduled"
	RunTypeManual    RunType = "manual"
)

// RunRecord tracks one execution of the sync job plus loader, whether
// scheduler-triggered or manual. Records are created open at job start
// and closed exactly once with final counts; FilesFound always equals
// FilesLoaded + Skipped + Failed.
type RunRecord struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	RunType      RunType    `gorm:"type:text;not null" json:"run_type"`
	StartedAt    time.Time  `gorm:"index:idx_runs_started" json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	FilesFound   int        `gorm:"default:0" json:"files_found"`
	FilesLoaded  int        `gorm:"default:0" json:"files_loaded"`
	Skipped      int        `gorm:"default:0" json:"skipped"`
	Failed       int        `gorm:"default:0" json:"failed"`
	RowsIngested int        `gorm:"default:0" json:"rows_ingested"`
	Status       RunStatus  `gorm:"type:text" json:"status,omitempty"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
}

// TableName returns the database table name for RunRecord.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (RunRecord) TableName() string {
	return "runs"
}

// DeriveRunStatus computes the overall run status from the per-file
// counts. Callers never set the status directly.
//
// An aborted run (remote listing or index query failed before any file
// was processed) is always an error. Otherwise: nothing to do is a
// success, any failures without a single load is an error, and a mix of
// loads and failures is partial.
func DeriveRunStatus(loaded, skipped, failed int, aborted bool) RunStatus {
	if aborted {
		return RunStatusError
	}
	if failed == 0 {
		return RunStatusSuccess
	}
	if loaded == 0 {
		return RunStatusError
	}
	return RunStatusPartial
}
