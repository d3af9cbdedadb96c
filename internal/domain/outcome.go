package domain

// FileOutcomeKind tags the per-file result inside one loader batch.
type FileOutcomeKind string

const (
	OutcomeLoaded  FileOutcomeKind = "loaded"
	OutcomeSkipped FileOutcomeKind = "skipped"
	OutcomeFailed  FileOutcomeKind = "failed"
)

// FileOutcome is the per-file result of a loader batch. File-level
// failures are values, not errors: they never escape the batch loop.
type FileOutcome struct {
	FileName string
	Kind     FileOutcomeKind
	Rows     int
	Err      string
}

// LoadStats aggregates the outcomes of one IngestAll call.
type LoadStats struct {
	Loaded       int
	Skipped      int
	Failed       int
	RowsIngested int
	Outcomes     []FileOutcome
}

// Add folds one outcome into the running totals.
func (s *LoadStats) Add(o FileOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Kind {
	case OutcomeLoaded:
		s.Loaded++
		s.RowsIngested += o.Rows
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// SyncResult is the job-level result of one sync pass. Found counts the
// remote files that were new for this run; a download that exhausted its
// retries appears in FailedDownloads but does not abort the job. A
// job-level abort is reported as an error from the sync job instead.
type SyncResult struct {
	Found           int
	Downloaded      []string
	FailedDownloads []string
}
