package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/dropsync/internal/repository"
)

// AlreadyIngestedIndex answers which filenames have already been seen
// within a time window. It must return an empty set, not an error, when
// nothing has been ingested yet; errors signal connectivity or protocol
// failure only.
type AlreadyIngestedIndex interface {
	Query(ctx context.Context, since time.Time) (map[string]struct{}, error)
}

// LogIndex implements AlreadyIngestedIndex on top of the ingestion log:
// any file with a log entry in the window counts as seen, regardless of
// its outcome, so a file that errored is not re-downloaded until the
// window rolls past it.
type LogIndex struct {
	logs *repository.IngestionLogRepository
}

// NewLogIndex creates an index backed by the ingestion log.
func NewLogIndex(logs *repository.IngestionLogRepository) *LogIndex {
	return &LogIndex{logs: logs}
}

// Query returns the set of filenames ingested since the given time.
func (i *LogIndex) Query(ctx context.Context, since time.Time) (map[string]struct{}, error) {
	names, err := i.logs.DistinctFilenamesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingested filenames: %w", err)
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}
