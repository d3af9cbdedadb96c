package service

import (
	"context"
	"testing"
	"time"

	"github.com/timmy/dropsync/internal/domain"
	"github.com/timmy/dropsync/internal/repository"
)

// TestLogIndexQuery verifies that any entry inside the window counts as
// seen, whatever its outcome, and that older entries roll out of it.
func TestLogIndexQuery(t *testing.T) {
	db := newTestDB(t)
	logs := repository.NewIngestionLogRepository(db)
	index := NewLogIndex(logs)
	ctx := context.Background()

	now := newTestClock().Now()
	entries := []domain.IngestionLogEntry{
		{ID: "1", RunID: "r1", FileName: "loaded.csv", Status: domain.FileStatusSuccess, StartedAt: now.AddDate(0, 0, -1)},
		{ID: "2", RunID: "r1", FileName: "broken.csv", Status: domain.FileStatusError, StartedAt: now.AddDate(0, 0, -2)},
		{ID: "3", RunID: "r2", FileName: "dupe.csv", Status: domain.FileStatusSkipped, StartedAt: now.AddDate(0, 0, -3)},
		{ID: "4", RunID: "r0", FileName: "ancient.csv", Status: domain.FileStatusSuccess, StartedAt: now.AddDate(0, 0, -60)},
	}
	for i := range entries {
		if err := logs.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("failed to seed entry: %v", err)
		}
	}

	seen, err := index.Query(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}

	for _, name := range []string{"loaded.csv", "broken.csv", "dupe.csv"} {
		if _, ok := seen[name]; !ok {
			t.Errorf("%s missing from the index despite being in the window", name)
		}
	}
	if _, ok := seen["ancient.csv"]; ok {
		t.Error("entry outside the lookback window reported as seen")
	}
}

// TestLogIndexEmpty verifies that an empty log is an empty set, not an
// error.
func TestLogIndexEmpty(t *testing.T) {
	index := NewLogIndex(repository.NewIngestionLogRepository(newTestDB(t)))

	seen, err := index.Query(context.Background(), time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(seen) != 0 {
		t.Errorf("empty log produced %d seen names", len(seen))
	}
}
