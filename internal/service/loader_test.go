package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/dropsync/internal/config"
	"github.com/timmy/dropsync/internal/domain"
	"github.com/timmy/dropsync/internal/hasher"
	"github.com/timmy/dropsync/internal/logger"
	"github.com/timmy/dropsync/internal/repository"
)

// testClock is a fixed time source for deterministic timestamps.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func quietLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "json", Output: io.Discard})
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("failed to init test database: %v", err)
	}
	return db
}

type loaderFixture struct {
	loader     *LoaderService
	logs       *repository.IngestionLogRepository
	records    *repository.RecordRepository
	stagingDir string
	archiveDir string
}

func newLoaderFixture(t *testing.T) *loaderFixture {
	t.Helper()
	db := newTestDB(t)
	logs := repository.NewIngestionLogRepository(db)
	records := repository.NewRecordRepository(db)
	archiveDir := t.TempDir()

	return &loaderFixture{
		loader: NewLoaderService(
			db, logs, records,
			hasher.SHA256Hasher{}, newTestClock(),
			archiveDir, quietLogger(),
		),
		logs:       logs,
		records:    records,
		stagingDir: t.TempDir(),
		archiveDir: archiveDir,
	}
}

func (f *loaderFixture) stage(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.stagingDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to stage file: %v", err)
	}
	return path
}

const validReport = "date,metric,value\n2026-03-01,cpu,1.5\n2026-03-02,cpu,1.7\n"

// TestIngestAllLoadsNewContent verifies the happy path: a new file ends
// as one success entry, committed rows, and an archived file.
func TestIngestAllLoadsNewContent(t *testing.T) {
	f := newLoaderFixture(t)
	ctx := context.Background()
	path := f.stage(t, "report-1.csv", validReport)

	stats := f.loader.IngestAll(ctx, "run-1", []string{path})

	if stats.Loaded != 1 || stats.Skipped != 0 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want exactly one loaded", stats)
	}
	if stats.RowsIngested != 2 {
		t.Errorf("RowsIngested = %d, want 2", stats.RowsIngested)
	}

	entries, err := f.logs.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListByRun error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Status != domain.FileStatusSuccess {
		t.Errorf("entry status = %s, want success", entry.Status)
	}
	if entry.RowsIngested != 2 {
		t.Errorf("entry rows = %d, want 2", entry.RowsIngested)
	}
	if entry.ContentHash == "" {
		t.Error("entry has no content hash")
	}
	if entry.CompletedAt == nil {
		t.Error("success entry has no completion time")
	}

	count, err := f.records.CountByEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("CountByEntry error: %v", err)
	}
	if count != 2 {
		t.Errorf("committed rows = %d, want 2", count)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("staged file was not moved out of staging")
	}
	if _, err := os.Stat(filepath.Join(f.archiveDir, "report-1.csv")); err != nil {
		t.Errorf("archived file missing: %v", err)
	}
}

// TestIngestAllSkipsDuplicateContent verifies content-hash idempotency:
// the same bytes under a new name produce a skipped entry and no new
// rows.
func TestIngestAllSkipsDuplicateContent(t *testing.T) {
	f := newLoaderFixture(t)
	ctx := context.Background()

	first := f.stage(t, "report-1.csv", validReport)
	stats := f.loader.IngestAll(ctx, "run-1", []string{first})
	if stats.Loaded != 1 {
		t.Fatalf("first pass stats = %+v, want one loaded", stats)
	}

	second := f.stage(t, "report-1-redelivered.csv", validReport)
	stats = f.loader.IngestAll(ctx, "run-2", []string{second})
	if stats.Loaded != 0 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Fatalf("second pass stats = %+v, want exactly one skipped", stats)
	}

	entries, err := f.logs.ListByRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("ListByRun error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries for second run, want 1", len(entries))
	}
	if entries[0].Status != domain.FileStatusSkipped {
		t.Errorf("redelivered entry status = %s, want skipped", entries[0].Status)
	}

	// Rows committed exactly once for this content
	total, err := f.records.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll error: %v", err)
	}
	if total != 2 {
		t.Errorf("total rows = %d, want 2 (no duplicate insert)", total)
	}

	// Still exactly one success entry for the hash
	ok, err := f.logs.ExistsSuccessByHash(ctx, entries[0].ContentHash)
	if err != nil {
		t.Fatalf("ExistsSuccessByHash error: %v", err)
	}
	if !ok {
		t.Error("success entry for the content hash disappeared")
	}
}

// TestIngestAllConcurrentDuplicateContent verifies that overlapping
// runs over identical content still commit exactly one success entry
// and one set of rows; the other run records a skipped entry.
func TestIngestAllConcurrentDuplicateContent(t *testing.T) {
	f := newLoaderFixture(t)
	ctx := context.Background()

	a := f.stage(t, "a.csv", validReport)
	b := f.stage(t, "b.csv", validReport)

	var wg sync.WaitGroup
	var statsA, statsB domain.LoadStats
	wg.Add(2)
	go func() {
		defer wg.Done()
		statsA = f.loader.IngestAll(ctx, "run-a", []string{a})
	}()
	go func() {
		defer wg.Done()
		statsB = f.loader.IngestAll(ctx, "run-b", []string{b})
	}()
	wg.Wait()

	if got := statsA.Loaded + statsB.Loaded; got != 1 {
		t.Errorf("loaded across both runs = %d, want 1", got)
	}
	if got := statsA.Skipped + statsB.Skipped; got != 1 {
		t.Errorf("skipped across both runs = %d, want 1", got)
	}
	if got := statsA.Failed + statsB.Failed; got != 0 {
		t.Errorf("failed across both runs = %d, want 0", got)
	}

	total, err := f.records.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll error: %v", err)
	}
	if total != 2 {
		t.Errorf("total rows = %d, want 2 (content committed once)", total)
	}

	successes, err := f.logs.ListRecent(ctx, domain.FileStatusSuccess, 10, 0)
	if err != nil {
		t.Fatalf("ListRecent error: %v", err)
	}
	if len(successes) != 1 {
		t.Errorf("got %d success entries, want exactly 1 for the hash", len(successes))
	}
}

// TestIngestAllDifferentContentBothLoad verifies that a changed file is
// not mistaken for a duplicate.
func TestIngestAllDifferentContentBothLoad(t *testing.T) {
	f := newLoaderFixture(t)
	ctx := context.Background()

	a := f.stage(t, "a.csv", validReport)
	b := f.stage(t, "b.csv", "date,metric,value\n2026-03-03,mem,9.9\n")

	stats := f.loader.IngestAll(ctx, "run-1", []string{a, b})
	if stats.Loaded != 2 || stats.Skipped != 0 {
		t.Fatalf("stats = %+v, want two loaded", stats)
	}
	if stats.RowsIngested != 3 {
		t.Errorf("RowsIngested = %d, want 3", stats.RowsIngested)
	}
}

// TestIngestAllIsolatesMalformedFile verifies partial-failure isolation:
// a bad file gets an error entry and its siblings load normally.
func TestIngestAllIsolatesMalformedFile(t *testing.T) {
	f := newLoaderFixture(t)
	ctx := context.Background()

	good := f.stage(t, "good.csv", validReport)
	bad := f.stage(t, "bad.csv", "date,metric,value\nnot-a-date,cpu,1.0\n")

	stats := f.loader.IngestAll(ctx, "run-1", []string{bad, good})
	if stats.Loaded != 1 || stats.Failed != 1 {
		t.Fatalf("stats = %+v, want one loaded and one failed", stats)
	}

	entries, err := f.logs.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListByRun error: %v", err)
	}
	byName := make(map[string]domain.IngestionLogEntry, len(entries))
	for _, e := range entries {
		byName[e.FileName] = e
	}

	badEntry, ok := byName["bad.csv"]
	if !ok {
		t.Fatal("no log entry for the malformed file")
	}
	if badEntry.Status != domain.FileStatusError {
		t.Errorf("bad entry status = %s, want error", badEntry.Status)
	}
	if badEntry.Error == "" {
		t.Error("error entry carries no error message")
	}

	if byName["good.csv"].Status != domain.FileStatusSuccess {
		t.Errorf("good entry status = %s, want success", byName["good.csv"].Status)
	}

	// No rows leaked from the rolled-back file
	total, err := f.records.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll error: %v", err)
	}
	if total != 2 {
		t.Errorf("total rows = %d, want 2 (only the good file's rows)", total)
	}

	// A failed file stays in staging for inspection
	if _, err := os.Stat(bad); err != nil {
		t.Errorf("failed file was moved out of staging: %v", err)
	}
}

// TestIngestAllHeaderOnlyFile verifies that an empty report is a valid
// success with zero rows.
func TestIngestAllHeaderOnlyFile(t *testing.T) {
	f := newLoaderFixture(t)
	ctx := context.Background()
	path := f.stage(t, "empty.csv", "date,metric,value\n")

	stats := f.loader.IngestAll(ctx, "run-1", []string{path})
	if stats.Loaded != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want one loaded", stats)
	}
	if stats.RowsIngested != 0 {
		t.Errorf("RowsIngested = %d, want 0", stats.RowsIngested)
	}

	entries, _ := f.logs.ListByRun(ctx, "run-1")
	if len(entries) != 1 || entries[0].Status != domain.FileStatusSuccess {
		t.Fatalf("entries = %+v, want one success entry", entries)
	}
	if entries[0].RowsIngested != 0 {
		t.Errorf("entry rows = %d, want 0", entries[0].RowsIngested)
	}
}

// TestIngestAllCancellation verifies that files not yet started when the
// context is canceled are counted as failed, not silently dropped.
func TestIngestAllCancellation(t *testing.T) {
	f := newLoaderFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := f.stage(t, "a.csv", validReport)
	b := f.stage(t, "b.csv", "date,metric,value\n2026-03-03,mem,9.9\n")

	stats := f.loader.IngestAll(ctx, "run-1", []string{a, b})
	if stats.Loaded != 0 || stats.Failed != 2 {
		t.Fatalf("stats = %+v, want both files failed", stats)
	}
	for _, o := range stats.Outcomes {
		if o.Kind != domain.OutcomeFailed {
			t.Errorf("outcome for %s = %s, want failed", o.FileName, o.Kind)
		}
		if o.Err == "" {
			t.Errorf("outcome for %s carries no reason", o.FileName)
		}
	}
}
