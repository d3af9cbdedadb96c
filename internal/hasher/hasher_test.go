package hasher

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

// TestHashFileDeterministic verifies that identical content hashes
// identically regardless of filename.
func TestHashFileDeterministic(t *testing.T) {
	dir := t.TempDir()
	h := SHA256Hasher{}

	a := writeFile(t, dir, "a.csv", "date,metric,value\n2026-01-01,cpu,1.5\n")
	b := writeFile(t, dir, "b.csv", "date,metric,value\n2026-01-01,cpu,1.5\n")

	hashA, sizeA, err := h.HashFile(a)
	if err != nil {
		t.Fatalf("HashFile(a) error: %v", err)
	}
	hashB, sizeB, err := h.HashFile(b)
	if err != nil {
		t.Fatalf("HashFile(b) error: %v", err)
	}

	if hashA != hashB {
		t.Errorf("identical content hashed differently: %s != %s", hashA, hashB)
	}
	if sizeA != sizeB {
		t.Errorf("identical content sized differently: %d != %d", sizeA, sizeB)
	}
	if len(hashA) != 64 {
		t.Errorf("unexpected digest length %d, want 64 hex chars", len(hashA))
	}
	if want := int64(len("date,metric,value\n2026-01-01,cpu,1.5\n")); sizeA != want {
		t.Errorf("size = %d, want %d", sizeA, want)
	}
}

// TestHashFileDifferentContent verifies that a one-byte change alters
// the digest.
func TestHashFileDifferentContent(t *testing.T) {
	dir := t.TempDir()
	h := SHA256Hasher{}

	a := writeFile(t, dir, "a.csv", "date,metric,value\n2026-01-01,cpu,1.5\n")
	b := writeFile(t, dir, "b.csv", "date,metric,value\n2026-01-01,cpu,1.6\n")

	hashA, _, err := h.HashFile(a)
	if err != nil {
		t.Fatalf("HashFile(a) error: %v", err)
	}
	hashB, _, err := h.HashFile(b)
	if err != nil {
		t.Fatalf("HashFile(b) error: %v", err)
	}

	if hashA == hashB {
		t.Errorf("different content produced the same digest: %s", hashA)
	}
}

// TestHashFileMissing verifies the error path for unreadable files.
func TestHashFileMissing(t *testing.T) {
	h := SHA256Hasher{}
	if _, _, err := h.HashFile(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}
