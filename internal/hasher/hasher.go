package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ContentHasher computes a stable digest over a file's bytes. Duplicate
// detection is keyed on this digest, not on filenames, so identical
// content delivered under a new name is still recognized.
type ContentHasher interface {
	// HashFile returns the digest and byte size of the file at path.
	HashFile(path string) (hash string, size int64, err error)
}

// SHA256Hasher streams the file through crypto/sha256. The file is
// never loaded into memory as a whole.
type SHA256Hasher struct{}

// HashFile computes the SHA-256 digest of the file at path.
// Parameters:
//   - path: local file path to hash.
// Returns:
//   - string: lowercase hex digest.
//   - int64: file size in bytes.
//   - error: non-nil if the file cannot be read.
func (SHA256Hasher) HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
