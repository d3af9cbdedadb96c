package remote

import (
	"context"

	"github.com/timmy/dropsync/internal/domain"
)

// Source defines the interface for remote drop locations that files are
// pulled from. Implementations do not retry internally; retry policy is
// owned by the sync job.
type Source interface {
	// Connect authenticates against the remote drop.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	// Returns:
	//   - error: non-nil on auth or connectivity failure.
	Connect(ctx context.Context) error

	// List returns the files currently visible in the given remote folder.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - folder: remote folder to list.
	// Returns:
	//   - []domain.RemoteFile: descriptors of the files found.
	//   - error: non-nil on connectivity or protocol failure.
	List(ctx context.Context, folder string) ([]domain.RemoteFile, error)

	// Download fetches one remote file into destDir.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - folder: remote folder containing the file.
	//   - name: file name within the folder.
	//   - destDir: local directory to write into.
	// Returns:
	//   - string: local path of the downloaded file.
	//   - error: non-nil if the download fails.
	Download(ctx context.Context, folder, name, destDir string) (string, error)
}
