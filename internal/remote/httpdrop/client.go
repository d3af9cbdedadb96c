package httpdrop

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/dropsync/internal/domain"
)

// Client implements the remote source interface for an HTTP file drop:
// a web server exposing a JSON index per folder plus plain file GETs.
type Client struct {
	client   *resty.Client
	endpoint string
}

// Config holds configuration for the HTTP drop client.
type Config struct {
	Endpoint       string
	Token          string
	TimeoutSeconds int
}

// indexEntry is one file in the drop folder's index.json.
type indexEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// NewClient creates a new HTTP drop client.
// Parameters:
//   - cfg: endpoint, bearer token, and timeout settings.
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *Config) *Client {
	client := resty.New()
	if cfg.Token != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.Token)
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	// Timeout prevents a hung listing or download from blocking the
	// scheduler's control loop indefinitely
	client.SetTimeout(time.Duration(timeout) * time.Second)

	return &Client{
		client:   client,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
	}
}

// Connect verifies the endpoint is reachable and the token is accepted.
func (c *Client) Connect(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Head(c.endpoint + "/")
	if err != nil {
		return fmt.Errorf("failed to reach drop endpoint: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return fmt.Errorf("drop endpoint rejected credentials: status %d", resp.StatusCode())
	}
	return nil
}

// List fetches the folder's index.json and returns its file descriptors.
func (c *Client) List(ctx context.Context, folder string) ([]domain.RemoteFile, error) {
	var entries []indexEntry
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&entries).
		Get(c.folderURL(folder) + "/index.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list drop folder %q: %w", folder, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("failed to list drop folder %q: status %d", folder, resp.StatusCode())
	}

	files := make([]domain.RemoteFile, 0, len(entries))
	for _, e := range entries {
		files = append(files, domain.RemoteFile{
			Name:     e.Name,
			Size:     e.Size,
			Modified: e.Modified,
		})
	}
	return files, nil
}

// Download streams one file from the drop into destDir.
func (c *Client) Download(ctx context.Context, folder, name, destDir string) (string, error) {
	dest := filepath.Join(destDir, name)
	resp, err := c.client.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(c.folderURL(folder) + "/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to download %q: %w", name, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("failed to download %q: status %d", name, resp.StatusCode())
	}
	return dest, nil
}

func (c *Client) folderURL(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return c.endpoint
	}
	return c.endpoint + "/" + folder
}
