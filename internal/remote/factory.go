package remote

import (
	"fmt"

	"github.com/timmy/dropsync/internal/config"
	"github.com/timmy/dropsync/internal/remote/httpdrop"
	"github.com/timmy/dropsync/internal/remote/s3drop"
)

// NewSource creates a remote source from configuration.
// Parameters:
//   - cfg: remote source configuration including type selection.
// Returns:
//   - Source: initialized remote source adapter.
//   - error: non-nil if the type is unknown or client setup fails.
func NewSource(cfg *config.RemoteConfig) (Source, error) {
	switch cfg.Type {
	case "httpdrop", "":
		return httpdrop.NewClient(&httpdrop.Config{
			Endpoint:       cfg.Endpoint,
			Token:          cfg.Token,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}), nil
	case "s3":
		return s3drop.NewClient(&s3drop.Config{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown remote source type: %q", cfg.Type)
	}
}
