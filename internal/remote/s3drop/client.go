package s3drop

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/timmy/dropsync/internal/domain"
)

// Client implements the remote source interface for an S3-compatible
// bucket drop (S3, R2, MinIO). Folders map to key prefixes.
type Client struct {
	client *s3.Client
	bucket string
}

// Config holds configuration for the S3 drop client.
type Config struct {
	Endpoint  string // empty for plain AWS S3
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewClient creates a new S3 drop client.
// Parameters:
//   - cfg: bucket, region, credentials and optional custom endpoint.
// Returns:
//   - *Client: initialized client.
//   - error: non-nil if AWS config loading fails.
func NewClient(cfg *Config) (*Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			scheme := "http"
			if cfg.UseSSL {
				scheme = "https"
			}
			o.BaseEndpoint = aws.String(fmt.Sprintf("%s://%s", scheme, normalizeEndpoint(cfg.Endpoint)))
			o.UsePathStyle = true // path-style for S3-compatible services
		}
	})

	return &Client{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// normalizeEndpoint removes protocol prefix and path from endpoint
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	return strings.TrimSuffix(endpoint, "/")
}

// Connect verifies the bucket exists and credentials are accepted.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %q: %w", c.bucket, err)
	}
	return nil
}

// List returns the files under the folder prefix.
func (c *Client) List(ctx context.Context, folder string) ([]domain.RemoteFile, error) {
	prefix := keyPrefix(folder)

	var files []domain.RemoteFile
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket prefix %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, prefix)
			// Skip the folder marker itself and anything nested deeper
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			f := domain.RemoteFile{
				Name: name,
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				f.Modified = *obj.LastModified
			}
			files = append(files, f)
		}
	}
	return files, nil
}

// Download streams one object into destDir.
func (c *Client) Download(ctx context.Context, folder, name, destDir string) (string, error) {
	key := keyPrefix(folder) + name

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object %q: %w", key, err)
	}
	defer out.Body.Close()

	dest := filepath.Join(destDir, name)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create %q: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write %q: %w", dest, err)
	}
	return dest, nil
}

func keyPrefix(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return ""
	}
	return folder + "/"
}
