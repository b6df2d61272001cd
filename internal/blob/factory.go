package blob

import (
	"context"
	"fmt"
	"os"

	"mchroma/internal/config"
	"mchroma/internal/infra/blob/fs"
	memorystore "mchroma/internal/infra/blob/memory"
	infraS3 "mchroma/internal/infra/blob/s3"
)

// S3Config is the construction input of the S3 backend.
type S3Config = infraS3.Config

// Open builds the backend named by settings.Driver. An empty driver means fs.
// S3 credentials come from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and
// AWS_SESSION_TOKEN when set, otherwise from the default AWS chain.
func Open(ctx context.Context, settings config.BlobSettings) (Store, error) {
	driver := Driver(settings.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(settings.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:          settings.S3Bucket,
			Region:          settings.S3Region,
			Endpoint:        settings.S3Endpoint,
			PathStyle:       settings.S3PathStyle,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", settings.Driver)
	}
}

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) {
	s, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemory returns an empty in-process store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns a store on the configured bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	s, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
