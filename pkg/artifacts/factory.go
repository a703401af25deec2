package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// StoreType selects an artifact backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// NewStoreFromEnv builds a Store from ARTIFACT_STORAGE_TYPE and the
// backend-specific ARTIFACT_* variables. The filesystem store under
// $DATA_DIR/artifacts is the default.
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	switch StoreType(os.Getenv("ARTIFACT_STORAGE_TYPE")) {
	case StoreTypeS3:
		return newS3StoreFromEnv(ctx)
	case StoreTypeGCS:
		return newGCSStoreFromEnv(ctx)
	case StoreTypeFS, "":
		dataDir := os.Getenv("DATA_DIR")
		if dataDir == "" {
			dataDir = "data"
		}
		return NewFileStore(filepath.Join(dataDir, "artifacts"))
	default:
		return nil, fmt.Errorf("unknown artifact storage type: %s", os.Getenv("ARTIFACT_STORAGE_TYPE"))
	}
}

func newS3StoreFromEnv(ctx context.Context) (*S3Store, error) {
	bucket := os.Getenv("ARTIFACT_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("ARTIFACT_S3_BUCKET is required for s3 storage")
	}
	region := os.Getenv("ARTIFACT_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	return NewS3Store(ctx, S3StoreConfig{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("ARTIFACT_S3_ENDPOINT"),
		Prefix:   os.Getenv("ARTIFACT_S3_PREFIX"),
	})
}
