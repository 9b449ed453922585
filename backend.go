package lookupd

import (
	"context"
)

// Backend defines the durable key-value storage underneath the primary store.
// Implementations exist for local filesystem, S3 (and S3-compatible MinIO),
// Google Cloud Storage, and PostgreSQL.
type Backend interface {
	// Object operations
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// List operations
	List(ctx context.Context, prefix string) ([]string, error)
	ListPaginated(ctx context.Context, prefix string, handler func(keys []string) error) error

	// Health check
	Ping(ctx context.Context) error

	// Resource cleanup
	Close() error
}

// BackendConfig holds configuration for any backend
type BackendConfig struct {
	Type     string // "filesystem", "s3", "minio", "gcs", "postgres"
	Bucket   string // S3/GCS bucket, base directory, or pg table name
	Region   string // AWS region (S3 only)
	Endpoint string // Custom endpoint (MinIO / S3-compatible services)
	DSN      string // Connection string (postgres only)
}

// Validate checks if the BackendConfig is valid
func (c BackendConfig) Validate() error {
	if c.Type == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Type",
			"reason": "backend type is required",
		})
	}

	switch c.Type {
	case "s3", "minio":
		if c.Bucket == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Bucket",
				"reason": "bucket is required",
			})
		}
		if c.Region == "" && c.Endpoint == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Region/Endpoint",
				"reason": "S3 backend requires either Region or Endpoint",
			})
		}
	case "gcs":
		if c.Bucket == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Bucket",
				"reason": "bucket is required",
			})
		}
	case "filesystem":
		if c.Bucket == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Bucket",
				"reason": "base path is required",
			})
		}
	case "postgres":
		if c.DSN == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "DSN",
				"reason": "postgres backend requires a connection string",
			})
		}
	default:
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Type",
			"value":  c.Type,
			"reason": "unknown backend type",
		})
	}

	return nil
}
