package lookupd

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MinIOConfig contains MinIO-specific configuration
type MinIOConfig struct {
	Endpoint        string // e.g., "localhost:9000"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
}

// NewMinIOBackend creates a new MinIO backend.
// MinIO is S3-compatible, so this wraps S3Backend with MinIO-specific configuration.
func NewMinIOBackend(cfg MinIOConfig) (Backend, error) {
	if cfg.Endpoint == "" {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Endpoint",
			"reason": "MinIO endpoint is required",
		})
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       "us-east-1", // MinIO doesn't enforce regions, but the SDK requires one
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true, // MinIO uses path-style addressing: http://host/bucket/key
	})

	return NewS3Backend(client, cfg.Bucket), nil
}
