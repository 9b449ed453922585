package lookupd

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Backend implements Backend using AWS S3 (or S3-compatible storage)
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3Backend creates a new S3 backend
func NewS3Backend(client *s3.Client, bucket string) Backend {
	return &S3Backend{
		client: client,
		bucket: bucket,
	}
}

// Get retrieves data for the given key from S3
func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchKey") {
			return nil, ErrNotFound
		}
		if strings.Contains(err.Error(), "AccessDenied") {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	defer func() { _ = result.Body.Close() }() //nolint:errcheck // Deferred close

	return io.ReadAll(result.Body)
}

// Put stores data for the given key to S3
func (b *S3Backend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

// Delete removes the object at the given key from S3
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return err
}

// Exists checks if an object exists at the given key in S3
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns all keys with the given prefix from S3
func (b *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	}

	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		for _, obj := range output.Contents {
			keys = append(keys, *obj.Key)
		}
	}

	return keys, nil
}

// ListPaginated streams keys with the given prefix in batches from S3
func (b *S3Backend) ListPaginated(ctx context.Context, prefix string, handler func(keys []string) error) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	}

	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}

		var keys []string
		for _, obj := range output.Contents {
			keys = append(keys, *obj.Key)
		}

		if err := handler(keys); err != nil {
			return err
		}
	}

	return nil
}

// Ping verifies the bucket is reachable
func (b *S3Backend) Ping(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	return err
}

// Close releases resources (no-op for S3, the HTTP client is shared)
func (b *S3Backend) Close() error {
	return nil
}
