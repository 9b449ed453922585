package lookupd

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBackend implements Backend using Google Cloud Storage
type GCSBackend struct {
	client *storage.Client
	bucket string
}

// GCSConfig contains GCS-specific configuration
type GCSConfig struct {
	Bucket          string
	CredentialsFile string // Path to service account JSON (optional, uses ADC if empty)
}

// NewGCSBackend creates a new GCS backend
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (Backend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	// No credentials file means Application Default Credentials

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSBackend{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (b *GCSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	obj := b.client.Bucket(b.bucket).Object(key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

func (b *GCSBackend) Put(ctx context.Context, key string, data []byte) error {
	obj := b.client.Bucket(b.bucket).Object(key)
	writer := obj.NewWriter(ctx)

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return err
	}

	return writer.Close()
}

func (b *GCSBackend) Delete(ctx context.Context, key string) error {
	obj := b.client.Bucket(b.bucket).Object(key)
	err := obj.Delete(ctx)
	if err == storage.ErrObjectNotExist {
		return ErrNotFound
	}
	return err
}

func (b *GCSBackend) Exists(ctx context.Context, key string) (bool, error) {
	obj := b.client.Bucket(b.bucket).Object(key)
	_, err := obj.Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *GCSBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	query := &storage.Query{Prefix: prefix}
	it := b.client.Bucket(b.bucket).Objects(ctx, query)

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}

	return keys, nil
}

func (b *GCSBackend) ListPaginated(ctx context.Context, prefix string, handler func(keys []string) error) error {
	query := &storage.Query{Prefix: prefix}
	it := b.client.Bucket(b.bucket).Objects(ctx, query)

	var batch []string

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			if len(batch) > 0 {
				if err := handler(batch); err != nil {
					return err
				}
			}
			break
		}
		if err != nil {
			return err
		}

		batch = append(batch, attrs.Name)
		if len(batch) >= DefaultListPaginatedSize {
			if err := handler(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	return nil
}

func (b *GCSBackend) Ping(ctx context.Context) error {
	_, err := b.client.Bucket(b.bucket).Attrs(ctx)
	return err
}

func (b *GCSBackend) Close() error {
	return b.client.Close()
}
