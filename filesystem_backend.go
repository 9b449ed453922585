package lookupd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FilesystemBackend implements Backend using the local filesystem
type FilesystemBackend struct {
	basePath string
	locks    *StripedLocks // serializes writes per key
}

// NewFilesystemBackend creates a new filesystem backend
func NewFilesystemBackend(basePath string) *FilesystemBackend {
	return &FilesystemBackend{
		basePath: basePath,
		locks:    NewStripedLocks(defaultStripeCount),
	}
}

func (b *FilesystemBackend) getPath(key string) string {
	return filepath.Join(b.basePath, key)
}

func (b *FilesystemBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.getPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		if os.IsPermission(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return data, nil
}

func (b *FilesystemBackend) Put(ctx context.Context, key string, data []byte) error {
	path := b.getPath(key)
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return err
	}

	unlock := b.locks.Lock(key)
	defer unlock()

	return os.WriteFile(path, data, DefaultFilePermissions)
}

func (b *FilesystemBackend) Delete(ctx context.Context, key string) error {
	unlock := b.locks.Lock(key)
	defer unlock()

	err := os.Remove(b.getPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		if os.IsPermission(err) {
			return ErrUnauthorized
		}
		return err
	}
	return nil
}

func (b *FilesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(b.getPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *FilesystemBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	searchPath := b.getPath(prefix)

	if _, err := os.Stat(searchPath); os.IsNotExist(err) {
		// Empty list if prefix directory doesn't exist
		return keys, nil
	}

	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			relPath, err := filepath.Rel(b.basePath, path)
			if err != nil {
				return err
			}
			// Forward slashes, for consistency with S3
			keys = append(keys, filepath.ToSlash(relPath))
		}
		return nil
	})

	return keys, err
}

func (b *FilesystemBackend) ListPaginated(ctx context.Context, prefix string, handler func(keys []string) error) error {
	searchPath := b.getPath(prefix)

	if _, err := os.Stat(searchPath); os.IsNotExist(err) {
		return nil
	}

	batch := make([]string, 0, DefaultListPaginatedSize)

	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			relPath, err := filepath.Rel(b.basePath, path)
			if err != nil {
				return err
			}
			batch = append(batch, filepath.ToSlash(relPath))

			if len(batch) >= DefaultListPaginatedSize {
				if err := handler(batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		return nil
	})

	if len(batch) > 0 && err == nil {
		err = handler(batch)
	}

	return err
}

func (b *FilesystemBackend) Ping(ctx context.Context) error {
	info, err := os.Stat(b.basePath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("base path is not a directory: %s", b.basePath)
	}

	// Verify write access
	testFile := filepath.Join(b.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), DefaultFilePermissions); err != nil {
		return fmt.Errorf("cannot write to base path: %w", err)
	}
	os.Remove(testFile)

	return nil
}

func (b *FilesystemBackend) Close() error {
	return nil
}
