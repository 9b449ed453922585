package lookupd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend implements Backend on a single key-value table in
// PostgreSQL. Keys keep the same object-style layout the other backends
// use (e.g. "countries/<id>.json"), so the rest of the system cannot
// tell a pg row from an S3 object.
type PostgresBackend struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresBackend connects to PostgreSQL and ensures the kv table exists.
// The table name defaults to "lookup_objects" when table is empty.
func NewPostgresBackend(ctx context.Context, dsn, table string) (*PostgresBackend, error) {
	if table == "" {
		table = "lookup_objects"
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pg pool: %w", err)
	}

	b := &PostgresBackend{pool: pool, table: table}
	if err := b.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) ensureSchema(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			data       BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, b.table))
	return err
}

func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE key = $1`, b.table), key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *PostgresBackend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (key, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		b.table), key, data)
	return err
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	tag, err := b.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, b.table), key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *PostgresBackend) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := b.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1)`, b.table), key).Scan(&exists)
	return exists, err
}

func (b *PostgresBackend) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.pool.Query(ctx, fmt.Sprintf(
		`SELECT key FROM %s WHERE key LIKE $1 || '%%' ORDER BY key`, b.table), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (b *PostgresBackend) ListPaginated(ctx context.Context, prefix string, handler func(keys []string) error) error {
	keys, err := b.List(ctx, prefix)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += DefaultListPaginatedSize {
		end := start + DefaultListPaginatedSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := handler(keys[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
