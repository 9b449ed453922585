package lookupd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PrimaryStore is the durable source of truth for lookup records. It keeps
// one JSON document per record under "<table>/<id>.json" on any Backend.
// Reads here are strongly consistent; the search index mirrors this store
// with eventual consistency.
type PrimaryStore struct {
	backend Backend
	logger  Logger
	metrics Metrics
}

// NewPrimaryStore creates a store over the given backend. Logger and metrics
// may be nil.
func NewPrimaryStore(backend Backend, logger Logger, metrics Metrics) *PrimaryStore {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	return &PrimaryStore{backend: backend, logger: logger, metrics: metrics}
}

func (s *PrimaryStore) key(table, id string) string {
	return fmt.Sprintf("%s/%s.json", table, id)
}

// GetByID fetches one record. Returns ErrNotFound if no document exists.
// Soft-deleted records are returned as stored; visibility is the read
// router's concern.
func (s *PrimaryStore) GetByID(ctx context.Context, table, id string) (Record, error) {
	start := time.Now()
	data, err := s.backend.Get(ctx, s.key(table, id))
	s.metrics.Histogram(MetricStoreGetDuration, float64(time.Since(start).Milliseconds()))
	if err != nil {
		if !IsNotFound(err) {
			s.metrics.Increment(MetricStoreGetError)
		}
		return nil, err
	}
	s.metrics.Increment(MetricStoreGetSuccess)

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, WithContext(fmt.Errorf("unmarshal record: %w", err), map[string]interface{}{
			"table": table,
			"id":    id,
		})
	}
	return rec, nil
}

// Put writes a record, creating or overwriting the document.
func (s *PrimaryStore) Put(ctx context.Context, table string, rec Record) error {
	id := rec.ID()
	if id == "" {
		return WithMessage(ErrValidation, "record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.backend.Put(ctx, s.key(table, id), data); err != nil {
		s.metrics.Increment(MetricStorePutError)
		return err
	}
	s.metrics.Increment(MetricStorePutSuccess)
	return nil
}

// Delete removes the document entirely. Soft deletes are a Put of the record
// with isDeleted set; this is the hard-destroy path.
func (s *PrimaryStore) Delete(ctx context.Context, table, id string) error {
	if err := s.backend.Delete(ctx, s.key(table, id)); err != nil {
		s.metrics.Increment(MetricStoreDeleteError)
		return err
	}
	s.metrics.Increment(MetricStoreDeleteSuccess)
	return nil
}

// Exists reports whether a document is present, without fetching it.
func (s *PrimaryStore) Exists(ctx context.Context, table, id string) (bool, error) {
	return s.backend.Exists(ctx, s.key(table, id))
}

// ScanOptions narrow a full-table scan.
type ScanOptions struct {
	// Filters are exact-match predicates on record fields, ANDed together.
	// Values are compared as strings.
	Filters map[string]string
	// ExcludeDeleted drops soft-deleted records from the result.
	ExcludeDeleted bool
	// ExcludeID drops the record with this id, for self-exclusion on
	// duplicate checks during update.
	ExcludeID string
}

// Scan reads every document in a table and returns the records matching the
// given options. This is the strongly consistent (and expensive) read path
// backing duplicate checks and index rebuilds.
func (s *PrimaryStore) Scan(ctx context.Context, table string, opts ScanOptions) ([]Record, error) {
	start := time.Now()
	keys, err := s.backend.List(ctx, table+"/")
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := s.backend.Get(ctx, key)
		if err != nil {
			if IsNotFound(err) {
				// Deleted between List and Get, skip.
				continue
			}
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("skipping unreadable document", "table", table, "key", key, "error", err)
			continue
		}
		if !matchRecord(rec, opts) {
			continue
		}
		records = append(records, rec)
	}

	s.metrics.Histogram(MetricStoreScanDuration, time.Since(start).Seconds())
	s.metrics.Histogram(MetricStoreScanResults, float64(len(records)), "table", table)
	return records, nil
}

func matchRecord(rec Record, opts ScanOptions) bool {
	if opts.ExcludeDeleted && rec.IsDeleted() {
		return false
	}
	if opts.ExcludeID != "" && rec.ID() == opts.ExcludeID {
		return false
	}
	for field, want := range opts.Filters {
		if fmt.Sprintf("%v", rec[field]) != want {
			return false
		}
	}
	return true
}

// Ping checks backend reachability.
func (s *PrimaryStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases backend resources.
func (s *PrimaryStore) Close() error {
	return s.backend.Close()
}
