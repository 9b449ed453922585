package lookupd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// SearchQuery narrows and pages an index search. Filters are exact-match
// predicates ANDed together. From/Size are a row offset and page size over
// the sorted result set.
type SearchQuery struct {
	Filters        map[string]string
	IncludeDeleted bool
	From           int
	Size           int
	SortField      string
}

// SearchIndex mirrors the primary store for fast filtered reads. It is
// eventually consistent with the primary and never authoritative: a failed
// or lagging index is served around, not repaired inline.
type SearchIndex interface {
	// Index upserts a record's document and term sets.
	Index(ctx context.Context, index string, rec Record) error

	// Remove deletes a record's document and term sets. Removing an
	// absent id is a no-op.
	Remove(ctx context.Context, index, id string) error

	// Get fetches one document by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, index, id string) (Record, error)

	// Search returns the page of matching records plus the total match
	// count before paging.
	Search(ctx context.Context, index string, q SearchQuery) ([]Record, int64, error)

	// Count returns the total match count for the query's filters.
	Count(ctx context.Context, index string, q SearchQuery) (int64, error)

	// Ping checks index reachability.
	Ping(ctx context.Context) error
}

// RedisSearchIndex implements SearchIndex on Redis. Layout per index:
//
//	doc:{index}:{id}            -> JSON document
//	all:{index}                 -> set of every id
//	term:{index}:{field}:{val}  -> set of ids holding that field value
//
// Term sets exist for every indexed field, so AND filters resolve to a
// single SINTER. All calls run through a circuit breaker; an open breaker
// surfaces as ErrBackendUnavailable and pushes reads to the primary.
type RedisSearchIndex struct {
	client  redis.UniversalClient
	breaker *CircuitBreaker
	logger  Logger
	metrics Metrics

	// Fields is the set of record fields to build term sets for, per
	// index name. Unlisted fields are stored in the document but not
	// filterable.
	fields map[string][]string
}

// NewRedisSearchIndex builds an index over the given client. Term sets are
// maintained for each descriptor's unique-key and business fields plus the
// soft-delete flag.
func NewRedisSearchIndex(client redis.UniversalClient, logger Logger, metrics Metrics) *RedisSearchIndex {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	fields := make(map[string][]string)
	for _, desc := range Descriptors() {
		fields[desc.Index] = append(desc.BusinessFields(), FieldIsDeleted)
	}
	idx := &RedisSearchIndex{
		client:  client,
		logger:  logger,
		metrics: metrics,
		fields:  fields,
	}
	idx.breaker = NewCircuitBreaker(DefaultBreakerMaxFailures, DefaultBreakerResetTimeout).
		OnStateChange(func(from, to BreakerState) {
			logger.Warn("search index circuit breaker state change", "from", from.String(), "to", to.String())
		})
	return idx
}

func (ri *RedisSearchIndex) docKey(index, id string) string {
	return fmt.Sprintf("doc:%s:%s", index, id)
}

func (ri *RedisSearchIndex) allKey(index string) string {
	return fmt.Sprintf("all:%s", index)
}

func (ri *RedisSearchIndex) termKey(index, field, value string) string {
	return fmt.Sprintf("term:%s:%s:%s", index, field, value)
}

func (ri *RedisSearchIndex) execute(ctx context.Context, op string, fn func() error) error {
	err := ri.breaker.Execute(ctx, fn)
	if err != nil && !IsNotFound(err) {
		ri.metrics.Increment(MetricIndexErrors, "operation", op)
	}
	return err
}

// Index upserts the document and rewrites term sets. An existing document's
// old term memberships are removed first, so field value changes do not
// leave stale set entries behind.
func (ri *RedisSearchIndex) Index(ctx context.Context, index string, rec Record) error {
	id := rec.ID()
	if id == "" {
		return WithMessage(ErrValidation, "record has no id")
	}
	if _, ok := rec[FieldIsDeleted]; !ok {
		rec = rec.Clone()
		rec[FieldIsDeleted] = false
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	return ri.execute(ctx, "index", func() error {
		old, err := ri.fetchDoc(ctx, index, id)
		if err != nil && !IsNotFound(err) {
			return err
		}

		pipe := ri.client.TxPipeline()
		if old != nil {
			ri.removeTerms(pipe, ctx, index, old)
		}
		pipe.Set(ctx, ri.docKey(index, id), data, 0)
		pipe.SAdd(ctx, ri.allKey(index), id)
		for _, field := range ri.fields[index] {
			if val, ok := rec[field]; ok {
				pipe.SAdd(ctx, ri.termKey(index, field, fmt.Sprintf("%v", val)), id)
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("index %s/%s: %w", index, id, err)
		}
		ri.metrics.Increment(MetricIndexWrite)
		return nil
	})
}

// Remove deletes the document and its term memberships.
func (ri *RedisSearchIndex) Remove(ctx context.Context, index, id string) error {
	return ri.execute(ctx, "remove", func() error {
		old, err := ri.fetchDoc(ctx, index, id)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return err
		}

		pipe := ri.client.TxPipeline()
		ri.removeTerms(pipe, ctx, index, old)
		pipe.Del(ctx, ri.docKey(index, id))
		pipe.SRem(ctx, ri.allKey(index), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("remove %s/%s: %w", index, id, err)
		}
		ri.metrics.Increment(MetricIndexWrite)
		return nil
	})
}

func (ri *RedisSearchIndex) removeTerms(pipe redis.Pipeliner, ctx context.Context, index string, rec Record) {
	id := rec.ID()
	for _, field := range ri.fields[index] {
		if val, ok := rec[field]; ok {
			pipe.SRem(ctx, ri.termKey(index, field, fmt.Sprintf("%v", val)), id)
		}
	}
}

func (ri *RedisSearchIndex) fetchDoc(ctx context.Context, index, id string) (Record, error) {
	data, err := ri.client.Get(ctx, ri.docKey(index, id)).Bytes()
	if err == redis.Nil {
		return nil, WithContext(ErrNotFound, map[string]interface{}{"index": index, "id": id})
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal document %s/%s: %w", index, id, err)
	}
	return rec, nil
}

// Get fetches one document by id.
func (ri *RedisSearchIndex) Get(ctx context.Context, index, id string) (Record, error) {
	var rec Record
	err := ri.execute(ctx, "get", func() error {
		var err error
		rec, err = ri.fetchDoc(ctx, index, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// matchIDs resolves the query's filters to the set of matching ids.
func (ri *RedisSearchIndex) matchIDs(ctx context.Context, index string, q SearchQuery) ([]string, error) {
	keys := make([]string, 0, len(q.Filters)+1)
	for field, value := range q.Filters {
		keys = append(keys, ri.termKey(index, field, value))
	}
	if !q.IncludeDeleted {
		keys = append(keys, ri.termKey(index, FieldIsDeleted, "false"))
	}
	if len(keys) == 0 {
		return ri.client.SMembers(ctx, ri.allKey(index)).Result()
	}
	if len(keys) == 1 {
		return ri.client.SMembers(ctx, keys[0]).Result()
	}
	return ri.client.SInter(ctx, keys...).Result()
}

// Search resolves filters, sorts the full match set by the query's sort
// field, and returns the requested page plus the total.
func (ri *RedisSearchIndex) Search(ctx context.Context, index string, q SearchQuery) ([]Record, int64, error) {
	start := time.Now()
	var records []Record
	var total int64

	err := ri.execute(ctx, "search", func() error {
		ids, err := ri.matchIDs(ctx, index, q)
		if err != nil {
			return err
		}
		total = int64(len(ids))
		if len(ids) == 0 {
			records = []Record{}
			return nil
		}

		docKeys := make([]string, len(ids))
		for i, id := range ids {
			docKeys[i] = ri.docKey(index, id)
		}
		values, err := ri.client.MGet(ctx, docKeys...).Result()
		if err != nil {
			return err
		}

		all := make([]Record, 0, len(values))
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				// Document vanished between SMEMBERS and MGET.
				continue
			}
			var rec Record
			if err := json.Unmarshal([]byte(s), &rec); err != nil {
				ri.logger.Warn("skipping unreadable index document", "index", index, "id", ids[i], "error", err)
				continue
			}
			all = append(all, rec)
		}
		total = int64(len(all))

		if q.SortField != "" {
			sort.SliceStable(all, func(i, j int) bool {
				return fmt.Sprintf("%v", all[i][q.SortField]) < fmt.Sprintf("%v", all[j][q.SortField])
			})
		}

		from, size := q.From, q.Size
		if from >= len(all) {
			records = []Record{}
			return nil
		}
		end := len(all)
		if size > 0 && from+size < end {
			end = from + size
		}
		records = all[from:end]
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	ri.metrics.Histogram(MetricIndexSearch, time.Since(start).Seconds(), "resource", index)
	return records, total, nil
}

// Count returns the number of records matching the query's filters.
func (ri *RedisSearchIndex) Count(ctx context.Context, index string, q SearchQuery) (int64, error) {
	var total int64
	err := ri.execute(ctx, "count", func() error {
		ids, err := ri.matchIDs(ctx, index, q)
		if err != nil {
			return err
		}
		total = int64(len(ids))
		return nil
	})
	return total, err
}

// Ping checks Redis reachability through the breaker.
func (ri *RedisSearchIndex) Ping(ctx context.Context) error {
	return ri.execute(ctx, "ping", func() error {
		return ri.client.Ping(ctx).Err()
	})
}
