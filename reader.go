package lookupd

import (
	"context"
	"fmt"
	"sort"
)

// ListResult is a page of records plus the paging facts needed for response
// headers. FromDB marks results served from the primary store instead of
// the index; such results carry no reliable total and callers skip
// pagination headers for them.
type ListResult struct {
	Records []Record
	Total   int64
	Page    int
	PerPage int
	FromDB  bool
}

// ReadRouter serves reads from the search index and falls back to the
// primary store when the index cannot answer. The soft-delete flag is
// stripped from returned records except in the widened admin view.
type ReadRouter struct {
	store   *PrimaryStore
	index   SearchIndex
	logger  Logger
	metrics Metrics
}

func NewReadRouter(store *PrimaryStore, index SearchIndex, logger Logger, metrics Metrics) *ReadRouter {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	return &ReadRouter{store: store, index: index, logger: logger, metrics: metrics}
}

// List returns one page of records. Filters are exact-match predicates on
// declared business fields. includeDeleted widens visibility to
// soft-deleted records.
//
// The index serves pages only within its row window; requests reaching past
// MaxIndexWindow rows are refused with ErrBadRequest. A page that starts
// beyond the total match count short-circuits to an empty page without
// fetching documents.
func (r *ReadRouter) List(ctx context.Context, desc EntityDescriptor, pc PageCriteria, filters map[string]string, includeDeleted bool) (*ListResult, error) {
	for field := range filters {
		if !desc.HasField(field) {
			return nil, WithMessage(ErrValidation, "unknown filter field: %s", field)
		}
	}

	q := SearchQuery{
		Filters:        filters,
		IncludeDeleted: includeDeleted,
		From:           pc.Offset(),
		Size:           pc.PerPage,
		SortField:      desc.SortField,
	}

	// The ceiling binds only the paginated index path. The primary
	// fallback below is unpaginated, so it is exempt.
	if q.From+q.Size >= MaxIndexWindow {
		return nil, WithMessage(ErrBadRequest, "paging past row %d is not supported", MaxIndexWindow)
	}

	total, err := r.index.Count(ctx, desc.Index, q)
	if err != nil {
		r.logger.Warn("index count failed, falling back to primary",
			"index", desc.Index, "error", err)
		return r.listFromStore(ctx, desc, pc, filters, includeDeleted)
	}
	if int64(q.From) >= total {
		return &ListResult{Records: []Record{}, Total: total, Page: pc.Page, PerPage: pc.PerPage}, nil
	}

	records, total, err := r.index.Search(ctx, desc.Index, q)
	if err != nil {
		r.logger.Warn("index search failed, falling back to primary",
			"index", desc.Index, "error", err)
		return r.listFromStore(ctx, desc, pc, filters, includeDeleted)
	}

	return &ListResult{
		Records: visible(records, includeDeleted),
		Total:   total,
		Page:    pc.Page,
		PerPage: pc.PerPage,
	}, nil
}

// listFromStore serves a degraded list straight from the primary. The scan
// is unpaginated: every matching row comes back in one batch regardless of
// the requested page, and FromDB tells the HTTP layer to drop the
// pagination headers rather than fake them.
func (r *ReadRouter) listFromStore(ctx context.Context, desc EntityDescriptor, pc PageCriteria, filters map[string]string, includeDeleted bool) (*ListResult, error) {
	r.metrics.Increment(MetricIndexFallback, "resource", desc.Resource)

	records, err := r.store.Scan(ctx, desc.Table, ScanOptions{
		Filters:        filters,
		ExcludeDeleted: !includeDeleted,
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return fmt.Sprintf("%v", records[i][desc.SortField]) < fmt.Sprintf("%v", records[j][desc.SortField])
	})

	return &ListResult{
		Records: visible(records, includeDeleted),
		Total:   int64(len(records)),
		Page:    pc.Page,
		PerPage: pc.PerPage,
		FromDB:  true,
	}, nil
}

// Get returns one record by id. An index miss or index failure falls
// through to the primary, so a record the index has not caught up on is
// still readable. Soft-deleted records are ErrNotFound unless
// includeDeleted is set.
func (r *ReadRouter) Get(ctx context.Context, desc EntityDescriptor, id string, includeDeleted bool) (Record, error) {
	rec, err := r.index.Get(ctx, desc.Index, id)
	if err != nil {
		if !IsNotFound(err) {
			r.logger.Warn("index get failed, falling back to primary",
				"index", desc.Index, "id", id, "error", err)
		}
		r.metrics.Increment(MetricIndexFallback, "resource", desc.Resource)
		rec, err = r.store.GetByID(ctx, desc.Table, id)
		if err != nil {
			return nil, err
		}
	}

	if rec.IsDeleted() && !includeDeleted {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"resource": desc.Resource,
			"id":       id,
		})
	}
	if includeDeleted {
		return rec.Clone(), nil
	}
	return rec.Sanitized(), nil
}

// visible prepares records for the caller. The soft-delete flag is stripped
// from the normal view but stays in the widened admin view, where it is the
// point of the request.
func visible(records []Record, includeDeleted bool) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		if includeDeleted {
			out[i] = rec.Clone()
		} else {
			out[i] = rec.Sanitized()
		}
	}
	return out
}
