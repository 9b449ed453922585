package lookupd

import (
	"context"
	"errors"
	"testing"
)

// downIndex fails every operation, standing in for an unreachable index.
type downIndex struct{}

var errIndexDown = errors.New("connection refused")

func (downIndex) Index(ctx context.Context, index string, rec Record) error { return errIndexDown }
func (downIndex) Remove(ctx context.Context, index, id string) error        { return errIndexDown }
func (downIndex) Get(ctx context.Context, index, id string) (Record, error) {
	return nil, errIndexDown
}
func (downIndex) Search(ctx context.Context, index string, q SearchQuery) ([]Record, int64, error) {
	return nil, 0, errIndexDown
}
func (downIndex) Count(ctx context.Context, index string, q SearchQuery) (int64, error) {
	return 0, errIndexDown
}
func (downIndex) Ping(ctx context.Context) error { return errIndexDown }

func seedCountries(t *testing.T, store *PrimaryStore, index SearchIndex, names ...string) []Record {
	t.Helper()
	ctx := context.Background()
	records := make([]Record, 0, len(names))
	for _, name := range names {
		rec := Record{FieldID: NewID(), FieldIsDeleted: false, "name": name}
		if err := store.Put(ctx, CountryDescriptor.Table, rec); err != nil {
			t.Fatalf("seed Put %s failed: %v", name, err)
		}
		if index != nil {
			if err := index.Index(ctx, CountryDescriptor.Index, rec); err != nil {
				t.Fatalf("seed Index %s failed: %v", name, err)
			}
		}
		records = append(records, rec)
	}
	return records
}

func TestReadRouterListFromIndex(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	index := newTestIndex(t)
	metrics := NewInMemoryMetrics()
	router := NewReadRouter(store, index, nil, metrics)

	seedCountries(t, store, index, "Denmark", "Finland", "Norway", "Sweden", "Iceland")

	result, err := router.List(ctx, CountryDescriptor, PageCriteria{Page: 2, PerPage: 2}, nil, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.FromDB {
		t.Error("index-served list flagged FromDB")
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
	if len(result.Records) != 2 || result.Records[0]["name"] != "Iceland" || result.Records[1]["name"] != "Norway" {
		t.Errorf("unexpected page: %+v", result.Records)
	}
	for _, rec := range result.Records {
		if _, ok := rec[FieldIsDeleted]; ok {
			t.Errorf("soft-delete flag leaked: %+v", rec)
		}
	}
	if metrics.Counters[MetricIndexFallback] != 0 {
		t.Error("fallback counted on a healthy index")
	}
}

func TestReadRouterListPageBeyondTotal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	index := newTestIndex(t)
	router := NewReadRouter(store, index, nil, nil)

	seedCountries(t, store, index, "Norway")

	result, err := router.List(ctx, CountryDescriptor, PageCriteria{Page: 9, PerPage: 20}, nil, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("expected empty page, got %+v", result.Records)
	}
	if result.Total != 1 {
		t.Errorf("Total = %d, want 1", result.Total)
	}
	if result.FromDB {
		t.Error("short-circuited empty page flagged FromDB")
	}
}

func TestReadRouterListFallsBackWhenIndexDown(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	metrics := NewInMemoryMetrics()
	router := NewReadRouter(store, downIndex{}, nil, metrics)

	seedCountries(t, store, nil, "Sweden", "Norway", "Denmark")

	result, err := router.List(ctx, CountryDescriptor, PageCriteria{Page: 1, PerPage: 20}, nil, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !result.FromDB {
		t.Error("primary-served list not flagged FromDB")
	}
	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	if result.Records[0]["name"] != "Denmark" {
		t.Errorf("fallback results unsorted: %+v", result.Records)
	}
	if metrics.Counters[MetricIndexFallback] != 1 {
		t.Errorf("fallback counter = %d, want 1", metrics.Counters[MetricIndexFallback])
	}
}

func TestReadRouterFallbackIgnoresPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	router := NewReadRouter(store, downIndex{}, nil, nil)

	seedCountries(t, store, nil, "Denmark", "Finland", "Norway", "Sweden", "Iceland")

	// The degraded path returns every matching row in one batch; the
	// requested page does not slice it.
	result, err := router.List(ctx, CountryDescriptor, PageCriteria{Page: 2, PerPage: 2}, nil, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !result.FromDB {
		t.Error("primary-served list not flagged FromDB")
	}
	if len(result.Records) != 5 {
		t.Fatalf("got %d records, want all 5", len(result.Records))
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
}

func TestReadRouterListWindowOverflow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	index := newTestIndex(t)
	router := NewReadRouter(store, index, nil, nil)

	seedCountries(t, store, index, "Norway")

	// A page past the index row window is refused outright, never served
	// by slicing a primary scan.
	pc := PageCriteria{Page: MaxIndexWindow / MaxPerPage, PerPage: MaxPerPage}
	_, err := router.List(ctx, CountryDescriptor, pc, nil, false)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}

	// The ceiling binds even when the index is down.
	downRouter := NewReadRouter(store, downIndex{}, nil, nil)
	if _, err := downRouter.List(ctx, CountryDescriptor, pc, nil, false); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest with index down, got %v", err)
	}
}

func TestReadRouterListFilterValidation(t *testing.T) {
	router := NewReadRouter(newTestStore(t), newTestIndex(t), nil, nil)

	_, err := router.List(context.Background(), CountryDescriptor, PageCriteria{Page: 1, PerPage: 20},
		map[string]string{"population": "5000000"}, false)
	if !IsValidation(err) {
		t.Errorf("expected ErrValidation for unknown filter field, got %v", err)
	}
}

func TestReadRouterGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	index := newTestIndex(t)
	metrics := NewInMemoryMetrics()
	router := NewReadRouter(store, index, nil, metrics)

	recs := seedCountries(t, store, index, "Norway")
	id := recs[0].ID()

	t.Run("from index", func(t *testing.T) {
		rec, err := router.Get(ctx, CountryDescriptor, id, false)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec["name"] != "Norway" {
			t.Errorf("unexpected record: %+v", rec)
		}
		if _, ok := rec[FieldIsDeleted]; ok {
			t.Error("soft-delete flag leaked")
		}
	})

	t.Run("index miss falls through to primary", func(t *testing.T) {
		fresh := Record{FieldID: NewID(), FieldIsDeleted: false, "name": "Finland"}
		if err := store.Put(ctx, CountryDescriptor.Table, fresh); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		rec, err := router.Get(ctx, CountryDescriptor, fresh.ID(), false)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec["name"] != "Finland" {
			t.Errorf("unexpected record: %+v", rec)
		}
		if metrics.Counters[MetricIndexFallback] == 0 {
			t.Error("index miss not counted as fallback")
		}
	})

	t.Run("absent everywhere", func(t *testing.T) {
		if _, err := router.Get(ctx, CountryDescriptor, NewID(), false); !IsNotFound(err) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestReadRouterSoftDeleteVisibility(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	index := newTestIndex(t)
	router := NewReadRouter(store, index, nil, nil)

	rec := Record{FieldID: NewID(), FieldIsDeleted: true, "name": "Atlantis"}
	if err := store.Put(ctx, CountryDescriptor.Table, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := index.Index(ctx, CountryDescriptor.Index, rec); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	if _, err := router.Get(ctx, CountryDescriptor, rec.ID(), false); !IsNotFound(err) {
		t.Errorf("soft-deleted record visible to plain read: %v", err)
	}

	got, err := router.Get(ctx, CountryDescriptor, rec.ID(), true)
	if err != nil {
		t.Fatalf("widened Get failed: %v", err)
	}
	if got["name"] != "Atlantis" {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.IsDeleted() {
		t.Error("widened view should carry the soft-delete flag")
	}

	result, err := router.List(ctx, CountryDescriptor, PageCriteria{Page: 1, PerPage: 20}, nil, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("soft-deleted record counted in plain list: %d", result.Total)
	}

	result, err = router.List(ctx, CountryDescriptor, PageCriteria{Page: 1, PerPage: 20}, nil, true)
	if err != nil {
		t.Fatalf("widened List failed: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("soft-deleted record missing from widened list: %d", result.Total)
	}
}
