package lookupd

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// LookupService is the full operation surface for one entity type. It owns
// validation and uniqueness, delegates writes to the dual-write coordinator,
// and reads to the read router.
type LookupService struct {
	desc        EntityDescriptor
	store       *PrimaryStore
	guard       *DuplicateGuard
	coordinator *DualWriteCoordinator
	reader      *ReadRouter
	logger      Logger
}

func NewLookupService(desc EntityDescriptor, store *PrimaryStore, coordinator *DualWriteCoordinator, reader *ReadRouter, logger Logger) *LookupService {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &LookupService{
		desc:        desc,
		store:       store,
		guard:       NewDuplicateGuard(store),
		coordinator: coordinator,
		reader:      reader,
		logger:      logger,
	}
}

// Descriptor returns the entity descriptor this service serves.
func (s *LookupService) Descriptor() EntityDescriptor {
	return s.desc
}

// List returns one page of records.
func (s *LookupService) List(ctx context.Context, pc PageCriteria, filters map[string]string, includeDeleted bool) (*ListResult, error) {
	return s.reader.List(ctx, s.desc, pc, filters, includeDeleted)
}

// Get returns one record by id.
func (s *LookupService) Get(ctx context.Context, id string, includeDeleted bool) (Record, error) {
	return s.reader.Get(ctx, s.desc, id, includeDeleted)
}

// Create validates the input, applies field defaults, checks uniqueness,
// and writes the new record through the coordinator.
func (s *LookupService) Create(ctx context.Context, input Record) (Record, error) {
	fields, err := s.validate(input, true)
	if err != nil {
		return nil, err
	}
	for field, def := range s.desc.Defaults {
		if _, ok := fields[field]; !ok {
			fields[field] = def
		}
	}

	rec := Record{FieldID: NewID(), FieldIsDeleted: false}
	for k, v := range fields {
		rec[k] = v
	}

	if err := s.guard.Check(ctx, s.desc, rec, ""); err != nil {
		return nil, err
	}
	if _, err := s.coordinator.Create(ctx, s.desc, rec); err != nil {
		return nil, err
	}
	return rec.Sanitized(), nil
}

// Update applies new field values to an existing record. With partial set
// (PATCH) omitted fields keep their current values; otherwise (PUT) the
// business fields are replaced wholesale, with defaults re-applied. An
// update that changes nothing returns the current record without touching
// either store.
func (s *LookupService) Update(ctx context.Context, id string, input Record, partial bool) (Record, error) {
	prior, err := s.fetchLive(ctx, id)
	if err != nil {
		return nil, err
	}

	fields, err := s.validate(input, !partial)
	if err != nil {
		return nil, err
	}

	next := Record{FieldID: id, FieldIsDeleted: prior.IsDeleted()}
	if partial {
		for _, f := range s.desc.BusinessFields() {
			if v, ok := prior[f]; ok {
				next[f] = v
			}
		}
	}
	for k, v := range fields {
		next[k] = v
	}
	for field, def := range s.desc.Defaults {
		if _, ok := next[field]; !ok {
			next[field] = def
		}
	}

	if recordsEqual(prior, next, s.desc) {
		return prior.Sanitized(), nil
	}

	if err := s.guard.Check(ctx, s.desc, next, id); err != nil {
		return nil, err
	}
	if _, err := s.coordinator.Update(ctx, s.desc, prior, next); err != nil {
		return nil, err
	}
	return next.Sanitized(), nil
}

// Remove soft-deletes a record. With destroy set the record is permanently
// deleted from both stores instead.
func (s *LookupService) Remove(ctx context.Context, id string, destroy bool) error {
	prior, err := s.store.GetByID(ctx, s.desc.Table, id)
	if err != nil {
		return err
	}
	if destroy {
		_, err := s.coordinator.Destroy(ctx, s.desc, prior)
		return err
	}
	if prior.IsDeleted() {
		return WithContext(ErrNotFound, map[string]interface{}{
			"resource": s.desc.Resource,
			"id":       id,
		})
	}
	next := prior.Clone()
	next[FieldIsDeleted] = true
	_, err = s.coordinator.Remove(ctx, s.desc, prior, next)
	return err
}

// Distinct returns the sorted unique live values of one business field,
// optionally narrowed by exact-match filters on other fields. It walks the
// full listing page by page; a degraded read returns everything in one
// batch and stops the walk early.
func (s *LookupService) Distinct(ctx context.Context, field string, filters map[string]string) ([]string, error) {
	if !s.desc.HasField(field) {
		return nil, WithMessage(ErrValidation, "unknown field: %s", field)
	}
	seen := make(map[string]struct{})
	values := make([]string, 0)
	pc := PageCriteria{Page: 1, PerPage: MaxPerPage}
	for {
		result, err := s.reader.List(ctx, s.desc, pc, filters, false)
		if err != nil {
			return nil, err
		}
		for _, rec := range result.Records {
			v := fmt.Sprintf("%v", rec[field])
			if v == "" || rec[field] == nil {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
		if result.FromDB || int64(pc.Page*pc.PerPage) >= result.Total {
			break
		}
		// Rows past the index window are unreachable page by page.
		if (pc.Page+1)*pc.PerPage >= MaxIndexWindow {
			break
		}
		pc.Page++
	}
	sort.Strings(values)
	return values, nil
}

// fetchLive reads the record from the primary for mutation, treating
// soft-deleted records as absent.
func (s *LookupService) fetchLive(ctx context.Context, id string) (Record, error) {
	rec, err := s.store.GetByID(ctx, s.desc.Table, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted() {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"resource": s.desc.Resource,
			"id":       id,
		})
	}
	return rec, nil
}

// validate checks input against the descriptor: only declared business
// fields, string values, and with full set every required field present
// and non-blank. All failures are collected into one message, joined with
// ", ".
func (s *LookupService) validate(input Record, full bool) (map[string]string, error) {
	fields := make(map[string]string, len(input))
	var problems []string
	for _, k := range sortedKeys(input) {
		if k == FieldID || k == FieldIsDeleted {
			continue
		}
		v := input[k]
		if !s.desc.HasField(k) {
			problems = append(problems, fmt.Sprintf("unknown field: %s", k))
			continue
		}
		str, ok := v.(string)
		if !ok {
			problems = append(problems, fmt.Sprintf("field %s must be a string", k))
			continue
		}
		if strings.TrimSpace(str) == "" {
			problems = append(problems, fmt.Sprintf("field %s must not be blank", k))
			continue
		}
		fields[k] = str
	}
	if full {
		for _, req := range s.desc.Required {
			// A present-but-invalid value is already reported above.
			if _, present := input[req]; !present {
				problems = append(problems, fmt.Sprintf("field %s is required", req))
			}
		}
	}
	if len(problems) > 0 {
		return nil, WithMessage(ErrValidation, "%s", strings.Join(problems, ", "))
	}
	return fields, nil
}

func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func recordsEqual(a, b Record, desc EntityDescriptor) bool {
	if a.IsDeleted() != b.IsDeleted() {
		return false
	}
	for _, f := range desc.BusinessFields() {
		av, aok := a[f]
		bv, bok := b[f]
		if aok != bok {
			return false
		}
		if aok && fmt.Sprintf("%v", av) != fmt.Sprintf("%v", bv) {
			return false
		}
	}
	return true
}
