package lookupd

import (
	"context"
	"fmt"
	"strings"
)

// DuplicateGuard enforces per-entity uniqueness by scanning the primary
// store. The search index is never consulted here: its eventual consistency
// would let a just-created record slip past the check.
type DuplicateGuard struct {
	store *PrimaryStore
}

func NewDuplicateGuard(store *PrimaryStore) *DuplicateGuard {
	return &DuplicateGuard{store: store}
}

// Check returns ErrConflict if a live record other than excludeID already
// holds the candidate's uniqueness key. Soft-deleted records do not count;
// their key values are free for reuse.
func (g *DuplicateGuard) Check(ctx context.Context, desc EntityDescriptor, candidate Record, excludeID string) error {
	filters := make(map[string]string, len(desc.UniqueKey))
	for _, field := range desc.UniqueKey {
		filters[field] = fmt.Sprintf("%v", candidate[field])
	}

	matches, err := g.store.Scan(ctx, desc.Table, ScanOptions{
		Filters:        filters,
		ExcludeDeleted: true,
		ExcludeID:      excludeID,
	})
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}
	return WithMessage(ErrConflict, "%s", conflictMessage(desc, candidate))
}

func conflictMessage(desc EntityDescriptor, candidate Record) string {
	if len(desc.UniqueKey) == 1 {
		field := desc.UniqueKey[0]
		return fmt.Sprintf("%s with %s: %v already exists", desc.Resource, field, candidate[field])
	}
	pairs := make([]string, 0, len(desc.UniqueKey))
	for _, field := range desc.UniqueKey {
		pairs = append(pairs, fmt.Sprintf("%s: %v", field, candidate[field]))
	}
	return fmt.Sprintf("%s with [ %s ] already exists", desc.Resource, strings.Join(pairs, ", "))
}
