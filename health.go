package lookupd

import "context"

// HealthReport is the body returned by a passing health check.
type HealthReport struct {
	ChecksRun int `json:"checksRun"`
}

// HealthChecker verifies the service's dependencies are reachable.
type HealthChecker struct {
	store  *PrimaryStore
	index  SearchIndex
	logger Logger
}

func NewHealthChecker(store *PrimaryStore, index SearchIndex, logger Logger) *HealthChecker {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &HealthChecker{store: store, index: index, logger: logger}
}

// Check pings the search index and the primary store. Any failure surfaces
// as ErrUnavailable; the report counts the check as a single run regardless
// of how many dependencies it touched.
func (h *HealthChecker) Check(ctx context.Context) (*HealthReport, error) {
	if err := h.index.Ping(ctx); err != nil {
		h.logger.Error("health check failed on search index", "error", err)
		return nil, WithMessage(ErrUnavailable, "search index unavailable")
	}
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("health check failed on primary store", "error", err)
		return nil, WithMessage(ErrUnavailable, "primary store unavailable")
	}
	return &HealthReport{ChecksRun: 1}, nil
}
