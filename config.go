package lookupd

import "time"

// Configuration constants for lookupd operations
const (
	// Pagination defaults for the HTTP surface
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100

	// MaxIndexWindow is the search index from+size pagination ceiling.
	// Requests that would page past it are refused with ErrBadRequest.
	MaxIndexWindow = 10000

	// Batch size for paginated primary store listings
	DefaultListPaginatedSize = 100

	// File backend configuration
	DefaultFilePermissions = 0644
	DefaultDirPermissions  = 0755

	// Circuit breaker settings for search index calls
	DefaultBreakerMaxFailures  = 5
	DefaultBreakerResetTimeout = 30 * time.Second
)

// PageCriteria is the validated pagination slice of a list request.
type PageCriteria struct {
	Page    int
	PerPage int
}

// NormalizePage applies defaults and bounds to raw pagination input.
// Page and perPage arrive 0 when the caller omitted them.
func NormalizePage(page, perPage int) (PageCriteria, error) {
	if page == 0 {
		page = DefaultPage
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		return PageCriteria{}, WithMessage(ErrValidation, "page must be at least 1")
	}
	if perPage < 1 || perPage > MaxPerPage {
		return PageCriteria{}, WithMessage(ErrValidation, "perPage must be between 1 and %d", MaxPerPage)
	}
	return PageCriteria{Page: page, PerPage: perPage}, nil
}

// Offset returns the zero-based index of the first row on the page.
func (p PageCriteria) Offset() int {
	return (p.Page - 1) * p.PerPage
}
