package lookupd

import "strings"

// Authorization scopes.
const (
	ScopeCreate = "create:lookups"
	ScopeRead   = "read:lookups"
	ScopeUpdate = "update:lookups"
	ScopeDelete = "delete:lookups"
	ScopeAll    = "all:lookups"
)

// AdminRole is the role name granting administrative access. Comparison is
// case-insensitive.
const AdminRole = "administrator"

// Caller is the authenticated principal extracted from a request token.
// Machine callers carry scopes and no roles; user callers carry roles.
type Caller struct {
	Subject string
	Roles   []string
	Scopes  []string
	Machine bool
}

// HasScope reports whether the caller holds the named scope or the all
// scope.
func (c Caller) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope || s == ScopeAll {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller may see soft-deleted records and issue
// hard deletes. A user is an admin through the administrator role; a
// machine caller through the all scope.
func (c Caller) IsAdmin() bool {
	if c.Machine {
		return c.HasScope(ScopeAll)
	}
	for _, r := range c.Roles {
		if strings.EqualFold(r, AdminRole) {
			return true
		}
	}
	return false
}
