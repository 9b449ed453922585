package lookupd

import (
	"github.com/google/uuid"
)

// NewID generates a UUIDv7 (time-ordered) identifier.
// Time-ordered IDs sort by creation time and are friendly to
// both object-store key listings and database indexes.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to UUIDv4 if NewV7 fails (extremely rare)
		id = uuid.New()
	}
	return id.String()
}

// ParseID parses a string into a UUID
func ParseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// IsValidID checks if a string is a valid UUID
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
