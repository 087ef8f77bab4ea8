package graph

import "github.com/google/uuid"

// newID returns a time-ordered, lexicographically sortable identifier.
// UUIDv7 packs a 48-bit millisecond timestamp into the high bits, so its
// canonical hex string sorts the same way its creation order does.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock/rand source is broken;
		// fall back to a random v4 rather than panic on user-facing paths.
		return uuid.NewString()
	}
	return id.String()
}
