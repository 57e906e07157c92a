package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a random UUID for database rows.
func New() string {
	return uuid.NewString()
}

// NewTokenID returns a k-sortable unique id used as a credential jti.
func NewTokenID() string {
	return ksuid.New().String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
