package domain

import "github.com/google/uuid"

// User is owned by the user directory; the core only reads the id and the
// point balance.
type User struct {
	ID     uuid.UUID
	Name   string
	Points int64
}
