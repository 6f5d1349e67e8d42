package models

import "github.com/google/uuid"

// User is an authenticated identity as supplied by the identity provider.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}
