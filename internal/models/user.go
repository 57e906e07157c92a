package models

import "time"

type UserRole string

const (
	UserRoleClient   UserRole = "client"
	UserRoleProvider UserRole = "provider"
)

// Valid reports whether the role is one of the known variants.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleClient, UserRoleProvider:
		return true
	}
	return false
}

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	Name         string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ResetTicket is a single-use password reset grant. Only the sha256 of the
// token is stored.
type ResetTicket struct {
	ID        string
	UserID    string
	TokenHash []byte
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Identity is the claim snapshot carried by a credential.
type Identity struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
}
