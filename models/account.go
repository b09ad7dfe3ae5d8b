package models

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a local user account that an edge identity can be bound to
type Account struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Active    bool      `json:"active" db:"active"`
	Profile   *Profile  `json:"profile,omitempty"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Email returns the profile email, or "" when the account has no profile
func (a *Account) Email() string {
	if a.Profile == nil {
		return ""
	}
	return a.Profile.Email
}

// Profile holds the contact attributes of an account
type Profile struct {
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	Email    string    `json:"email" db:"email"`
	FullName string    `json:"full_name" db:"full_name"`
}
