// Package models - user.go defines the User model for APIVault accounts.
package models

import "time"

// User represents a user in the system
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    *string    `json:"first_name,omitempty"`
	LastName     *string    `json:"last_name,omitempty"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserUpdate is an explicit partial-update value object. Nil fields are left
// untouched; an all-nil update is a no-op and rejected before reaching storage.
type UserUpdate struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	AvatarURL *string
}

// IsEmpty reports whether no field is set
func (u UserUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.FirstName == nil &&
		u.LastName == nil && u.AvatarURL == nil
}
