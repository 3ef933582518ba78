package domain

import (
	"errors"
	"strings"
	"time"
)

// User is the identity record: a stable subject id plus the local credential hash.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string // bcrypt; never leaves the service layer
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized projection of User returned to clients and attached
// to request contexts. It carries no credential material.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Safe returns the sanitized projection of u.
func (u *User) Safe() *PublicUser {
	if u == nil {
		return nil
	}
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return &PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	n := len([]rune(u.Username))
	if n < 2 || n > 32 {
		return errors.New("username must be between 2 and 32 characters")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
