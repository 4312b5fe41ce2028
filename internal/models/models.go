package models

import (
	"strings"
	"time"
)

// User represents a user account in the database
type User struct {
	ID            string    `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	FirstName     string    `json:"first_name" db:"first_name"`
	LastName      string    `json:"last_name" db:"last_name"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	IsStaff       bool      `json:"is_staff" db:"is_staff"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	LastLoginIP   *string   `json:"last_login_ip,omitempty" db:"last_login_ip"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the user's display name, falling back to the email.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// OwnerID identifies the account a user record belongs to (itself).
func (u *User) OwnerID() string { return u.ID }

// TokenKind scopes a one-time token to the flow it was issued for.
type TokenKind string

const (
	TokenKindPasswordReset     TokenKind = "password_reset"
	TokenKindEmailVerification TokenKind = "email_verification"
)

// Token is a single-use, time-bounded secret bound to one user and one kind.
// A token is terminal once used, invalidated by a newer issuance of the same
// kind, or expired; no terminal state transitions back.
type Token struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Kind      TokenKind  `json:"kind" db:"kind"`
	Secret    string     `json:"-" db:"secret"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
}

// Valid reports whether the token is still consumable at the given instant.
func (t *Token) Valid(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}

// OwnerID identifies the account the token belongs to.
func (t *Token) OwnerID() string { return t.UserID }

// Session is a store-tracked refresh credential. Revocation is one-way.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Live reports whether the session can still mint access tokens.
func (s *Session) Live(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}

// OwnerID identifies the account the session belongs to.
func (s *Session) OwnerID() string { return s.UserID }
