// Package session holds user accounts and sign-in sessions. Identity is
// carried as an explicit session value with a defined sign-in/sign-out
// lifecycle, never as ambient global state.
package session

import "time"

// AccountType distinguishes the two user roles.
type AccountType string

const (
	AccountCustomer AccountType = "customer"
	AccountBusiness AccountType = "business"
)

// User is an authenticated account. PasswordHash is a bcrypt digest and
// never leaves the service.
type User struct {
	ID           string      `json:"id" db:"id"`
	Email        string      `json:"email" db:"email"`
	PasswordHash string      `json:"-" db:"password_hash"`
	AccountType  AccountType `json:"account_type" db:"account_type"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// Session is one live sign-in. Tokens are stored only as SHA-256 hashes.
type Session struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	TokenHash  string    `json:"-" db:"token_hash"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at" db:"last_seen_at"`
}

// Expired reports whether the session is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
