// Package domain holds the records the development auth API persists. It is
// deliberately small: one account table plus the two short-lived artefacts the
// auth flows need (pending OTP challenges and one-shot action tokens).
package domain

import "time"

// Account is a marketplace account as stored by the dev auth service.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsAdmin      bool
	IsPaid       bool
	PlanActive   bool

	EmailVerified bool

	// TOTPSecret, when non-nil, makes login return a two-factor challenge
	// instead of a session.
	TOTPSecret *string

	FailedLogins int
	LockedUntil  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the account is currently locked out.
func (a Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// Challenge is a pending two-factor login. The temp token handed to the client
// is stored as a fingerprint, never in the clear.
type Challenge struct {
	ID               string
	AccountID        string
	TokenFingerprint string
	Attempts         int
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// ActionTokenKind distinguishes the one-shot token flows.
type ActionTokenKind string

const (
	ActionPasswordReset     ActionTokenKind = "password_reset"
	ActionEmailVerification ActionTokenKind = "email_verification"
)

// ActionToken is a single-use token backing the password reset and email
// verification flows. Like challenges it is stored fingerprinted.
type ActionToken struct {
	Fingerprint string
	AccountID   string
	Kind        ActionTokenKind
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
