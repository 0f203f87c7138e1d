package store

import (
	"context"
	"errors"
	"time"

	"github.com/agroisync/gateway/internal/devauth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for the dev auth service. The
// sqlite driver implements it. It exposes sub-repositories to keep concerns
// tidy and testable.
type Store interface {
	Accounts() Accounts
	Challenges() Challenges
	ActionTokens() ActionTokens

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Accounts interface {
	// CreateAccount inserts a new account. Returns ErrAlreadyExists when the
	// email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// GetAccountByID returns an account by id.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail returns an account by email (case-insensitive).
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// UpdateProfile replaces the mutable profile fields.
	UpdateProfile(ctx context.Context, id, name, email string) error

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// MarkEmailVerified flips the verification flag.
	MarkEmailVerified(ctx context.Context, id string) error

	// RecordLoginFailure bumps the failure counter and optionally sets a
	// lockout deadline.
	RecordLoginFailure(ctx context.Context, id string, failures int, lockedUntil *time.Time) error

	// ResetLoginFailures clears the failure counter and any lockout.
	ResetLoginFailures(ctx context.Context, id string) error
}

type Challenges interface {
	// CreateChallenge stores a pending two-factor login.
	CreateChallenge(ctx context.Context, c domain.Challenge) error

	// GetChallengeByAccount returns the newest pending challenge for an
	// account.
	GetChallengeByAccount(ctx context.Context, accountID string) (domain.Challenge, error)

	// BumpAttempts increments the verification attempt counter.
	BumpAttempts(ctx context.Context, id string) error

	// DeleteChallenge removes a challenge (consumed or abandoned).
	DeleteChallenge(ctx context.Context, id string) error

	// DeleteExpiredChallenges removes challenges past their deadline.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type ActionTokens interface {
	// CreateActionToken stores a one-shot token by fingerprint.
	CreateActionToken(ctx context.Context, t domain.ActionToken) error

	// ConsumeActionToken atomically fetches and deletes a token of the given
	// kind. Returns ErrNotFound when absent or already used.
	ConsumeActionToken(ctx context.Context, fingerprint string, kind domain.ActionTokenKind) (domain.ActionToken, error)

	// DeleteExpiredActionTokens removes tokens past their deadline.
	DeleteExpiredActionTokens(ctx context.Context, now time.Time) (int64, error)
}
