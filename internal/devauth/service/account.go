package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/agroisync/gateway/internal/devauth/domain"
	"github.com/agroisync/gateway/internal/devauth/store"
	"github.com/agroisync/gateway/internal/devauth/tokens"
	"github.com/agroisync/gateway/pkg/cryptox"

	"github.com/google/uuid"
)

const (
	// resetTokenTTL bounds the password reset window.
	resetTokenTTL = 30 * time.Minute

	// verifyTokenTTL bounds the email verification window.
	verifyTokenTTL = 24 * time.Hour
)

var (
	ErrEmailTaken      = errors.New("an account with this email already exists")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidRole     = errors.New("invalid account role")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrAlreadyVerified = errors.New("email is already verified")
)

// allowedRoles are the self-service registration roles. Admin accounts are
// seeded, never registered.
var allowedRoles = map[string]bool{
	"user":      true,
	"buyer":     true,
	"seller":    true,
	"driver":    true,
	"transport": true,
}

type AccountService struct {
	Store  store.Store
	Tokens *tokens.Minter
	Logger *slog.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Register creates an account and establishes a session. The account starts
// unverified; a verification token is issued (and logged, since the dev stub
// has no mailer).
func (s *AccountService) Register(ctx context.Context, name, email, password, role string) (domain.Account, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Account{}, "", ErrInvalidName
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Account{}, "", ErrInvalidEmail
	}
	if err := ValidatePassword(password); err != nil {
		return domain.Account{}, "", err
	}
	if role == "" {
		role = "user"
	}
	if !allowedRoles[role] {
		return domain.Account{}, "", ErrInvalidRole
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Account{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	account := domain.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, "", ErrEmailTaken
		}
		return domain.Account{}, "", fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.issueActionToken(ctx, account, domain.ActionEmailVerification, verifyTokenTTL); err != nil {
		return domain.Account{}, "", err
	}

	token, err := s.Tokens.Mint(account.ID, account.Email, now)
	if err != nil {
		return domain.Account{}, "", fmt.Errorf("failed to mint session token: %w", err)
	}
	return account, token, nil
}

// ForgotPassword issues a reset token for the address. To avoid leaking which
// addresses exist, unknown emails succeed silently.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	return s.issueActionToken(ctx, account, domain.ActionPasswordReset, resetTokenTTL)
}

// ResetPassword consumes a reset token and replaces the password. A
// successful reset also clears any lockout.
func (s *AccountService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if password != confirm {
		return ErrPasswordConfirmMismatch
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	consumed, err := s.consumeActionToken(ctx, token, domain.ActionPasswordReset)
	if err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.Store.Accounts().UpdatePasswordHash(ctx, consumed.AccountID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.Store.Accounts().ResetLoginFailures(ctx, consumed.AccountID); err != nil {
		return fmt.Errorf("failed to clear lockout: %w", err)
	}
	return nil
}

// VerifyEmail consumes a verification token and marks the address verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	consumed, err := s.consumeActionToken(ctx, token, domain.ActionEmailVerification)
	if err != nil {
		return err
	}
	if err := s.Store.Accounts().MarkEmailVerified(ctx, consumed.AccountID); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	return nil
}

// ResendVerification issues a fresh verification token. Unknown addresses
// succeed silently; already-verified ones are rejected.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	account, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if account.EmailVerified {
		return ErrAlreadyVerified
	}
	return s.issueActionToken(ctx, account, domain.ActionEmailVerification, verifyTokenTTL)
}

// Profile resolves a session token to its account.
func (s *AccountService) Profile(ctx context.Context, token string) (domain.Account, error) {
	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return domain.Account{}, ErrInvalidToken
	}
	account, err := s.Store.Accounts().GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrInvalidToken
		}
		return domain.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

// UpdateProfile applies a partial profile change. Nil fields are untouched.
func (s *AccountService) UpdateProfile(ctx context.Context, token string, name, email *string) (domain.Account, error) {
	account, err := s.Profile(ctx, token)
	if err != nil {
		return domain.Account{}, err
	}

	newName, newEmail := account.Name, account.Email
	if name != nil {
		newName = strings.TrimSpace(*name)
		if newName == "" {
			return domain.Account{}, ErrInvalidName
		}
	}
	if email != nil {
		if _, perr := mail.ParseAddress(*email); perr != nil {
			return domain.Account{}, ErrInvalidEmail
		}
		newEmail = strings.ToLower(*email)
	}

	if err := s.Store.Accounts().UpdateProfile(ctx, account.ID, newName, newEmail); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, ErrEmailTaken
		}
		return domain.Account{}, fmt.Errorf("failed to update profile: %w", err)
	}

	account.Name = newName
	account.Email = newEmail
	return account, nil
}

func (s *AccountService) issueActionToken(ctx context.Context, account domain.Account, kind domain.ActionTokenKind, ttl time.Duration) error {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return fmt.Errorf("failed to generate action token: %w", err)
	}

	now := s.now()
	record := domain.ActionToken{
		Fingerprint: cryptox.FingerprintToken(raw),
		AccountID:   account.ID,
		Kind:        kind,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := s.Store.ActionTokens().CreateActionToken(ctx, record); err != nil {
		return fmt.Errorf("failed to store action token: %w", err)
	}

	// No mailer in the dev stub: surface the token in the log so flows can be
	// exercised end to end.
	s.Logger.Info("action token issued",
		slog.String("account_id", account.ID),
		slog.String("kind", string(kind)),
		slog.String("token", raw),
	)
	return nil
}

func (s *AccountService) consumeActionToken(ctx context.Context, token string, kind domain.ActionTokenKind) (domain.ActionToken, error) {
	consumed, err := s.Store.ActionTokens().ConsumeActionToken(ctx, cryptox.FingerprintToken(token), kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ActionToken{}, ErrInvalidToken
		}
		return domain.ActionToken{}, fmt.Errorf("failed to consume action token: %w", err)
	}
	if s.now().After(consumed.ExpiresAt) {
		return domain.ActionToken{}, ErrInvalidToken
	}
	return consumed, nil
}
