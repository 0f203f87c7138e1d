// Package service implements the dev auth flows: credential login with
// lockout, TOTP challenges, registration, and the one-shot token flows for
// password reset and email verification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agroisync/gateway/internal/devauth/domain"
	"github.com/agroisync/gateway/internal/devauth/store"
	"github.com/agroisync/gateway/internal/devauth/tokens"
	"github.com/agroisync/gateway/pkg/cryptox"
	"github.com/agroisync/gateway/pkg/idx"

	"github.com/pquerna/otp/totp"
)

const (
	// maxLoginFailures is the failed-password count that locks an account.
	maxLoginFailures = 5

	// lockoutDuration is how long a locked account stays locked.
	lockoutDuration = 15 * time.Minute

	// challengeTTL bounds how long a two-factor challenge stays answerable.
	challengeTTL = 10 * time.Minute

	// maxChallengeAttempts caps wrong codes before the challenge is voided.
	maxChallengeAttempts = 5
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrInvalidChallenge   = errors.New("invalid or expired verification session")
	ErrInvalidOTPCode     = errors.New("invalid verification code")
)

// LoginResult is what a successful (or two-factor pending) login produces.
type LoginResult struct {
	// Requires2FA marks the two-factor branch. TempToken and Account.ID are
	// set; Token is empty.
	Requires2FA bool
	TempToken   string

	Account domain.Account
	Token   string
}

type LoginService struct {
	Store  store.Store
	Tokens *tokens.Minter
	Logger *slog.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *LoginService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Login checks credentials. Accounts with a TOTP secret get a two-factor
// challenge instead of a session; repeated failures lock the account.
func (s *LoginService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	account, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("failed to load account: %w", err)
	}

	now := s.now()
	if account.Locked(now) {
		return LoginResult{}, ErrAccountLocked
	}

	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			if ferr := s.recordFailure(ctx, account, now); ferr != nil {
				return LoginResult{}, ferr
			}
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("failed to verify password: %w", err)
	}

	if err := s.Store.Accounts().ResetLoginFailures(ctx, account.ID); err != nil {
		return LoginResult{}, fmt.Errorf("failed to reset login failures: %w", err)
	}

	if account.TOTPSecret != nil && *account.TOTPSecret != "" {
		tempToken, err := s.openChallenge(ctx, account, now)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{
			Requires2FA: true,
			TempToken:   tempToken,
			Account:     account,
		}, nil
	}

	token, err := s.Tokens.Mint(account.ID, account.Email, now)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to mint session token: %w", err)
	}
	return LoginResult{Account: account, Token: token}, nil
}

func (s *LoginService) recordFailure(ctx context.Context, account domain.Account, now time.Time) error {
	failures := account.FailedLogins + 1
	var lockedUntil *time.Time
	if failures >= maxLoginFailures {
		until := now.Add(lockoutDuration)
		lockedUntil = &until
		s.Logger.Warn("account locked after repeated login failures",
			slog.String("account_id", account.ID),
			slog.Time("locked_until", until),
		)
	}
	if err := s.Store.Accounts().RecordLoginFailure(ctx, account.ID, failures, lockedUntil); err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

func (s *LoginService) openChallenge(ctx context.Context, account domain.Account, now time.Time) (string, error) {
	tempToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("failed to generate temp token: %w", err)
	}

	challenge := domain.Challenge{
		ID:               idx.New().String(),
		AccountID:        account.ID,
		TokenFingerprint: cryptox.FingerprintToken(tempToken),
		ExpiresAt:        now.Add(challengeTTL),
		CreatedAt:        now,
	}
	if err := s.Store.Challenges().CreateChallenge(ctx, challenge); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}

	s.Logger.Info("two-factor challenge opened",
		slog.String("account_id", account.ID),
		slog.String("challenge_id", challenge.ID),
	)
	return tempToken, nil
}

// VerifyOTP answers a pending two-factor challenge. A correct TOTP code
// consumes the challenge and establishes a session.
func (s *LoginService) VerifyOTP(ctx context.Context, accountID, tempToken, code string) (LoginResult, error) {
	challenge, account, err := s.loadChallenge(ctx, accountID, tempToken)
	if err != nil {
		return LoginResult{}, err
	}

	if account.TOTPSecret == nil || !totp.Validate(code, *account.TOTPSecret) {
		if err := s.Store.Challenges().BumpAttempts(ctx, challenge.ID); err != nil {
			return LoginResult{}, fmt.Errorf("failed to bump challenge attempts: %w", err)
		}
		if challenge.Attempts+1 >= maxChallengeAttempts {
			_ = s.Store.Challenges().DeleteChallenge(ctx, challenge.ID)
			return LoginResult{}, ErrInvalidChallenge
		}
		return LoginResult{}, ErrInvalidOTPCode
	}

	if err := s.Store.Challenges().DeleteChallenge(ctx, challenge.ID); err != nil {
		return LoginResult{}, fmt.Errorf("failed to consume challenge: %w", err)
	}

	token, err := s.Tokens.Mint(account.ID, account.Email, s.now())
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to mint session token: %w", err)
	}
	return LoginResult{Account: account, Token: token}, nil
}

// SendOTP acknowledges a resend request for a pending challenge. The dev stub
// has no delivery channel; the current code is printed to the log instead.
func (s *LoginService) SendOTP(ctx context.Context, accountID, tempToken string) error {
	_, account, err := s.loadChallenge(ctx, accountID, tempToken)
	if err != nil {
		return err
	}

	code := "unavailable"
	if account.TOTPSecret != nil {
		if generated, gerr := totp.GenerateCode(*account.TOTPSecret, s.now()); gerr == nil {
			code = generated
		}
	}
	s.Logger.Info("one-time code requested",
		slog.String("account_id", account.ID),
		slog.String("otp_code", code),
	)
	return nil
}

func (s *LoginService) loadChallenge(ctx context.Context, accountID, tempToken string) (domain.Challenge, domain.Account, error) {
	challenge, err := s.Store.Challenges().GetChallengeByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Challenge{}, domain.Account{}, ErrInvalidChallenge
		}
		return domain.Challenge{}, domain.Account{}, fmt.Errorf("failed to load challenge: %w", err)
	}

	if s.now().After(challenge.ExpiresAt) {
		_ = s.Store.Challenges().DeleteChallenge(ctx, challenge.ID)
		return domain.Challenge{}, domain.Account{}, ErrInvalidChallenge
	}
	if challenge.TokenFingerprint != cryptox.FingerprintToken(tempToken) {
		return domain.Challenge{}, domain.Account{}, ErrInvalidChallenge
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, challenge.AccountID)
	if err != nil {
		return domain.Challenge{}, domain.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return challenge, account, nil
}
