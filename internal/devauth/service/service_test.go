package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agroisync/gateway/internal/devauth/domain"
	"github.com/agroisync/gateway/internal/devauth/store"
	"github.com/agroisync/gateway/internal/devauth/store/sqlite"
	"github.com/agroisync/gateway/internal/devauth/tokens"
	"github.com/agroisync/gateway/pkg/cryptox"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    store.Store
	login    *LoginService
	accounts *AccountService
	logBuf   *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "devauth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logBuf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logBuf, nil))
	minter := tokens.NewMinter("test-secret", "test-issuer", time.Hour)

	return &testEnv{
		store:    st,
		login:    &LoginService{Store: st, Tokens: minter, Logger: logger},
		accounts: &AccountService{Store: st, Tokens: minter, Logger: logger},
		logBuf:   logBuf,
	}
}

// seedAccountWith inserts an account directly, bypassing registration policy.
func (e *testEnv) seedAccountWith(t *testing.T, email, password string, mutate func(*domain.Account)) domain.Account {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	account := domain.Account{
		ID:            uuid.NewString(),
		Name:          "Test Account",
		Email:         email,
		PasswordHash:  hash,
		Role:          "user",
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if mutate != nil {
		mutate(&account)
	}
	require.NoError(t, e.store.Accounts().CreateAccount(context.Background(), account))
	return account
}

// loggedToken scans the captured log for the most recent action token of the
// given kind. The dev stub has no mailer, so tests read tokens the same way
// a developer would: off the log.
func (e *testEnv) loggedToken(t *testing.T, kind domain.ActionTokenKind) string {
	t.Helper()

	var token string
	scanner := bufio.NewScanner(bytes.NewReader(e.logBuf.Bytes()))
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry["msg"] == "action token issued" && entry["kind"] == string(kind) {
			token, _ = entry["token"].(string)
		}
	}
	require.NotEmpty(t, token, "no %s token in log", kind)
	return token
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"meets every requirement", "Str0ng!Passw0rd", true},
		{"too short", "Sh0rt!aA", false},
		{"no upper case", "weak!passw0rdddd", false},
		{"no lower case", "WEAK!PASSW0RDDDD", false},
		{"no digit", "Weak!Passworddds", false},
		{"no special character", "Weak1Passworddds", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrWeakPassword)
			}
		})
	}
}

func TestLoginService(t *testing.T) {
	t.Run("valid credentials mint a verifiable session token", func(t *testing.T) {
		env := newTestEnv(t)
		account := env.seedAccountWith(t, "demo@agroisync.com", "demo123", nil)

		result, err := env.login.Login(context.Background(), "demo@agroisync.com", "demo123")
		require.NoError(t, err)
		require.False(t, result.Requires2FA)
		require.Equal(t, account.ID, result.Account.ID)
		require.NotEmpty(t, result.Token)

		fetched, err := env.accounts.Profile(context.Background(), result.Token)
		require.NoError(t, err)
		require.Equal(t, account.ID, fetched.ID)
	})

	t.Run("unknown email and wrong password report identically", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccountWith(t, "demo@agroisync.com", "demo123", nil)

		_, err := env.login.Login(context.Background(), "nobody@agroisync.com", "demo123")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = env.login.Login(context.Background(), "demo@agroisync.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccountWith(t, "demo@agroisync.com", "demo123", nil)

		_, err := env.login.Login(context.Background(), "Demo@AgroiSync.com", "demo123")
		require.NoError(t, err)
	})
}

func TestLoginLockout(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccountWith(t, "demo@agroisync.com", "demo123", nil)

	now := time.Now().UTC()
	env.login.Now = func() time.Time { return now }

	for i := 0; i < maxLoginFailures; i++ {
		_, err := env.login.Login(context.Background(), "demo@agroisync.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Locked now, even with the correct password.
	_, err := env.login.Login(context.Background(), "demo@agroisync.com", "demo123")
	require.ErrorIs(t, err, ErrAccountLocked)

	// The lock expires on its own.
	env.login.Now = func() time.Time { return now.Add(lockoutDuration + time.Second) }
	_, err = env.login.Login(context.Background(), "demo@agroisync.com", "demo123")
	require.NoError(t, err)

	// A successful login resets the failure count.
	env.login.Now = func() time.Time { return now.Add(lockoutDuration + 2*time.Second) }
	_, err = env.login.Login(context.Background(), "demo@agroisync.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.login.Login(context.Background(), "demo@agroisync.com", "demo123")
	require.NoError(t, err)
}

func TestTwoFactorLogin(t *testing.T) {
	env := newTestEnv(t)
	secret := DemoTOTPSecret
	account := env.seedAccountWith(t, "2fa@agroisync.com", "demo123", func(a *domain.Account) {
		a.TOTPSecret = &secret
	})

	t.Run("login answers with a challenge instead of a session", func(t *testing.T) {
		result, err := env.login.Login(context.Background(), "2fa@agroisync.com", "demo123")
		require.NoError(t, err)
		require.True(t, result.Requires2FA)
		require.NotEmpty(t, result.TempToken)
		require.Empty(t, result.Token)
	})

	t.Run("correct code consumes the challenge", func(t *testing.T) {
		result, err := env.login.Login(context.Background(), "2fa@agroisync.com", "demo123")
		require.NoError(t, err)

		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)

		session, err := env.login.VerifyOTP(context.Background(), account.ID, result.TempToken, code)
		require.NoError(t, err)
		require.NotEmpty(t, session.Token)

		// Consumed: the same challenge cannot be answered twice.
		_, err = env.login.VerifyOTP(context.Background(), account.ID, result.TempToken, code)
		require.ErrorIs(t, err, ErrInvalidChallenge)
	})

	t.Run("wrong code leaves the challenge answerable", func(t *testing.T) {
		result, err := env.login.Login(context.Background(), "2fa@agroisync.com", "demo123")
		require.NoError(t, err)

		_, err = env.login.VerifyOTP(context.Background(), account.ID, result.TempToken, "000000")
		require.ErrorIs(t, err, ErrInvalidOTPCode)

		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)
		_, err = env.login.VerifyOTP(context.Background(), account.ID, result.TempToken, code)
		require.NoError(t, err)
	})

	t.Run("forged temp token is rejected", func(t *testing.T) {
		result, err := env.login.Login(context.Background(), "2fa@agroisync.com", "demo123")
		require.NoError(t, err)
		require.True(t, result.Requires2FA)

		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)
		_, err = env.login.VerifyOTP(context.Background(), account.ID, "forged-token", code)
		require.ErrorIs(t, err, ErrInvalidChallenge)
	})

	t.Run("send otp logs the current code", func(t *testing.T) {
		result, err := env.login.Login(context.Background(), "2fa@agroisync.com", "demo123")
		require.NoError(t, err)

		require.NoError(t, env.login.SendOTP(context.Background(), account.ID, result.TempToken))
		require.True(t, strings.Contains(env.logBuf.String(), "one-time code requested"))
	})
}

func TestRegister(t *testing.T) {
	t.Run("creates an unverified account with a session", func(t *testing.T) {
		env := newTestEnv(t)

		account, token, err := env.accounts.Register(context.Background(),
			"New Farmer", "farmer@agroisync.com", "Str0ng!Passw0rd", "seller")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.Equal(t, "seller", account.Role)
		require.False(t, account.EmailVerified)

		// Registration must also produce a verification token.
		env.loggedToken(t, domain.ActionEmailVerification)
	})

	t.Run("rejects weak passwords", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.accounts.Register(context.Background(),
			"New Farmer", "farmer@agroisync.com", "demo123", "seller")
		require.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("rejects duplicate emails", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedAccountWith(t, "farmer@agroisync.com", "demo123", nil)

		_, _, err := env.accounts.Register(context.Background(),
			"New Farmer", "farmer@agroisync.com", "Str0ng!Passw0rd", "seller")
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.accounts.Register(context.Background(),
			"New Farmer", "farmer@agroisync.com", "Str0ng!Passw0rd", "superadmin")
		require.ErrorIs(t, err, ErrInvalidRole)
	})
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccountWith(t, "demo@agroisync.com", "demo123", nil)

	require.NoError(t, env.accounts.ForgotPassword(context.Background(), "demo@agroisync.com"))
	token := env.loggedToken(t, domain.ActionPasswordReset)

	t.Run("mismatched confirmation", func(t *testing.T) {
		err := env.accounts.ResetPassword(context.Background(), token, "N3w!Passwordddd", "different")
		require.ErrorIs(t, err, ErrPasswordConfirmMismatch)
	})

	t.Run("reset swaps the password and consumes the token", func(t *testing.T) {
		require.NoError(t, env.accounts.ResetPassword(context.Background(),
			token, "N3w!Passwordddd", "N3w!Passwordddd"))

		_, err := env.login.Login(context.Background(), "demo@agroisync.com", "demo123")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = env.login.Login(context.Background(), "demo@agroisync.com", "N3w!Passwordddd")
		require.NoError(t, err)

		// One-shot: a second use fails.
		err = env.accounts.ResetPassword(context.Background(),
			token, "An0ther!Password", "An0ther!Password")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown email succeeds without leaking", func(t *testing.T) {
		require.NoError(t, env.accounts.ForgotPassword(context.Background(), "nobody@agroisync.com"))
	})
}

func TestEmailVerification(t *testing.T) {
	env := newTestEnv(t)

	account, _, err := env.accounts.Register(context.Background(),
		"New Farmer", "farmer@agroisync.com", "Str0ng!Passw0rd", "buyer")
	require.NoError(t, err)
	require.False(t, account.EmailVerified)

	token := env.loggedToken(t, domain.ActionEmailVerification)
	require.NoError(t, env.accounts.VerifyEmail(context.Background(), token))

	verified, err := env.store.Accounts().GetAccountByID(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, verified.EmailVerified)

	t.Run("token is one-shot", func(t *testing.T) {
		require.ErrorIs(t, env.accounts.VerifyEmail(context.Background(), token), ErrInvalidToken)
	})

	t.Run("resend on a verified account is rejected", func(t *testing.T) {
		err := env.accounts.ResendVerification(context.Background(), "farmer@agroisync.com")
		require.ErrorIs(t, err, ErrAlreadyVerified)
	})

	t.Run("resend on an unknown address stays silent", func(t *testing.T) {
		require.NoError(t, env.accounts.ResendVerification(context.Background(), "nobody@agroisync.com"))
	})
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccountWith(t, "demo@agroisync.com", "demo123", nil)

	result, err := env.login.Login(context.Background(), "demo@agroisync.com", "demo123")
	require.NoError(t, err)

	t.Run("garbage token is unauthorized", func(t *testing.T) {
		_, err := env.accounts.Profile(context.Background(), "garbage")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("partial update touches only the given fields", func(t *testing.T) {
		name := "Renamed"
		updated, err := env.accounts.UpdateProfile(context.Background(), result.Token, &name, nil)
		require.NoError(t, err)
		require.Equal(t, "Renamed", updated.Name)
		require.Equal(t, "demo@agroisync.com", updated.Email)
	})

	t.Run("email update normalizes case", func(t *testing.T) {
		email := "Demo.New@AgroiSync.com"
		updated, err := env.accounts.UpdateProfile(context.Background(), result.Token, nil, &email)
		require.NoError(t, err)
		require.Equal(t, "demo.new@agroisync.com", updated.Email)
	})
}

func TestBootstrap(t *testing.T) {
	env := newTestEnv(t)
	logger := slog.New(slog.NewJSONHandler(env.logBuf, nil))

	require.NoError(t, Bootstrap(context.Background(), env.store, logger))

	demo, err := env.store.Accounts().GetAccountByEmail(context.Background(), "demo@agroisync.com")
	require.NoError(t, err)
	require.NoError(t, cryptox.VerifyPassword("demo123", demo.PasswordHash))
	require.False(t, demo.IsAdmin)

	admin, err := env.store.Accounts().GetAccountByEmail(context.Background(), "admin@agroisync.com")
	require.NoError(t, err)
	require.True(t, admin.IsAdmin)

	twofa, err := env.store.Accounts().GetAccountByEmail(context.Background(), "2fa@agroisync.com")
	require.NoError(t, err)
	require.NotNil(t, twofa.TOTPSecret)

	// Idempotent: a second run leaves the accounts alone.
	require.NoError(t, Bootstrap(context.Background(), env.store, logger))
}
