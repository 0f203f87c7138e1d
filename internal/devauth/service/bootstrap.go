package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agroisync/gateway/internal/devauth/domain"
	"github.com/agroisync/gateway/internal/devauth/store"
	"github.com/agroisync/gateway/pkg/cryptox"

	"github.com/google/uuid"
)

// DemoTOTPSecret is the fixed base32 secret of the seeded two-factor demo
// account, so a TOTP app (or a test) can produce valid codes.
const DemoTOTPSecret = "JBSWY3DPEHPK3PXP"

// seedAccount describes one bootstrap account.
type seedAccount struct {
	Name       string
	Email      string
	Password   string
	Role       string
	IsAdmin    bool
	IsPaid     bool
	PlanActive bool
	TOTP       bool
	Verified   bool
}

// demoSeed is the fixture set every fresh dev database gets. The demo
// password intentionally predates the registration policy; seeding writes
// hashes directly.
var demoSeed = []seedAccount{
	{
		Name:       "Demo User",
		Email:      "demo@agroisync.com",
		Password:   "demo123",
		Role:       "user",
		IsPaid:     true,
		PlanActive: true,
		Verified:   true,
	},
	{
		Name:     "Admin",
		Email:    "admin@agroisync.com",
		Password: "admin-demo-123",
		Role:     "user",
		IsAdmin:  true,
		Verified: true,
	},
	{
		Name:     "Two Factor Demo",
		Email:    "2fa@agroisync.com",
		Password: "demo123",
		Role:     "seller",
		TOTP:     true,
		Verified: true,
	},
}

// Bootstrap seeds the demo accounts into an empty (or partially seeded)
// database. Existing accounts are left alone, so it is safe to run on every
// start.
func Bootstrap(ctx context.Context, st store.Store, logger *slog.Logger) error {
	for _, seed := range demoSeed {
		_, err := st.Accounts().GetAccountByEmail(ctx, seed.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to check seed account %s: %w", seed.Email, err)
		}

		hash, err := cryptox.HashPassword(seed.Password)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}

		now := time.Now().UTC()
		account := domain.Account{
			ID:            uuid.NewString(),
			Name:          seed.Name,
			Email:         seed.Email,
			PasswordHash:  hash,
			Role:          seed.Role,
			IsAdmin:       seed.IsAdmin,
			IsPaid:        seed.IsPaid,
			PlanActive:    seed.PlanActive,
			EmailVerified: seed.Verified,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if seed.TOTP {
			secret := DemoTOTPSecret
			account.TOTPSecret = &secret
		}

		if err := st.Accounts().CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to seed account %s: %w", seed.Email, err)
		}
		logger.Info("seeded demo account",
			slog.String("email", seed.Email),
			slog.Bool("admin", seed.IsAdmin),
			slog.Bool("totp", seed.TOTP),
		)
	}
	return nil
}
