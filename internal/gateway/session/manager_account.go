package session

import (
	"context"

	"github.com/agroisync/gateway/internal/gateway/domain"
	"github.com/agroisync/gateway/pkg/authapi"
)

// Register creates an account. On success the session is committed
// immediately; no email-verification gate is enforced at this layer, the
// RequiresEmailVerification flag is surfaced for the caller to branch on.
func (m *Manager) Register(ctx context.Context, req authapi.RegisterRequest) domain.Result {
	m.begin()

	resp, err := m.api.Register(ctx, req)
	if err != nil {
		return m.finish(domain.Fail(authapi.Message(err, msgGenericFailed)))
	}

	if resp.User == nil || resp.Token == "" {
		return m.finish(domain.Fail(msgGenericFailed))
	}

	m.commitSession(resp.User, resp.Token)
	return m.finish(domain.Result{
		Success:                   true,
		RequiresEmailVerification: resp.RequiresEmailVerification,
	})
}

// ForgotPassword requests a password reset email. Stateless: only
// loading/error are touched.
func (m *Manager) ForgotPassword(ctx context.Context, email string) domain.Result {
	return m.statelessOp(func() error {
		return m.api.ForgotPassword(ctx, email)
	})
}

// ResetPassword consumes a reset token and sets a new password.
func (m *Manager) ResetPassword(ctx context.Context, token, password, confirmPassword string) domain.Result {
	return m.statelessOp(func() error {
		return m.api.ResetPassword(ctx, token, password, confirmPassword)
	})
}

// VerifyEmail consumes an email verification token.
func (m *Manager) VerifyEmail(ctx context.Context, token string) domain.Result {
	return m.statelessOp(func() error {
		return m.api.VerifyEmail(ctx, token)
	})
}

// ResendVerification re-sends the verification email.
func (m *Manager) ResendVerification(ctx context.Context, email string) domain.Result {
	return m.statelessOp(func() error {
		return m.api.ResendVerification(ctx, email)
	})
}

// UpdateProfile applies a partial profile change. On success the stored user
// record is replaced with the server's updated one.
func (m *Manager) UpdateProfile(ctx context.Context, update authapi.ProfileUpdate) domain.Result {
	m.begin()

	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if token == "" {
		return m.finish(domain.Fail("You must be signed in to update your profile."))
	}

	user, err := m.api.UpdateProfile(ctx, token, update)
	if err != nil {
		return m.finish(domain.Fail(authapi.Message(err, msgGenericFailed)))
	}

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()

	return m.finish(domain.OK())
}

// statelessOp runs a call that never changes session state; failures only
// land in the error slot.
func (m *Manager) statelessOp(call func() error) domain.Result {
	m.begin()

	if err := call(); err != nil {
		return m.finish(domain.Fail(authapi.Message(err, msgGenericFailed)))
	}

	return m.finish(domain.OK())
}
