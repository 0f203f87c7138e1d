// Package session implements the gateway's session store: one Manager per
// browser session, holding the authenticated user, the auth token and any
// pending two-factor challenge, with all credential operations mediated
// through the marketplace auth API.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agroisync/gateway/internal/gateway/domain"
	"github.com/agroisync/gateway/pkg/authapi"
)

// Fallback messages for transport failures. Business rejections keep the
// server's wording instead.
const (
	msgLoginFailed   = "Unable to sign in. Please try again."
	msgGenericFailed = "Something went wrong. Please try again."
)

// Pending2FA is the transient challenge state between a login that answered
// requires2FA and the matching verify call.
type Pending2FA struct {
	TempToken string
	UserID    string
}

// Manager is the single source of truth for one browser session's
// authentication state.
//
// Invariants, maintained by every operation:
//   - user and token are both set or both empty, never one without the other
//   - a pending two-factor challenge only exists while user/token are empty
//   - mutating operations are serialized through opMu, so exactly one
//     operation's result commits at a time
type Manager struct {
	api     *authapi.Client
	storage TokenStorage
	logger  *slog.Logger

	// opMu serializes mutating operations end to end, including their
	// network call. Callers are expected to disable double submission in
	// the UI; this is the backstop.
	opMu sync.Mutex

	// mu guards the observable state below.
	mu         sync.RWMutex
	user       *authapi.User
	token      string
	pending    *Pending2FA
	loading    bool
	lastErr    string
	lastActive time.Time
}

// NewManager creates a session manager with empty state. Call Restore to
// attempt silent re-authentication from a persisted token.
func NewManager(api *authapi.Client, storage TokenStorage, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:        api,
		storage:    storage,
		logger:     logger,
		lastActive: time.Now(),
	}
}

// Restore attempts silent re-authentication from the persisted token. A
// token whose JWT expiry is already past is discarded without a network
// call; any other failure clears the slot silently. Never reports an error
// to the user: this is a background check, not a user action.
func (m *Manager) Restore(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	token, err := m.storage.Load()
	if err != nil {
		m.logger.Warn("session restore: storage read failed", "error", err)
		return
	}
	if token == "" {
		return
	}

	if expired, ok := tokenExpired(token); ok && expired {
		m.logger.Debug("session restore: persisted token already expired")
		m.clearSession()
		return
	}

	m.setLoading(true)
	defer m.setLoading(false)

	user, err := m.api.Profile(ctx, token)
	if err != nil {
		// Stale or invalid session: treated identically to logout, and
		// silently (no error banner).
		m.logger.Info("session restore: profile fetch failed, clearing session", "error", err)
		m.clearSession()
		return
	}

	m.commitSession(user, token)
}

// Login submits credentials. On a two-factor challenge the pending state is
// recorded and Requires2FA is set on the result; otherwise the session is
// committed.
func (m *Manager) Login(ctx context.Context, email, password string) domain.Result {
	m.begin()

	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return m.finish(domain.Fail(authapi.Message(err, msgLoginFailed)))
	}

	if resp.Requires2FA {
		m.mu.Lock()
		m.user = nil
		m.token = ""
		m.pending = &Pending2FA{TempToken: resp.TempToken, UserID: resp.UserID}
		m.mu.Unlock()

		return m.finish(domain.Result{Success: true, Requires2FA: true})
	}

	if resp.User == nil || resp.Token == "" {
		return m.finish(domain.Fail(msgLoginFailed))
	}

	m.commitSession(resp.User, resp.Token)
	return m.finish(domain.OK())
}

// Verify2FA completes a pending two-factor challenge. On failure the pending
// state is left intact so the user can retry with another code.
func (m *Manager) Verify2FA(ctx context.Context, code string) domain.Result {
	m.begin()

	m.mu.RLock()
	pending := m.pending
	m.mu.RUnlock()

	if pending == nil || pending.UserID == "" {
		return m.finish(domain.Fail("No verification in progress. Please sign in again."))
	}

	resp, err := m.api.VerifyOTP(ctx, pending.UserID, pending.TempToken, code)
	if err != nil {
		// Keep pending so the challenge can be retried.
		return m.finish(domain.Fail(authapi.Message(err, msgGenericFailed)))
	}

	if resp.User == nil || resp.Token == "" {
		return m.finish(domain.Fail(msgGenericFailed))
	}

	m.commitSession(resp.User, resp.Token)
	return m.finish(domain.OK())
}

// SendOTP re-triggers delivery of a one-time code for the pending challenge.
// No session state changes beyond loading/error.
func (m *Manager) SendOTP(ctx context.Context) domain.Result {
	m.begin()

	m.mu.RLock()
	pending := m.pending
	m.mu.RUnlock()

	if pending == nil || pending.UserID == "" {
		return m.finish(domain.Fail("No verification in progress. Please sign in again."))
	}

	if err := m.api.SendOTP(ctx, pending.UserID, pending.TempToken); err != nil {
		return m.finish(domain.Fail(authapi.Message(err, msgGenericFailed)))
	}

	return m.finish(domain.OK())
}

// Logout clears the session, removes the persisted token and returns the
// route the caller must navigate to. Synchronous, no network call, and safe
// to call when already logged out.
func (m *Manager) Logout() string {
	m.mu.Lock()
	m.user = nil
	m.token = ""
	m.pending = nil
	m.lastErr = ""
	m.mu.Unlock()

	if err := m.storage.Clear(); err != nil {
		m.logger.Warn("logout: clearing persisted token failed", "error", err)
	}

	return domain.RouteRoot
}

// begin marks the start of a mutating operation: takes the operation lock,
// raises loading and clears the last error.
func (m *Manager) begin() {
	m.opMu.Lock()

	m.mu.Lock()
	m.loading = true
	m.lastErr = ""
	m.lastActive = time.Now()
	m.mu.Unlock()
}

// finish commits the operation result, drops loading and releases the
// operation lock.
func (m *Manager) finish(res domain.Result) domain.Result {
	m.mu.Lock()
	m.loading = false
	if !res.Success {
		m.lastErr = res.Message
	}
	m.mu.Unlock()

	m.opMu.Unlock()
	return res
}

// commitSession installs an authenticated user/token pair, consumes any
// pending challenge and persists the token.
func (m *Manager) commitSession(user *authapi.User, token string) {
	m.mu.Lock()
	m.user = user
	m.token = token
	m.pending = nil
	m.lastActive = time.Now()
	m.mu.Unlock()

	if err := m.storage.Save(token); err != nil {
		// The in-memory session stays valid; only reload survival is lost.
		m.logger.Warn("persisting auth token failed", "error", err)
	}
}

// clearSession wipes user, token and challenge state and the persisted token.
func (m *Manager) clearSession() {
	m.mu.Lock()
	m.user = nil
	m.token = ""
	m.pending = nil
	m.mu.Unlock()

	if err := m.storage.Clear(); err != nil {
		m.logger.Warn("clearing persisted token failed", "error", err)
	}
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}
