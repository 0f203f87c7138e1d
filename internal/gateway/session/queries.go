package session

import (
	"time"

	"github.com/agroisync/gateway/pkg/authapi"
)

// Derived queries. All are pure reads of current state with no side effects.

// User returns a copy of the authenticated user, or nil.
func (m *Manager) User() *authapi.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Token returns the current auth token, or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Pending returns a copy of the pending two-factor challenge, or nil.
func (m *Manager) Pending() *Pending2FA {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.pending == nil {
		return nil
	}
	p := *m.pending
	return &p
}

// Loading reports whether an operation is in flight.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// LastError returns the message of the last failed operation, or "".
func (m *Manager) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// IsAuthenticated reports whether a user and token are both present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.token != ""
}

// IsAdmin reports whether the authenticated user has the admin flag.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.IsAdmin
}

// HasActivePlan reports whether the user is on a paid, active plan.
func (m *Manager) HasActivePlan() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.IsPaid && m.user.PlanActive
}

// CanAccessPrivateData gates the private market data views.
func (m *Manager) CanAccessPrivateData() bool { return m.HasActivePlan() }

// CanUseMessaging gates the buyer/seller messaging surface.
func (m *Manager) CanUseMessaging() bool { return m.HasActivePlan() }

// LastActive returns the time of the last operation or touch. The session
// registry uses it for idle expiry.
func (m *Manager) LastActive() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastActive
}

// Touch refreshes the idle clock. Called per navigation.
func (m *Manager) Touch() {
	m.mu.Lock()
	m.lastActive = time.Now()
	m.mu.Unlock()
}
