package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agroisync/gateway/pkg/authapi"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, opts ...RegistryOption) *Registry {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(authapi.Envelope{Success: true})
	}))
	t.Cleanup(server.Close)

	return NewRegistry(authapi.NewClient(server.URL), discardLogger(), opts...)
}

// forceSession installs an authenticated user directly, bypassing the API.
func forceSession(m *Manager, userID string, lastActive time.Time) {
	m.mu.Lock()
	m.user = &authapi.User{ID: userID, Email: userID + "@agroisync.com"}
	m.token = "tok-" + userID
	m.lastActive = lastActive
	m.mu.Unlock()
}

func TestRegistryLifecycle(t *testing.T) {
	r := newTestRegistry(t)

	id, m := r.Create(context.Background())
	require.NotNil(t, m)
	require.Equal(t, 1, r.Len())

	got, ok := r.Get(id)
	require.True(t, ok)
	require.Same(t, m, got)

	r.Remove(id)
	require.Equal(t, 0, r.Len())

	_, ok = r.Get(id)
	require.False(t, ok)
}

func TestRegistrySweep(t *testing.T) {
	r := newTestRegistry(t, WithIdleTimeout(30*time.Minute))

	idFresh, fresh := r.Create(context.Background())
	_, stale := r.Create(context.Background())
	require.Equal(t, 2, r.Len())

	now := time.Now()
	forceSession(fresh, "u-fresh", now.Add(-time.Minute))
	forceSession(stale, "u-stale", now.Add(-time.Hour))

	r.Sweep(now)
	require.Equal(t, 1, r.Len())

	_, ok := r.Get(idFresh)
	require.True(t, ok)

	// An idle-swept session is logged out, not just dropped.
	require.False(t, stale.IsAuthenticated())
}

func TestRegistryGetRefreshesIdleClock(t *testing.T) {
	r := newTestRegistry(t, WithIdleTimeout(30*time.Minute))

	id, m := r.Create(context.Background())
	forceSession(m, "u-1", time.Now().Add(-time.Hour))

	// A navigation just before the sweep keeps the session alive.
	_, ok := r.Get(id)
	require.True(t, ok)

	r.Sweep(time.Now())
	require.Equal(t, 1, r.Len())
}

func TestRegistryEnforceUserLimit(t *testing.T) {
	r := newTestRegistry(t, WithMaxPerUser(2))

	now := time.Now()
	var oldest *Manager
	for i := 0; i < 3; i++ {
		_, m := r.Create(context.Background())
		forceSession(m, "u-1", now.Add(time.Duration(i)*time.Minute))
		if i == 0 {
			oldest = m
		}
	}
	// Another user's session never counts against the limit.
	_, other := r.Create(context.Background())
	forceSession(other, "u-2", now)

	r.EnforceUserLimit("u-1")
	require.Equal(t, 3, r.Len())

	require.False(t, oldest.IsAuthenticated())
	require.True(t, other.IsAuthenticated())
}

func TestRegistryStartStop(t *testing.T) {
	r := newTestRegistry(t, WithSweepInterval(10*time.Millisecond))
	r.Start()
	time.Sleep(30 * time.Millisecond)
	r.Stop() // must not hang
}
