package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/agroisync/gateway/pkg/authapi"
	"github.com/agroisync/gateway/pkg/idx"
)

const (
	// DefaultIdleTimeout expires sessions with no navigation activity.
	DefaultIdleTimeout = 30 * time.Minute
	// DefaultSweepInterval is how often idle sessions are collected.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultMaxPerUser caps concurrent sessions per account; the oldest
	// session is evicted when the cap is exceeded.
	DefaultMaxPerUser = 5
)

// StorageFactory builds the token storage for a new session. The default
// keeps tokens in memory; the gateway app swaps in file-backed storage so
// sessions survive a restart.
type StorageFactory func(id idx.ID) TokenStorage

// Registry maps browser session IDs (the gateway cookie value) to their
// session managers and sweeps idle ones in the background.
type Registry struct {
	api     *authapi.Client
	logger  *slog.Logger
	storage StorageFactory

	idleTimeout   time.Duration
	sweepInterval time.Duration
	maxPerUser    int

	mu       sync.Mutex
	sessions map[idx.ID]*Manager

	stopCh chan struct{}
	doneCh chan struct{}
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTimeout = d }
}

func WithSweepInterval(d time.Duration) RegistryOption {
	return func(r *Registry) { r.sweepInterval = d }
}

func WithMaxPerUser(n int) RegistryOption {
	return func(r *Registry) { r.maxPerUser = n }
}

func WithStorageFactory(f StorageFactory) RegistryOption {
	return func(r *Registry) { r.storage = f }
}

// NewRegistry creates a session registry. Call Start to begin the idle sweep.
func NewRegistry(api *authapi.Client, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		api:           api,
		logger:        logger,
		storage:       func(idx.ID) TokenStorage { return NewMemoryStorage() },
		idleTimeout:   DefaultIdleTimeout,
		sweepInterval: DefaultSweepInterval,
		maxPerUser:    DefaultMaxPerUser,
		sessions:      make(map[idx.ID]*Manager),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create allocates a new browser session and attempts silent re-auth from
// its storage slot (a no-op for fresh memory-backed sessions, meaningful for
// file-backed sessions after a gateway restart).
func (r *Registry) Create(ctx context.Context) (idx.ID, *Manager) {
	id := idx.New()
	m := NewManager(r.api, r.storage(id), r.logger.With("session_id", id.String()))
	m.Restore(ctx)

	r.mu.Lock()
	r.sessions[id] = m
	r.mu.Unlock()

	return id, m
}

// Get returns the manager for a session ID, refreshing its idle clock.
func (r *Registry) Get(id idx.ID) (*Manager, bool) {
	r.mu.Lock()
	m, ok := r.sessions[id]
	r.mu.Unlock()

	if ok {
		m.Touch()
	}
	return m, ok
}

// Remove drops a session after logging it out.
func (r *Registry) Remove(id idx.ID) {
	r.mu.Lock()
	m, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		m.Logout()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EnforceUserLimit evicts the oldest sessions of a user beyond the per-user
// cap. Called after a successful authentication commits a user to a session.
func (r *Registry) EnforceUserLimit(userID string) {
	if userID == "" || r.maxPerUser <= 0 {
		return
	}

	type aged struct {
		id   idx.ID
		m    *Manager
		seen time.Time
	}

	r.mu.Lock()
	var owned []aged
	for id, m := range r.sessions {
		if u := m.User(); u != nil && u.ID == userID {
			owned = append(owned, aged{id: id, m: m, seen: m.LastActive()})
		}
	}

	var evict []aged
	if len(owned) > r.maxPerUser {
		sort.Slice(owned, func(i, j int) bool { return owned[i].seen.Before(owned[j].seen) })
		evict = owned[:len(owned)-r.maxPerUser]
		for _, e := range evict {
			delete(r.sessions, e.id)
		}
	}
	r.mu.Unlock()

	for _, e := range evict {
		e.m.Logout()
		r.logger.Info("session evicted: per-user limit", "user_id", userID, "session_id", e.id.String())
	}
}

// Start begins the background idle sweep. Call Stop to shut it down.
func (r *Registry) Start() {
	go r.run()
	r.logger.Info("session registry started",
		"idle_timeout", r.idleTimeout,
		"sweep_interval", r.sweepInterval,
	)
}

// Stop shuts down the sweep worker, blocking until it exits.
func (r *Registry) Stop() {
	close(r.stopCh)
	<-r.doneCh
	r.logger.Info("session registry stopped")
}

func (r *Registry) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

// Sweep logs out and removes sessions idle longer than the timeout.
// Exported so tests can drive it with a synthetic clock.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	var expired []*Manager
	for id, m := range r.sessions {
		if now.Sub(m.LastActive()) > r.idleTimeout {
			expired = append(expired, m)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, m := range expired {
		m.Logout()
	}

	if len(expired) > 0 {
		r.logger.Info("session sweep", "expired", len(expired))
	}
}
