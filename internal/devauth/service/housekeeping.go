package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/agroisync/gateway/internal/devauth/store"
)

// HousekeepingService periodically deletes expired OTP challenges and action
// tokens so the dev database does not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 15 minutes.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut it
// down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the background worker, blocking until any in-progress
// cleanup finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes expired records. Each deletion is independent; a failure
// in one does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now().UTC()

	challenges, err := s.Store.Challenges().DeleteExpiredChallenges(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired challenges", "error", err)
	}

	actionTokens, err := s.Store.ActionTokens().DeleteExpiredActionTokens(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired action tokens", "error", err)
	}

	if challenges > 0 || actionTokens > 0 {
		s.Logger.Info("housekeeping cleanup completed",
			"challenges", challenges,
			"action_tokens", actionTokens,
		)
	}
}
