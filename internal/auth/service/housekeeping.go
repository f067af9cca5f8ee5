package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/teamhub/internal/auth/store"
	"github.com/aussiebroadwan/teamhub/internal/telemetry"
)

// Sweeper is an in-memory cache with expiring entries.
type Sweeper interface {
	DeleteExpired()
}

// HousekeepingService periodically purges expired refresh tokens and
// sweeps the in-memory challenge and state caches.
type HousekeepingService struct {
	RefreshTokens store.RefreshTokens
	Sweepers      []Sweeper
	Metrics       *telemetry.Metrics
	Logger        *slog.Logger
	Interval      time.Duration

	// Retention keeps expired refresh rows around for a while before
	// deleting them, which helps when investigating refresh failures.
	Retention time.Duration

	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. If interval is 0
// or negative, it defaults to 1 hour.
func NewHousekeepingService(refreshTokens store.RefreshTokens, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		RefreshTokens: refreshTokens,
		Logger:        logger,
		Interval:      interval,
		Now:           time.Now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start runs cleanup immediately and then on every tick until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single cleanup pass and returns the number of refresh
// tokens removed. Failures are logged, never fatal.
func (s *HousekeepingService) RunOnce(ctx context.Context) int64 {
	for _, sw := range s.Sweepers {
		sw.DeleteExpired()
	}

	cutoff := s.Now().Add(-s.Retention)
	n, err := s.RefreshTokens.DeleteExpiredRefreshTokens(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
		return 0
	}

	s.Metrics.RefreshTokensPurged(n)
	s.Logger.Info("housekeeping cleanup completed", "refresh_tokens_deleted", n)
	return n
}
