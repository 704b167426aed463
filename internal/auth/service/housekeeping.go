package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/metrics"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
)

// HousekeepingService periodically purges revocation entries whose tokens
// have expired on their own.
type HousekeepingService struct {
	Revocations store.Revocations
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Interval    time.Duration
	Now         func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to one hour.
func NewHousekeepingService(revs store.Revocations, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Revocations: revs,
		Logger:      logger,
		Interval:    interval,
		Now:         time.Now,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop signals the worker and blocks until any in-progress purge finishes.
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

// Cleanup performs one purge and returns the number of entries removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	n, err := s.Revocations.DeleteExpired(ctx, s.Now().UTC())
	if err != nil {
		s.Logger.Error("failed to delete expired revocations", "error", err)
		return 0
	}

	s.Metrics.Purged(n)
	s.Logger.Debug("housekeeping cleanup completed", "revocations_deleted", n)
	return n
}
