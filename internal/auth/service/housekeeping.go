package service

import (
	"log/slog"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/authn"
)

// CacheMaintainer is the slice of *authn.SecretCache housekeeping needs.
type CacheMaintainer interface {
	Wait()
	Stats() authn.SecretCacheStats
}

// KeyReloader re-reads key material. *keys.File satisfies it.
type KeyReloader interface {
	Reload() error
}

// HousekeepingRecorder receives the periodic health figures.
// *metrics.Metrics satisfies it.
type HousekeepingRecorder interface {
	SecretCache(hits uint64, ratio float64)
	KeyReload(err error)
}

// HousekeepingService periodically flushes the client-secret cache, reports
// its hit ratio and reloads key material so a rotated secrets file is picked
// up even when no file event was seen.
type HousekeepingService struct {
	Cache    CacheMaintainer
	Keys     KeyReloader
	Metrics  HousekeepingRecorder
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 minute. cache and reloader may be nil.
func NewHousekeepingService(cache CacheMaintainer, reloader KeyReloader, rec HousekeepingRecorder, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Minute
	}

	return &HousekeepingService{
		Cache:    cache,
		Keys:     reloader,
		Metrics:  rec,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop() to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress pass.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single pass. Each task is independent, a failure in
// one does not skip the others.
func (s *HousekeepingService) RunOnce() {
	if s.Cache != nil {
		s.Cache.Wait()
		st := s.Cache.Stats()
		if s.Metrics != nil {
			s.Metrics.SecretCache(st.Hits, st.Ratio)
		}
		s.Logger.Debug("secret cache stats", "hits", st.Hits, "misses", st.Misses, "ratio", st.Ratio)
	}

	if s.Keys != nil {
		err := s.Keys.Reload()
		if s.Metrics != nil {
			s.Metrics.KeyReload(err)
		}
		if err != nil {
			s.Logger.Error("key reload failed, keeping previous keys", "error", err)
		}
	}
}
