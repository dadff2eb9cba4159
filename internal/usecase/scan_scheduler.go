package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SignalScan/pkg/logger"
)

// ScanScheduler triggers periodic scans over the configured universe.
// Overlap with a manual scan is not an error: the orchestrator holds the
// lock and the scheduler tries again next tick.
type ScanScheduler struct {
	orch     *ScanOrchestrator
	log      *logger.Logger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	lastRun   time.Time
	nextRun   time.Time
	lastError string
	totalRuns int64
}

// SchedulerStatus is a point-in-time snapshot for the status endpoint.
type SchedulerStatus struct {
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	LastError string    `json:"last_error,omitempty"`
	TotalRuns int64     `json:"total_runs"`
}

func NewScanScheduler(orch *ScanOrchestrator, log *logger.Logger, interval time.Duration) *ScanScheduler {
	return &ScanScheduler{orch: orch, log: log, interval: interval}
}

// Start launches the scan loop. The first scan fires immediately.
func (s *ScanScheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %s", s.interval)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info("scan scheduler started", logger.Duration("interval_ms", s.interval))
	return nil
}

func (s *ScanScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		s.mu.Lock()
		s.nextRun = time.Now().Add(s.interval)
		s.mu.Unlock()

		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *ScanScheduler) runOnce(ctx context.Context) {
	started := time.Now()
	report, err := s.orch.Scan(ctx, DefaultScanOptions())
	if errors.Is(err, ErrScanInProgress) {
		s.log.Debug("scheduled scan skipped, another scan holds the lock")
		return
	}
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRuns++
	s.lastRun = started
	if err != nil {
		s.lastError = err.Error()
		s.log.Error("scheduled scan failed", logger.Error(err))
		return
	}
	s.lastError = ""
	s.log.Info("scheduled scan completed",
		logger.Int("results", len(report.Results)),
		logger.Int("skipped", len(report.Skipped)),
	)
}

// Status returns a copy of the scheduler counters.
func (s *ScanScheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SchedulerStatus{
		LastRun:   s.lastRun,
		NextRun:   s.nextRun,
		LastError: s.lastError,
		TotalRuns: s.totalRuns,
	}
}

// Stop cancels the loop and waits for an in-flight scan to wind down.
func (s *ScanScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
