package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SchedulerConfig holds configuration for the periodic exporter.
type SchedulerConfig struct {
	// Interval is how often the current week is re-exported (default: 15m).
	Interval time.Duration
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Interval: 15 * time.Minute}
}

// Scheduler re-exports the current week on a fixed interval. It backs up the
// event-driven path when the broker drops messages or is not configured.
type Scheduler struct {
	worker *ExportWorker
	config SchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(worker *ExportWorker, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &Scheduler{worker: worker, config: config}
}

// Start begins the export loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.worker.logger.InfoContext(ctx, "Export scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.worker.logger.InfoContext(ctx, "Export scheduler stopped")
		return nil
	case <-ctx.Done():
		s.worker.logger.WarnContext(ctx, "Export scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Export immediately on startup
	s.tick(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.worker.ExportWeek(ctx, s.worker.now()); err != nil {
		s.worker.logger.ErrorContext(ctx, "Scheduled export failed", "error", err)
	}
}
