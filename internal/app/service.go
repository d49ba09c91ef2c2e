// Package service wires the store, the detector and the run lock into the
// operations exposed over HTTP and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/patternwatch/internal/adapters/lock"
	"github.com/okian/patternwatch/internal/adapters/repository"
	"github.com/okian/patternwatch/internal/detector"
	"github.com/okian/patternwatch/internal/domain/types"
	"github.com/okian/patternwatch/pkg/logger"
	"github.com/okian/patternwatch/pkg/metrics"
)

const releaseTimeout = 5 * time.Second

// Service runs detection under a lock, optionally on a schedule, and keeps
// the outcome of the last run for monitoring.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	detector *detector.Detector
	locker   lock.Locker

	// Configuration
	interval     time.Duration
	runTimeout   time.Duration
	detectorOpts []detector.Option

	// State
	started bool
	stopCh  chan struct{}
	done    chan struct{}

	runs       int64
	failures   int64
	contended  int64
	lastRunAt  time.Time
	lastReport *types.Report
	lastErr    string

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLocker replaces the in-process run lock.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithInterval enables the scheduler. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.interval = d
		}
	}
}

// WithRunTimeout bounds a single run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.runTimeout = d
		}
	}
}

// WithDetectorOptions forwards options to the detector.
func WithDetectorOptions(opts ...detector.Option) Option {
	return func(s *Service) {
		s.detectorOpts = append(s.detectorOpts, opts...)
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locker: lock.NewLocal(),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("service")

	detOpts := append([]detector.Option{detector.WithLogger(s.logger.Named("detector"))}, s.detectorOpts...)
	s.detector = detector.New(store, detOpts...)
	return s
}

// Start launches the scheduler when an interval is configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.started = true

	if s.interval <= 0 {
		close(s.done)
		s.logger.Info(ctx, "detection service started without schedule")
		return nil
	}

	go s.scheduleLoop(ctx, s.interval, s.stopCh, s.done)
	s.logger.Info(ctx, "detection service started", logger.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and waits for an in-flight scheduled run.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.done
	s.started = false
	s.mu.Unlock()

	<-done
	s.logger.Info(context.Background(), "detection service stopped")
}

func (s *Service) scheduleLoop(ctx context.Context, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if _, err := s.RunDetection(ctx); err != nil {
				if errors.Is(err, lock.ErrLocked) {
					s.logger.Debug(ctx, "scheduled run skipped, detection already running")
					continue
				}
				s.logger.Error(ctx, "scheduled run failed", logger.Error(err))
			}
		}
	}
}

// RunDetection runs the detector once while holding the run lock.
func (s *Service) RunDetection(ctx context.Context) (types.Report, error) {
	release, err := s.locker.TryAcquire(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			metrics.RecordLockContention()
			metrics.RecordRun(metrics.OutcomeLocked, 0)
			s.mu.Lock()
			s.contended++
			s.mu.Unlock()
		}
		return types.Report{}, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if rerr := release(rctx); rerr != nil {
			s.logger.Warn(ctx, "failed to release run lock", logger.Error(rerr))
		}
	}()

	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	start := time.Now()
	report, err := s.detector.Run(runCtx)
	elapsed := time.Since(start).Seconds()

	s.mu.Lock()
	s.runs++
	s.lastRunAt = start.UTC()
	if err != nil {
		s.failures++
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
		r := report
		s.lastReport = &r
	}
	s.mu.Unlock()

	if err != nil {
		metrics.RecordRun(metrics.OutcomeFailure, elapsed)
		return types.Report{}, err
	}
	metrics.RecordRun(metrics.OutcomeSuccess, elapsed)
	metrics.SetLastRun(float64(start.Unix()))
	return report, nil
}

// LastReport returns the report of the last successful run.
func (s *Service) LastReport() (types.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastReport == nil {
		return types.Report{}, false
	}
	return *s.lastReport, true
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	stats := map[string]interface{}{
		"started":       s.started,
		"interval":      s.interval.String(),
		"passes":        len(s.detector.Passes()),
		"runs":          s.runs,
		"failures":      s.failures,
		"lockContended": s.contended,
	}
	if !s.lastRunAt.IsZero() {
		stats["lastRunAt"] = s.lastRunAt.Format(time.RFC3339)
	}
	if s.lastErr != "" {
		stats["lastError"] = s.lastErr
	}
	if s.lastReport != nil {
		stats["lastReport"] = *s.lastReport
	}
	s.mu.RUnlock()

	if s.store != nil {
		counts, err := s.store.Counts(context.Background())
		if err != nil {
			s.logger.Warn(context.Background(), "failed to count store rows", logger.Error(err))
		} else {
			stats["events"] = counts.Events
			stats["alerts"] = counts.Alerts
			stats["notifications"] = counts.Notifications
		}
	}
	return stats
}
