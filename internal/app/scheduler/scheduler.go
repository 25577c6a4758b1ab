// Package scheduler runs a job on a fixed interval without ever overlapping two runs.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/pkg/metrics"
)

// Job is one unit of scheduled work. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context)

// Scheduler fires Job immediately on Start and then every interval.
// A tick that arrives while the previous run is still in flight is skipped and counted.
type Scheduler struct {
	interval time.Duration
	job      Job
	logger   port.Logger
	metrics  *metrics.Metrics

	busy    atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a stopped scheduler.
func New(interval time.Duration, job Job, l port.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		interval: interval,
		job:      job,
		logger:   l,
		metrics:  metrics.OrNop(m),
	}
}

// Start launches the loop. It returns an error if already started or the interval is not positive.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("Scheduler started", "interval", s.interval.String())
	return nil
}

// Stop cancels the loop and waits for the in-flight run, or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped", "runs", s.runs.Load(), "skipped", s.skipped.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.trigger()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.trigger()
		}
	}
}

// trigger starts one run unless one is already in flight. It reports whether a run started.
func (s *Scheduler) trigger() bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.metrics.BatchesSkipped.Inc()
		s.logger.Debug("Previous run still in flight, tick skipped")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)
		s.runs.Add(1)
		s.job(s.ctx)
	}()
	return true
}

// Runs returns how many runs have started.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Skipped returns how many ticks were skipped because a run was in flight.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

// Busy reports whether a run is in flight.
func (s *Scheduler) Busy() bool { return s.busy.Load() }
