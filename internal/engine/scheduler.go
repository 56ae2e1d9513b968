// Package engine implements the client-side conversation synchronization
// engine: interval polling, the conversation store with optimistic sends,
// mention detection, unread reconciliation, draft/summary workflows, and
// the action orchestrator that composes them.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/shared-care-platform/pkg/logger"
)

// Scheduler invokes a callback at a fixed interval on a single goroutine.
// The callback is held in a swappable cell, so reconfiguring it does not
// restart the ticker. Callback errors and panics are logged and swallowed;
// the next tick always fires. Ticks never overlap: the run loop invokes
// the callback sequentially and a slow callback simply delays the next
// tick.
type Scheduler struct {
	interval time.Duration
	log      *logger.Logger

	mu       sync.Mutex
	callback func(context.Context) error
	enabled  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler. A non-positive interval produces a
// scheduler that never ticks.
func NewScheduler(interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		log:      log,
		enabled:  true,
	}
}

// SetCallback swaps the callback invoked on the next tick. Safe to call
// while the scheduler is running.
func (s *Scheduler) SetCallback(fn func(context.Context) error) {
	s.mu.Lock()
	s.callback = fn
	s.mu.Unlock()
}

// SetEnabled flips ticking on or off without tearing down the timer.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Start begins ticking. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(ctx, done)
}

// Stop tears down the timer and waits for the run loop to exit.
// Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	fn := s.callback
	enabled := s.enabled
	s.mu.Unlock()

	if !enabled || fn == nil {
		return
	}

	if err := s.invoke(ctx, fn); err != nil {
		s.log.Warn("poll tick failed", zap.Error(err))
	}
}

func (s *Scheduler) invoke(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll tick panic: %v", r)
		}
	}()
	return fn(ctx)
}
