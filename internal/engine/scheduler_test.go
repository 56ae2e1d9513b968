package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/shared-care-platform/pkg/logger"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestSchedulerTicks(t *testing.T) {
	var ticks atomic.Int64
	s := NewScheduler(5*time.Millisecond, logger.NewNop())
	s.SetCallback(func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return ticks.Load() >= 3 })
}

func TestSchedulerCallbackSwapWithoutRestart(t *testing.T) {
	var first, second atomic.Int64
	s := NewScheduler(5*time.Millisecond, logger.NewNop())
	s.SetCallback(func(ctx context.Context) error {
		first.Add(1)
		return nil
	})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return first.Load() >= 1 })

	s.SetCallback(func(ctx context.Context) error {
		second.Add(1)
		return nil
	})
	waitFor(t, func() bool { return second.Load() >= 1 })

	// Once the new callback has fired, the old one is unreachable.
	firstAfterSwap := first.Load()
	waitFor(t, func() bool { return second.Load() >= 3 })
	assert.Equal(t, firstAfterSwap, first.Load(), "old callback must not fire after the swap")
}

func TestSchedulerDisableSuppressesTicks(t *testing.T) {
	var ticks atomic.Int64
	s := NewScheduler(5*time.Millisecond, logger.NewNop())
	s.SetCallback(func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return ticks.Load() >= 1 })
	s.SetEnabled(false)

	// Let in-flight ticks drain, then confirm the count stops moving.
	time.Sleep(20 * time.Millisecond)
	frozen := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, ticks.Load())

	s.SetEnabled(true)
	waitFor(t, func() bool { return ticks.Load() > frozen })
}

func TestSchedulerSurvivesErrorsAndPanics(t *testing.T) {
	var ticks atomic.Int64
	s := NewScheduler(5*time.Millisecond, logger.NewNop())
	s.SetCallback(func(ctx context.Context) error {
		n := ticks.Add(1)
		switch n {
		case 1:
			return errors.New("transient")
		case 2:
			panic("boom")
		}
		return nil
	})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return ticks.Load() >= 4 })
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(5*time.Millisecond, logger.NewNop())
	s.SetCallback(func(ctx context.Context) error { return nil })

	s.Start(context.Background())
	s.Stop()
	s.Stop()

	// Restart after a stop works.
	var ticks atomic.Int64
	s.SetCallback(func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})
	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, func() bool { return ticks.Load() >= 1 })
}

func TestSchedulerNonPositiveIntervalNeverStarts(t *testing.T) {
	var ticks atomic.Int64
	s := NewScheduler(0, logger.NewNop())
	s.SetCallback(func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})

	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	require.Zero(t, ticks.Load())
}
