package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

func TestRecurringRunsImmediatelyAndOnTick(t *testing.T) {
	var runs atomic.Int32
	ticker := newManualTicker()
	var gotInterval time.Duration
	r := NewRecurring("test", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, RecurringConfig{NewTicker: func(d time.Duration) Ticker {
		gotInterval = d
		return ticker
	}})

	require.True(t, r.Start(context.Background(), 15*time.Minute))
	assert.Equal(t, int32(1), runs.Load())
	assert.True(t, r.IsRunning())
	assert.Equal(t, 15*time.Minute, gotInterval)
	assert.Equal(t, 15*time.Minute, r.Interval())

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return runs.Load() == 3 }, time.Second, time.Millisecond)

	r.Stop()
	assert.False(t, r.IsRunning())
	assert.True(t, ticker.stopped.Load())
	assert.Zero(t, r.Interval())
}

func TestRecurringStartTwiceIsNoop(t *testing.T) {
	var runs atomic.Int32
	r := NewRecurring("test", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, RecurringConfig{NewTicker: func(time.Duration) Ticker { return newManualTicker() }})

	require.True(t, r.Start(context.Background(), time.Minute))
	assert.False(t, r.Start(context.Background(), time.Minute))
	assert.Equal(t, int32(1), runs.Load())
	r.Stop()
}

func TestRecurringStopWhenIdleIsNoop(t *testing.T) {
	r := NewRecurring("test", func(ctx context.Context) error { return nil }, RecurringConfig{})
	assert.NotPanics(t, r.Stop)
	assert.False(t, r.IsRunning())
}

func TestRecurringKeepsTickingAfterTaskError(t *testing.T) {
	var runs atomic.Int32
	ticker := newManualTicker()
	r := NewRecurring("test", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}, RecurringConfig{NewTicker: func(time.Duration) Ticker { return ticker }})

	require.True(t, r.Start(context.Background(), time.Minute))
	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)
	assert.True(t, r.IsRunning())
	r.Stop()
}

func TestRecurringParentCancelReleasesRunner(t *testing.T) {
	var runs atomic.Int32
	ticker := newManualTicker()
	r := NewRecurring("test", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, RecurringConfig{NewTicker: func(time.Duration) Ticker { return ticker }})

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, r.Start(ctx, time.Minute))
	cancel()

	require.Eventually(t, func() bool { return !r.IsRunning() }, time.Second, time.Millisecond)
	assert.True(t, ticker.stopped.Load())
	assert.Zero(t, r.Interval())
	assert.NotPanics(t, r.Stop)

	require.True(t, r.Start(context.Background(), time.Minute))
	assert.True(t, r.IsRunning())
	assert.Equal(t, int32(2), runs.Load())
	r.Stop()
	assert.False(t, r.IsRunning())
}

func TestRecurringCanRestartAfterStop(t *testing.T) {
	var runs atomic.Int32
	r := NewRecurring("test", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, RecurringConfig{NewTicker: func(time.Duration) Ticker { return newManualTicker() }})

	require.True(t, r.Start(context.Background(), time.Minute))
	r.Stop()
	require.True(t, r.Start(context.Background(), time.Minute))
	r.Stop()
	assert.Equal(t, int32(2), runs.Load())
}
