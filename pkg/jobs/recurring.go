package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is the unit of work executed on every tick.
type Task func(ctx context.Context) error

// Ticker abstracts time.Ticker so callers can drive ticks manually.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewStdTicker wraps time.NewTicker.
func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// RecurringConfig configures a Recurring runner.
type RecurringConfig struct {
	Logger    *zap.Logger
	NewTicker TickerFactory
}

// Recurring runs a task once on Start and then on every tick until stopped.
// At most one loop is active per instance.
type Recurring struct {
	name      string
	task      Task
	logger    *zap.Logger
	newTicker TickerFactory

	mu       sync.Mutex
	running  bool
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRecurring builds a stopped runner for task.
func NewRecurring(name string, task Task, cfg RecurringConfig) *Recurring {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewStdTicker
	}
	return &Recurring{
		name:      name,
		task:      task,
		logger:    cfg.Logger,
		newTicker: cfg.NewTicker,
	}
}

// Start executes the task immediately and then every interval. It returns false,
// without side effects, when the runner is already active.
func (r *Recurring) Start(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = time.Hour
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.logger.Sugar().Infow("recurring job already running", "job", r.name, "interval", r.interval)
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.running = true
	r.interval = interval
	r.cancel = cancel
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	r.logger.Sugar().Infow("recurring job started", "job", r.name, "interval", interval)
	r.execute(loopCtx)

	ticker := r.newTicker(interval)
	go r.loop(loopCtx, ticker, done)
	return true
}

// Stop halts the loop and waits for an in-flight execution to finish. Stopping a
// runner that is not active is a no-op.
func (r *Recurring) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	done := r.done
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	<-done
	r.logger.Sugar().Infow("recurring job stopped", "job", r.name)
}

// IsRunning reports whether the loop is active.
func (r *Recurring) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Interval returns the interval of the active loop, or zero when stopped.
func (r *Recurring) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return 0
	}
	return r.interval
}

func (r *Recurring) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer r.release(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.execute(ctx)
		}
	}
}

// release marks the runner idle when the loop owning done ends on its own,
// e.g. because the parent context was cancelled. A loop already replaced by
// Stop or a later Start leaves the state alone.
func (r *Recurring) release(done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || r.done != done {
		return
	}
	r.running = false
	r.cancel()
	r.cancel = nil
	r.logger.Sugar().Infow("recurring job ended with its context", "job", r.name)
}

func (r *Recurring) execute(ctx context.Context) {
	start := time.Now()
	if err := r.task(ctx); err != nil {
		r.logger.Sugar().Warnw("recurring job failed", "job", r.name, "error", err, "duration", time.Since(start))
	}
}
