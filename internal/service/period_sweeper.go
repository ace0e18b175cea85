package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sgta/sgta-api/internal/dto"
	"github.com/sgta/sgta-api/pkg/jobs"
)

type sweepRunner interface {
	Sweep(ctx context.Context, now time.Time) (dto.SweepSummary, error)
}

// PeriodSweeperConfig wires optional collaborators of the sweeper.
type PeriodSweeperConfig struct {
	Clock     Clock
	NewTicker jobs.TickerFactory
	Logger    *zap.Logger
}

// PeriodSweeper owns the recurring period status sweep. Start runs one sweep
// synchronously and then one per interval until Stop.
type PeriodSweeper struct {
	periods sweepRunner
	clock   Clock
	logger  *zap.Logger
	runner  *jobs.Recurring

	mu   sync.RWMutex
	last *dto.SweepSummary
}

// NewPeriodSweeper builds a stopped sweeper.
func NewPeriodSweeper(periods sweepRunner, cfg PeriodSweeperConfig) *PeriodSweeper {
	if cfg.Clock == nil {
		cfg.Clock = utcNow
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &PeriodSweeper{periods: periods, clock: cfg.Clock, logger: cfg.Logger}
	s.runner = jobs.NewRecurring("period_sweep", func(ctx context.Context) error {
		_, err := s.RunNow(ctx)
		return err
	}, jobs.RecurringConfig{Logger: cfg.Logger, NewTicker: cfg.NewTicker})
	return s
}

// Start begins the recurring sweep. It reports false when already running.
func (s *PeriodSweeper) Start(ctx context.Context, interval time.Duration) bool {
	return s.runner.Start(ctx, interval)
}

// Stop halts the recurring sweep. It is safe to call when not running.
func (s *PeriodSweeper) Stop() {
	s.runner.Stop()
}

// IsRunning reports whether the recurring sweep is active.
func (s *PeriodSweeper) IsRunning() bool {
	return s.runner.IsRunning()
}

// RunNow performs one sweep at the sweeper clock's current time.
func (s *PeriodSweeper) RunNow(ctx context.Context) (dto.SweepSummary, error) {
	summary, err := s.periods.Sweep(ctx, s.clock())
	if err != nil {
		return summary, err
	}

	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()

	s.logger.Info("period sweep completed",
		zap.Int("checked", summary.Checked),
		zap.Int("updated", summary.Updated),
		zap.Int("activated", summary.Activated),
		zap.Int("finished", summary.Finished),
		zap.Int("failures", len(summary.Failures)),
	)
	return summary, nil
}

// LastSummary returns the outcome of the most recent successful sweep.
func (s *PeriodSweeper) LastSummary() *dto.SweepSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	summary := *s.last
	return &summary
}

// Status describes the scheduler state.
func (s *PeriodSweeper) Status() dto.SweeperStatus {
	status := dto.SweeperStatus{Running: s.IsRunning(), LastSummary: s.LastSummary()}
	if interval := s.runner.Interval(); interval > 0 {
		status.Interval = interval.String()
	}
	return status
}
