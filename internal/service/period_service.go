package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sgta/sgta-api/internal/dto"
	"github.com/sgta/sgta-api/internal/models"
	"github.com/sgta/sgta-api/internal/repository"
	appErrors "github.com/sgta/sgta-api/pkg/errors"
)

type periodRepository interface {
	List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, error)
	ListAll(ctx context.Context) ([]models.Period, error)
	FindByID(ctx context.Context, id string) (*models.Period, error)
	FindByName(ctx context.Context, name string) (*models.Period, error)
	Create(ctx context.Context, period *models.Period) error
	Update(ctx context.Context, period *models.Period) error
	BatchUpdate(ctx context.Context, patches []models.PeriodPatch) error
	Delete(ctx context.Context, id string) error
}

// Clock returns the current instant.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

// PeriodService manages the academic period lifecycle.
type PeriodService struct {
	repo      periodRepository
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       Clock
}

// NewPeriodService constructs PeriodService.
func NewPeriodService(repo periodRepository, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{repo: repo, validator: validate, metrics: metrics, logger: logger, now: utcNow}
}

// WithClock replaces the time source.
func (s *PeriodService) WithClock(clock Clock) *PeriodService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Now returns the service clock reading.
func (s *PeriodService) Now() time.Time {
	return s.now()
}

// List returns periods matching filter ordered by start date.
func (s *PeriodService) List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, error) {
	periods, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to list periods")
	}
	return periods, nil
}

// Get returns a period by id.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.Period, error) {
	return s.load(ctx, id)
}

// GetCurrent returns the period flagged as current. When several are flagged the latest start wins.
func (s *PeriodService) GetCurrent(ctx context.Context) (*models.Period, error) {
	current := true
	periods, err := s.repo.List(ctx, models.PeriodFilter{IsCurrent: &current})
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load current period")
	}
	if len(periods) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPeriodNotFound, "no current period")
	}
	latest := periods[0]
	for _, p := range periods[1:] {
		if p.StartDate.After(latest.StartDate) {
			latest = p
		}
	}
	return &latest, nil
}

// Create validates and persists a new period with its initial derived state.
func (s *PeriodService) Create(ctx context.Context, req dto.CreatePeriodRequest) (*models.Period, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid period payload")
	}
	period := &models.Period{
		Name:      strings.TrimSpace(req.Name),
		Kind:      req.Kind,
		StartDate: req.StartDate.UTC(),
		EndDate:   req.EndDate.UTC(),
	}
	if !period.IsValid() {
		return nil, invalidPeriod()
	}
	if err := s.ensureNameAvailable(ctx, period.Name, ""); err != nil {
		return nil, err
	}
	if err := s.ensureNoOverlap(ctx, period); err != nil {
		return nil, err
	}

	now := s.now()
	period.RefreshDerivedState(now)
	period.CreatedAt = now
	period.UpdatedAt = now

	if err := s.repo.Create(ctx, period); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateName, "")
		}
		return nil, appErrors.Dependency(err, "failed to create period")
	}
	s.logger.Info("period created",
		zap.String("period_id", period.ID),
		zap.String("name", period.Name),
		zap.String("status", string(period.Status)),
	)
	return period, nil
}

// Update patches a period. Date changes re-run the overlap scan and refresh a non-terminal status.
func (s *PeriodService) Update(ctx context.Context, id string, req dto.UpdatePeriodRequest) (*models.Period, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid period payload")
	}
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != "" && name != period.Name {
			if err := s.ensureNameAvailable(ctx, name, period.ID); err != nil {
				return nil, err
			}
		}
		period.Name = name
	}
	if req.Kind != nil {
		period.Kind = *req.Kind
	}
	if req.StartDate != nil {
		period.StartDate = req.StartDate.UTC()
	}
	if req.EndDate != nil {
		period.EndDate = req.EndDate.UTC()
	}
	if !period.IsValid() {
		return nil, invalidPeriod()
	}

	now := s.now()
	if req.HasDates() {
		if err := s.ensureNoOverlap(ctx, period); err != nil {
			return nil, err
		}
		period.RefreshDerivedState(now)
	}
	period.UpdatedAt = now

	if err := s.repo.Update(ctx, period); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateName, "")
		}
		return nil, writeError(err, "failed to update period")
	}
	return period, nil
}

// Activate starts a planning period and clears the current flag of every other period in the same batch.
func (s *PeriodService) Activate(ctx context.Context, id string) (*models.Period, error) {
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := period.Activate(now); err != nil {
		return nil, err
	}

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load periods")
	}
	patches := []models.PeriodPatch{models.PatchOf(*period)}
	for _, other := range all {
		if other.ID == period.ID || !other.IsCurrent {
			continue
		}
		patches = append(patches, models.PeriodPatch{ID: other.ID, Status: other.Status, IsCurrent: false, UpdatedAt: now})
	}

	if err := s.repo.BatchUpdate(ctx, patches); err != nil {
		return nil, appErrors.Dependency(err, "failed to activate period")
	}
	s.logger.Info("period activated",
		zap.String("period_id", period.ID),
		zap.Int("deactivated", len(patches)-1),
	)
	return period, nil
}

// Finish closes an active period.
func (s *PeriodService) Finish(ctx context.Context, id string) (*models.Period, error) {
	return s.transition(ctx, id, "finish", (*models.Period).Finish)
}

// Cancel aborts a planning or active period.
func (s *PeriodService) Cancel(ctx context.Context, id string) (*models.Period, error) {
	return s.transition(ctx, id, "cancel", (*models.Period).Cancel)
}

func (s *PeriodService) transition(ctx context.Context, id, action string, apply func(*models.Period, time.Time) error) (*models.Period, error) {
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(period, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, period); err != nil {
		return nil, writeError(err, fmt.Sprintf("failed to %s period", action))
	}
	s.logger.Info("period transitioned",
		zap.String("period_id", period.ID),
		zap.String("action", action),
		zap.String("status", string(period.Status)),
	)
	return period, nil
}

// Delete removes a period that has not left PLANNING.
func (s *PeriodService) Delete(ctx context.Context, id string) error {
	period, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if period.Status != models.PeriodStatusPlanning {
		return appErrors.Clone(appErrors.ErrInvalidState, "only planning periods can be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "failed to delete period")
	}
	return nil
}

type sweepChange struct {
	period models.Period
	before models.PeriodStatus
}

// Sweep converges every stored period toward its derived state at now. Changed
// periods are written in one batch; if the batch fails each one is retried on its
// own and failures are reported in the summary.
func (s *PeriodService) Sweep(ctx context.Context, now time.Time) (dto.SweepSummary, error) {
	started := time.Now()
	summary := dto.SweepSummary{RanAt: now}

	periods, err := s.repo.ListAll(ctx)
	if err != nil {
		s.metrics.RecordSweepError()
		return summary, appErrors.Dependency(err, "failed to load periods for sweep")
	}
	summary.Checked = len(periods)

	changes := make([]sweepChange, 0)
	for _, p := range periods {
		before := p.Status
		if p.RefreshDerivedState(now) {
			changes = append(changes, sweepChange{period: p, before: before})
		}
	}
	if len(changes) == 0 {
		s.metrics.ObserveSweep(0, 0, 0, 0, time.Since(started))
		return summary, nil
	}

	patches := make([]models.PeriodPatch, 0, len(changes))
	for _, c := range changes {
		patches = append(patches, models.PatchOf(c.period))
	}

	persisted := changes
	if err := s.repo.BatchUpdate(ctx, patches); err != nil {
		s.logger.Warn("sweep batch update failed, falling back to single writes", zap.Error(err))
		persisted = persisted[:0:0]
		for _, c := range changes {
			period := c.period
			if err := s.repo.Update(ctx, &period); err != nil {
				s.logger.Warn("sweep failed to persist period", zap.String("period_id", period.ID), zap.Error(err))
				summary.Failures = append(summary.Failures, dto.SweepFailure{PeriodID: period.ID, Error: err.Error()})
				continue
			}
			persisted = append(persisted, c)
		}
	}

	for _, c := range persisted {
		summary.Updated++
		if c.before != c.period.Status {
			switch c.period.Status {
			case models.PeriodStatusActive:
				summary.Activated++
			case models.PeriodStatusFinished:
				summary.Finished++
			}
		}
	}

	s.metrics.ObserveSweep(summary.Updated, summary.Activated, summary.Finished, len(summary.Failures), time.Since(started))
	return summary, nil
}

// PendingRefresh lists periods whose stored state disagrees with the derived state at now without writing.
func (s *PeriodService) PendingRefresh(ctx context.Context, now time.Time) ([]dto.PendingRefresh, error) {
	periods, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load periods")
	}
	pending := make([]dto.PendingRefresh, 0)
	for _, p := range periods {
		stored := p
		if !p.RefreshDerivedState(now) {
			continue
		}
		pending = append(pending, dto.PendingRefresh{
			ID:               stored.ID,
			Name:             stored.Name,
			CurrentStatus:    stored.Status,
			DerivedStatus:    p.Status,
			CurrentIsCurrent: stored.IsCurrent,
			DerivedIsCurrent: p.IsCurrent,
		})
	}
	return pending, nil
}

// FindOverlaps returns every unordered pair of overlapping periods once.
func (s *PeriodService) FindOverlaps(ctx context.Context) ([]dto.OverlapPair, error) {
	periods, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load periods")
	}
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].StartDate.Before(periods[j].StartDate) })

	pairs := make([]dto.OverlapPair, 0)
	for i := 0; i < len(periods); i++ {
		for j := i + 1; j < len(periods); j++ {
			if periods[i].Overlaps(periods[j]) {
				pairs = append(pairs, dto.OverlapPair{First: periods[i], Second: periods[j]})
			}
		}
	}
	return pairs, nil
}

func (s *PeriodService) load(ctx context.Context, id string) (*models.Period, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPeriodNotFound, "")
		}
		return nil, appErrors.Dependency(err, "failed to load period")
	}
	return period, nil
}

// writeError maps a store write failure. A period removed between load and write is reported as missing.
func writeError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrPeriodNotFound, "")
	}
	return appErrors.Dependency(err, message)
}

func (s *PeriodService) ensureNameAvailable(ctx context.Context, name, selfID string) error {
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Dependency(err, "failed to check period name")
	}
	if existing.ID != selfID {
		return appErrors.Clone(appErrors.ErrDuplicateName, fmt.Sprintf("period %q already exists", name))
	}
	return nil
}

// ensureNoOverlap scans every other stored period. The check is not atomic with the write that follows.
func (s *PeriodService) ensureNoOverlap(ctx context.Context, period *models.Period) error {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return appErrors.Dependency(err, "failed to load periods")
	}
	conflicts := make([]dto.OverlapDetail, 0)
	for _, other := range all {
		if other.ID == period.ID && period.ID != "" {
			continue
		}
		if period.Overlaps(other) {
			conflicts = append(conflicts, dto.OverlapDetail{
				ID:        other.ID,
				Name:      other.Name,
				StartDate: other.StartDate,
				EndDate:   other.EndDate,
			})
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrOverlapConflict,
		fmt.Sprintf("period overlaps %q", conflicts[0].Name), conflicts)
}

func invalidPeriod() *appErrors.Error {
	return appErrors.Clone(appErrors.ErrValidation, "period needs a name, a known kind and start_date before end_date")
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Kind, appErrors.ErrValidation.Status, message)
}
