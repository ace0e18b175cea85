package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sgta/sgta-api/internal/dto"
	"github.com/sgta/sgta-api/internal/models"
	"github.com/sgta/sgta-api/internal/repository"
	appErrors "github.com/sgta/sgta-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndPeriod(ctx context.Context, studentID, periodID string) (*models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListByPeriod(ctx context.Context, periodID string) ([]models.Enrollment, error)
	ListAll(ctx context.Context) ([]models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// EnrollmentServiceConfig tunes enrollment writes and statistics caching.
type EnrollmentServiceConfig struct {
	WriteRetries int
	StatsTTL     time.Duration
}

// EnrollmentService orchestrates enrollment and grading workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	periods   periodReader
	subjects  subjectReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EnrollmentServiceConfig
	now       Clock
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, periods periodReader, subjects subjectReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg EnrollmentServiceConfig) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteRetries < 0 {
		cfg.WriteRetries = 0
	}
	return &EnrollmentService{
		repo:      repo,
		periods:   periods,
		subjects:  subjects,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       utcNow,
	}
}

// WithClock replaces the time source.
func (s *EnrollmentService) WithClock(clock Clock) *EnrollmentService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Create enrolls a student into the current period with one record per subject.
func (s *EnrollmentService) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	now := s.now()

	period, err := s.periods.FindByID(ctx, req.PeriodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPeriodNotFound, "")
		}
		return nil, appErrors.Dependency(err, "failed to load period")
	}
	if period.Status.Terminal() || !period.DeriveIsCurrent(now) {
		return nil, appErrors.Clone(appErrors.ErrPeriodNotOpen, fmt.Sprintf("period %q is not open for enrollment", period.Name))
	}

	if _, err := s.repo.FindByStudentAndPeriod(ctx, req.StudentID, req.PeriodID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Dependency(err, "failed to check existing enrollment")
	}

	enrollment := &models.Enrollment{
		StudentID:  req.StudentID,
		PeriodID:   req.PeriodID,
		EnrolledAt: now,
		Status:     models.EnrollmentStatusActive,
		Subjects:   models.SubjectGrades{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, id := range req.SubjectIDs {
		subject, err := s.lookupSubject(ctx, strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		enrollment.AddSubject(subject.ID, subject.Name, now)
	}
	if !enrollment.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment requires a student, a period and at least one subject")
	}

	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
		return nil, appErrors.Dependency(err, "failed to create enrollment")
	}
	s.invalidateStatistics(ctx)
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("period_id", enrollment.PeriodID),
		zap.Int("subjects", len(enrollment.Subjects)),
	)
	return enrollment, nil
}

// Get returns an enrollment by id.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.load(ctx, id)
}

// ListByStudent returns every enrollment of a student.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	list, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to list enrollments")
	}
	return list, nil
}

// ListByPeriod returns every enrollment in a period.
func (s *EnrollmentService) ListByPeriod(ctx context.Context, periodID string) ([]models.Enrollment, error) {
	list, err := s.repo.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to list enrollments")
	}
	return list, nil
}

// PostGrade writes one unit grade of a subject.
func (s *EnrollmentService) PostGrade(ctx context.Context, id, subjectID string, req dto.PostGradeRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade payload")
	}
	unit, _ := models.ParseGradeUnit(req.Unit)
	value := *req.Value
	return s.mutate(ctx, id, func(e *models.Enrollment, now time.Time) (bool, error) {
		if err := e.PostUnitGrade(subjectID, unit, value, now); err != nil {
			return false, err
		}
		return true, nil
	})
}

// AddSubject adds a subject to an enrollment. Adding a present subject is a no-op.
func (s *EnrollmentService) AddSubject(ctx context.Context, id string, req dto.AddSubjectRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid subject payload")
	}
	subject, err := s.lookupSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(e *models.Enrollment, now time.Time) (bool, error) {
		return e.AddSubject(subject.ID, subject.Name, now), nil
	})
}

// RemoveSubject drops a subject from an enrollment. Removing an absent subject is a no-op.
func (s *EnrollmentService) RemoveSubject(ctx context.Context, id, subjectID string) (*models.Enrollment, error) {
	return s.mutate(ctx, id, func(e *models.Enrollment, now time.Time) (bool, error) {
		return e.RemoveSubject(subjectID, now), nil
	})
}

// MarkInProgress flags a subject as being taken.
func (s *EnrollmentService) MarkInProgress(ctx context.Context, id, subjectID string) (*models.Enrollment, error) {
	return s.mutate(ctx, id, func(e *models.Enrollment, now time.Time) (bool, error) {
		return e.MarkInProgress(subjectID, now), nil
	})
}

// Withdraw flags a subject as withdrawn.
func (s *EnrollmentService) Withdraw(ctx context.Context, id, subjectID string) (*models.Enrollment, error) {
	return s.mutate(ctx, id, func(e *models.Enrollment, now time.Time) (bool, error) {
		return e.Withdraw(subjectID, now), nil
	})
}

// UpdateStatus suspends, completes or reactivates an enrollment.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req dto.UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	return s.mutate(ctx, id, func(e *models.Enrollment, now time.Time) (bool, error) {
		return e.ChangeStatus(req.Status, now)
	})
}

// AggregateStatistics sums subject outcomes over the enrollments of periodID, or over all
// enrollments when periodID is empty. A computation that overlaps a write can store
// figures that predate it; they stay cached until the next write or StatsTTL expiry.
func (s *EnrollmentService) AggregateStatistics(ctx context.Context, periodID string) (*dto.AggregateStatistics, error) {
	key := StatisticsKey(periodID)
	var cached dto.AggregateStatistics
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	var (
		list []models.Enrollment
		err  error
	)
	if periodID == "" {
		list, err = s.repo.ListAll(ctx)
	} else {
		list, err = s.repo.ListByPeriod(ctx, periodID)
	}
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load enrollments")
	}

	stats := &dto.AggregateStatistics{PeriodID: periodID, Enrollments: len(list)}
	for i := range list {
		stats.Subjects.Add(list[i].Statistics())
	}

	_ = s.cache.Set(ctx, key, stats, s.cfg.StatsTTL)
	return stats, nil
}

// mutate applies fn to a freshly loaded enrollment and writes it back under the
// version guard. On a version conflict the enrollment is reloaded and fn re-applied,
// up to WriteRetries times.
func (s *EnrollmentService) mutate(ctx context.Context, id string, fn func(e *models.Enrollment, now time.Time) (bool, error)) (*models.Enrollment, error) {
	for attempt := 0; ; attempt++ {
		enrollment, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		changed, err := fn(enrollment, s.now())
		if err != nil {
			return nil, err
		}
		if !changed {
			return enrollment, nil
		}

		err = s.repo.Update(ctx, enrollment)
		if err == nil {
			s.invalidateStatistics(ctx)
			return enrollment, nil
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.Dependency(err, "failed to update enrollment")
		}

		exhausted := attempt >= s.cfg.WriteRetries
		s.metrics.RecordWriteConflict(exhausted)
		if exhausted {
			s.logger.Warn("enrollment write retries exhausted", zap.String("enrollment_id", id), zap.Int("attempts", attempt+1))
			return nil, appErrors.Wrap(err, appErrors.ErrConcurrentUpdate.Code, appErrors.ErrConcurrentUpdate.Kind,
				appErrors.ErrConcurrentUpdate.Status, appErrors.ErrConcurrentUpdate.Message)
		}
		s.logger.Debug("enrollment version conflict, retrying", zap.String("enrollment_id", id), zap.Int("attempt", attempt+1))
	}
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "")
		}
		return nil, appErrors.Dependency(err, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) lookupSubject(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSubjectNotFound, fmt.Sprintf("subject %s not found", id))
		}
		return nil, appErrors.Dependency(err, "failed to load subject")
	}
	return subject, nil
}

func (s *EnrollmentService) invalidateStatistics(ctx context.Context) {
	_ = s.cache.InvalidateStatistics(ctx)
}
