package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sgta/sgta-api/internal/models"
)

const enrollmentColumns = "id, student_id, period_id, enrolled_at, status, subjects, version, created_at, updated_at"

// EnrollmentRepository persists enrollments as whole documents; the subject
// grades live in a JSONB column and every write is guarded by the version column.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE id = $1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndPeriod returns the most recent enrollment of a student in a period.
func (r *EnrollmentRepository) FindByStudentAndPeriod(ctx context.Context, studentID, periodID string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE student_id = $1 AND period_id = $2 ORDER BY enrolled_at DESC LIMIT 1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, periodID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByStudent returns every enrollment of a student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at DESC"
	enrollments := []models.Enrollment{}
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByPeriod returns every enrollment within a period.
func (r *EnrollmentRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE period_id = $1 ORDER BY enrolled_at ASC"
	enrollments := []models.Enrollment{}
	if err := r.db.SelectContext(ctx, &enrollments, query, periodID); err != nil {
		return nil, fmt.Errorf("list period enrollments: %w", err)
	}
	return enrollments, nil
}

// ListAll returns every enrollment.
func (r *EnrollmentRepository) ListAll(ctx context.Context) ([]models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments ORDER BY enrolled_at ASC"
	enrollments := []models.Enrollment{}
	if err := r.db.SelectContext(ctx, &enrollments, query); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// Create persists a new enrollment at version 1. A second ACTIVE enrollment
// for the same student and period violates a unique index and yields ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	if enrollment.UpdatedAt.IsZero() {
		enrollment.UpdatedAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	enrollment.Version = 1

	const query = `INSERT INTO enrollments (id, student_id, period_id, enrolled_at, status, subjects, version, created_at, updated_at)
        VALUES (:id, :student_id, :period_id, :enrolled_at, :status, :subjects, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create enrollment: %w", ErrDuplicate)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update overwrites the enrollment document if it is still at the version that
// was read. On success the in-memory version is advanced.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET status = :status, subjects = :subjects, version = version + 1, updated_at = :updated_at
        WHERE id = :id AND version = :version`
	res, err := r.db.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update enrollment: %w", ErrDuplicate)
		}
		return fmt.Errorf("update enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	enrollment.Version++
	return nil
}
