package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sgta/sgta-api/internal/models"
)

const periodColumns = "id, name, kind, start_date, end_date, status, is_current, created_at, updated_at"

// PeriodRepository handles persistence for academic periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository instantiates a period repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// List returns periods matching the filter ordered by start date.
func (r *PeriodRepository) List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, error) {
	var conditions []string
	var args []interface{}

	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.IsCurrent != nil {
		conditions = append(conditions, fmt.Sprintf("is_current = $%d", len(args)+1))
		args = append(args, *filter.IsCurrent)
	}

	query := "SELECT " + periodColumns + " FROM periods"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date ASC"

	periods := []models.Period{}
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// ListAll returns every period.
func (r *PeriodRepository) ListAll(ctx context.Context) ([]models.Period, error) {
	return r.List(ctx, models.PeriodFilter{})
}

// FindByID loads a period by identifier.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.Period, error) {
	query := "SELECT " + periodColumns + " FROM periods WHERE id = $1"
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindByName loads a period by its exact name.
func (r *PeriodRepository) FindByName(ctx context.Context, name string) (*models.Period, error) {
	query := "SELECT " + periodColumns + " FROM periods WHERE name = $1 LIMIT 1"
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query, name); err != nil {
		return nil, err
	}
	return &period, nil
}

// Create inserts a new period, assigning its identifier and timestamps.
func (r *PeriodRepository) Create(ctx context.Context, period *models.Period) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	if period.UpdatedAt.IsZero() {
		period.UpdatedAt = now
	}

	const query = `INSERT INTO periods (id, name, kind, start_date, end_date, status, is_current, created_at, updated_at)
        VALUES (:id, :name, :kind, :start_date, :end_date, :status, :is_current, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create period: %w", ErrDuplicate)
		}
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a period. It returns sql.ErrNoRows
// when the period no longer exists.
func (r *PeriodRepository) Update(ctx context.Context, period *models.Period) error {
	const query = `UPDATE periods SET name = :name, kind = :kind, start_date = :start_date, end_date = :end_date,
        status = :status, is_current = :is_current, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, period)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update period: %w", ErrDuplicate)
		}
		return fmt.Errorf("update period: %w", err)
	}
	return requireAffected(res, "update period")
}

// BatchUpdate writes derived-state patches atomically.
func (r *PeriodRepository) BatchUpdate(ctx context.Context, patches []models.PeriodPatch) (err error) {
	if len(patches) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch update tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE periods SET status = $2, is_current = $3, updated_at = $4 WHERE id = $1`
	for _, p := range patches {
		if _, err = tx.ExecContext(ctx, query, p.ID, p.Status, p.IsCurrent, p.UpdatedAt); err != nil {
			return fmt.Errorf("patch period %s: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch update tx: %w", err)
	}
	return nil
}

// Delete removes a period permanently. It returns sql.ErrNoRows when nothing matched.
func (r *PeriodRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM periods WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	return requireAffected(res, "delete period")
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}
