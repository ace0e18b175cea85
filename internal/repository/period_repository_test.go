package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgta/sgta-api/internal/models"
)

var periodRowColumns = []string{"id", "name", "kind", "start_date", "end_date", "status", "is_current", "created_at", "updated_at"}

func periodRow(rows *sqlmock.Rows, id, name string, status models.PeriodStatus, current bool) *sqlmock.Rows {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, name, models.PeriodKindTrimester, start, start.AddDate(0, 3, 0), status, current, start, start)
}

func TestPeriodRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	current := true
	rows := periodRow(sqlmock.NewRows(periodRowColumns), "p1", "2024-T1", models.PeriodStatusActive, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + periodColumns + " FROM periods WHERE kind = $1 AND is_current = $2 ORDER BY start_date ASC")).
		WithArgs(models.PeriodKindTrimester, true).
		WillReturnRows(rows)

	periods, err := repo.List(context.Background(), models.PeriodFilter{Kind: models.PeriodKindTrimester, IsCurrent: &current})
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2024-T1", periods[0].Name)
	assert.True(t, periods[0].IsCurrent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryListAllEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + periodColumns + " FROM periods ORDER BY start_date ASC")).
		WillReturnRows(sqlmock.NewRows(periodRowColumns))

	periods, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, periods)
	assert.Empty(t, periods)
}

func TestPeriodRepositoryFindByNameNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM periods WHERE name = $1 LIMIT 1")).
		WithArgs("2024-T1").
		WillReturnRows(sqlmock.NewRows(periodRowColumns))

	_, err := repo.FindByName(context.Background(), "2024-T1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPeriodRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM periods WHERE id = $1")).
		WithArgs("p1").
		WillReturnRows(periodRow(sqlmock.NewRows(periodRowColumns), "p1", "2024-T1", models.PeriodStatusPlanning, false))

	period, err := repo.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PeriodStatusPlanning, period.Status)
}

func TestPeriodRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO periods")).
		WithArgs(sqlmock.AnyArg(), "2024-T1", models.PeriodKindTrimester, sqlmock.AnyArg(), sqlmock.AnyArg(), models.PeriodStatusPlanning, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	period := &models.Period{Name: "2024-T1", Kind: models.PeriodKindTrimester, Status: models.PeriodStatusPlanning}
	require.NoError(t, repo.Create(context.Background(), period))
	assert.NotEmpty(t, period.ID)
	assert.False(t, period.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryCreateDuplicateName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO periods")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Period{Name: "2024-T1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPeriodRepositoryBatchUpdateCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE periods SET status = $2, is_current = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("p1", models.PeriodStatusActive, true, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE periods SET status = $2")).
		WithArgs("p2", models.PeriodStatusFinished, false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.BatchUpdate(context.Background(), []models.PeriodPatch{
		{ID: "p1", Status: models.PeriodStatusActive, IsCurrent: true, UpdatedAt: now},
		{ID: "p2", Status: models.PeriodStatusFinished, IsCurrent: false, UpdatedAt: now},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryBatchUpdateRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE periods SET status = $2")).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.BatchUpdate(context.Background(), []models.PeriodPatch{{ID: "p1", Status: models.PeriodStatusActive}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryBatchUpdateEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	require.NoError(t, repo.BatchUpdate(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM periods WHERE id = $1")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "p1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM periods WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "gone")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryUpdate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	period := &models.Period{
		ID:        "p1",
		Name:      "2024-T1",
		Kind:      models.PeriodKindTrimester,
		StartDate: start,
		EndDate:   start.AddDate(0, 3, 0),
		Status:    models.PeriodStatusActive,
		IsCurrent: true,
		UpdatedAt: start,
	}

	t.Run("applies", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewPeriodRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE periods SET name = ")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(context.Background(), period))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()
		repo := NewPeriodRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE periods SET name = ")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(context.Background(), period)
		assert.ErrorIs(t, err, sql.ErrNoRows)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
