package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgta/sgta-api/internal/dto"
	"github.com/sgta/sgta-api/internal/models"
	appErrors "github.com/sgta/sgta-api/pkg/errors"
)

type enrollmentServiceMock struct {
	enrollment   models.Enrollment
	err          error
	lastCreate   dto.CreateEnrollmentRequest
	lastGrade    dto.PostGradeRequest
	lastSubject  string
	lastStatus   models.EnrollmentStatus
	statsPeriod  string
	listedPeriod string
}

func (m *enrollmentServiceMock) result() (*models.Enrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	e := m.enrollment
	return &e, nil
}

func (m *enrollmentServiceMock) Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.Enrollment, error) {
	m.lastCreate = req
	return m.result()
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	return m.result()
}

func (m *enrollmentServiceMock) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	return []models.Enrollment{m.enrollment}, m.err
}

func (m *enrollmentServiceMock) ListByPeriod(ctx context.Context, periodID string) ([]models.Enrollment, error) {
	m.listedPeriod = periodID
	return []models.Enrollment{m.enrollment}, m.err
}

func (m *enrollmentServiceMock) PostGrade(ctx context.Context, id, subjectID string, req dto.PostGradeRequest) (*models.Enrollment, error) {
	m.lastSubject = subjectID
	m.lastGrade = req
	return m.result()
}

func (m *enrollmentServiceMock) AddSubject(ctx context.Context, id string, req dto.AddSubjectRequest) (*models.Enrollment, error) {
	m.lastSubject = req.SubjectID
	return m.result()
}

func (m *enrollmentServiceMock) RemoveSubject(ctx context.Context, id, subjectID string) (*models.Enrollment, error) {
	m.lastSubject = subjectID
	return m.result()
}

func (m *enrollmentServiceMock) MarkInProgress(ctx context.Context, id, subjectID string) (*models.Enrollment, error) {
	m.lastSubject = subjectID
	return m.result()
}

func (m *enrollmentServiceMock) Withdraw(ctx context.Context, id, subjectID string) (*models.Enrollment, error) {
	m.lastSubject = subjectID
	return m.result()
}

func (m *enrollmentServiceMock) UpdateStatus(ctx context.Context, id string, req dto.UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	m.lastStatus = req.Status
	return m.result()
}

func (m *enrollmentServiceMock) AggregateStatistics(ctx context.Context, periodID string) (*dto.AggregateStatistics, error) {
	m.statsPeriod = periodID
	if m.err != nil {
		return nil, m.err
	}
	return &dto.AggregateStatistics{PeriodID: periodID, Enrollments: 2, Subjects: models.EnrollmentStatistics{Total: 4, Passed: 3, Failed: 1, PassRate: 75}}, nil
}

func sampleEnrollment() models.Enrollment {
	return models.Enrollment{
		ID:        "e-1",
		StudentID: "s-1",
		PeriodID:  "p-1",
		Status:    models.EnrollmentStatusActive,
		Version:   2,
		Subjects: models.SubjectGrades{
			{SubjectID: "math", SubjectName: "Math", Status: models.SubjectStatusPassed, UnitA: 8, UnitB: 8, UnitC: 8, TotalGrade: 24},
			{SubjectID: "art", SubjectName: "Art", Status: models.SubjectStatusEnrolled},
		},
	}
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{enrollment: sampleEnrollment()}
	handler := NewEnrollmentHandler(svc)

	c, w := newGinContext(http.MethodPost, "/enrollments", []byte(`{"student_id":"s-1","period_id":"p-1","subject_ids":["math","art"]}`))
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"math", "art"}, svc.lastCreate.SubjectIDs)

	var resp dto.EnrollmentResponse
	decodeData(t, w.Body.Bytes(), &resp)
	assert.Equal(t, "e-1", resp.ID)
	assert.Equal(t, 2, resp.Statistics.Total)
	assert.Equal(t, 1, resp.Statistics.Passed)
}

func TestEnrollmentHandlerCreateErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"period closed", appErrors.ErrPeriodNotOpen, http.StatusPreconditionFailed, "PERIOD_NOT_OPEN"},
		{"duplicate", appErrors.ErrDuplicateEnrollment, http.StatusConflict, "DUPLICATE_ENROLLMENT"},
		{"unknown subject", appErrors.ErrSubjectNotFound, http.StatusNotFound, "SUBJECT_NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewEnrollmentHandler(&enrollmentServiceMock{err: tc.err})
			c, w := newGinContext(http.MethodPost, "/enrollments", []byte(`{"student_id":"s-1","period_id":"p-1","subject_ids":["math"]}`))
			handler.Create(c)

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
}

func TestEnrollmentHandlerPostGrade(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{enrollment: sampleEnrollment()}
	handler := NewEnrollmentHandler(svc)

	c, w := newGinContext(http.MethodPut, "/enrollments/e-1/subjects/math/grades", []byte(`{"unit":"APE","value":3}`))
	c.Params = gin.Params{{Key: "id", Value: "e-1"}, {Key: "subjectID", Value: "math"}}
	handler.PostGrade(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "math", svc.lastSubject)
	assert.Equal(t, "APE", svc.lastGrade.Unit)
	require.NotNil(t, svc.lastGrade.Value)
	assert.Equal(t, 3.0, *svc.lastGrade.Value)
}

func TestEnrollmentHandlerPostGradeInvalid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{err: appErrors.ErrInvalidGrade})

	c, w := newGinContext(http.MethodPut, "/enrollments/e-1/subjects/math/grades", []byte(`{"unit":"A","value":11}`))
	c.Params = gin.Params{{Key: "id", Value: "e-1"}, {Key: "subjectID", Value: "math"}}
	handler.PostGrade(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_GRADE")
}

func TestEnrollmentHandlerConcurrentUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnrollmentHandler(&enrollmentServiceMock{err: appErrors.ErrConcurrentUpdate})

	c, w := newGinContext(http.MethodPost, "/enrollments/e-1/subjects/math/withdraw", nil)
	c.Params = gin.Params{{Key: "id", Value: "e-1"}, {Key: "subjectID", Value: "math"}}
	handler.WithdrawSubject(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONCURRENT_UPDATE")
}

func TestEnrollmentHandlerSubjectRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{enrollment: sampleEnrollment()}
	handler := NewEnrollmentHandler(svc)
	params := gin.Params{{Key: "id", Value: "e-1"}, {Key: "subjectID", Value: "art"}}

	c, w := newGinContext(http.MethodPost, "/enrollments/e-1/subjects", []byte(`{"subject_id":"bio"}`))
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}
	handler.AddSubject(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bio", svc.lastSubject)

	c, w = newGinContext(http.MethodPost, "/enrollments/e-1/subjects/art/start", nil)
	c.Params = params
	handler.StartSubject(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "art", svc.lastSubject)

	c, w = newGinContext(http.MethodDelete, "/enrollments/e-1/subjects/art", nil)
	c.Params = params
	handler.RemoveSubject(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEnrollmentHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{enrollment: sampleEnrollment()}
	handler := NewEnrollmentHandler(svc)

	c, w := newGinContext(http.MethodPatch, "/enrollments/e-1/status", []byte(`{"status":"SUSPENDED"}`))
	c.Params = gin.Params{{Key: "id", Value: "e-1"}}
	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EnrollmentStatusSuspended, svc.lastStatus)
}

func TestEnrollmentHandlerListByPeriod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{enrollment: sampleEnrollment()}
	handler := NewEnrollmentHandler(svc)

	c, w := newGinContext(http.MethodGet, "/periods/p-1/enrollments", nil)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	handler.ListByPeriod(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-1", svc.listedPeriod)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestEnrollmentHandlerStatistics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(svc)

	c, w := newGinContext(http.MethodGet, "/enrollments/statistics?period_id=p-1", nil)
	handler.Statistics(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-1", svc.statsPeriod)
	var stats dto.AggregateStatistics
	decodeData(t, w.Body.Bytes(), &stats)
	assert.Equal(t, 2, stats.Enrollments)
	assert.Equal(t, 75.0, stats.Subjects.PassRate)
}
