package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgta/sgta-api/internal/dto"
	appErrors "github.com/sgta/sgta-api/pkg/errors"
)

type reportServiceMock struct {
	sheet   *dto.GradeSheet
	err     error
	lastReq dto.GradeSheetRequest
}

func (m *reportServiceMock) GradeSheet(ctx context.Context, req dto.GradeSheetRequest) (*dto.GradeSheet, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.sheet, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

// serve runs a request through r so statuses set without a body are flushed.
func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestReportHandlerGradeSheet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{sheet: &dto.GradeSheet{
		Filename:    "grade-sheet-2024-1.csv",
		ContentType: "text/csv",
		Body:        []byte("Student,Subject\n"),
	}}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/grade-sheet?period_id=p-1&format=csv", nil)
	handler.GradeSheet(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-1", mockSvc.lastReq.PeriodID)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "grade-sheet-2024-1.csv")
	assert.Equal(t, "Student,Subject\n", w.Body.String())
}

func TestReportHandlerGradeSheetError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{err: appErrors.ErrPeriodNotFound})

	c, w := newGinContext(http.MethodGet, "/reports/grade-sheet?period_id=missing", nil)
	handler.GradeSheet(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "PERIOD_NOT_FOUND")
}
