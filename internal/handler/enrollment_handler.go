package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sgta/sgta-api/internal/dto"
	"github.com/sgta/sgta-api/internal/models"
	"github.com/sgta/sgta-api/pkg/response"
)

type enrollmentService interface {
	Create(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.Enrollment, error)
	Get(ctx context.Context, id string) (*models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListByPeriod(ctx context.Context, periodID string) ([]models.Enrollment, error)
	PostGrade(ctx context.Context, id, subjectID string, req dto.PostGradeRequest) (*models.Enrollment, error)
	AddSubject(ctx context.Context, id string, req dto.AddSubjectRequest) (*models.Enrollment, error)
	RemoveSubject(ctx context.Context, id, subjectID string) (*models.Enrollment, error)
	MarkInProgress(ctx context.Context, id, subjectID string) (*models.Enrollment, error)
	Withdraw(ctx context.Context, id, subjectID string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateEnrollmentStatusRequest) (*models.Enrollment, error)
	AggregateStatistics(ctx context.Context, periodID string) (*dto.AggregateStatistics, error)
}

// EnrollmentHandler exposes enrollment and grading endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Create godoc
// @Summary Enroll student
// @Description Enrolls a student into the current period
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.Create(c.Request.Context(), req)
	respondEnrollment(c, http.StatusCreated, enrollment, err)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	respondEnrollment(c, http.StatusOK, enrollment, err)
}

// ListByStudent godoc
// @Summary List enrollments of a student
// @Tags Enrollments
// @Produce json
// @Param studentID path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentID}/enrollments [get]
func (h *EnrollmentHandler) ListByStudent(c *gin.Context) {
	list, err := h.service.ListByStudent(c.Request.Context(), c.Param("studentID"))
	respondEnrollments(c, list, err)
}

// ListByPeriod godoc
// @Summary List enrollments of a period
// @Tags Enrollments
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/enrollments [get]
func (h *EnrollmentHandler) ListByPeriod(c *gin.Context) {
	list, err := h.service.ListByPeriod(c.Request.Context(), c.Param("id"))
	respondEnrollments(c, list, err)
}

// PostGrade godoc
// @Summary Post unit grade
// @Description Writes unit A, B or C (also AA, APE, ACD) of a subject; values range 0-10
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param subjectID path string true "Subject ID"
// @Param payload body dto.PostGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/subjects/{subjectID}/grades [put]
func (h *EnrollmentHandler) PostGrade(c *gin.Context) {
	var req dto.PostGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.PostGrade(c.Request.Context(), c.Param("id"), c.Param("subjectID"), req)
	respondEnrollment(c, http.StatusOK, enrollment, err)
}

// AddSubject godoc
// @Summary Add subject
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.AddSubjectRequest true "Subject payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/subjects [post]
func (h *EnrollmentHandler) AddSubject(c *gin.Context) {
	var req dto.AddSubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.AddSubject(c.Request.Context(), c.Param("id"), req)
	respondEnrollment(c, http.StatusOK, enrollment, err)
}

// RemoveSubject godoc
// @Summary Remove subject
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param subjectID path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/subjects/{subjectID} [delete]
func (h *EnrollmentHandler) RemoveSubject(c *gin.Context) {
	enrollment, err := h.service.RemoveSubject(c.Request.Context(), c.Param("id"), c.Param("subjectID"))
	respondEnrollment(c, http.StatusOK, enrollment, err)
}

// StartSubject godoc
// @Summary Mark subject in progress
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param subjectID path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/subjects/{subjectID}/start [post]
func (h *EnrollmentHandler) StartSubject(c *gin.Context) {
	enrollment, err := h.service.MarkInProgress(c.Request.Context(), c.Param("id"), c.Param("subjectID"))
	respondEnrollment(c, http.StatusOK, enrollment, err)
}

// WithdrawSubject godoc
// @Summary Withdraw from subject
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param subjectID path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/subjects/{subjectID}/withdraw [post]
func (h *EnrollmentHandler) WithdrawSubject(c *gin.Context) {
	enrollment, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), c.Param("subjectID"))
	respondEnrollment(c, http.StatusOK, enrollment, err)
}

// UpdateStatus godoc
// @Summary Change enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.UpdateEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateEnrollmentStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	respondEnrollment(c, http.StatusOK, enrollment, err)
}

// Statistics godoc
// @Summary Aggregate subject statistics
// @Tags Enrollments
// @Produce json
// @Param period_id query string false "Restrict to one period"
// @Success 200 {object} response.Envelope
// @Router /enrollments/statistics [get]
func (h *EnrollmentHandler) Statistics(c *gin.Context) {
	stats, err := h.service.AggregateStatistics(c.Request.Context(), c.Query("period_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func respondEnrollment(c *gin.Context, status int, enrollment *models.Enrollment, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, dto.NewEnrollmentResponse(*enrollment), nil)
}

func respondEnrollments(c *gin.Context, list []models.Enrollment, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewEnrollmentResponses(list), nil, map[string]interface{}{"count": len(list)})
}
