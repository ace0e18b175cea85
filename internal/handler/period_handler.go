package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sgta/sgta-api/internal/dto"
	"github.com/sgta/sgta-api/internal/models"
	"github.com/sgta/sgta-api/pkg/response"
)

type periodService interface {
	Now() time.Time
	List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, error)
	Get(ctx context.Context, id string) (*models.Period, error)
	GetCurrent(ctx context.Context) (*models.Period, error)
	Create(ctx context.Context, req dto.CreatePeriodRequest) (*models.Period, error)
	Update(ctx context.Context, id string, req dto.UpdatePeriodRequest) (*models.Period, error)
	Activate(ctx context.Context, id string) (*models.Period, error)
	Finish(ctx context.Context, id string) (*models.Period, error)
	Cancel(ctx context.Context, id string) (*models.Period, error)
	Delete(ctx context.Context, id string) error
	PendingRefresh(ctx context.Context, now time.Time) ([]dto.PendingRefresh, error)
	FindOverlaps(ctx context.Context) ([]dto.OverlapPair, error)
}

type periodSweeper interface {
	RunNow(ctx context.Context) (dto.SweepSummary, error)
	Status() dto.SweeperStatus
}

// PeriodHandler exposes academic period endpoints.
type PeriodHandler struct {
	service periodService
	sweeper periodSweeper
}

// NewPeriodHandler constructs a period handler.
func NewPeriodHandler(svc periodService, sweeper periodSweeper) *PeriodHandler {
	return &PeriodHandler{service: svc, sweeper: sweeper}
}

// List godoc
// @Summary List periods
// @Description List academic periods ordered by start date
// @Tags Periods
// @Produce json
// @Param kind query string false "SEMESTER, TRIMESTER, QUARTER or INTENSIVE"
// @Param status query string false "PLANNING, ACTIVE, FINISHED or CANCELLED"
// @Param is_current query bool false "Filter by current flag"
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	filter := models.PeriodFilter{
		Kind:      models.PeriodKind(c.Query("kind")),
		Status:    models.PeriodStatus(c.Query("status")),
		IsCurrent: optionalBool(c, "is_current"),
	}
	periods, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewPeriodResponses(periods, h.service.Now()), nil)
}

// Current godoc
// @Summary Get current period
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /periods/current [get]
func (h *PeriodHandler) Current(c *gin.Context) {
	period, err := h.service.GetCurrent(c.Request.Context())
	h.respond(c, http.StatusOK, period, err)
}

// Get godoc
// @Summary Get period
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /periods/{id} [get]
func (h *PeriodHandler) Get(c *gin.Context) {
	period, err := h.service.Get(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, period, err)
}

// Create godoc
// @Summary Create period
// @Tags Periods
// @Accept json
// @Produce json
// @Param payload body dto.CreatePeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	var req dto.CreatePeriodRequest
	if !bindJSON(c, &req) {
		return
	}
	period, err := h.service.Create(c.Request.Context(), req)
	h.respond(c, http.StatusCreated, period, err)
}

// Update godoc
// @Summary Update period
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body dto.UpdatePeriodRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [patch]
func (h *PeriodHandler) Update(c *gin.Context) {
	var req dto.UpdatePeriodRequest
	if !bindJSON(c, &req) {
		return
	}
	period, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	h.respond(c, http.StatusOK, period, err)
}

// Activate godoc
// @Summary Activate period
// @Description Starts a planning period and clears the current flag on every other period
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods/{id}/activate [post]
func (h *PeriodHandler) Activate(c *gin.Context) {
	period, err := h.service.Activate(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, period, err)
}

// Finish godoc
// @Summary Finish period
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/finish [post]
func (h *PeriodHandler) Finish(c *gin.Context) {
	period, err := h.service.Finish(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, period, err)
}

// Cancel godoc
// @Summary Cancel period
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/cancel [post]
func (h *PeriodHandler) Cancel(c *gin.Context) {
	period, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, period, err)
}

// Delete godoc
// @Summary Delete period
// @Description Only planning periods can be deleted
// @Tags Periods
// @Param id path string true "Period ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /periods/{id} [delete]
func (h *PeriodHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Overlaps godoc
// @Summary List overlapping period pairs
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/overlaps [get]
func (h *PeriodHandler) Overlaps(c *gin.Context) {
	pairs, err := h.service.FindOverlaps(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pairs, nil, map[string]interface{}{"count": len(pairs)})
}

// PendingRefresh godoc
// @Summary Preview sweep changes
// @Description Lists periods whose stored status differs from the date-derived status without writing
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/sweep/pending [get]
func (h *PeriodHandler) PendingRefresh(c *gin.Context) {
	pending, err := h.service.PendingRefresh(c.Request.Context(), h.service.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil, map[string]interface{}{"count": len(pending)})
}

// Sweep godoc
// @Summary Run status sweep
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/sweep [post]
func (h *PeriodHandler) Sweep(c *gin.Context) {
	summary, err := h.sweeper.RunNow(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// SweepStatus godoc
// @Summary Sweep scheduler status
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/sweep [get]
func (h *PeriodHandler) SweepStatus(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.sweeper.Status(), nil)
}

func (h *PeriodHandler) respond(c *gin.Context, status int, period *models.Period, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, dto.NewPeriodResponse(*period, h.service.Now()), nil)
}
