package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/sgta/sgta-api/internal/dto"
	"github.com/sgta/sgta-api/pkg/response"
)

type reportService interface {
	GradeSheet(ctx context.Context, req dto.GradeSheetRequest) (*dto.GradeSheet, error)
}

// ReportHandler serves generated documents.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// GradeSheet godoc
// @Summary Download period grade sheet
// @Description One row per student and subject with unit grades, total and status
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param period_id query string true "Period ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /reports/grade-sheet [get]
func (h *ReportHandler) GradeSheet(c *gin.Context) {
	var req dto.GradeSheetRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	sheet, err := h.service.GradeSheet(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, sheet.Filename, sheet.ContentType, sheet.Body)
}
