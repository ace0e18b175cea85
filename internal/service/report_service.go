package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sgta/sgta-api/internal/dto"
	"github.com/sgta/sgta-api/internal/models"
	appErrors "github.com/sgta/sgta-api/pkg/errors"
	"github.com/sgta/sgta-api/pkg/export"
)

type periodEnrollmentLister interface {
	ListByPeriod(ctx context.Context, periodID string) ([]models.Enrollment, error)
}

var gradeSheetHeaders = []string{"Student", "Subject", "Unit A", "Unit B", "Unit C", "Total", "Status"}

var filenameUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// ReportService renders period grade sheets.
type ReportService struct {
	periods     periodReader
	enrollments periodEnrollmentLister
	renderers   map[export.Format]export.Renderer
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReportService constructs ReportService. Nil renderers fall back to the default exporters.
func NewReportService(periods periodReader, enrollments periodEnrollmentLister, csv, pdf export.Renderer, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		periods:     periods,
		enrollments: enrollments,
		renderers:   map[export.Format]export.Renderer{export.FormatCSV: csv, export.FormatPDF: pdf},
		validator:   validate,
		logger:      logger,
	}
}

// GradeSheet renders one row per student and subject of the period.
func (s *ReportService) GradeSheet(ctx context.Context, req dto.GradeSheetRequest) (*dto.GradeSheet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade sheet request")
	}
	format := req.Format
	if format == "" {
		format = export.FormatCSV
	}

	period, err := s.periods.FindByID(ctx, req.PeriodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPeriodNotFound, "")
		}
		return nil, appErrors.Dependency(err, "failed to load period")
	}
	list, err := s.enrollments.ListByPeriod(ctx, period.ID)
	if err != nil {
		return nil, appErrors.Dependency(err, "failed to load enrollments")
	}

	dataset := buildGradeSheet(*period, list)
	body, err := s.renderers[format].Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Kind, appErrors.ErrInternal.Status, "failed to render grade sheet")
	}

	s.logger.Info("grade sheet rendered",
		zap.String("period_id", period.ID),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &dto.GradeSheet{
		Filename:    gradeSheetFilename(period.Name, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func buildGradeSheet(period models.Period, list []models.Enrollment) export.Dataset {
	sort.SliceStable(list, func(i, j int) bool { return list[i].StudentID < list[j].StudentID })

	rows := make([]map[string]string, 0)
	for _, e := range list {
		for _, g := range e.Subjects {
			rows = append(rows, map[string]string{
				"Student": e.StudentID,
				"Subject": g.SubjectName,
				"Unit A":  formatGrade(g.UnitA),
				"Unit B":  formatGrade(g.UnitB),
				"Unit C":  formatGrade(g.UnitC),
				"Total":   formatGrade(g.TotalGrade),
				"Status":  string(g.Status),
			})
		}
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Grade sheet %s", period.Name),
		Headers: gradeSheetHeaders,
		Rows:    rows,
	}
}

func formatGrade(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func gradeSheetFilename(periodName string, format export.Format) string {
	slug := strings.Trim(filenameUnsafe.ReplaceAllString(strings.ToLower(periodName), "-"), "-")
	if slug == "" {
		slug = "period"
	}
	return fmt.Sprintf("grade-sheet-%s.%s", slug, format)
}
