package dto

import "github.com/sgta/sgta-api/pkg/export"

// GradeSheetRequest selects the period and format of a grade sheet export.
type GradeSheetRequest struct {
	PeriodID string        `form:"period_id" validate:"required"`
	Format   export.Format `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// GradeSheet is a rendered export ready to stream.
type GradeSheet struct {
	Filename    string
	ContentType string
	Body        []byte
}
