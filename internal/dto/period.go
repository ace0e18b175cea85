package dto

import (
	"math"
	"time"

	"github.com/sgta/sgta-api/internal/models"
)

const day = 24 * time.Hour

// PeriodResponse is the public projection of a period including date-derived progress.
type PeriodResponse struct {
	models.Period
	DurationDays    int     `json:"duration_days"`
	DaysRemaining   int     `json:"days_remaining"`
	DaysElapsed     int     `json:"days_elapsed"`
	ProgressPercent float64 `json:"progress_percent"`
}

// NewPeriodResponse projects p at now.
func NewPeriodResponse(p models.Period, now time.Time) PeriodResponse {
	total := p.EndDate.Sub(p.StartDate)
	resp := PeriodResponse{Period: p}
	if total <= 0 {
		return resp
	}
	resp.DurationDays = int(math.Ceil(float64(total) / float64(day)))

	switch {
	case now.Before(p.StartDate):
		resp.DaysRemaining = resp.DurationDays
	case !now.Before(p.EndDate):
		resp.DaysElapsed = resp.DurationDays
		resp.ProgressPercent = 100
	default:
		elapsed := now.Sub(p.StartDate)
		resp.DaysElapsed = int(elapsed / day)
		resp.DaysRemaining = int(math.Ceil(float64(p.EndDate.Sub(now)) / float64(day)))
		resp.ProgressPercent = math.Round(float64(elapsed)/float64(total)*1000) / 10
	}
	return resp
}

// NewPeriodResponses projects a list of periods at now.
func NewPeriodResponses(periods []models.Period, now time.Time) []PeriodResponse {
	out := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, NewPeriodResponse(p, now))
	}
	return out
}

// CreatePeriodRequest describes payload for creating academic periods.
type CreatePeriodRequest struct {
	Name      string            `json:"name" validate:"required"`
	Kind      models.PeriodKind `json:"kind" validate:"required,oneof=SEMESTER TRIMESTER QUARTER INTENSIVE"`
	StartDate time.Time         `json:"start_date" validate:"required"`
	EndDate   time.Time         `json:"end_date" validate:"required"`
}

// UpdatePeriodRequest patches mutable fields on a period. Nil fields are left untouched.
type UpdatePeriodRequest struct {
	Name      *string            `json:"name" validate:"omitempty,min=1"`
	Kind      *models.PeriodKind `json:"kind" validate:"omitempty,oneof=SEMESTER TRIMESTER QUARTER INTENSIVE"`
	StartDate *time.Time         `json:"start_date"`
	EndDate   *time.Time         `json:"end_date"`
}

// HasDates reports whether the patch touches the period window.
func (r UpdatePeriodRequest) HasDates() bool {
	return r.StartDate != nil || r.EndDate != nil
}

// OverlapDetail identifies a period in conflict with the requested window.
type OverlapDetail struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// OverlapPair is one unordered pair of overlapping periods.
type OverlapPair struct {
	First  models.Period `json:"first"`
	Second models.Period `json:"second"`
}

// SweepFailure records a period whose refresh could not be persisted.
type SweepFailure struct {
	PeriodID string `json:"period_id"`
	Error    string `json:"error"`
}

// SweepSummary reports the outcome of one status sweep.
type SweepSummary struct {
	RanAt     time.Time      `json:"ran_at"`
	Checked   int            `json:"checked"`
	Updated   int            `json:"updated"`
	Activated int            `json:"activated"`
	Finished  int            `json:"finished"`
	Failures  []SweepFailure `json:"failures,omitempty"`
}

// PendingRefresh describes a period whose stored state disagrees with its derived state.
type PendingRefresh struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	CurrentStatus    models.PeriodStatus `json:"current_status"`
	DerivedStatus    models.PeriodStatus `json:"derived_status"`
	CurrentIsCurrent bool                `json:"current_is_current"`
	DerivedIsCurrent bool                `json:"derived_is_current"`
}

// SweeperStatus describes the recurring sweep scheduler.
type SweeperStatus struct {
	Running     bool          `json:"running"`
	Interval    string        `json:"interval,omitempty"`
	LastSummary *SweepSummary `json:"last_summary,omitempty"`
}
