package models

import (
	"strings"
	"time"

	appErrors "github.com/sgta/sgta-api/pkg/errors"
)

// PeriodKind represents the type of academic period.
type PeriodKind string

const (
	PeriodKindSemester  PeriodKind = "SEMESTER"
	PeriodKindTrimester PeriodKind = "TRIMESTER"
	PeriodKindQuarter   PeriodKind = "QUARTER"
	PeriodKindIntensive PeriodKind = "INTENSIVE"
)

// Valid reports whether k is a recognised kind.
func (k PeriodKind) Valid() bool {
	switch k {
	case PeriodKindSemester, PeriodKindTrimester, PeriodKindQuarter, PeriodKindIntensive:
		return true
	}
	return false
}

// PeriodStatus is the lifecycle status of a period.
//
//	PLANNING -> ACTIVE -> FINISHED
//	PLANNING | ACTIVE -> CANCELLED
type PeriodStatus string

const (
	PeriodStatusPlanning  PeriodStatus = "PLANNING"
	PeriodStatusActive    PeriodStatus = "ACTIVE"
	PeriodStatusFinished  PeriodStatus = "FINISHED"
	PeriodStatusCancelled PeriodStatus = "CANCELLED"
)

// Terminal reports whether no transition leaves s.
func (s PeriodStatus) Terminal() bool {
	return s == PeriodStatusFinished || s == PeriodStatusCancelled
}

// Valid reports whether s is a recognised status.
func (s PeriodStatus) Valid() bool {
	switch s {
	case PeriodStatusPlanning, PeriodStatusActive, PeriodStatusFinished, PeriodStatusCancelled:
		return true
	}
	return false
}

// Period models an academic term. Status and IsCurrent are derived from the
// dates but persisted for querying. IsCurrent mirrors Status == ACTIVE.
type Period struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Kind      PeriodKind   `db:"kind" json:"kind"`
	StartDate time.Time    `db:"start_date" json:"start_date"`
	EndDate   time.Time    `db:"end_date" json:"end_date"`
	Status    PeriodStatus `db:"status" json:"status"`
	IsCurrent bool         `db:"is_current" json:"is_current"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// DeriveStatus computes the date-based status at now. Only PLANNING, ACTIVE or
// FINISHED are ever returned; both endpoints belong to the ACTIVE window.
func (p *Period) DeriveStatus(now time.Time) PeriodStatus {
	switch {
	case now.Before(p.StartDate):
		return PeriodStatusPlanning
	case now.After(p.EndDate):
		return PeriodStatusFinished
	default:
		return PeriodStatusActive
	}
}

// DeriveIsCurrent reports whether the period is running at now.
func (p *Period) DeriveIsCurrent(now time.Time) bool {
	return p.DeriveStatus(now) == PeriodStatusActive
}

// RefreshDerivedState converges Status and IsCurrent toward the derived values
// and bumps UpdatedAt when either changes. Terminal statuses are kept; only the
// IsCurrent flag is corrected for them.
func (p *Period) RefreshDerivedState(now time.Time) bool {
	status := p.Status
	if !status.Terminal() {
		status = p.DeriveStatus(now)
	}
	current := status == PeriodStatusActive
	if status == p.Status && current == p.IsCurrent {
		return false
	}
	p.Status = status
	p.IsCurrent = current
	p.UpdatedAt = now
	return true
}

// CanActivate reports whether Activate would succeed at now.
func (p *Period) CanActivate(now time.Time) bool {
	return p.Status == PeriodStatusPlanning && !now.Before(p.StartDate)
}

// Activate moves a PLANNING period whose start date has been reached to ACTIVE.
func (p *Period) Activate(now time.Time) error {
	if !p.CanActivate(now) {
		if p.Status != PeriodStatusPlanning {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "only planning periods can be activated")
		}
		return appErrors.Clone(appErrors.ErrInvalidTransition, "period has not started yet")
	}
	p.Status = PeriodStatusActive
	p.IsCurrent = true
	p.UpdatedAt = now
	return nil
}

// Finish closes an ACTIVE period.
func (p *Period) Finish(now time.Time) error {
	if p.Status != PeriodStatusActive {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only active periods can be finished")
	}
	p.Status = PeriodStatusFinished
	p.IsCurrent = false
	p.UpdatedAt = now
	return nil
}

// Cancel aborts a PLANNING or ACTIVE period.
func (p *Period) Cancel(now time.Time) error {
	if p.Status != PeriodStatusPlanning && p.Status != PeriodStatusActive {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only planning or active periods can be cancelled")
	}
	p.Status = PeriodStatusCancelled
	p.IsCurrent = false
	p.UpdatedAt = now
	return nil
}

// Overlaps reports whether the two periods share an instant. Touching
// endpoints do not overlap.
func (p *Period) Overlaps(other Period) bool {
	return p.StartDate.Before(other.EndDate) && p.EndDate.After(other.StartDate)
}

// IsValid checks the structural invariants of the period.
func (p *Period) IsValid() bool {
	return strings.TrimSpace(p.Name) != "" && p.StartDate.Before(p.EndDate) && p.Kind.Valid()
}

// PeriodFilter defines filters supported by list endpoints.
type PeriodFilter struct {
	Kind      PeriodKind
	Status    PeriodStatus
	IsCurrent *bool
}

// Matches reports whether p passes the filter.
func (f PeriodFilter) Matches(p Period) bool {
	if f.Kind != "" && p.Kind != f.Kind {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.IsCurrent != nil && p.IsCurrent != *f.IsCurrent {
		return false
	}
	return true
}

// PeriodPatch carries the derived fields written by batch updates.
type PeriodPatch struct {
	ID        string       `db:"id"`
	Status    PeriodStatus `db:"status"`
	IsCurrent bool         `db:"is_current"`
	UpdatedAt time.Time    `db:"updated_at"`
}

// PatchOf extracts the derived-state patch of p.
func PatchOf(p Period) PeriodPatch {
	return PeriodPatch{ID: p.ID, Status: p.Status, IsCurrent: p.IsCurrent, UpdatedAt: p.UpdatedAt}
}
