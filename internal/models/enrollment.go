package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	appErrors "github.com/sgta/sgta-api/pkg/errors"
)

// Grade bounds. A subject is passed once the three units add up to PassingGrade.
const (
	MinUnitGrade = 0.0
	MaxUnitGrade = 10.0
	PassingGrade = 21.0
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
)

// Valid reports whether s is a recognised status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusSuspended:
		return true
	}
	return false
}

// SubjectStatus tracks a student's standing in one subject.
type SubjectStatus string

const (
	SubjectStatusEnrolled   SubjectStatus = "ENROLLED"
	SubjectStatusInProgress SubjectStatus = "IN_PROGRESS"
	SubjectStatusPassed     SubjectStatus = "PASSED"
	SubjectStatusFailed     SubjectStatus = "FAILED"
	SubjectStatusWithdrawn  SubjectStatus = "WITHDRAWN"
)

// GradeUnit names one of the three grade components.
type GradeUnit string

// Units A, B and C are the academic-work (AA), practical-experiential (APE)
// and teacher-contact (ACD) components.
const (
	GradeUnitA GradeUnit = "A"
	GradeUnitB GradeUnit = "B"
	GradeUnitC GradeUnit = "C"
)

// ParseGradeUnit accepts A/B/C as well as the AA/APE/ACD labels, case-insensitively.
func ParseGradeUnit(raw string) (GradeUnit, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "A", "AA":
		return GradeUnitA, true
	case "B", "APE":
		return GradeUnitB, true
	case "C", "ACD":
		return GradeUnitC, true
	}
	return GradeUnit(raw), false
}

// SubjectGrade is the per-subject record embedded in an enrollment.
type SubjectGrade struct {
	SubjectID   string        `json:"subject_id"`
	SubjectName string        `json:"subject_name"`
	Status      SubjectStatus `json:"status"`
	UnitA       float64       `json:"unit_a"`
	UnitB       float64       `json:"unit_b"`
	UnitC       float64       `json:"unit_c"`
	TotalGrade  float64       `json:"total_grade"`
	GradedAt    *time.Time    `json:"graded_at,omitempty"`
}

func (g *SubjectGrade) recompute() {
	g.TotalGrade = g.UnitA + g.UnitB + g.UnitC
	if g.Status == SubjectStatusWithdrawn {
		return
	}
	switch {
	case g.TotalGrade >= PassingGrade:
		g.Status = SubjectStatusPassed
	case g.TotalGrade > 0:
		g.Status = SubjectStatusFailed
	case g.Status == SubjectStatusPassed || g.Status == SubjectStatusFailed:
		g.Status = SubjectStatusEnrolled
	}
}

// SubjectGrades is stored as a single JSONB document column.
type SubjectGrades []SubjectGrade

// Value implements driver.Valuer.
func (s SubjectGrades) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *SubjectGrades) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = SubjectGrades{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan subject grades: unsupported type %T", src)
	}
	var out SubjectGrades
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan subject grades: %w", err)
	}
	*s = out
	return nil
}

// Enrollment aggregates one student's subjects within a period. Subjects keep
// enrollment order and are unique by SubjectID. Version guards whole-document writes.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	PeriodID   string           `db:"period_id" json:"period_id"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Subjects   SubjectGrades    `db:"subjects" json:"subjects"`
	Version    int              `db:"version" json:"version"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

func (e *Enrollment) indexOf(subjectID string) int {
	for i := range e.Subjects {
		if e.Subjects[i].SubjectID == subjectID {
			return i
		}
	}
	return -1
}

// Subject returns the grade record for subjectID.
func (e *Enrollment) Subject(subjectID string) (SubjectGrade, bool) {
	if i := e.indexOf(subjectID); i >= 0 {
		return e.Subjects[i], true
	}
	return SubjectGrade{}, false
}

// AddSubject appends a zero-graded ENROLLED record. It returns false when the
// subject is already present.
func (e *Enrollment) AddSubject(subjectID, subjectName string, now time.Time) bool {
	if e.indexOf(subjectID) >= 0 {
		return false
	}
	e.Subjects = append(e.Subjects, SubjectGrade{
		SubjectID:   subjectID,
		SubjectName: subjectName,
		Status:      SubjectStatusEnrolled,
	})
	e.UpdatedAt = now
	return true
}

// RemoveSubject drops the record for subjectID. It returns false when absent.
func (e *Enrollment) RemoveSubject(subjectID string, now time.Time) bool {
	i := e.indexOf(subjectID)
	if i < 0 {
		return false
	}
	e.Subjects = append(e.Subjects[:i], e.Subjects[i+1:]...)
	e.UpdatedAt = now
	return true
}

// PostUnitGrade writes one unit grade and recomputes the total and status.
// A WITHDRAWN subject keeps its status while its numbers are updated.
func (e *Enrollment) PostUnitGrade(subjectID string, unit GradeUnit, value float64, now time.Time) error {
	i := e.indexOf(subjectID)
	if i < 0 {
		return appErrors.Clone(appErrors.ErrSubjectNotFound, fmt.Sprintf("subject %s is not part of the enrollment", subjectID))
	}
	if math.IsNaN(value) || value < MinUnitGrade || value > MaxUnitGrade {
		return appErrors.Clone(appErrors.ErrInvalidGrade, "")
	}

	g := e.Subjects[i]
	switch unit {
	case GradeUnitA:
		g.UnitA = value
	case GradeUnitB:
		g.UnitB = value
	case GradeUnitC:
		g.UnitC = value
	default:
		return appErrors.Clone(appErrors.ErrInvalidUnit, fmt.Sprintf("unknown grade unit %q", unit))
	}
	g.recompute()
	gradedAt := now
	g.GradedAt = &gradedAt
	e.Subjects[i] = g
	e.UpdatedAt = now
	return nil
}

// MarkInProgress flags a subject as being taken. Absent subjects are ignored.
func (e *Enrollment) MarkInProgress(subjectID string, now time.Time) bool {
	return e.setSubjectStatus(subjectID, SubjectStatusInProgress, now)
}

// Withdraw flags a subject as withdrawn. Absent subjects are ignored.
func (e *Enrollment) Withdraw(subjectID string, now time.Time) bool {
	return e.setSubjectStatus(subjectID, SubjectStatusWithdrawn, now)
}

func (e *Enrollment) setSubjectStatus(subjectID string, status SubjectStatus, now time.Time) bool {
	i := e.indexOf(subjectID)
	if i < 0 {
		return false
	}
	e.Subjects[i].Status = status
	e.UpdatedAt = now
	return true
}

// ChangeStatus moves the enrollment between ACTIVE, SUSPENDED and COMPLETED.
// COMPLETED is final; setting the current status again is a no-op.
func (e *Enrollment) ChangeStatus(target EnrollmentStatus, now time.Time) (bool, error) {
	if !target.Valid() {
		return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown enrollment status %q", target))
	}
	if target == e.Status {
		return false, nil
	}
	switch {
	case e.Status == EnrollmentStatusCompleted:
		return false, appErrors.Clone(appErrors.ErrInvalidTransition, "completed enrollments cannot change status")
	case e.Status == EnrollmentStatusSuspended && target == EnrollmentStatusCompleted:
		return false, appErrors.Clone(appErrors.ErrInvalidTransition, "suspended enrollments must be reactivated first")
	}
	e.Status = target
	e.UpdatedAt = now
	return true, nil
}

// Statistics summarises subject outcomes.
func (e *Enrollment) Statistics() EnrollmentStatistics {
	var stats EnrollmentStatistics
	for _, g := range e.Subjects {
		stats.count(g.Status)
	}
	stats.finalize()
	return stats
}

// IsValid checks the aggregate's structural invariants.
func (e *Enrollment) IsValid() bool {
	return e.StudentID != "" && e.PeriodID != "" && len(e.Subjects) > 0
}

// EnrollmentStatistics counts subjects per status.
type EnrollmentStatistics struct {
	Total      int     `json:"total"`
	Enrolled   int     `json:"enrolled"`
	InProgress int     `json:"in_progress"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
	Withdrawn  int     `json:"withdrawn"`
	PassRate   float64 `json:"pass_rate"`
}

func (s *EnrollmentStatistics) count(status SubjectStatus) {
	s.Total++
	switch status {
	case SubjectStatusEnrolled:
		s.Enrolled++
	case SubjectStatusInProgress:
		s.InProgress++
	case SubjectStatusPassed:
		s.Passed++
	case SubjectStatusFailed:
		s.Failed++
	case SubjectStatusWithdrawn:
		s.Withdrawn++
	}
}

func (s *EnrollmentStatistics) finalize() {
	s.PassRate = 0
	if s.Total > 0 {
		s.PassRate = float64(s.Passed) / float64(s.Total)
	}
}

// Add accumulates other into s and recomputes the pass rate.
func (s *EnrollmentStatistics) Add(other EnrollmentStatistics) {
	s.Total += other.Total
	s.Enrolled += other.Enrolled
	s.InProgress += other.InProgress
	s.Passed += other.Passed
	s.Failed += other.Failed
	s.Withdrawn += other.Withdrawn
	s.finalize()
}
