package dto

import "github.com/sgta/sgta-api/internal/models"

// CreateEnrollmentRequest enrolls a student into a period with an initial subject list.
type CreateEnrollmentRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	PeriodID   string   `json:"period_id" validate:"required"`
	SubjectIDs []string `json:"subject_ids" validate:"required,min=1,dive,required"`
}

// PostGradeRequest writes one unit grade. Unit accepts A/B/C or AA/APE/ACD.
type PostGradeRequest struct {
	Unit  string   `json:"unit" validate:"required"`
	Value *float64 `json:"value" validate:"required"`
}

// AddSubjectRequest adds a subject to an existing enrollment.
type AddSubjectRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
}

// UpdateEnrollmentStatusRequest changes the enrollment status.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE COMPLETED SUSPENDED"`
}

// EnrollmentResponse is the enrollment projection including its statistics.
type EnrollmentResponse struct {
	models.Enrollment
	Statistics models.EnrollmentStatistics `json:"statistics"`
}

// NewEnrollmentResponse projects e.
func NewEnrollmentResponse(e models.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{Enrollment: e, Statistics: e.Statistics()}
}

// NewEnrollmentResponses projects a list of enrollments.
func NewEnrollmentResponses(list []models.Enrollment) []EnrollmentResponse {
	out := make([]EnrollmentResponse, 0, len(list))
	for _, e := range list {
		out = append(out, NewEnrollmentResponse(e))
	}
	return out
}

// AggregateStatistics sums subject outcomes across enrollments.
type AggregateStatistics struct {
	PeriodID    string                      `json:"period_id,omitempty"`
	Enrollments int                         `json:"enrollments"`
	Subjects    models.EnrollmentStatistics `json:"subjects"`
}
