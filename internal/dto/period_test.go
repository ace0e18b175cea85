package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sgta/sgta-api/internal/models"
)

func TestNewPeriodResponse(t *testing.T) {
	p := models.Period{
		ID:        "p1",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}

	before := NewPeriodResponse(p, p.StartDate.Add(-time.Hour))
	assert.Equal(t, 10, before.DurationDays)
	assert.Equal(t, 10, before.DaysRemaining)
	assert.Zero(t, before.DaysElapsed)
	assert.Zero(t, before.ProgressPercent)

	mid := NewPeriodResponse(p, p.StartDate.Add(4*24*time.Hour+time.Hour))
	assert.Equal(t, 4, mid.DaysElapsed)
	assert.Equal(t, 6, mid.DaysRemaining)
	assert.Equal(t, 40.4, mid.ProgressPercent)

	after := NewPeriodResponse(p, p.EndDate.Add(time.Hour))
	assert.Equal(t, 10, after.DaysElapsed)
	assert.Zero(t, after.DaysRemaining)
	assert.Equal(t, 100.0, after.ProgressPercent)
	assert.Equal(t, "p1", after.ID)
}

func TestNewPeriodResponseInvalidWindow(t *testing.T) {
	now := time.Now()
	resp := NewPeriodResponse(models.Period{StartDate: now, EndDate: now}, now)
	assert.Zero(t, resp.DurationDays)
	assert.Zero(t, resp.ProgressPercent)
}
