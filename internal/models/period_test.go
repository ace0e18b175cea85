package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/sgta/sgta-api/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newPeriod(start, end time.Time) *Period {
	return &Period{ID: "p1", Name: "2024-T1", Kind: PeriodKindTrimester, StartDate: start, EndDate: end, Status: PeriodStatusPlanning}
}

func TestPeriodDeriveStatus(t *testing.T) {
	p := newPeriod(date(2024, 1, 1), date(2024, 3, 31))

	assert.Equal(t, PeriodStatusPlanning, p.DeriveStatus(date(2023, 12, 1)))
	assert.Equal(t, PeriodStatusActive, p.DeriveStatus(date(2024, 2, 1)))
	assert.Equal(t, PeriodStatusFinished, p.DeriveStatus(date(2024, 4, 1)))

	assert.Equal(t, PeriodStatusActive, p.DeriveStatus(p.StartDate), "start is inclusive")
	assert.Equal(t, PeriodStatusActive, p.DeriveStatus(p.EndDate), "end is inclusive")
	assert.Equal(t, PeriodStatusFinished, p.DeriveStatus(p.EndDate.Add(time.Nanosecond)))

	assert.True(t, p.DeriveIsCurrent(date(2024, 2, 1)))
	assert.False(t, p.DeriveIsCurrent(date(2024, 4, 1)))
}

func TestPeriodDeriveStatusIsPure(t *testing.T) {
	p := newPeriod(date(2024, 1, 1), date(2024, 3, 31))
	before := *p
	for day := -30; day < 120; day += 7 {
		now := p.StartDate.AddDate(0, 0, day)
		first := p.DeriveStatus(now)
		assert.Equal(t, first, p.DeriveStatus(now))
		assert.Contains(t, []PeriodStatus{PeriodStatusPlanning, PeriodStatusActive, PeriodStatusFinished}, first)
	}
	assert.Equal(t, before, *p)
}

func TestPeriodRefreshDerivedState(t *testing.T) {
	p := newPeriod(date(2024, 1, 1), date(2024, 3, 31))
	now := date(2024, 2, 1)

	require.True(t, p.RefreshDerivedState(now))
	assert.Equal(t, PeriodStatusActive, p.Status)
	assert.True(t, p.IsCurrent)
	assert.Equal(t, now, p.UpdatedAt)

	assert.False(t, p.RefreshDerivedState(now), "second refresh is a no-op")

	later := date(2024, 5, 1)
	require.True(t, p.RefreshDerivedState(later))
	assert.Equal(t, PeriodStatusFinished, p.Status)
	assert.False(t, p.IsCurrent)
}

func TestPeriodRefreshKeepsTerminalStatus(t *testing.T) {
	p := newPeriod(date(2024, 1, 1), date(2024, 3, 31))
	p.Status = PeriodStatusCancelled
	p.IsCurrent = true

	require.True(t, p.RefreshDerivedState(date(2024, 2, 1)))
	assert.Equal(t, PeriodStatusCancelled, p.Status)
	assert.False(t, p.IsCurrent)
	assert.False(t, p.RefreshDerivedState(date(2024, 2, 1)))

	p.Status = PeriodStatusFinished
	assert.False(t, p.RefreshDerivedState(date(2024, 2, 1)))
	assert.Equal(t, PeriodStatusFinished, p.Status)
}

func TestPeriodActivate(t *testing.T) {
	p := newPeriod(date(2024, 1, 1), date(2024, 3, 31))

	err := p.Activate(date(2023, 12, 31))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Equal(t, PeriodStatusPlanning, p.Status)
	assert.False(t, p.IsCurrent)

	assert.True(t, p.CanActivate(date(2024, 1, 1)))
	require.NoError(t, p.Activate(date(2024, 1, 1)))
	assert.Equal(t, PeriodStatusActive, p.Status)
	assert.True(t, p.IsCurrent)

	assert.ErrorIs(t, p.Activate(date(2024, 1, 2)), appErrors.ErrInvalidTransition)
}

func TestPeriodFinishAndCancel(t *testing.T) {
	p := newPeriod(date(2024, 1, 1), date(2024, 3, 31))
	assert.ErrorIs(t, p.Finish(date(2024, 2, 1)), appErrors.ErrInvalidTransition)

	require.NoError(t, p.Activate(date(2024, 2, 1)))
	require.NoError(t, p.Finish(date(2024, 2, 2)))
	assert.Equal(t, PeriodStatusFinished, p.Status)
	assert.False(t, p.IsCurrent)
	assert.ErrorIs(t, p.Cancel(date(2024, 2, 3)), appErrors.ErrInvalidTransition)

	q := newPeriod(date(2024, 1, 1), date(2024, 3, 31))
	require.NoError(t, q.Cancel(date(2023, 12, 1)))
	assert.Equal(t, PeriodStatusCancelled, q.Status)
	assert.ErrorIs(t, q.Cancel(date(2023, 12, 2)), appErrors.ErrInvalidTransition)
	assert.ErrorIs(t, q.Activate(date(2024, 1, 5)), appErrors.ErrInvalidTransition)

	r := newPeriod(date(2024, 1, 1), date(2024, 3, 31))
	require.NoError(t, r.Activate(date(2024, 1, 5)))
	require.NoError(t, r.Cancel(date(2024, 1, 6)))
	assert.False(t, r.IsCurrent)
}

func TestPeriodOverlaps(t *testing.T) {
	a := newPeriod(date(2024, 1, 1), date(2024, 3, 31))
	b := newPeriod(date(2024, 3, 15), date(2024, 6, 30))
	c := newPeriod(date(2024, 3, 31), date(2024, 6, 30))
	jan := newPeriod(date(2024, 1, 1), date(2024, 1, 31))
	feb := newPeriod(date(2024, 1, 31), date(2024, 2, 28))
	inner := newPeriod(date(2024, 2, 1), date(2024, 2, 10))

	cases := []struct {
		name string
		x, y *Period
		want bool
	}{
		{"partial overlap", a, b, true},
		{"touching endpoints", a, c, false},
		{"touching months", jan, feb, false},
		{"containment", a, inner, true},
		{"disjoint", jan, b, false},
		{"identical", a, a, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.x.Overlaps(*tc.y))
			assert.Equal(t, tc.x.Overlaps(*tc.y), tc.y.Overlaps(*tc.x), "symmetric")
		})
	}
}

func TestPeriodIsValid(t *testing.T) {
	p := newPeriod(date(2024, 1, 1), date(2024, 3, 31))
	assert.True(t, p.IsValid())

	bad := *p
	bad.Name = "  "
	assert.False(t, bad.IsValid())

	bad = *p
	bad.EndDate = bad.StartDate
	assert.False(t, bad.IsValid())

	bad = *p
	bad.Kind = "YEARLY"
	assert.False(t, bad.IsValid())
}

func TestPeriodFilterMatches(t *testing.T) {
	current := true
	p := Period{Kind: PeriodKindSemester, Status: PeriodStatusActive, IsCurrent: true}
	assert.True(t, PeriodFilter{}.Matches(p))
	assert.True(t, PeriodFilter{Kind: PeriodKindSemester, IsCurrent: &current}.Matches(p))
	assert.False(t, PeriodFilter{Status: PeriodStatusPlanning}.Matches(p))
	assert.False(t, PeriodFilter{Kind: PeriodKindIntensive}.Matches(p))
}
