package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weekdayCounter struct{}

func (weekdayCounter) Count(start, end time.Time) int {
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			n++
		}
	}
	return n
}

func TestLeaveStatusTransitions(t *testing.T) {
	all := []LeaveStatus{LeaveStatusPending, LeaveStatusApproved, LeaveStatusRejected, LeaveStatusIssued}
	allowed := map[LeaveStatus]map[LeaveStatus]bool{
		LeaveStatusPending:  {LeaveStatusApproved: true, LeaveStatusRejected: true},
		LeaveStatusApproved: {LeaveStatusIssued: true},
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, LeaveStatusRejected.Terminal())
	assert.True(t, LeaveStatusIssued.Terminal())
	assert.False(t, LeaveStatusPending.Terminal())
	assert.False(t, LeaveStatus("DRAFT").Valid())
}

func TestNewLeaveInterval(t *testing.T) {
	start := time.Date(2024, time.March, 4, 15, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 8, 9, 0, 0, 0, time.UTC)

	interval, err := NewLeaveInterval(start, end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), interval.StartDate)
	assert.Equal(t, time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC), interval.EndDate)

	_, err = NewLeaveInterval(end, start)
	assert.ErrorIs(t, err, ErrInvertedInterval)

	same, err := NewLeaveInterval(start, start)
	require.NoError(t, err)
	assert.Equal(t, 1, same.WorkingDays(weekdayCounter{}))

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	_, err = NewLeaveInterval(from, from.AddDate(0, 0, MaxIntervalDays-1))
	require.NoError(t, err)
	_, err = NewLeaveInterval(from, from.AddDate(0, 0, MaxIntervalDays))
	assert.ErrorIs(t, err, ErrIntervalTooLong)
	_, err = NewLeaveInterval(time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrIntervalTooLong)
}

func TestLeaveRequestTotalWorkingDays(t *testing.T) {
	first, err := NewLeaveInterval(time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	second, err := NewLeaveInterval(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	req := LeaveRequest{Intervals: []LeaveInterval{first, second}}
	assert.Equal(t, 7, req.TotalWorkingDays(weekdayCounter{}))

	empty := LeaveRequest{}
	assert.Equal(t, 0, empty.TotalWorkingDays(weekdayCounter{}))
}
