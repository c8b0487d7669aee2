package models

import (
	"errors"
	"time"
)

// LeaveStatus captures the leave request lifecycle.
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "PENDING"
	LeaveStatusApproved LeaveStatus = "APPROVED"
	LeaveStatusRejected LeaveStatus = "REJECTED"
	LeaveStatusIssued   LeaveStatus = "ISSUED"
)

var leaveTransitions = map[LeaveStatus][]LeaveStatus{
	LeaveStatusPending:  {LeaveStatusApproved, LeaveStatusRejected},
	LeaveStatusApproved: {LeaveStatusIssued},
}

// Valid reports whether the status is a known lifecycle state.
func (s LeaveStatus) Valid() bool {
	switch s {
	case LeaveStatusPending, LeaveStatusApproved, LeaveStatusRejected, LeaveStatusIssued:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s LeaveStatus) CanTransitionTo(next LeaveStatus) bool {
	for _, allowed := range leaveTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s LeaveStatus) Terminal() bool {
	return len(leaveTransitions[s]) == 0
}

// ErrInvertedInterval is returned when an interval starts after it ends.
var ErrInvertedInterval = errors.New("interval start date is after end date")

// MaxIntervalDays bounds the calendar days a single interval may cover.
const MaxIntervalDays = 731

// ErrIntervalTooLong is returned when an interval spans more than MaxIntervalDays.
var ErrIntervalTooLong = errors.New("interval spans too many days")

// WorkingDayCounter counts business days in an inclusive date range.
type WorkingDayCounter interface {
	Count(start, end time.Time) int
}

// LeaveType describes a category of leave and the wording used on decisions.
type LeaveType struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	ShortName    string `db:"short_name" json:"short_name"`
	SubjectText  string `db:"subject_text" json:"subject_text"`
	DecisionText string `db:"decision_text" json:"decision_text"`
}

// LeaveInterval is one contiguous date range of a leave request.
type LeaveInterval struct {
	ID             string    `db:"id" json:"id"`
	LeaveRequestID string    `db:"leave_request_id" json:"leave_request_id"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
}

// NewLeaveInterval builds an interval truncated to whole days, rejecting
// inverted ranges and ranges longer than MaxIntervalDays.
func NewLeaveInterval(start, end time.Time) (LeaveInterval, error) {
	start, end = DateOnly(start), DateOnly(end)
	if start.After(end) {
		return LeaveInterval{}, ErrInvertedInterval
	}
	if end.After(start.AddDate(0, 0, MaxIntervalDays-1)) {
		return LeaveInterval{}, ErrIntervalTooLong
	}
	return LeaveInterval{StartDate: start, EndDate: end}, nil
}

// WorkingDays counts the business days covered by the interval.
func (i LeaveInterval) WorkingDays(counter WorkingDayCounter) int {
	return counter.Count(i.StartDate, i.EndDate)
}

// LeaveRequest is the leave aggregate: intervals, lifecycle state and the
// metadata printed on the decision.
type LeaveRequest struct {
	ID                     string          `db:"id" json:"id"`
	EmployeeID             string          `db:"employee_id" json:"employee_id"`
	LeaveTypeID            string          `db:"leave_type_id" json:"leave_type_id"`
	Status                 LeaveStatus     `db:"status" json:"status"`
	RejectionReason        *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ProtocolNumber         *string         `db:"protocol_number" json:"protocol_number,omitempty"`
	DirectorateProtocolNum *string         `db:"directorate_protocol_number" json:"directorate_protocol_number,omitempty"`
	FinalSignatory         *string         `db:"final_signatory" json:"final_signatory,omitempty"`
	CustomDecisionText     *string         `db:"custom_decision_text" json:"custom_decision_text,omitempty"`
	DecisionPath           *string         `db:"decision_path" json:"decision_path,omitempty"`
	HeaderText             string          `db:"header_text" json:"header_text"`
	ProcessedBy            *string         `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedByName        *string         `db:"processed_by_name" json:"processed_by_name,omitempty"`
	ProcessedByPhone       *string         `db:"processed_by_phone" json:"processed_by_phone,omitempty"`
	CreatedAt              time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at" json:"updated_at"`
	Intervals              []LeaveInterval `db:"-" json:"intervals"`
}

// TotalWorkingDays sums the working days of every interval.
func (r *LeaveRequest) TotalWorkingDays(counter WorkingDayCounter) int {
	total := 0
	for _, interval := range r.Intervals {
		total += interval.WorkingDays(counter)
	}
	return total
}

// LeaveRequestFilter constrains listing queries.
type LeaveRequestFilter struct {
	EmployeeID  string
	EmployeeIDs []string
	Status      []LeaveStatus
	Limit       int
	Offset      int
}

// DateOnly drops the clock part of t, keeping its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
