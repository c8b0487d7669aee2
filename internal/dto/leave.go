package dto

import (
	"time"

	"github.com/noah-isme/leave-decision-api/internal/models"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// LeaveIntervalInput is one requested date range.
type LeaveIntervalInput struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// CreateLeaveRequest is submitted by an employee.
type CreateLeaveRequest struct {
	LeaveTypeID string               `json:"leaveTypeId" validate:"required"`
	Intervals   []LeaveIntervalInput `json:"intervals" validate:"required,min=1,max=20,dive"`
}

// ApproveLeaveRequest carries the decision metadata recorded on approval.
type ApproveLeaveRequest struct {
	ProtocolNumber            string  `json:"protocolNumber" validate:"required,max=100"`
	DirectorateProtocolNumber *string `json:"directorateProtocolNumber" validate:"omitempty,max=100"`
	FinalSignatory            string  `json:"finalSignatory" validate:"required,max=255"`
	CustomDecisionText        *string `json:"customDecisionText" validate:"omitempty,max=5000"`
}

// RejectLeaveRequest carries the mandatory rejection reason.
type RejectLeaveRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// LeaveRequestQuery filters listings.
type LeaveRequestQuery struct {
	Status   []models.LeaveStatus `form:"status"`
	Page     int                  `form:"page"`
	PageSize int                  `form:"pageSize"`
}

// LeaveIntervalSummary is an interval with its working day count.
type LeaveIntervalSummary struct {
	ID          string `json:"id"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	WorkingDays int    `json:"workingDays"`
}

// LeaveRequestDetail is a request enriched with computed working days.
type LeaveRequestDetail struct {
	ID                        string                 `json:"id"`
	EmployeeID                string                 `json:"employeeId"`
	EmployeeName              string                 `json:"employeeName,omitempty"`
	LeaveTypeID               string                 `json:"leaveTypeId"`
	LeaveTypeName             string                 `json:"leaveTypeName,omitempty"`
	Status                    models.LeaveStatus     `json:"status"`
	RejectionReason           *string                `json:"rejectionReason,omitempty"`
	ProtocolNumber            *string                `json:"protocolNumber,omitempty"`
	DirectorateProtocolNumber *string                `json:"directorateProtocolNumber,omitempty"`
	FinalSignatory            *string                `json:"finalSignatory,omitempty"`
	CustomDecisionText        *string                `json:"customDecisionText,omitempty"`
	HasDecision               bool                   `json:"hasDecision"`
	HeaderText                string                 `json:"headerText"`
	ProcessedBy               *string                `json:"processedBy,omitempty"`
	ProcessedByName           *string                `json:"processedByName,omitempty"`
	Intervals                 []LeaveIntervalSummary `json:"intervals"`
	TotalWorkingDays          int                    `json:"totalWorkingDays"`
	CreatedAt                 time.Time              `json:"createdAt"`
	UpdatedAt                 time.Time              `json:"updatedAt"`
}

// DecisionResult is returned once a decision document is available.
type DecisionResult struct {
	LeaveRequestID string    `json:"leaveRequestId"`
	Status         string    `json:"status"`
	DecisionPath   string    `json:"decisionPath"`
	DownloadURL    string    `json:"downloadUrl"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// LeaveRequestExportRow is one line of the CSV export.
type LeaveRequestExportRow struct {
	ID               string `csv:"id"`
	EmployeeID       string `csv:"employee_id"`
	LeaveTypeID      string `csv:"leave_type_id"`
	Status           string `csv:"status"`
	ProtocolNumber   string `csv:"protocol_number"`
	Intervals        string `csv:"intervals"`
	TotalWorkingDays int    `csv:"total_working_days"`
	CreatedAt        string `csv:"created_at"`
}
