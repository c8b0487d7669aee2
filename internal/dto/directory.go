package dto

import "github.com/noah-isme/leave-decision-api/internal/models"

// PublishHeaderRequest appends a new letterhead.
type PublishHeaderRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// ActiveHeader is the letterhead new requests will snapshot.
type ActiveHeader struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// AppointHeadRequest sets or clears a department head.
type AppointHeadRequest struct {
	EmployeeID *string `json:"employeeId"`
}

// DepartmentHeadChange reports the outcome of an appointment.
type DepartmentHeadChange struct {
	DepartmentID   string  `json:"departmentId"`
	HeadEmployeeID *string `json:"headEmployeeId,omitempty"`
	PreviousHeadID *string `json:"previousHeadId,omitempty"`
}

// LeaveTypeRequest creates or replaces a leave type.
type LeaveTypeRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	ShortName    string `json:"shortName" validate:"max=50"`
	SubjectText  string `json:"subjectText" validate:"required"`
	DecisionText string `json:"decisionText" validate:"required"`
}

// EmployeeQuery filters employee listings.
type EmployeeQuery struct {
	DepartmentID string `form:"departmentId"`
	Active       *bool  `form:"active"`
	Search       string `form:"search"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// AssignRoleRequest replaces every role of a user with Role.
type AssignRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=EMPLOYEE LEAVE_OFFICER DEPARTMENT_HEAD ADMINISTRATOR"`
}
