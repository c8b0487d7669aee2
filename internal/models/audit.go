package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionLogout          = "LOGOUT"
	AuditActionRegister        = "REGISTER"
	AuditActionPasswordChange  = "PASSWORD_CHANGE"
	AuditActionUserRoleAssign  = "USER_ROLE_ASSIGN"
	AuditActionUserDeactivate  = "USER_DEACTIVATE"
	AuditActionHeadAppoint     = "DEPARTMENT_HEAD_APPOINT"
	AuditActionHeaderPublish   = "HEADER_PUBLISH"
	AuditActionHolidayChange   = "HOLIDAY_CHANGE"
	AuditActionLeaveCreate     = "LEAVE_REQUEST_CREATE"
	AuditActionLeaveReview     = "LEAVE_REQUEST_REVIEW"
	AuditActionLeaveDelete     = "LEAVE_REQUEST_DELETE"
	AuditActionDecisionIssue   = "DECISION_ISSUE"
	AuditActionLeaveTypeChange = "LEAVE_TYPE_CHANGE"
	AuditActionReferenceImport = "REFERENCE_IMPORT"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
