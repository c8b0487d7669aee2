package models

import (
	"strings"
	"time"
)

// Gender values accepted on employee records.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Employee is the staff record a user account is attached to.
type Employee struct {
	ID                     string    `db:"id" json:"id"`
	UserID                 *string   `db:"user_id" json:"user_id,omitempty"`
	Name                   string    `db:"name" json:"name"`
	Surname                string    `db:"surname" json:"surname"`
	FatherName             string    `db:"father_name" json:"father_name"`
	SpecialtyID            *string   `db:"specialty_id" json:"specialty_id,omitempty"`
	ServiceID              *string   `db:"service_id" json:"service_id,omitempty"`
	DepartmentID           *string   `db:"department_id" json:"department_id,omitempty"`
	EmployeeTypeID         *string   `db:"employee_type_id" json:"employee_type_id,omitempty"`
	PositionID             *string   `db:"position_id" json:"position_id,omitempty"`
	RoleDescription        *string   `db:"role_description" json:"role_description,omitempty"`
	NotificationRecipients *string   `db:"notification_recipients" json:"notification_recipients,omitempty"`
	RegularLeaveDays       int       `db:"regular_leave_days" json:"regular_leave_days"`
	CarryoverLeaveDays     int       `db:"carryover_leave_days" json:"carryover_leave_days"`
	Gender                 Gender    `db:"gender" json:"gender"`
	WorkEmail              *string   `db:"work_email" json:"work_email,omitempty"`
	PersonalEmail          *string   `db:"personal_email" json:"personal_email,omitempty"`
	Phone                  *string   `db:"phone" json:"phone,omitempty"`
	Active                 bool      `db:"active" json:"active"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// FullName renders "name surname" as printed on decisions.
func (e *Employee) FullName() string {
	if e == nil {
		return ""
	}
	if e.Surname == "" {
		return e.Name
	}
	return e.Name + " " + e.Surname
}

// Recipients splits the notification recipients text into one entry per
// non-empty line.
func (e *Employee) Recipients() []string {
	if e == nil || e.NotificationRecipients == nil {
		return nil
	}
	var out []string
	for _, line := range strings.Split(*e.NotificationRecipients, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// EmployeeProfile is an employee joined with the names of its reference data.
type EmployeeProfile struct {
	Employee
	SpecialtyName  *string `db:"specialty_name" json:"specialty_name,omitempty"`
	ServiceName    *string `db:"service_name" json:"service_name,omitempty"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
}

// EmployeeFilter narrows employee listings.
type EmployeeFilter struct {
	DepartmentIDs []string
	Active        *bool
	Search        string
	Page          int
	PageSize      int
}

// Service is an organizational unit employees are posted to.
type Service struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Department belongs to a service and has at most one head.
type Department struct {
	ID             string  `db:"id" json:"id"`
	Name           string  `db:"name" json:"name"`
	ServiceID      string  `db:"service_id" json:"service_id"`
	HeadEmployeeID *string `db:"head_employee_id" json:"head_employee_id,omitempty"`
}

// Specialty is a professional specialty.
type Specialty struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	ShortName string `db:"short_name" json:"short_name"`
}

// EmployeeType classifies employment relationships.
type EmployeeType struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// EmployeePosition is a job position.
type EmployeePosition struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
