package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleEmployee       UserRole = "EMPLOYEE"
	RoleLeaveOfficer   UserRole = "LEAVE_OFFICER"
	RoleDepartmentHead UserRole = "DEPARTMENT_HEAD"
	RoleAdministrator  UserRole = "ADMINISTRATOR"
)

// AllRoles lists every role known to the permission matrix.
var AllRoles = []UserRole{RoleEmployee, RoleLeaveOfficer, RoleDepartmentHead, RoleAdministrator}

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// User represents an application user stored in the users table.
// Roles live in user_roles and are loaded separately.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	Roles        []UserRole `db:"-" json:"roles"`
}

// HasRole reports whether the user holds any of the given roles.
func (u *User) HasRole(roles ...UserRole) bool {
	return hasAnyRole(u.Roles, roles)
}

// UserRoleRow is a single row of the user_roles table.
type UserRoleRow struct {
	UserID string   `db:"user_id"`
	Role   UserRole `db:"role"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

func hasAnyRole(held []UserRole, wanted []UserRole) bool {
	for _, h := range held {
		for _, w := range wanted {
			if h == w {
				return true
			}
		}
	}
	return false
}
