// Package authz holds the role permission matrix enforced with casbin.
package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Resources guarded by the matrix.
const (
	ResourceLeaveRequest = "leave_request"
	ResourceHoliday      = "holiday"
	ResourceHeader       = "header"
	ResourceLeaveType    = "leave_type"
	ResourceDepartment   = "department"
	ResourceEmployee     = "employee"
	ResourceUser         = "user"
)

// Actions mirror the classic add/view/change/delete permission set.
const (
	ActionAdd    = "add"
	ActionView   = "view"
	ActionChange = "change"
	ActionDelete = "delete"
)

const modelText = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// DefaultPolicies is the built-in permission matrix keyed by role name.
var DefaultPolicies = [][]string{
	{"EMPLOYEE", ResourceLeaveRequest, ActionAdd},
	{"EMPLOYEE", ResourceLeaveRequest, ActionView},
	{"EMPLOYEE", ResourceHoliday, ActionView},
	{"EMPLOYEE", ResourceLeaveType, ActionView},
	{"LEAVE_OFFICER", ResourceLeaveRequest, ActionAdd},
	{"LEAVE_OFFICER", ResourceLeaveRequest, ActionView},
	{"LEAVE_OFFICER", ResourceLeaveRequest, ActionChange},
	{"LEAVE_OFFICER", ResourceLeaveRequest, ActionDelete},
	{"LEAVE_OFFICER", ResourceHoliday, ActionView},
	{"LEAVE_OFFICER", ResourceHeader, ActionView},
	{"LEAVE_OFFICER", ResourceLeaveType, ActionView},
	{"LEAVE_OFFICER", ResourceEmployee, ActionView},
	{"LEAVE_OFFICER", ResourceDepartment, ActionView},
	{"LEAVE_OFFICER", ResourceDepartment, ActionChange},
	{"DEPARTMENT_HEAD", ResourceLeaveRequest, ActionView},
	{"DEPARTMENT_HEAD", ResourceHoliday, ActionView},
	{"DEPARTMENT_HEAD", ResourceEmployee, ActionView},
	{"ADMINISTRATOR", "*", "*"},
}

// Enforcer answers whether any of a set of roles may act on a resource.
type Enforcer struct {
	enforcer *casbin.Enforcer
}

// New builds an enforcer loaded with policies, or DefaultPolicies when none
// are given.
func New(policies ...[]string) (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load authz model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if len(policies) == 0 {
		policies = DefaultPolicies
	}
	for _, p := range policies {
		if len(p) != 3 {
			return nil, fmt.Errorf("policy %v: expected subject, object, action", p)
		}
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", p, err)
		}
	}
	return &Enforcer{enforcer: e}, nil
}

// Allowed reports whether at least one role grants action on resource.
func (e *Enforcer) Allowed(roles []string, resource, action string) (bool, error) {
	for _, role := range roles {
		ok, err := e.enforcer.Enforce(role, resource, action)
		if err != nil {
			return false, fmt.Errorf("enforce %s %s:%s: %w", role, resource, action, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
