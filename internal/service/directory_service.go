package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
)

type employeeDirectory interface {
	FindByID(ctx context.Context, id string) (*models.EmployeeProfile, error)
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.EmployeeProfile, int, error)
	IDsByDepartments(ctx context.Context, departmentIDs []string) ([]string, error)
}

type departmentStore interface {
	ListDepartments(ctx context.Context) ([]models.Department, error)
	FindDepartment(ctx context.Context, id string) (*models.Department, error)
	DepartmentsHeadedBy(ctx context.Context, employeeID string) ([]models.Department, error)
	AppointHead(ctx context.Context, departmentID string, employeeID *string) (*string, error)
}

// DirectoryService exposes employees and departments and manages department
// head appointments.
type DirectoryService struct {
	employees   employeeDirectory
	departments departmentStore
	audit       auditLogger
	logger      *zap.Logger
}

// NewDirectoryService constructs the service.
func NewDirectoryService(employees employeeDirectory, departments departmentStore, audit auditLogger, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{employees: employees, departments: departments, audit: audit, logger: logger}
}

// ListEmployees returns employees visible to actor. Department heads without
// an officer role only see their own departments.
func (s *DirectoryService) ListEmployees(ctx context.Context, query dto.EmployeeQuery, actor *models.JWTClaims) ([]models.EmployeeProfile, *models.Pagination, error) {
	filter := models.EmployeeFilter{Active: query.Active, Search: query.Search, Page: query.Page, PageSize: query.PageSize}
	if query.DepartmentID != "" {
		filter.DepartmentIDs = []string{query.DepartmentID}
	}

	if !isLeaveManager(actor) {
		headed, err := s.headedDepartmentIDs(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		if query.DepartmentID != "" && !containsString(headed, query.DepartmentID) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "department is outside your scope")
		}
		if query.DepartmentID == "" {
			filter.DepartmentIDs = headed
		}
		if len(filter.DepartmentIDs) == 0 {
			return []models.EmployeeProfile{}, paginationFor(filter.Page, filter.PageSize, 0), nil
		}
	}

	employees, total, err := s.employees.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	return employees, paginationFor(filter.Page, filter.PageSize, total), nil
}

// GetEmployee returns one employee if actor may see it.
func (s *DirectoryService) GetEmployee(ctx context.Context, id string, actor *models.JWTClaims) (*models.EmployeeProfile, error) {
	employee, err := s.employees.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if isLeaveManager(actor) || (actor != nil && actor.EmployeeID == id) {
		return employee, nil
	}
	headed, err := s.headedDepartmentIDs(ctx, actor)
	if err != nil {
		return nil, err
	}
	if employee.DepartmentID == nil || !containsString(headed, *employee.DepartmentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "employee is outside your scope")
	}
	return employee, nil
}

// ListDepartments returns every department.
func (s *DirectoryService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	departments, err := s.departments.ListDepartments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// SubordinateIDs returns the employees in departments headed by actor.
func (s *DirectoryService) SubordinateIDs(ctx context.Context, actor *models.JWTClaims) ([]string, error) {
	headed, err := s.headedDepartmentIDs(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(headed) == 0 {
		return []string{}, nil
	}
	ids, err := s.employees.IDsByDepartments(ctx, headed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subordinates")
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// AppointHead sets or clears the head of a department. Role grants follow
// the appointment inside the same transaction.
func (s *DirectoryService) AppointHead(ctx context.Context, departmentID string, req dto.AppointHeadRequest, actor *models.JWTClaims) (*dto.DepartmentHeadChange, error) {
	if _, err := s.departments.FindDepartment(ctx, departmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}

	if req.EmployeeID != nil {
		employee, err := s.employees.FindByID(ctx, *req.EmployeeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
		}
		if employee.UserID == nil {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "employee has no user account")
		}
		if !employee.Active {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "employee is inactive")
		}
	}

	previous, err := s.departments.AppointHead(ctx, departmentID, req.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to appoint department head")
	}

	change := &dto.DepartmentHeadChange{DepartmentID: departmentID, HeadEmployeeID: req.EmployeeID, PreviousHeadID: previous}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionHeadAppoint,
		Resource:   "departments",
		ResourceID: &departmentID,
		OldValues:  auditValues(map[string]*string{"head_employee_id": previous}),
		NewValues:  auditValues(map[string]*string{"head_employee_id": req.EmployeeID}),
	})
	return change, nil
}

func (s *DirectoryService) headedDepartmentIDs(ctx context.Context, actor *models.JWTClaims) ([]string, error) {
	if actor == nil || actor.EmployeeID == "" {
		return nil, nil
	}
	departments, err := s.departments.DepartmentsHeadedBy(ctx, actor.EmployeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load headed departments")
	}
	ids := make([]string, 0, len(departments))
	for _, d := range departments {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func isLeaveManager(actor *models.JWTClaims) bool {
	return actor.HasRole(models.RoleLeaveOfficer, models.RoleAdministrator)
}

func paginationFor(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
