package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
)

// Import entity names, also used as manifest keys by the import CLI.
const (
	ImportSpecialties   = "specialties"
	ImportServices      = "services"
	ImportDepartments   = "departments"
	ImportEmployeeTypes = "employee_types"
	ImportPositions     = "positions"
	ImportEmployees     = "employees"
	ImportLeaveTypes    = "leave_types"
	ImportHolidays      = "holidays"
	ImportHeaders       = "headers"
)

// ImportOrder lists entities so that references exist before their users.
var ImportOrder = []string{
	ImportSpecialties, ImportServices, ImportDepartments, ImportEmployeeTypes, ImportPositions,
	ImportLeaveTypes, ImportHolidays, ImportHeaders, ImportEmployees,
}

type referenceDirectory interface {
	EnsureService(ctx context.Context, name string) (string, bool, error)
	EnsureDepartment(ctx context.Context, name, serviceID string) (string, bool, error)
	EnsureSpecialty(ctx context.Context, name, shortName string) (string, bool, error)
	EnsureEmployeeType(ctx context.Context, name string) (string, bool, error)
	EnsurePosition(ctx context.Context, name string) (string, bool, error)
}

type employeeUpserter interface {
	UpsertByWorkEmail(ctx context.Context, employee *models.Employee) (bool, error)
}

type leaveTypeCatalog interface {
	FindByName(ctx context.Context, name string) (*models.LeaveType, error)
	Create(ctx context.Context, lt *models.LeaveType) error
}

type holidayCatalog interface {
	Exists(ctx context.Context, h models.PublicHoliday) (bool, error)
	Create(ctx context.Context, h *models.PublicHoliday) error
}

type headerWriter interface {
	Create(ctx context.Context, header *models.HeaderText) error
}

// ImportDeps groups the stores written by ImportService.
type ImportDeps struct {
	Directory  referenceDirectory
	Employees  employeeUpserter
	LeaveTypes leaveTypeCatalog
	Holidays   holidayCatalog
	Headers    headerWriter
	Cache      *CacheService
	Audit      auditLogger
}

// ImportService bulk loads reference data with get-or-create semantics, so
// re-running an import is harmless.
type ImportService struct {
	deps   ImportDeps
	logger *zap.Logger
}

// NewImportService constructs the service.
func NewImportService(deps ImportDeps, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{deps: deps, logger: logger}
}

// Specialties imports specialty rows.
func (s *ImportService) Specialties(ctx context.Context, rows []dto.SpecialtyRow, actor *models.JWTClaims) dto.ImportReport {
	report := dto.ImportReport{Entity: ImportSpecialties}
	for i, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			report.Fail(i, "name is required")
			continue
		}
		_, created, err := s.deps.Directory.EnsureSpecialty(ctx, name, strings.TrimSpace(row.ShortName))
		report.Count(i, created, err)
	}
	return s.finish(ctx, report, actor)
}

// Services imports service rows.
func (s *ImportService) Services(ctx context.Context, rows []dto.ServiceRow, actor *models.JWTClaims) dto.ImportReport {
	report := dto.ImportReport{Entity: ImportServices}
	for i, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			report.Fail(i, "name is required")
			continue
		}
		_, created, err := s.deps.Directory.EnsureService(ctx, name)
		report.Count(i, created, err)
	}
	return s.finish(ctx, report, actor)
}

// Departments imports department rows, creating their services as needed.
func (s *ImportService) Departments(ctx context.Context, rows []dto.DepartmentRow, actor *models.JWTClaims) dto.ImportReport {
	report := dto.ImportReport{Entity: ImportDepartments}
	for i, row := range rows {
		name, service := strings.TrimSpace(row.Name), strings.TrimSpace(row.Service)
		if name == "" || service == "" {
			report.Fail(i, "name and service are required")
			continue
		}
		serviceID, _, err := s.deps.Directory.EnsureService(ctx, service)
		if err != nil {
			report.Count(i, false, err)
			continue
		}
		_, created, err := s.deps.Directory.EnsureDepartment(ctx, name, serviceID)
		report.Count(i, created, err)
	}
	return s.finish(ctx, report, actor)
}

// EmployeeTypes imports employee type rows.
func (s *ImportService) EmployeeTypes(ctx context.Context, rows []dto.NameRow, actor *models.JWTClaims) dto.ImportReport {
	return s.names(ctx, ImportEmployeeTypes, rows, s.deps.Directory.EnsureEmployeeType, actor)
}

// Positions imports position rows.
func (s *ImportService) Positions(ctx context.Context, rows []dto.NameRow, actor *models.JWTClaims) dto.ImportReport {
	return s.names(ctx, ImportPositions, rows, s.deps.Directory.EnsurePosition, actor)
}

// Employees imports employee rows keyed by work email. Referenced
// specialties, services, departments, types and positions are created on
// demand.
func (s *ImportService) Employees(ctx context.Context, rows []dto.EmployeeRow, actor *models.JWTClaims) dto.ImportReport {
	report := dto.ImportReport{Entity: ImportEmployees}
	for i, row := range rows {
		employee, err := s.employeeFromRow(ctx, row)
		if err != nil {
			report.Fail(i, err.Error())
			continue
		}
		created, err := s.deps.Employees.UpsertByWorkEmail(ctx, employee)
		if err != nil {
			report.Count(i, false, err)
			continue
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}
	return s.finish(ctx, report, actor)
}

// LeaveTypes imports leave type rows; existing names are skipped.
func (s *ImportService) LeaveTypes(ctx context.Context, rows []dto.LeaveTypeRow, actor *models.JWTClaims) dto.ImportReport {
	report := dto.ImportReport{Entity: ImportLeaveTypes}
	for i, row := range rows {
		lt := models.LeaveType{
			Name:         strings.TrimSpace(row.Name),
			ShortName:    strings.TrimSpace(row.ShortName),
			SubjectText:  strings.TrimSpace(row.SubjectText),
			DecisionText: strings.TrimSpace(row.DecisionText),
		}
		if lt.Name == "" || lt.SubjectText == "" || lt.DecisionText == "" {
			report.Fail(i, "name, subject text and decision text are required")
			continue
		}
		_, err := s.deps.LeaveTypes.FindByName(ctx, lt.Name)
		if err == nil {
			report.Skipped++
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			report.Count(i, false, err)
			continue
		}
		report.Count(i, true, s.deps.LeaveTypes.Create(ctx, &lt))
	}
	return s.finish(ctx, report, actor)
}

// Holidays imports public holiday rows. Invalid configurations are reported
// and skipped; the holiday registry cache is dropped afterwards.
func (s *ImportService) Holidays(ctx context.Context, rows []dto.HolidayRow, actor *models.JWTClaims) dto.ImportReport {
	report := dto.ImportReport{Entity: ImportHolidays}
	for i, row := range rows {
		holiday := models.PublicHoliday{
			Name:    strings.TrimSpace(row.Name),
			Day:     row.Day,
			Month:   row.Month,
			IsFixed: row.IsFixed,
		}
		if year := strings.TrimSpace(row.Year); year != "" && !row.IsFixed {
			parsed, err := strconv.Atoi(year)
			if err != nil {
				report.Fail(i, "invalid year "+year)
				continue
			}
			holiday.Year = &parsed
		}
		if err := holiday.Validate(); err != nil {
			report.Fail(i, err.Error())
			continue
		}
		exists, err := s.deps.Holidays.Exists(ctx, holiday)
		if err != nil {
			report.Count(i, false, err)
			continue
		}
		if exists {
			report.Skipped++
			continue
		}
		report.Count(i, true, s.deps.Holidays.Create(ctx, &holiday))
	}
	if report.Created > 0 {
		if err := s.deps.Cache.Invalidate(ctx, HolidayRegistryCacheKey); err != nil {
			s.logger.Warn("failed to invalidate holiday registry cache", zap.Error(err))
		}
	}
	return s.finish(ctx, report, actor)
}

// Headers appends header texts in file order, so the last row becomes the
// active header.
func (s *ImportService) Headers(ctx context.Context, rows []dto.HeaderRow, actor *models.JWTClaims) dto.ImportReport {
	report := dto.ImportReport{Entity: ImportHeaders}
	for i, row := range rows {
		text := strings.TrimSpace(row.Text)
		if text == "" {
			report.Fail(i, "text is required")
			continue
		}
		header := &models.HeaderText{Text: text, CreatedBy: userIDPtr(actor)}
		report.Count(i, true, s.deps.Headers.Create(ctx, header))
	}
	return s.finish(ctx, report, actor)
}

func (s *ImportService) names(ctx context.Context, entity string, rows []dto.NameRow, ensure func(context.Context, string) (string, bool, error), actor *models.JWTClaims) dto.ImportReport {
	report := dto.ImportReport{Entity: entity}
	for i, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			report.Fail(i, "name is required")
			continue
		}
		_, created, err := ensure(ctx, name)
		report.Count(i, created, err)
	}
	return s.finish(ctx, report, actor)
}

func (s *ImportService) employeeFromRow(ctx context.Context, row dto.EmployeeRow) (*models.Employee, error) {
	employee := &models.Employee{
		Name:                   strings.TrimSpace(row.Name),
		Surname:                strings.TrimSpace(row.Surname),
		FatherName:             strings.TrimSpace(row.FatherName),
		RoleDescription:        strPtr(strings.TrimSpace(row.RoleDescription)),
		NotificationRecipients: strPtr(strings.TrimSpace(row.NotificationRecipients)),
		WorkEmail:              strPtr(strings.ToLower(strings.TrimSpace(row.WorkEmail))),
		PersonalEmail:          strPtr(strings.TrimSpace(row.PersonalEmail)),
		Phone:                  strPtr(strings.TrimSpace(row.Phone)),
		Active:                 true,
	}
	if employee.Name == "" || employee.Surname == "" {
		return nil, errors.New("name and surname are required")
	}
	if employee.WorkEmail == nil {
		return nil, errors.New("work email is required")
	}
	switch gender := models.Gender(strings.ToUpper(strings.TrimSpace(row.Gender))); gender {
	case models.GenderMale, models.GenderFemale:
		employee.Gender = gender
	default:
		return nil, fmt.Errorf("unknown gender %q", row.Gender)
	}

	dir := s.deps.Directory
	var err error
	if name := strings.TrimSpace(row.Specialty); name != "" {
		if employee.SpecialtyID, err = ensuredID(dir.EnsureSpecialty(ctx, name, "")); err != nil {
			return nil, err
		}
	}
	if name := strings.TrimSpace(row.Service); name != "" {
		if employee.ServiceID, err = ensuredID(dir.EnsureService(ctx, name)); err != nil {
			return nil, err
		}
	}
	if name := strings.TrimSpace(row.Department); name != "" {
		if employee.ServiceID == nil {
			return nil, errors.New("department requires a service")
		}
		if employee.DepartmentID, err = ensuredID(dir.EnsureDepartment(ctx, name, *employee.ServiceID)); err != nil {
			return nil, err
		}
	}
	if name := strings.TrimSpace(row.EmployeeType); name != "" {
		if employee.EmployeeTypeID, err = ensuredID(dir.EnsureEmployeeType(ctx, name)); err != nil {
			return nil, err
		}
	}
	if name := strings.TrimSpace(row.Position); name != "" {
		if employee.PositionID, err = ensuredID(dir.EnsurePosition(ctx, name)); err != nil {
			return nil, err
		}
	}
	return employee, nil
}

func (s *ImportService) finish(ctx context.Context, report dto.ImportReport, actor *models.JWTClaims) dto.ImportReport {
	s.logger.Info("reference import finished",
		zap.String("entity", report.Entity),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
	)
	if report.Created+report.Updated > 0 {
		recordAudit(ctx, s.deps.Audit, s.logger, &models.AuditLog{
			UserID:    userIDPtr(actor),
			Action:    models.AuditActionReferenceImport,
			Resource:  report.Entity,
			NewValues: auditValues(report),
		})
	}
	return report
}

func ensuredID(id string, _ bool, err error) (*string, error) {
	if err != nil {
		return nil, err
	}
	return &id, nil
}
