package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
)

type mockDirectory struct {
	ids     map[string]string
	failOn  string
	ensured []string
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{ids: map[string]string{}}
}

func (m *mockDirectory) ensure(kind, name string) (string, bool, error) {
	key := kind + ":" + name
	m.ensured = append(m.ensured, key)
	if key == m.failOn {
		return "", false, errors.New("database unavailable")
	}
	if id, ok := m.ids[key]; ok {
		return id, false, nil
	}
	id := kind + "-" + strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	m.ids[key] = id
	return id, true, nil
}

func (m *mockDirectory) EnsureService(ctx context.Context, name string) (string, bool, error) {
	return m.ensure("service", name)
}

func (m *mockDirectory) EnsureDepartment(ctx context.Context, name, serviceID string) (string, bool, error) {
	return m.ensure("department", serviceID+"/"+name)
}

func (m *mockDirectory) EnsureSpecialty(ctx context.Context, name, shortName string) (string, bool, error) {
	return m.ensure("specialty", name)
}

func (m *mockDirectory) EnsureEmployeeType(ctx context.Context, name string) (string, bool, error) {
	return m.ensure("type", name)
}

func (m *mockDirectory) EnsurePosition(ctx context.Context, name string) (string, bool, error) {
	return m.ensure("position", name)
}

type mockEmployeeUpserter struct {
	byEmail map[string]models.Employee
}

func (m *mockEmployeeUpserter) UpsertByWorkEmail(ctx context.Context, employee *models.Employee) (bool, error) {
	_, exists := m.byEmail[*employee.WorkEmail]
	m.byEmail[*employee.WorkEmail] = *employee
	return !exists, nil
}

type importFixture struct {
	directory *mockDirectory
	employees *mockEmployeeUpserter
	types     *mockLeaveTypeRepo
	holidays  *mockHolidayRepo
	headers   *mockHeaderRepo
	cache     *memoryCacheRepo
	audit     *mockAudit
	svc       *ImportService
}

func newImportFixture() *importFixture {
	f := &importFixture{
		directory: newMockDirectory(),
		employees: &mockEmployeeUpserter{byEmail: map[string]models.Employee{}},
		types:     &mockLeaveTypeRepo{types: map[string]models.LeaveType{"lt1": regularLeaveType()}},
		holidays:  newMockHolidayRepo(),
		headers:   &mockHeaderRepo{},
		cache:     newMemoryCacheRepo(),
		audit:     &mockAudit{},
	}
	f.svc = NewImportService(ImportDeps{
		Directory:  f.directory,
		Employees:  f.employees,
		LeaveTypes: f.types,
		Holidays:   f.holidays,
		Headers:    f.headers,
		Cache:      NewCacheService(f.cache, nil, 0, zap.NewNop(), true),
		Audit:      f.audit,
	}, zap.NewNop())
	return f
}

func TestImportServiceDepartmentsAreIdempotent(t *testing.T) {
	f := newImportFixture()
	rows := []dto.DepartmentRow{
		{Name: "Personnel", Service: "Directorate"},
		{Name: " Personnel ", Service: "Directorate"},
		{Name: "Accounting", Service: ""},
	}

	report := f.svc.Departments(context.Background(), rows, adminClaims())
	assert.Equal(t, "departments", report.Entity)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "line 4: name and service are required", report.Errors[0])
	assert.Equal(t, []string{models.AuditActionReferenceImport}, f.audit.actions())

	again := f.svc.Departments(context.Background(), rows[:2], adminClaims())
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 2, again.Skipped)
	assert.Len(t, f.audit.actions(), 1)
}

func TestImportServiceEmployees(t *testing.T) {
	f := newImportFixture()
	rows := []dto.EmployeeRow{
		{Surname: "Papadopoulou", Name: "Maria", FatherName: "Georgios", Specialty: "Physics", Service: "Directorate",
			Department: "Personnel", EmployeeType: "Permanent", Position: "Clerk", Gender: "f", WorkEmail: "Maria@SCH.gr",
			NotificationRecipients: "Personnel\nPayroll"},
		{Surname: "Nikolaou", Name: "Nikos", Gender: "M", WorkEmail: "nikos@sch.gr", Department: "Personnel"},
		{Surname: "Ghost", Name: "No", Gender: "M"},
		{Surname: "Other", Name: "One", Gender: "X", WorkEmail: "one@sch.gr"},
	}

	report := f.svc.Employees(context.Background(), rows, adminClaims())
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Errors, 3)
	assert.Contains(t, report.Errors[0], "line 3: department requires a service")
	assert.Contains(t, report.Errors[1], "work email is required")
	assert.Contains(t, report.Errors[2], "unknown gender")

	stored := f.employees.byEmail["maria@sch.gr"]
	assert.Equal(t, models.GenderFemale, stored.Gender)
	assert.Equal(t, "service-directorate", *stored.ServiceID)
	assert.Equal(t, "department-service-directorate/personnel", *stored.DepartmentID)
	assert.Equal(t, "specialty-physics", *stored.SpecialtyID)
	assert.True(t, stored.Active)
	assert.Nil(t, stored.Phone)

	again := f.svc.Employees(context.Background(), rows[:1], adminClaims())
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 1, again.Updated)
}

func TestImportServiceEmployeeReferenceFailure(t *testing.T) {
	f := newImportFixture()
	f.directory.failOn = "service:Directorate"

	report := f.svc.Employees(context.Background(), []dto.EmployeeRow{
		{Surname: "Papadopoulou", Name: "Maria", Service: "Directorate", Gender: "F", WorkEmail: "maria@sch.gr"},
	}, adminClaims())
	assert.Equal(t, 0, report.Created)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "database unavailable")
	assert.Empty(t, f.audit.actions())
}

func TestImportServiceLeaveTypes(t *testing.T) {
	f := newImportFixture()

	report := f.svc.LeaveTypes(context.Background(), []dto.LeaveTypeRow{
		{Name: "Regular leave", SubjectText: "s", DecisionText: "d"},
		{Name: "Sick leave", ShortName: "SL", SubjectText: "Sick", DecisionText: "We grant sick leave"},
		{Name: "Broken"},
	}, adminClaims())
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, report.Errors, 1)
	assert.Equal(t, "Sick leave", f.types.types["lt-new"].Name)
}

func TestImportServiceHolidays(t *testing.T) {
	f := newImportFixture()
	f.cache.entries[HolidayRegistryCacheKey] = []byte("[]")

	report := f.svc.Holidays(context.Background(), []dto.HolidayRow{
		{Name: "New Year", Day: 1, Month: 1, IsFixed: true, Year: "1999"},
		{Name: "Clean Monday", Day: 3, Month: 3, Year: "2025"},
		{Name: "Orthodox Easter", Day: 20, Month: 4},
		{Name: "Leap", Day: 29, Month: 2, Year: "2025"},
		{Name: "Typo", Day: 1, Month: 5, Year: "20x5"},
	}, adminClaims())

	assert.Equal(t, 2, report.Created)
	require.Len(t, report.Errors, 3)
	assert.Contains(t, report.Errors[0], "line 4")
	assert.Contains(t, report.Errors[2], "invalid year 20x5")
	assert.Contains(t, f.cache.deleted, HolidayRegistryCacheKey)
	for _, h := range f.holidays.holidays {
		if h.IsFixed {
			assert.Nil(t, h.Year)
		}
	}
}

func TestImportServiceHolidaysSkipsExisting(t *testing.T) {
	f := newImportFixture()
	f.holidays.exists = true

	report := f.svc.Holidays(context.Background(), []dto.HolidayRow{{Name: "New Year", Day: 1, Month: 1, IsFixed: true}}, adminClaims())
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, f.cache.deleted)
}

func TestImportServiceHeadersKeepFileOrder(t *testing.T) {
	f := newImportFixture()

	report := f.svc.Headers(context.Background(), []dto.HeaderRow{{Text: "FIRST"}, {Text: "  "}, {Text: "SECOND"}}, adminClaims())
	assert.Equal(t, 2, report.Created)
	assert.Len(t, report.Errors, 1)
	require.Len(t, f.headers.history, 2)
	assert.Equal(t, "SECOND", f.headers.history[1].Text)
	assert.Equal(t, "admin", *f.headers.history[1].CreatedBy)
}

func TestImportServiceNameTables(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	report := f.svc.EmployeeTypes(ctx, []dto.NameRow{{Name: "Permanent"}, {Name: "Substitute"}, {Name: ""}}, nil)
	assert.Equal(t, 2, report.Created)
	assert.Len(t, report.Errors, 1)

	report = f.svc.Positions(ctx, []dto.NameRow{{Name: "Clerk"}}, nil)
	assert.Equal(t, "positions", report.Entity)
	assert.Equal(t, 1, report.Created)

	report = f.svc.Specialties(ctx, []dto.SpecialtyRow{{Name: "Physics", ShortName: "T"}}, nil)
	assert.Equal(t, 1, report.Created)

	report = f.svc.Services(ctx, []dto.ServiceRow{{Name: "Directorate"}, {Name: "Directorate"}}, nil)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
}
