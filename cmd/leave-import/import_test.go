package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/internal/service"
)

type recordingImporter struct {
	order    []string
	holidays []dto.HolidayRow
	employee []dto.EmployeeRow
}

func (r *recordingImporter) report(entity string, n int) dto.ImportReport {
	r.order = append(r.order, entity)
	return dto.ImportReport{Entity: entity, Created: n}
}

func (r *recordingImporter) Specialties(_ context.Context, rows []dto.SpecialtyRow, _ *models.JWTClaims) dto.ImportReport {
	return r.report(service.ImportSpecialties, len(rows))
}

func (r *recordingImporter) Services(_ context.Context, rows []dto.ServiceRow, _ *models.JWTClaims) dto.ImportReport {
	return r.report(service.ImportServices, len(rows))
}

func (r *recordingImporter) Departments(_ context.Context, rows []dto.DepartmentRow, _ *models.JWTClaims) dto.ImportReport {
	return r.report(service.ImportDepartments, len(rows))
}

func (r *recordingImporter) EmployeeTypes(_ context.Context, rows []dto.NameRow, _ *models.JWTClaims) dto.ImportReport {
	return r.report(service.ImportEmployeeTypes, len(rows))
}

func (r *recordingImporter) Positions(_ context.Context, rows []dto.NameRow, _ *models.JWTClaims) dto.ImportReport {
	return r.report(service.ImportPositions, len(rows))
}

func (r *recordingImporter) Employees(_ context.Context, rows []dto.EmployeeRow, _ *models.JWTClaims) dto.ImportReport {
	r.employee = rows
	report := r.report(service.ImportEmployees, len(rows))
	report.Fail(0, "gender must be M or F")
	return report
}

func (r *recordingImporter) LeaveTypes(_ context.Context, rows []dto.LeaveTypeRow, _ *models.JWTClaims) dto.ImportReport {
	return r.report(service.ImportLeaveTypes, len(rows))
}

func (r *recordingImporter) Holidays(_ context.Context, rows []dto.HolidayRow, _ *models.JWTClaims) dto.ImportReport {
	r.holidays = rows
	return r.report(service.ImportHolidays, len(rows))
}

func (r *recordingImporter) Headers(_ context.Context, rows []dto.HeaderRow, _ *models.JWTClaims) dto.ImportReport {
	return r.report(service.ImportHeaders, len(rows))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunManifestFollowsImportOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "employees.csv", "surname,name,father_name,gender,work_email\nPapadopoulou,Maria,Georgios,X,maria@sch.gr\n")
	writeFile(t, dir, "services.csv", "name\nPersonnel\nPayroll\n")
	writeFile(t, dir, "holidays.csv", "name,day,month,year,is_fixed\nNew Year,1,1,,true\nClean Monday,3,3,2025,false\n")
	manifestPath := writeFile(t, dir, "import.yml", "files:\n  employees: employees.csv\n  holidays: holidays.csv\n  services: services.csv\n")

	m, err := loadManifest(manifestPath)
	require.NoError(t, err)

	importer := &recordingImporter{}
	reports, err := runManifest(context.Background(), importer, m)
	require.NoError(t, err)

	assert.Equal(t, []string{service.ImportServices, service.ImportHolidays, service.ImportEmployees}, importer.order)
	require.Len(t, reports, 3)
	assert.Equal(t, 2, reports[0].Report.Created)
	assert.Equal(t, filepath.Join(dir, "services.csv"), reports[0].File)

	require.Len(t, importer.holidays, 2)
	assert.True(t, importer.holidays[0].IsFixed)
	assert.Equal(t, "", importer.holidays[0].Year)
	assert.Equal(t, "2025", importer.holidays[1].Year)
	assert.Equal(t, 3, importer.holidays[1].Month)

	require.Len(t, importer.employee, 1)
	assert.Equal(t, "maria@sch.gr", importer.employee[0].WorkEmail)
	assert.Error(t, checkStrict(reports, true))
	assert.NoError(t, checkStrict(reports, false))
}

func TestLoadManifestRejectsUnknownEntity(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "import.yml", "files:\n  invoices: invoices.csv\n")

	_, err := loadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoices")
}

func TestLoadManifestRequiresFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "import.yml", "files: {}\n")

	_, err := loadManifest(path)
	assert.Error(t, err)
}

func TestRunManifestStopsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "services.csv", "name\nPersonnel\n")
	m := &manifest{dir: dir, Files: map[string]string{
		service.ImportServices:    "services.csv",
		service.ImportDepartments: "missing.csv",
	}}

	importer := &recordingImporter{}
	reports, err := runManifest(context.Background(), importer, m)
	require.Error(t, err)
	assert.Len(t, reports, 1)
	assert.Equal(t, []string{service.ImportServices}, importer.order)
}

func TestImportFileUnknownEntity(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "x.csv", "name\nx\n")

	_, err := importFile(context.Background(), &recordingImporter{}, "invoices", path)
	assert.Error(t, err)
}

func TestWriteReports(t *testing.T) {
	var buf bytes.Buffer
	report := dto.ImportReport{Entity: service.ImportHolidays, Created: 2}
	report.Fail(1, "day does not exist in month")

	require.NoError(t, writeReports(&buf, []reportEntry{{File: "holidays.csv", Report: report}}))
	out := buf.String()
	assert.Contains(t, out, "file: holidays.csv")
	assert.Contains(t, out, "created: 2")
	assert.Contains(t, out, "line 3: day does not exist in month")
}
