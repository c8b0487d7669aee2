package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v2"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/internal/service"
)

type rowImporter interface {
	Specialties(ctx context.Context, rows []dto.SpecialtyRow, actor *models.JWTClaims) dto.ImportReport
	Services(ctx context.Context, rows []dto.ServiceRow, actor *models.JWTClaims) dto.ImportReport
	Departments(ctx context.Context, rows []dto.DepartmentRow, actor *models.JWTClaims) dto.ImportReport
	EmployeeTypes(ctx context.Context, rows []dto.NameRow, actor *models.JWTClaims) dto.ImportReport
	Positions(ctx context.Context, rows []dto.NameRow, actor *models.JWTClaims) dto.ImportReport
	Employees(ctx context.Context, rows []dto.EmployeeRow, actor *models.JWTClaims) dto.ImportReport
	LeaveTypes(ctx context.Context, rows []dto.LeaveTypeRow, actor *models.JWTClaims) dto.ImportReport
	Holidays(ctx context.Context, rows []dto.HolidayRow, actor *models.JWTClaims) dto.ImportReport
	Headers(ctx context.Context, rows []dto.HeaderRow, actor *models.JWTClaims) dto.ImportReport
}

// manifest maps entity names to CSV files, relative to the manifest itself.
type manifest struct {
	Files map[string]string `yaml:"files"`
	dir   string
}

type reportEntry struct {
	File   string           `yaml:"file"`
	Report dto.ImportReport `yaml:"report"`
}

func loadManifest(path string) (*manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("manifest %s lists no files", path)
	}
	known := make(map[string]bool, len(service.ImportOrder))
	for _, entity := range service.ImportOrder {
		known[entity] = true
	}
	for entity := range m.Files {
		if !known[entity] {
			return nil, fmt.Errorf("manifest %s: unknown entity %q", path, entity)
		}
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

func (m *manifest) resolve(file string) string {
	if filepath.IsAbs(file) || m.dir == "" {
		return file
	}
	return filepath.Join(m.dir, file)
}

// runManifest imports the listed files in dependency order and stops at the
// first file that cannot be read.
func runManifest(ctx context.Context, importer rowImporter, m *manifest) ([]reportEntry, error) {
	reports := make([]reportEntry, 0, len(m.Files))
	for _, entity := range service.ImportOrder {
		file, ok := m.Files[entity]
		if !ok {
			continue
		}
		path := m.resolve(file)
		report, err := importFile(ctx, importer, entity, path)
		if err != nil {
			return reports, err
		}
		reports = append(reports, reportEntry{File: path, Report: report})
	}
	return reports, nil
}

func importFile(ctx context.Context, importer rowImporter, entity, path string) (dto.ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return dto.ImportReport{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch entity {
	case service.ImportSpecialties:
		var rows []dto.SpecialtyRow
		if err := decodeRows(f, path, &rows); err != nil {
			return dto.ImportReport{}, err
		}
		return importer.Specialties(ctx, rows, nil), nil
	case service.ImportServices:
		var rows []dto.ServiceRow
		if err := decodeRows(f, path, &rows); err != nil {
			return dto.ImportReport{}, err
		}
		return importer.Services(ctx, rows, nil), nil
	case service.ImportDepartments:
		var rows []dto.DepartmentRow
		if err := decodeRows(f, path, &rows); err != nil {
			return dto.ImportReport{}, err
		}
		return importer.Departments(ctx, rows, nil), nil
	case service.ImportEmployeeTypes:
		var rows []dto.NameRow
		if err := decodeRows(f, path, &rows); err != nil {
			return dto.ImportReport{}, err
		}
		return importer.EmployeeTypes(ctx, rows, nil), nil
	case service.ImportPositions:
		var rows []dto.NameRow
		if err := decodeRows(f, path, &rows); err != nil {
			return dto.ImportReport{}, err
		}
		return importer.Positions(ctx, rows, nil), nil
	case service.ImportEmployees:
		var rows []dto.EmployeeRow
		if err := decodeRows(f, path, &rows); err != nil {
			return dto.ImportReport{}, err
		}
		return importer.Employees(ctx, rows, nil), nil
	case service.ImportLeaveTypes:
		var rows []dto.LeaveTypeRow
		if err := decodeRows(f, path, &rows); err != nil {
			return dto.ImportReport{}, err
		}
		return importer.LeaveTypes(ctx, rows, nil), nil
	case service.ImportHolidays:
		var rows []dto.HolidayRow
		if err := decodeRows(f, path, &rows); err != nil {
			return dto.ImportReport{}, err
		}
		return importer.Holidays(ctx, rows, nil), nil
	case service.ImportHeaders:
		var rows []dto.HeaderRow
		if err := decodeRows(f, path, &rows); err != nil {
			return dto.ImportReport{}, err
		}
		return importer.Headers(ctx, rows, nil), nil
	default:
		return dto.ImportReport{}, fmt.Errorf("unknown entity %q", entity)
	}
}

func decodeRows(r io.Reader, path string, out interface{}) error {
	if err := gocsv.Unmarshal(r, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeReports(w io.Writer, reports []reportEntry) error {
	out, err := yaml.Marshal(reports)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func checkStrict(reports []reportEntry, strict bool) error {
	if !strict {
		return nil
	}
	rejected := 0
	for _, entry := range reports {
		rejected += len(entry.Report.Errors)
	}
	if rejected > 0 {
		return fmt.Errorf("%d rows rejected", rejected)
	}
	return nil
}
