package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/pkg/database"
)

// DirectoryRepository stores the organization reference data: services,
// departments, specialties, employee types and positions.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// ListServices returns all services by name.
func (r *DirectoryRepository) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	if err := r.db.SelectContext(ctx, &services, `SELECT id, name FROM services ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// ListDepartments returns all departments by name.
func (r *DirectoryRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, `SELECT id, name, service_id, head_employee_id FROM departments ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindDepartment returns a department by id.
func (r *DirectoryRepository) FindDepartment(ctx context.Context, id string) (*models.Department, error) {
	var department models.Department
	if err := r.db.GetContext(ctx, &department, `SELECT id, name, service_id, head_employee_id FROM departments WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &department, nil
}

// DepartmentsHeadedBy returns the departments whose head is employeeID.
func (r *DirectoryRepository) DepartmentsHeadedBy(ctx context.Context, employeeID string) ([]models.Department, error) {
	var departments []models.Department
	const query = `SELECT id, name, service_id, head_employee_id FROM departments WHERE head_employee_id = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &departments, query, employeeID); err != nil {
		return nil, fmt.Errorf("list headed departments: %w", err)
	}
	return departments, nil
}

// AppointHead sets the head of a department, or clears it when employeeID
// is nil. The new head's user gains DEPARTMENT_HEAD and the previous head
// loses it once they head no other department. Returns the previous head.
func (r *DirectoryRepository) AppointHead(ctx context.Context, departmentID string, employeeID *string) (*string, error) {
	var previous *string
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &previous, `SELECT head_employee_id FROM departments WHERE id = $1 FOR UPDATE`, departmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock department: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE departments SET head_employee_id = $2 WHERE id = $1`, departmentID, employeeID); err != nil {
			return fmt.Errorf("update department head: %w", err)
		}

		if employeeID != nil {
			const grant = `INSERT INTO user_roles (user_id, role)
				SELECT user_id, $2 FROM employees WHERE id = $1 AND user_id IS NOT NULL
				ON CONFLICT DO NOTHING`
			if _, err := tx.ExecContext(ctx, grant, *employeeID, models.RoleDepartmentHead); err != nil {
				return fmt.Errorf("grant department head role: %w", err)
			}
		}

		if previous == nil || (employeeID != nil && *previous == *employeeID) {
			return nil
		}
		var stillHeading int
		if err := tx.GetContext(ctx, &stillHeading, `SELECT COUNT(*) FROM departments WHERE head_employee_id = $1`, *previous); err != nil {
			return fmt.Errorf("count headed departments: %w", err)
		}
		if stillHeading > 0 {
			return nil
		}
		const revoke = `DELETE FROM user_roles WHERE role = $2 AND user_id = (SELECT user_id FROM employees WHERE id = $1)`
		if _, err := tx.ExecContext(ctx, revoke, *previous, models.RoleDepartmentHead); err != nil {
			return fmt.Errorf("revoke department head role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// EnsureService returns the id of the service named name, creating it when
// missing.
func (r *DirectoryRepository) EnsureService(ctx context.Context, name string) (string, bool, error) {
	return r.ensure(ctx, "service",
		`SELECT id FROM services WHERE name = $1`, []interface{}{name},
		`INSERT INTO services (id, name) VALUES ($1, $2)`, []interface{}{name})
}

// EnsureDepartment returns the id of the department named name within
// serviceID, creating it when missing.
func (r *DirectoryRepository) EnsureDepartment(ctx context.Context, name, serviceID string) (string, bool, error) {
	return r.ensure(ctx, "department",
		`SELECT id FROM departments WHERE name = $1 AND service_id = $2`, []interface{}{name, serviceID},
		`INSERT INTO departments (id, name, service_id) VALUES ($1, $2, $3)`, []interface{}{name, serviceID})
}

// EnsureSpecialty returns the id of the specialty named name, creating it
// when missing.
func (r *DirectoryRepository) EnsureSpecialty(ctx context.Context, name, shortName string) (string, bool, error) {
	return r.ensure(ctx, "specialty",
		`SELECT id FROM specialties WHERE name = $1`, []interface{}{name},
		`INSERT INTO specialties (id, name, short_name) VALUES ($1, $2, $3)`, []interface{}{name, shortName})
}

// EnsureEmployeeType returns the id of the employee type named name.
func (r *DirectoryRepository) EnsureEmployeeType(ctx context.Context, name string) (string, bool, error) {
	return r.ensure(ctx, "employee type",
		`SELECT id FROM employee_types WHERE name = $1`, []interface{}{name},
		`INSERT INTO employee_types (id, name) VALUES ($1, $2)`, []interface{}{name})
}

// EnsurePosition returns the id of the position named name.
func (r *DirectoryRepository) EnsurePosition(ctx context.Context, name string) (string, bool, error) {
	return r.ensure(ctx, "position",
		`SELECT id FROM employee_positions WHERE name = $1`, []interface{}{name},
		`INSERT INTO employee_positions (id, name) VALUES ($1, $2)`, []interface{}{name})
}

func (r *DirectoryRepository) ensure(ctx context.Context, entity, selectQuery string, selectArgs []interface{}, insertQuery string, insertArgs []interface{}) (string, bool, error) {
	var id string
	err := r.db.GetContext(ctx, &id, selectQuery, selectArgs...)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("find %s: %w", entity, err)
	}
	id = uuid.NewString()
	if _, err := r.db.ExecContext(ctx, insertQuery, append([]interface{}{id}, insertArgs...)...); err != nil {
		return "", false, fmt.Errorf("create %s: %w", entity, err)
	}
	return id, true, nil
}
