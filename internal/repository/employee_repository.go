package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/leave-decision-api/internal/models"
)

const employeeColumns = `e.id, e.user_id, e.name, e.surname, e.father_name, e.specialty_id, e.service_id, e.department_id,
       e.employee_type_id, e.position_id, e.role_description, e.notification_recipients, e.regular_leave_days,
       e.carryover_leave_days, e.gender, e.work_email, e.personal_email, e.phone, e.active, e.created_at, e.updated_at`

const profileJoins = `
	FROM employees e
	LEFT JOIN specialties sp ON sp.id = e.specialty_id
	LEFT JOIN services sv ON sv.id = e.service_id
	LEFT JOIN departments d ON d.id = e.department_id`

const profileColumns = employeeColumns + `, sp.name AS specialty_name, sv.name AS service_name, d.name AS department_name`

// EmployeeRepository manages employee records.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByID returns the employee profile with reference names resolved.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.EmployeeProfile, error) {
	query := `SELECT ` + profileColumns + profileJoins + ` WHERE e.id = $1`
	var profile models.EmployeeProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return &profile, nil
}

// FindByUserID returns the employee linked to a user account.
func (r *EmployeeRepository) FindByUserID(ctx context.Context, userID string) (*models.EmployeeProfile, error) {
	query := `SELECT ` + profileColumns + profileJoins + ` WHERE e.user_id = $1`
	var profile models.EmployeeProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by user: %w", err)
	}
	return &profile, nil
}

// List returns employees matching filter along with the total count.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.EmployeeProfile, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if len(filter.DepartmentIDs) > 0 {
		placeholders := make([]string, len(filter.DepartmentIDs))
		for i, id := range filter.DepartmentIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, fmt.Sprintf("e.department_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("e.active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		where = append(where, fmt.Sprintf("(LOWER(e.name) LIKE $%d OR LOWER(e.surname) LIKE $%d OR LOWER(e.work_email) LIKE $%d)", len(args), len(args), len(args)))
	}

	condition := " WHERE " + strings.Join(where, " AND ")
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s%s%s ORDER BY e.surname, e.name LIMIT %d OFFSET %d", profileColumns, profileJoins, condition, pageSize, (page-1)*pageSize)

	var employees []models.EmployeeProfile
	if err := r.db.SelectContext(ctx, &employees, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM employees e"+condition, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}
	return employees, total, nil
}

// IDsByDepartments returns the ids of employees in any of the departments.
func (r *EmployeeRepository) IDsByDepartments(ctx context.Context, departmentIDs []string) ([]string, error) {
	if len(departmentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM employees WHERE department_id IN (?) ORDER BY id`, departmentIDs)
	if err != nil {
		return nil, fmt.Errorf("build subordinates query: %w", err)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list subordinates: %w", err)
	}
	return ids, nil
}

// UpsertByWorkEmail inserts the employee or refreshes the record sharing its
// work email. The stored id is written back to employee.
func (r *EmployeeRepository) UpsertByWorkEmail(ctx context.Context, employee *models.Employee) (bool, error) {
	if employee.WorkEmail == nil || *employee.WorkEmail == "" {
		return false, fmt.Errorf("upsert employee: work email required")
	}
	var existingID string
	err := r.db.GetContext(ctx, &existingID, `SELECT id FROM employees WHERE LOWER(work_email) = LOWER($1)`, *employee.WorkEmail)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return false, err
		}
		if err := insertEmployee(ctx, tx, employee); err != nil {
			tx.Rollback() //nolint:errcheck
			return false, err
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit employee: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("find employee by email: %w", err)
	}

	employee.ID = existingID
	employee.UpdatedAt = time.Now().UTC()
	const update = `UPDATE employees SET name = :name, surname = :surname, father_name = :father_name, specialty_id = :specialty_id,
		service_id = :service_id, department_id = :department_id, employee_type_id = :employee_type_id, position_id = :position_id,
		role_description = :role_description, notification_recipients = :notification_recipients, gender = :gender,
		personal_email = :personal_email, phone = :phone, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, update, employee); err != nil {
		return false, fmt.Errorf("update employee: %w", err)
	}
	return false, nil
}

func insertEmployee(ctx context.Context, tx *sqlx.Tx, employee *models.Employee) error {
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = now
	}
	employee.UpdatedAt = now
	if employee.RegularLeaveDays == 0 {
		employee.RegularLeaveDays = 24
	}
	const query = `INSERT INTO employees (id, user_id, name, surname, father_name, specialty_id, service_id, department_id,
		employee_type_id, position_id, role_description, notification_recipients, regular_leave_days, carryover_leave_days,
		gender, work_email, personal_email, phone, active, created_at, updated_at)
		VALUES (:id, :user_id, :name, :surname, :father_name, :specialty_id, :service_id, :department_id,
		:employee_type_id, :position_id, :role_description, :notification_recipients, :regular_leave_days, :carryover_leave_days,
		:gender, :work_email, :personal_email, :phone, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, employee); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}
