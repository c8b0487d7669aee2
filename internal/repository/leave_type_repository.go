package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/leave-decision-api/internal/models"
)

const leaveTypeColumns = `id, name, short_name, subject_text, decision_text`

// LeaveTypeRepository manages leave categories.
type LeaveTypeRepository struct {
	db *sqlx.DB
}

// NewLeaveTypeRepository constructs the repository.
func NewLeaveTypeRepository(db *sqlx.DB) *LeaveTypeRepository {
	return &LeaveTypeRepository{db: db}
}

// List returns every leave type by name.
func (r *LeaveTypeRepository) List(ctx context.Context) ([]models.LeaveType, error) {
	var types []models.LeaveType
	if err := r.db.SelectContext(ctx, &types, `SELECT `+leaveTypeColumns+` FROM leave_types ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list leave types: %w", err)
	}
	return types, nil
}

// FindByID returns a leave type.
func (r *LeaveTypeRepository) FindByID(ctx context.Context, id string) (*models.LeaveType, error) {
	var lt models.LeaveType
	if err := r.db.GetContext(ctx, &lt, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find leave type: %w", err)
	}
	return &lt, nil
}

// FindByName returns the leave type with the exact name.
func (r *LeaveTypeRepository) FindByName(ctx context.Context, name string) (*models.LeaveType, error) {
	var lt models.LeaveType
	if err := r.db.GetContext(ctx, &lt, `SELECT `+leaveTypeColumns+` FROM leave_types WHERE name = $1`, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find leave type by name: %w", err)
	}
	return &lt, nil
}

// Create inserts a leave type.
func (r *LeaveTypeRepository) Create(ctx context.Context, lt *models.LeaveType) error {
	if lt.ID == "" {
		lt.ID = uuid.NewString()
	}
	const query = `INSERT INTO leave_types (id, name, short_name, subject_text, decision_text) VALUES (:id, :name, :short_name, :subject_text, :decision_text)`
	if _, err := r.db.NamedExecContext(ctx, query, lt); err != nil {
		return fmt.Errorf("create leave type: %w", err)
	}
	return nil
}

// Update overwrites a leave type.
func (r *LeaveTypeRepository) Update(ctx context.Context, lt *models.LeaveType) error {
	const query = `UPDATE leave_types SET name = :name, short_name = :short_name, subject_text = :subject_text, decision_text = :decision_text WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, lt)
	if err != nil {
		return fmt.Errorf("update leave type: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a leave type that no request references.
func (r *LeaveTypeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leave_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete leave type: %w", err)
	}
	return expectAffected(res)
}

// InUse reports whether any leave request references the leave type.
func (r *LeaveTypeRepository) InUse(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM leave_requests WHERE leave_type_id = $1)`, id); err != nil {
		return false, fmt.Errorf("check leave type usage: %w", err)
	}
	return exists, nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
