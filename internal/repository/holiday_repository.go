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

const holidayColumns = `id, name, day, month, year, is_fixed, created_at, updated_at`

// HolidayRepository persists the public holiday registry.
type HolidayRepository struct {
	db *sqlx.DB
}

// NewHolidayRepository constructs the repository.
func NewHolidayRepository(db *sqlx.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// List returns holidays ordered by month and day. A year filter keeps fixed
// holidays plus those specific to that year.
func (r *HolidayRepository) List(ctx context.Context, filter models.HolidayFilter) ([]models.PublicHoliday, error) {
	var conditions []string
	var args []interface{}
	if filter.Year != nil {
		args = append(args, *filter.Year)
		conditions = append(conditions, fmt.Sprintf("(is_fixed = TRUE OR year = $%d)", len(args)))
	}
	if filter.Fixed != nil {
		args = append(args, *filter.Fixed)
		conditions = append(conditions, fmt.Sprintf("is_fixed = $%d", len(args)))
	}

	query := `SELECT ` + holidayColumns + ` FROM public_holidays`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY month, day, name"

	var holidays []models.PublicHoliday
	if err := r.db.SelectContext(ctx, &holidays, query, args...); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// FindByID returns a holiday.
func (r *HolidayRepository) FindByID(ctx context.Context, id string) (*models.PublicHoliday, error) {
	var holiday models.PublicHoliday
	if err := r.db.GetContext(ctx, &holiday, `SELECT `+holidayColumns+` FROM public_holidays WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find holiday: %w", err)
	}
	return &holiday, nil
}

// Exists reports whether an identical holiday is already registered.
func (r *HolidayRepository) Exists(ctx context.Context, h models.PublicHoliday) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM public_holidays WHERE name = $1 AND day = $2 AND month = $3 AND is_fixed = $4 AND year IS NOT DISTINCT FROM $5)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, h.Name, h.Day, h.Month, h.IsFixed, h.Year); err != nil {
		return false, fmt.Errorf("check holiday: %w", err)
	}
	return exists, nil
}

// Create inserts a holiday.
func (r *HolidayRepository) Create(ctx context.Context, h *models.PublicHoliday) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	h.CreatedAt, h.UpdatedAt = now, now
	const query = `INSERT INTO public_holidays (id, name, day, month, year, is_fixed, created_at, updated_at) VALUES (:id, :name, :day, :month, :year, :is_fixed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, h); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// Update overwrites a holiday.
func (r *HolidayRepository) Update(ctx context.Context, h *models.PublicHoliday) error {
	h.UpdatedAt = time.Now().UTC()
	const query = `UPDATE public_holidays SET name = :name, day = :day, month = :month, year = :year, is_fixed = :is_fixed, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, h)
	if err != nil {
		return fmt.Errorf("update holiday: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a holiday.
func (r *HolidayRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM public_holidays WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	return expectAffected(res)
}
