package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/leave-decision-api/internal/models"
)

// HeaderRepository stores the append-only letterhead history.
type HeaderRepository struct {
	db *sqlx.DB
}

// NewHeaderRepository constructs the repository.
func NewHeaderRepository(db *sqlx.DB) *HeaderRepository {
	return &HeaderRepository{db: db}
}

// Create appends a header entry, which becomes the active one.
func (r *HeaderRepository) Create(ctx context.Context, header *models.HeaderText) error {
	if header.ID == "" {
		header.ID = uuid.NewString()
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO header_texts (id, text, created_by, created_at) VALUES (:id, :text, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, header); err != nil {
		return fmt.Errorf("create header: %w", err)
	}
	return nil
}

// Latest returns the most recent header entry.
func (r *HeaderRepository) Latest(ctx context.Context) (*models.HeaderText, error) {
	const query = `SELECT id, text, created_by, created_at FROM header_texts ORDER BY created_at DESC, id DESC LIMIT 1`
	var header models.HeaderText
	if err := r.db.GetContext(ctx, &header, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest header: %w", err)
	}
	return &header, nil
}

// List returns the header history, newest first.
func (r *HeaderRepository) List(ctx context.Context, limit int) ([]models.HeaderText, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, text, created_by, created_at FROM header_texts ORDER BY created_at DESC, id DESC LIMIT $1`
	var headers []models.HeaderText
	if err := r.db.SelectContext(ctx, &headers, query, limit); err != nil {
		return nil, fmt.Errorf("list headers: %w", err)
	}
	return headers, nil
}
