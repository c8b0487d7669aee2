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
	"github.com/noah-isme/leave-decision-api/pkg/database"
)

// ErrStatusChanged is returned by guarded updates when the row no longer has
// the expected status.
var ErrStatusChanged = errors.New("leave request status changed concurrently")

const leaveRequestColumns = `id, employee_id, leave_type_id, status, rejection_reason, protocol_number, directorate_protocol_number,
       final_signatory, custom_decision_text, decision_path, header_text, processed_by, processed_by_name, processed_by_phone,
       created_at, updated_at`

// LeaveRequestRepository persists leave requests and their intervals.
type LeaveRequestRepository struct {
	db *sqlx.DB
}

// NewLeaveRequestRepository constructs the repository.
func NewLeaveRequestRepository(db *sqlx.DB) *LeaveRequestRepository {
	return &LeaveRequestRepository{db: db}
}

// Create inserts the request and its intervals atomically.
func (r *LeaveRequestRepository) Create(ctx context.Context, req *models.LeaveRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.LeaveStatusPending
	}
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insertRequest = `INSERT INTO leave_requests (id, employee_id, leave_type_id, status, header_text, created_at, updated_at)
			VALUES (:id, :employee_id, :leave_type_id, :status, :header_text, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insertRequest, req); err != nil {
			return fmt.Errorf("create leave request: %w", err)
		}
		const insertInterval = `INSERT INTO leave_intervals (id, leave_request_id, start_date, end_date) VALUES (:id, :leave_request_id, :start_date, :end_date)`
		for i := range req.Intervals {
			interval := &req.Intervals[i]
			if interval.ID == "" {
				interval.ID = uuid.NewString()
			}
			interval.LeaveRequestID = req.ID
			if _, err := tx.NamedExecContext(ctx, insertInterval, interval); err != nil {
				return fmt.Errorf("create leave interval: %w", err)
			}
		}
		return nil
	})
}

// FindByID returns a request with its intervals.
func (r *LeaveRequestRepository) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	var req models.LeaveRequest
	if err := r.db.GetContext(ctx, &req, `SELECT `+leaveRequestColumns+` FROM leave_requests WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find leave request: %w", err)
	}
	intervals, err := r.intervalsFor(ctx, []string{req.ID})
	if err != nil {
		return nil, err
	}
	req.Intervals = intervals[req.ID]
	return &req, nil
}

// List returns requests matching filter, newest first, with the total count.
func (r *LeaveRequestRepository) List(ctx context.Context, filter models.LeaveRequestFilter) ([]models.LeaveRequest, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.EmployeeIDs != nil {
		if len(filter.EmployeeIDs) == 0 {
			return []models.LeaveRequest{}, 0, nil
		}
		placeholders := make([]string, len(filter.EmployeeIDs))
		for i, id := range filter.EmployeeIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("employee_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := " WHERE " + strings.Join(conditions, " AND ")
	listQuery := fmt.Sprintf("SELECT %s FROM leave_requests%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d", leaveRequestColumns, where, limit, offset)

	var requests []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list leave requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM leave_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count leave requests: %w", err)
	}

	ids := make([]string, len(requests))
	for i := range requests {
		ids[i] = requests[i].ID
	}
	intervals, err := r.intervalsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range requests {
		requests[i].Intervals = intervals[requests[i].ID]
	}
	return requests, total, nil
}

func (r *LeaveRequestRepository) intervalsFor(ctx context.Context, requestIDs []string) (map[string][]models.LeaveInterval, error) {
	out := make(map[string][]models.LeaveInterval, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT id, leave_request_id, start_date, end_date FROM leave_intervals WHERE leave_request_id IN (?) ORDER BY start_date, id`, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("build intervals query: %w", err)
	}
	var rows []models.LeaveInterval
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load leave intervals: %w", err)
	}
	for _, row := range rows {
		out[row.LeaveRequestID] = append(out[row.LeaveRequestID], row)
	}
	return out, nil
}

// ReviewParams groups the columns written when a request leaves PENDING.
type ReviewParams struct {
	ID                     string
	Status                 models.LeaveStatus
	RejectionReason        *string
	ProcessedBy            string
	ProtocolNumber         *string
	DirectorateProtocolNum *string
	FinalSignatory         *string
	CustomDecisionText     *string
	ReviewedAt             time.Time
}

// Review applies an approval or rejection to a request that is still
// PENDING. ErrStatusChanged signals a concurrent review won.
func (r *LeaveRequestRepository) Review(ctx context.Context, params ReviewParams) error {
	query := fmt.Sprintf(`UPDATE leave_requests SET status = :status, rejection_reason = :rejection_reason, processed_by = :processed_by,
		protocol_number = :protocol_number, directorate_protocol_number = :directorate_protocol_number,
		final_signatory = :final_signatory, custom_decision_text = :custom_decision_text, updated_at = :updated_at
		WHERE id = :id AND status = '%s'`, models.LeaveStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                          params.ID,
		"status":                      params.Status,
		"rejection_reason":            params.RejectionReason,
		"processed_by":                params.ProcessedBy,
		"protocol_number":             params.ProtocolNumber,
		"directorate_protocol_number": params.DirectorateProtocolNum,
		"final_signatory":             params.FinalSignatory,
		"custom_decision_text":        params.CustomDecisionText,
		"updated_at":                  params.ReviewedAt,
	})
	if err != nil {
		return fmt.Errorf("review leave request: %w", err)
	}
	return guardedResult(result)
}

// IssueParams groups the columns written when a decision is issued.
type IssueParams struct {
	ID               string
	DecisionPath     string
	ProcessedByName  string
	ProcessedByPhone *string
	IssuedAt         time.Time
}

// MarkIssued records the decision document on an APPROVED request and moves
// it to ISSUED.
func (r *LeaveRequestRepository) MarkIssued(ctx context.Context, params IssueParams) error {
	query := fmt.Sprintf(`UPDATE leave_requests SET status = '%s', decision_path = :decision_path, processed_by_name = :processed_by_name,
		processed_by_phone = :processed_by_phone, updated_at = :updated_at
		WHERE id = :id AND status = '%s'`, models.LeaveStatusIssued, models.LeaveStatusApproved)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                 params.ID,
		"decision_path":      params.DecisionPath,
		"processed_by_name":  params.ProcessedByName,
		"processed_by_phone": params.ProcessedByPhone,
		"updated_at":         params.IssuedAt,
	})
	if err != nil {
		return fmt.Errorf("issue leave decision: %w", err)
	}
	return guardedResult(result)
}

// Delete removes a request that has not been issued yet.
func (r *LeaveRequestRepository) Delete(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM leave_intervals WHERE leave_request_id = $1`, id); err != nil {
			return fmt.Errorf("delete leave intervals: %w", err)
		}
		result, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM leave_requests WHERE id = $1 AND status <> '%s'`, models.LeaveStatusIssued), id)
		if err != nil {
			return fmt.Errorf("delete leave request: %w", err)
		}
		return guardedResult(result)
	})
}

func guardedResult(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check leave request update rows: %w", err)
	}
	if rows == 0 {
		return ErrStatusChanged
	}
	return nil
}
