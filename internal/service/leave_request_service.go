package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/internal/repository"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
	"github.com/noah-isme/leave-decision-api/pkg/events"
	"github.com/noah-isme/leave-decision-api/pkg/export"
	"github.com/noah-isme/leave-decision-api/pkg/workday"
)

type leaveRequestStore interface {
	Create(ctx context.Context, req *models.LeaveRequest) error
	FindByID(ctx context.Context, id string) (*models.LeaveRequest, error)
	List(ctx context.Context, filter models.LeaveRequestFilter) ([]models.LeaveRequest, int, error)
	Review(ctx context.Context, params repository.ReviewParams) error
	Delete(ctx context.Context, id string) error
}

type leaveTypeLookup interface {
	FindByID(ctx context.Context, id string) (*models.LeaveType, error)
}

type employeeLookup interface {
	FindByID(ctx context.Context, id string) (*models.EmployeeProfile, error)
}

type activeHeaderProvider interface {
	Active(ctx context.Context) (*dto.ActiveHeader, error)
}

type calendarProvider interface {
	Calendar(ctx context.Context) (*workday.Calendar, error)
}

type subordinateResolver interface {
	SubordinateIDs(ctx context.Context, actor *models.JWTClaims) ([]string, error)
}

type eventEmitter interface {
	Emit(eventType, key string, payload interface{})
}

// LeaveRequestDeps groups the collaborators of LeaveRequestService.
type LeaveRequestDeps struct {
	Requests     leaveRequestStore
	LeaveTypes   leaveTypeLookup
	Employees    employeeLookup
	Headers      activeHeaderProvider
	Calendar     calendarProvider
	Subordinates subordinateResolver
	Events       eventEmitter
	Audit        auditLogger
	Metrics      *MetricsService
}

// LeaveRequestService implements the leave request lifecycle up to review.
type LeaveRequestService struct {
	requests     leaveRequestStore
	leaveTypes   leaveTypeLookup
	employees    employeeLookup
	headers      activeHeaderProvider
	calendar     calendarProvider
	subordinates subordinateResolver
	events       eventEmitter
	audit        auditLogger
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewLeaveRequestService constructs the service.
func NewLeaveRequestService(deps LeaveRequestDeps, validate *validator.Validate, logger *zap.Logger) *LeaveRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LeaveRequestService{
		requests:     deps.Requests,
		leaveTypes:   deps.LeaveTypes,
		employees:    deps.Employees,
		headers:      deps.Headers,
		calendar:     deps.Calendar,
		subordinates: deps.Subordinates,
		events:       deps.Events,
		audit:        deps.Audit,
		metrics:      deps.Metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Create submits a PENDING request for the actor's employee record. The
// active header is copied onto the request.
func (s *LeaveRequestService) Create(ctx context.Context, req dto.CreateLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error) {
	if actor == nil || actor.EmployeeID == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "account is not linked to an employee")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave request payload")
	}

	intervals, err := parseIntervals(req.Intervals)
	if err != nil {
		return nil, err
	}

	leaveType, err := s.leaveTypes.FindByID(ctx, req.LeaveTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown leave type")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}

	header, err := s.headers.Active(ctx)
	if err != nil {
		return nil, err
	}

	request := &models.LeaveRequest{
		EmployeeID:  actor.EmployeeID,
		LeaveTypeID: leaveType.ID,
		Status:      models.LeaveStatusPending,
		HeaderText:  header.Text,
		Intervals:   intervals,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave request")
	}

	s.metrics.RecordLeaveTransition(models.LeaveStatusPending)
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionLeaveCreate,
		Resource:   "leave_requests",
		ResourceID: &request.ID,
		NewValues:  auditValues(request),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.emitChange(request, actor)

	calendar, err := s.calendar.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	detail := toLeaveDetail(request, calendar)
	detail.LeaveTypeName = leaveType.Name
	return &detail, nil
}

// ListMine lists the actor's own requests.
func (s *LeaveRequestService) ListMine(ctx context.Context, query dto.LeaveRequestQuery, actor *models.JWTClaims) ([]dto.LeaveRequestDetail, *models.Pagination, error) {
	if actor == nil || actor.EmployeeID == "" {
		return []dto.LeaveRequestDetail{}, paginationFor(query.Page, query.PageSize, 0), nil
	}
	return s.list(ctx, query, models.LeaveRequestFilter{EmployeeID: actor.EmployeeID})
}

// ListSubordinates lists requests of employees in departments the actor heads.
func (s *LeaveRequestService) ListSubordinates(ctx context.Context, query dto.LeaveRequestQuery, actor *models.JWTClaims) ([]dto.LeaveRequestDetail, *models.Pagination, error) {
	ids, err := s.subordinates.SubordinateIDs(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return s.list(ctx, query, models.LeaveRequestFilter{EmployeeIDs: ids})
}

// ListAll lists every request, optionally filtered by status.
func (s *LeaveRequestService) ListAll(ctx context.Context, query dto.LeaveRequestQuery) ([]dto.LeaveRequestDetail, *models.Pagination, error) {
	return s.list(ctx, query, models.LeaveRequestFilter{})
}

// Export renders every request matching query as CSV.
func (s *LeaveRequestService) Export(ctx context.Context, query dto.LeaveRequestQuery) ([]byte, error) {
	if err := validateStatuses(query.Status); err != nil {
		return nil, err
	}
	requests, _, err := s.requests.List(ctx, models.LeaveRequestFilter{Status: query.Status})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave requests")
	}
	calendar, err := s.calendar.Calendar(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]dto.LeaveRequestExportRow, 0, len(requests))
	for i := range requests {
		r := &requests[i]
		spans := make([]string, 0, len(r.Intervals))
		for _, interval := range r.Intervals {
			spans = append(spans, interval.StartDate.Format(dto.DateLayout)+"/"+interval.EndDate.Format(dto.DateLayout))
		}
		row := dto.LeaveRequestExportRow{
			ID:               r.ID,
			EmployeeID:       r.EmployeeID,
			LeaveTypeID:      r.LeaveTypeID,
			Status:           string(r.Status),
			Intervals:        strings.Join(spans, ";"),
			TotalWorkingDays: r.TotalWorkingDays(calendar),
			CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if r.ProtocolNumber != nil {
			row.ProtocolNumber = *r.ProtocolNumber
		}
		rows = append(rows, row)
	}

	data, err := export.CSV(&rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export leave requests")
	}
	return data, nil
}

// Get returns one request with its working day breakdown.
func (s *LeaveRequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.LeaveRequestDetail, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, request, actor); err != nil {
		return nil, err
	}
	return s.detail(ctx, request)
}

// Authorize reports whether actor may read request: leave officers and
// administrators always, the owner, and the head of the owner's department.
func (s *LeaveRequestService) Authorize(ctx context.Context, request *models.LeaveRequest, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if isLeaveManager(actor) || actor.EmployeeID == request.EmployeeID {
		return nil
	}
	if actor.HasRole(models.RoleDepartmentHead) {
		ids, err := s.subordinates.SubordinateIDs(ctx, actor)
		if err != nil {
			return err
		}
		if containsString(ids, request.EmployeeID) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "leave request is outside your scope")
}

// Approve moves a PENDING request to APPROVED, recording the decision data.
func (s *LeaveRequestService) Approve(ctx context.Context, id string, req dto.ApproveLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	protocol := strings.TrimSpace(req.ProtocolNumber)
	signatory := strings.TrimSpace(req.FinalSignatory)
	if protocol == "" || signatory == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "protocol number and final signatory are required")
	}
	return s.review(ctx, id, repository.ReviewParams{
		Status:                 models.LeaveStatusApproved,
		ProtocolNumber:         &protocol,
		DirectorateProtocolNum: trimmedPtr(req.DirectorateProtocolNumber),
		FinalSignatory:         &signatory,
		CustomDecisionText:     trimmedPtr(req.CustomDecisionText),
	}, actor, meta)
}

// Reject moves a PENDING request to REJECTED with a reason.
func (s *LeaveRequestService) Reject(ctx context.Context, id string, req dto.RejectLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	reason := trimmedPtr(&req.Reason)
	if reason == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.review(ctx, id, repository.ReviewParams{
		Status:          models.LeaveStatusRejected,
		RejectionReason: reason,
	}, actor, meta)
}

// Delete removes a request that has not been issued.
func (s *LeaveRequestService) Delete(ctx context.Context, id string, actor *models.JWTClaims, meta models.LoginRequest) error {
	request, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if request.Status == models.LeaveStatusIssued {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "issued requests cannot be deleted")
	}
	if err := s.requests.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "leave request was issued meanwhile")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete leave request")
	}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionLeaveDelete,
		Resource:   "leave_requests",
		ResourceID: &request.ID,
		OldValues:  auditValues(request),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return nil
}

func (s *LeaveRequestService) review(ctx context.Context, id string, params repository.ReviewParams, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !request.Status.CanTransitionTo(params.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move a "+string(request.Status)+" request to "+string(params.Status))
	}

	params.ID = id
	params.ProcessedBy = actor.UserID
	params.ReviewedAt = s.now().UTC()
	if err := s.requests.Review(ctx, params); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "leave request was reviewed meanwhile")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review leave request")
	}

	previous := request.Status
	request.Status = params.Status
	request.RejectionReason = params.RejectionReason
	request.ProtocolNumber = params.ProtocolNumber
	request.DirectorateProtocolNum = params.DirectorateProtocolNum
	request.FinalSignatory = params.FinalSignatory
	request.CustomDecisionText = params.CustomDecisionText
	request.ProcessedBy = &params.ProcessedBy
	request.UpdatedAt = params.ReviewedAt

	s.metrics.RecordLeaveTransition(params.Status)
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionLeaveReview,
		Resource:   "leave_requests",
		ResourceID: &request.ID,
		OldValues:  auditValues(map[string]models.LeaveStatus{"status": previous}),
		NewValues:  auditValues(params),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.emitChange(request, actor)

	return s.detail(ctx, request)
}

func (s *LeaveRequestService) list(ctx context.Context, query dto.LeaveRequestQuery, filter models.LeaveRequestFilter) ([]dto.LeaveRequestDetail, *models.Pagination, error) {
	if err := validateStatuses(query.Status); err != nil {
		return nil, nil, err
	}
	pagination := paginationFor(query.Page, query.PageSize, 0)
	filter.Status = query.Status
	filter.Limit = pagination.PageSize
	filter.Offset = (pagination.Page - 1) * pagination.PageSize

	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave requests")
	}
	pagination.TotalCount = total

	calendar, err := s.calendar.Calendar(ctx)
	if err != nil {
		return nil, nil, err
	}
	details := make([]dto.LeaveRequestDetail, 0, len(requests))
	for i := range requests {
		details = append(details, toLeaveDetail(&requests[i], calendar))
	}
	return details, pagination, nil
}

func (s *LeaveRequestService) load(ctx context.Context, id string) (*models.LeaveRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave request")
	}
	return request, nil
}

// detail enriches request with names; missing reference rows only leave the
// names blank.
func (s *LeaveRequestService) detail(ctx context.Context, request *models.LeaveRequest) (*dto.LeaveRequestDetail, error) {
	calendar, err := s.calendar.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	detail := toLeaveDetail(request, calendar)
	if employee, err := s.employees.FindByID(ctx, request.EmployeeID); err == nil {
		detail.EmployeeName = employee.FullName()
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to load leave request employee", zap.String("leave_request_id", request.ID), zap.Error(err))
	}
	if leaveType, err := s.leaveTypes.FindByID(ctx, request.LeaveTypeID); err == nil {
		detail.LeaveTypeName = leaveType.Name
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to load leave request type", zap.String("leave_request_id", request.ID), zap.Error(err))
	}
	return &detail, nil
}

func (s *LeaveRequestService) emitChange(request *models.LeaveRequest, actor *models.JWTClaims) {
	if s.events == nil {
		return
	}
	eventType := events.TypeRequestReviewed
	if request.Status == models.LeaveStatusPending {
		eventType = events.TypeRequestCreated
	}
	s.events.Emit(eventType, request.ID, events.RequestChanged{
		LeaveRequestID: request.ID,
		EmployeeID:     request.EmployeeID,
		Status:         string(request.Status),
		Actor:          actor.UserID,
		OccurredAt:     s.now().UTC(),
	})
}

// parseIntervals converts the submitted ranges, rejecting inverted and
// overlapping ones.
func parseIntervals(inputs []dto.LeaveIntervalInput) ([]models.LeaveInterval, error) {
	intervals := make([]models.LeaveInterval, 0, len(inputs))
	for _, input := range inputs {
		start, err := time.Parse(dto.DateLayout, input.StartDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
		}
		end, err := time.Parse(dto.DateLayout, input.EndDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end date")
		}
		interval, err := models.NewLeaveInterval(start, end)
		if err != nil {
			return nil, intervalError(err, input.StartDate, input.EndDate)
		}
		intervals = append(intervals, interval)
	}

	sorted := make([]models.LeaveInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartDate.Before(sorted[j].StartDate) })
	for i := 1; i < len(sorted); i++ {
		if !sorted[i].StartDate.After(sorted[i-1].EndDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "leave intervals overlap")
		}
	}
	return intervals, nil
}

func intervalError(err error, start, end string) error {
	message := "interval " + start + " - " + end + " starts after it ends"
	if errors.Is(err, models.ErrIntervalTooLong) {
		message = fmt.Sprintf("interval %s - %s is longer than %d days", start, end, models.MaxIntervalDays)
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func validateStatuses(statuses []models.LeaveStatus) error {
	for _, status := range statuses {
		if !status.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, "unknown status "+string(status))
		}
	}
	return nil
}

func toLeaveDetail(request *models.LeaveRequest, counter models.WorkingDayCounter) dto.LeaveRequestDetail {
	detail := dto.LeaveRequestDetail{
		ID:                        request.ID,
		EmployeeID:                request.EmployeeID,
		LeaveTypeID:               request.LeaveTypeID,
		Status:                    request.Status,
		RejectionReason:           request.RejectionReason,
		ProtocolNumber:            request.ProtocolNumber,
		DirectorateProtocolNumber: request.DirectorateProtocolNum,
		FinalSignatory:            request.FinalSignatory,
		CustomDecisionText:        request.CustomDecisionText,
		HasDecision:               request.DecisionPath != nil && *request.DecisionPath != "",
		HeaderText:                request.HeaderText,
		ProcessedBy:               request.ProcessedBy,
		ProcessedByName:           request.ProcessedByName,
		Intervals:                 make([]dto.LeaveIntervalSummary, 0, len(request.Intervals)),
		CreatedAt:                 request.CreatedAt,
		UpdatedAt:                 request.UpdatedAt,
	}
	for _, interval := range request.Intervals {
		days := interval.WorkingDays(counter)
		detail.Intervals = append(detail.Intervals, dto.LeaveIntervalSummary{
			ID:          interval.ID,
			StartDate:   interval.StartDate.Format(dto.DateLayout),
			EndDate:     interval.EndDate.Format(dto.DateLayout),
			WorkingDays: days,
		})
		detail.TotalWorkingDays += days
	}
	return detail
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
