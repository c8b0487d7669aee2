package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/internal/repository"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
	"github.com/noah-isme/leave-decision-api/pkg/events"
	"github.com/noah-isme/leave-decision-api/pkg/export"
	"github.com/noah-isme/leave-decision-api/pkg/storage"
)

const decisionDir = "decisions"

type decisionRequestStore interface {
	FindByID(ctx context.Context, id string) (*models.LeaveRequest, error)
	MarkIssued(ctx context.Context, params repository.IssueParams) error
}

type decisionEmployeeLookup interface {
	FindByID(ctx context.Context, id string) (*models.EmployeeProfile, error)
	FindByUserID(ctx context.Context, userID string) (*models.EmployeeProfile, error)
}

type decisionRenderer interface {
	Render(doc export.DecisionDocument) ([]byte, error)
}

type decisionFileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Delete(relPath string) error
	Exists(relPath string) bool
	Path(relPath string) string
}

type decisionURLSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (storage.SignedDownload, error)
}

type leaveApprover interface {
	Approve(ctx context.Context, id string, req dto.ApproveLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error)
	Authorize(ctx context.Context, request *models.LeaveRequest, actor *models.JWTClaims) error
}

// DecisionServiceConfig tunes download links.
type DecisionServiceConfig struct {
	// DownloadPath is the route prefix the token is appended to.
	DownloadPath string
}

// DecisionDeps groups the collaborators of DecisionService.
type DecisionDeps struct {
	Requests   decisionRequestStore
	LeaveTypes leaveTypeLookup
	Employees  decisionEmployeeLookup
	Calendar   calendarProvider
	Approver   leaveApprover
	Renderer   decisionRenderer
	Storage    decisionFileStorage
	Signer     decisionURLSigner
	Events     eventEmitter
	Audit      auditLogger
	Metrics    *MetricsService
}

// DecisionService turns approved leave requests into issued decision
// documents.
type DecisionService struct {
	deps   DecisionDeps
	cfg    DecisionServiceConfig
	logger *zap.Logger
	now    func() time.Time
}

// DecisionFile locates a stored decision for download.
type DecisionFile struct {
	AbsolutePath string
	FileName     string
}

// NewDecisionService constructs the service.
func NewDecisionService(deps DecisionDeps, logger *zap.Logger, cfg DecisionServiceConfig) *DecisionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/decisions/download"
	}
	cfg.DownloadPath = strings.TrimRight(cfg.DownloadPath, "/")
	return &DecisionService{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

// discardDecision removes a file written by a generation whose status update
// failed. The file stays when the stored request records it, which happens
// when an overlapping generation for the same request won the update.
func (s *DecisionService) discardDecision(ctx context.Context, requestID, relPath string) {
	current, err := s.deps.Requests.FindByID(ctx, requestID)
	if err != nil {
		s.logger.Warn("keep decision after failed issue", zap.String("leave_request_id", requestID), zap.String("path", relPath), zap.Error(err))
		return
	}
	if current.DecisionPath != nil && *current.DecisionPath == relPath {
		return
	}
	if err := s.deps.Storage.Delete(relPath); err != nil {
		s.logger.Warn("remove orphaned decision", zap.String("path", relPath), zap.Error(err))
	}
}

// Generate renders and stores the decision of an APPROVED request and moves
// it to ISSUED. Preconditions are checked before anything is written; when
// rendering or storing fails the request stays APPROVED.
func (s *DecisionService) Generate(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.DecisionResult, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := checkDecisionPreconditions(request); err != nil {
		return nil, err
	}

	doc, officer, employee, err := s.buildDocument(ctx, request)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	data, err := s.deps.Renderer.Render(*doc)
	if err != nil {
		s.deps.Metrics.RecordDecision(false, time.Since(started))
		s.logger.Error("render decision", zap.String("leave_request_id", request.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrDecisionRender.Code, appErrors.ErrDecisionRender.Status, appErrors.ErrDecisionRender.Message)
	}

	relPath := DecisionFileName(employee.WorkEmail, request.CreatedAt, request.ID)
	if _, err := s.deps.Storage.Save(relPath, data); err != nil {
		s.deps.Metrics.RecordDecision(false, time.Since(started))
		s.logger.Error("store decision", zap.String("leave_request_id", request.ID), zap.String("path", relPath), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrDecisionRender.Code, appErrors.ErrDecisionRender.Status, appErrors.ErrDecisionRender.Message)
	}

	issuedAt := s.now().UTC()
	err = s.deps.Requests.MarkIssued(ctx, repository.IssueParams{
		ID:               request.ID,
		DecisionPath:     relPath,
		ProcessedByName:  officer.FullName(),
		ProcessedByPhone: officer.Phone,
		IssuedAt:         issuedAt,
	})
	if err != nil {
		s.deps.Metrics.RecordDecision(false, time.Since(started))
		s.discardDecision(ctx, request.ID, relPath)
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "leave request is no longer approved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record issued decision")
	}
	s.deps.Metrics.RecordDecision(true, time.Since(started))
	s.deps.Metrics.RecordLeaveTransition(models.LeaveStatusIssued)

	result, err := s.link(request.ID, relPath)
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.deps.Audit, s.logger, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionDecisionIssue,
		Resource:   "leave_requests",
		ResourceID: &request.ID,
		OldValues:  auditValues(map[string]models.LeaveStatus{"status": models.LeaveStatusApproved}),
		NewValues:  auditValues(map[string]string{"status": string(models.LeaveStatusIssued), "decision_path": relPath}),
	})

	if s.deps.Events != nil {
		issuedBy := ""
		if actor != nil {
			issuedBy = actor.UserID
		}
		event := events.DecisionIssued{
			LeaveRequestID: request.ID,
			EmployeeID:     employee.ID,
			EmployeeName:   employee.FullName(),
			Recipients:     employee.Recipients(),
			DecisionPath:   relPath,
			IssuedBy:       issuedBy,
			IssuedAt:       issuedAt,
		}
		if employee.WorkEmail != nil {
			event.WorkEmail = *employee.WorkEmail
		}
		s.deps.Events.Emit(events.TypeDecisionIssued, request.ID, event)
	}

	return result, nil
}

// ApproveAndIssue approves a PENDING request and immediately issues its
// decision. A failed generation leaves the request APPROVED.
func (s *DecisionService) ApproveAndIssue(ctx context.Context, requestID string, req dto.ApproveLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.DecisionResult, error) {
	if _, err := s.deps.Approver.Approve(ctx, requestID, req, actor, meta); err != nil {
		return nil, err
	}
	return s.Generate(ctx, requestID, actor)
}

// DownloadLink returns a fresh signed link for an issued request.
func (s *DecisionService) DownloadLink(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.DecisionResult, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Approver.Authorize(ctx, request, actor); err != nil {
		return nil, err
	}
	if request.Status != models.LeaveStatusIssued || request.DecisionPath == nil || *request.DecisionPath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "decision has not been issued")
	}
	return s.link(request.ID, *request.DecisionPath)
}

// Download resolves a signed token to the stored file.
func (s *DecisionService) Download(ctx context.Context, token string) (*DecisionFile, error) {
	signed, err := s.deps.Signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	if !s.deps.Storage.Exists(signed.Path) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "decision file not found")
	}
	return &DecisionFile{AbsolutePath: s.deps.Storage.Path(signed.Path), FileName: path.Base(signed.Path)}, nil
}

// DecisionFileName builds the storage path of a decision. The request id
// prefix keeps same-day decisions of one employee apart.
func DecisionFileName(workEmail *string, createdAt time.Time, requestID string) string {
	email := "no_email"
	if workEmail != nil && strings.TrimSpace(*workEmail) != "" {
		email = strings.ToLower(strings.TrimSpace(*workEmail))
		email = strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(email)
	}
	prefix := strings.ReplaceAll(requestID, "-", "")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s/decision_%s_%s_%s.pdf", decisionDir, email, createdAt.UTC().Format("20060102"), prefix)
}

func checkDecisionPreconditions(request *models.LeaveRequest) error {
	switch request.Status {
	case models.LeaveStatusApproved:
	case models.LeaveStatusIssued:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "decision already issued")
	default:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only approved requests can be issued")
	}
	if request.ProcessedBy == nil || *request.ProcessedBy == "" {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "processing officer is not set")
	}
	if request.ProtocolNumber == nil || strings.TrimSpace(*request.ProtocolNumber) == "" {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "protocol number is missing")
	}
	if request.FinalSignatory == nil || strings.TrimSpace(*request.FinalSignatory) == "" {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "final signatory is missing")
	}
	return nil
}

func (s *DecisionService) buildDocument(ctx context.Context, request *models.LeaveRequest) (*export.DecisionDocument, *models.EmployeeProfile, *models.EmployeeProfile, error) {
	officer, err := s.deps.Employees.FindByUserID(ctx, *request.ProcessedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "processing officer has no employee record")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load processing officer")
	}
	employee, err := s.deps.Employees.FindByID(ctx, request.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "employee record is missing")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	leaveType, err := s.deps.LeaveTypes.FindByID(ctx, request.LeaveTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "leave type is missing")
		}
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}
	calendar, err := s.deps.Calendar.Calendar(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	doc := &export.DecisionDocument{
		Header:          request.HeaderText,
		IssuedAt:        s.now(),
		ProtocolNumber:  *request.ProtocolNumber,
		Subject:         leaveType.SubjectText,
		EmployeeName:    employee.FullName(),
		FatherName:      employee.FatherName,
		DecisionText:    leaveType.DecisionText,
		FinalSignatory:  *request.FinalSignatory,
		ProcessedByName: officer.FullName(),
		Recipients:      employee.Recipients(),
	}
	if request.DirectorateProtocolNum != nil {
		doc.DirectorateProtocolNumber = *request.DirectorateProtocolNum
	}
	if request.CustomDecisionText != nil {
		doc.CustomText = *request.CustomDecisionText
	}
	if employee.SpecialtyName != nil {
		doc.Specialty = *employee.SpecialtyName
	}
	if employee.ServiceName != nil {
		doc.Service = *employee.ServiceName
	}
	if officer.Phone != nil {
		doc.ProcessedByPhone = *officer.Phone
	}
	for _, interval := range request.Intervals {
		days := interval.WorkingDays(calendar)
		doc.Intervals = append(doc.Intervals, export.DecisionInterval{Start: interval.StartDate, End: interval.EndDate, WorkingDays: days})
		doc.TotalWorkingDays += days
	}
	return doc, officer, employee, nil
}

func (s *DecisionService) loadRequest(ctx context.Context, id string) (*models.LeaveRequest, error) {
	request, err := s.deps.Requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave request")
	}
	return request, nil
}

func (s *DecisionService) link(requestID, relPath string) (*dto.DecisionResult, error) {
	token, expiresAt, err := s.deps.Signer.Generate(requestID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &dto.DecisionResult{
		LeaveRequestID: requestID,
		Status:         string(models.LeaveStatusIssued),
		DecisionPath:   relPath,
		DownloadURL:    s.cfg.DownloadPath + "/" + token,
		ExpiresAt:      expiresAt,
	}, nil
}
