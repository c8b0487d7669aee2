package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
)

type leaveTypeRepository interface {
	List(ctx context.Context) ([]models.LeaveType, error)
	FindByID(ctx context.Context, id string) (*models.LeaveType, error)
	FindByName(ctx context.Context, name string) (*models.LeaveType, error)
	Create(ctx context.Context, lt *models.LeaveType) error
	Update(ctx context.Context, lt *models.LeaveType) error
	Delete(ctx context.Context, id string) error
	InUse(ctx context.Context, id string) (bool, error)
}

// LeaveTypeService manages leave categories and their decision wording.
type LeaveTypeService struct {
	repo      leaveTypeRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLeaveTypeService constructs the service.
func NewLeaveTypeService(repo leaveTypeRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *LeaveTypeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LeaveTypeService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns every leave type.
func (s *LeaveTypeService) List(ctx context.Context) ([]models.LeaveType, error) {
	types, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave types")
	}
	return types, nil
}

// Get returns a leave type by ID.
func (s *LeaveTypeService) Get(ctx context.Context, id string) (*models.LeaveType, error) {
	lt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}
	return lt, nil
}

// Create adds a leave type with a unique name.
func (s *LeaveTypeService) Create(ctx context.Context, req dto.LeaveTypeRequest, actor *models.JWTClaims) (*models.LeaveType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave type payload")
	}
	if err := s.ensureUniqueName(ctx, req.Name, ""); err != nil {
		return nil, err
	}

	lt := leaveTypeFromRequest(req)
	if err := s.repo.Create(ctx, lt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave type")
	}
	s.emitAudit(ctx, actor, lt.ID, nil, lt)
	return lt, nil
}

// Update replaces a leave type's fields.
func (s *LeaveTypeService) Update(ctx context.Context, id string, req dto.LeaveTypeRequest, actor *models.JWTClaims) (*models.LeaveType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave type payload")
	}
	previous, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, req.Name, id); err != nil {
		return nil, err
	}

	lt := leaveTypeFromRequest(req)
	lt.ID = id
	if err := s.repo.Update(ctx, lt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave type")
	}
	s.emitAudit(ctx, actor, id, previous, lt)
	return lt, nil
}

// Delete removes a leave type no request refers to.
func (s *LeaveTypeService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	previous, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	inUse, err := s.repo.InUse(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check leave type usage")
	}
	if inUse {
		return appErrors.Clone(appErrors.ErrConflict, "leave type is used by existing requests")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "leave type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete leave type")
	}
	s.emitAudit(ctx, actor, id, previous, nil)
	return nil
}

func (s *LeaveTypeService) ensureUniqueName(ctx context.Context, name, selfID string) error {
	existing, err := s.repo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check leave type name")
	}
	if existing.ID != selfID {
		return appErrors.Clone(appErrors.ErrConflict, "leave type name already exists")
	}
	return nil
}

func (s *LeaveTypeService) emitAudit(ctx context.Context, actor *models.JWTClaims, id string, previous, current *models.LeaveType) {
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionLeaveTypeChange,
		Resource:   "leave_types",
		ResourceID: &id,
		OldValues:  auditValues(previous),
		NewValues:  auditValues(current),
	})
}

func leaveTypeFromRequest(req dto.LeaveTypeRequest) *models.LeaveType {
	return &models.LeaveType{
		Name:         strings.TrimSpace(req.Name),
		ShortName:    strings.TrimSpace(req.ShortName),
		SubjectText:  req.SubjectText,
		DecisionText: req.DecisionText,
	}
}
