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

type headerRepository interface {
	Create(ctx context.Context, header *models.HeaderText) error
	Latest(ctx context.Context) (*models.HeaderText, error)
	List(ctx context.Context, limit int) ([]models.HeaderText, error)
}

// HeaderService keeps the append-only letterhead history.
type HeaderService struct {
	repo            headerRepository
	audit           auditLogger
	validator       *validator.Validate
	logger          *zap.Logger
	fallbackHeading string
}

// NewHeaderService constructs the service. fallback is used until a header
// has been published.
func NewHeaderService(repo headerRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger, fallback string) *HeaderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &HeaderService{repo: repo, audit: audit, validator: validate, logger: logger, fallbackHeading: fallback}
}

// Publish appends a header; it becomes active immediately.
func (s *HeaderService) Publish(ctx context.Context, req dto.PublishHeaderRequest, actor *models.JWTClaims) (*models.HeaderText, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid header payload")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "header text is required")
	}

	header := &models.HeaderText{Text: text, CreatedBy: userIDPtr(actor)}
	if err := s.repo.Create(ctx, header); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish header")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionHeaderPublish,
		Resource:   "headers",
		ResourceID: &header.ID,
		NewValues:  auditValues(map[string]string{"text": header.Text}),
	})
	return header, nil
}

// Active returns the latest header, or the configured fallback.
func (s *HeaderService) Active(ctx context.Context) (*dto.ActiveHeader, error) {
	header, err := s.repo.Latest(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.ActiveHeader{Text: s.fallbackHeading, Fallback: true}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load header")
	}
	return &dto.ActiveHeader{ID: header.ID, Text: header.Text}, nil
}

// History lists published headers, newest first.
func (s *HeaderService) History(ctx context.Context, limit int) ([]models.HeaderText, error) {
	headers, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list headers")
	}
	return headers, nil
}
