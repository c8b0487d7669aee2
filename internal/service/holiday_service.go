package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
	"github.com/noah-isme/leave-decision-api/pkg/workday"
)

// HolidayRegistryCacheKey stores the validated holiday registry.
const HolidayRegistryCacheKey = "holidays:registry"

type holidayRepository interface {
	List(ctx context.Context, filter models.HolidayFilter) ([]models.PublicHoliday, error)
	FindByID(ctx context.Context, id string) (*models.PublicHoliday, error)
	Exists(ctx context.Context, h models.PublicHoliday) (bool, error)
	Create(ctx context.Context, h *models.PublicHoliday) error
	Update(ctx context.Context, h *models.PublicHoliday) error
	Delete(ctx context.Context, id string) error
}

// HolidayService manages the public holiday registry and turns it into a
// working-day calendar.
type HolidayService struct {
	repo      holidayRepository
	cache     *CacheService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewHolidayService constructs the service. cache may be nil.
func NewHolidayService(repo holidayRepository, cache *CacheService, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *HolidayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &HolidayService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// List returns holidays matching filter.
func (s *HolidayService) List(ctx context.Context, filter models.HolidayFilter) ([]models.PublicHoliday, error) {
	holidays, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	return holidays, nil
}

// Get returns one holiday.
func (s *HolidayService) Get(ctx context.Context, id string) (*models.PublicHoliday, error) {
	holiday, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday")
	}
	return holiday, nil
}

// Create registers a new holiday.
func (s *HolidayService) Create(ctx context.Context, req dto.HolidayRequest, actor *models.JWTClaims) (*models.PublicHoliday, error) {
	holiday, err := s.buildHoliday(req)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, *holiday)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check holiday")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "holiday already registered")
	}

	if err := s.repo.Create(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	s.afterWrite(ctx, actor, holiday.ID, nil, holiday)
	return holiday, nil
}

// Update replaces an existing holiday.
func (s *HolidayService) Update(ctx context.Context, id string, req dto.HolidayRequest, actor *models.JWTClaims) (*models.PublicHoliday, error) {
	previous, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	holiday, err := s.buildHoliday(req)
	if err != nil {
		return nil, err
	}
	holiday.ID = id
	holiday.CreatedAt = previous.CreatedAt

	if err := s.repo.Update(ctx, holiday); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update holiday")
	}
	s.afterWrite(ctx, actor, id, previous, holiday)
	return holiday, nil
}

// Delete removes a holiday.
func (s *HolidayService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	previous, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete holiday")
	}
	s.afterWrite(ctx, actor, id, previous, nil)
	return nil
}

// Calendar returns a working-day calendar built from the current registry.
// Holidays failing validation are logged and left out.
func (s *HolidayService) Calendar(ctx context.Context) (*workday.Calendar, error) {
	holidays, err := remember(ctx, s.cache, HolidayRegistryCacheKey, s.cacheTTL, s.loadRegistry)
	if err != nil {
		return nil, err
	}

	resolvers := make([]workday.Resolver, 0, len(holidays))
	for _, h := range holidays {
		resolvers = append(resolvers, h)
	}
	return workday.New(resolvers...), nil
}

// WorkingDays counts the working days of an inclusive date range.
func (s *HolidayService) WorkingDays(ctx context.Context, query dto.WorkingDaysQuery) (*dto.WorkingDaysResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date range")
	}
	start, _ := time.Parse(dto.DateLayout, query.Start)
	end, _ := time.Parse(dto.DateLayout, query.End)
	if _, err := models.NewLeaveInterval(start, end); err != nil {
		return nil, intervalError(err, query.Start, query.End)
	}

	calendar, err := s.Calendar(ctx)
	if err != nil {
		return nil, err
	}

	result := &dto.WorkingDaysResult{
		Start:       query.Start,
		End:         query.End,
		WorkingDays: calendar.Count(start, end),
		Holidays:    []string{},
	}
	for _, day := range calendar.Holidays(start, end) {
		result.Holidays = append(result.Holidays, day.Format(dto.DateLayout))
	}
	return result, nil
}

func (s *HolidayService) loadRegistry(ctx context.Context) ([]models.PublicHoliday, error) {
	all, err := s.repo.List(ctx, models.HolidayFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
	}
	valid := make([]models.PublicHoliday, 0, len(all))
	for _, h := range all {
		if err := h.Validate(); err != nil {
			s.logger.Warn("skipping invalid public holiday", zap.String("holiday_id", h.ID), zap.String("holiday", h.String()), zap.Error(err))
			continue
		}
		valid = append(valid, h)
	}
	return valid, nil
}

func (s *HolidayService) buildHoliday(req dto.HolidayRequest) (*models.PublicHoliday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	holiday := &models.PublicHoliday{
		Name:    req.Name,
		Day:     req.Day,
		Month:   req.Month,
		IsFixed: req.IsFixed,
	}
	if !req.IsFixed {
		holiday.Year = req.Year
	}
	if err := holiday.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return holiday, nil
}

func (s *HolidayService) afterWrite(ctx context.Context, actor *models.JWTClaims, id string, previous, current *models.PublicHoliday) {
	_ = s.cache.Invalidate(ctx, HolidayRegistryCacheKey)
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionHolidayChange,
		Resource:   "holidays",
		ResourceID: &id,
		OldValues:  auditValues(previous),
		NewValues:  auditValues(current),
	})
}
