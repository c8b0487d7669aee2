package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
	"github.com/noah-isme/leave-decision-api/pkg/response"
)

type holidayService interface {
	List(ctx context.Context, filter models.HolidayFilter) ([]models.PublicHoliday, error)
	Create(ctx context.Context, req dto.HolidayRequest, actor *models.JWTClaims) (*models.PublicHoliday, error)
	Update(ctx context.Context, id string, req dto.HolidayRequest, actor *models.JWTClaims) (*models.PublicHoliday, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	WorkingDays(ctx context.Context, query dto.WorkingDaysQuery) (*dto.WorkingDaysResult, error)
}

// HolidayHandler exposes the public holiday registry and the working day
// calculator.
type HolidayHandler struct {
	service holidayService
}

// NewHolidayHandler builds a new handler.
func NewHolidayHandler(service holidayService) *HolidayHandler {
	return &HolidayHandler{service: service}
}

// List godoc
// @Summary List public holidays
// @Tags Holidays
// @Produce json
// @Param year query int false "Year-specific holidays of this year"
// @Param fixed query bool false "Only fixed or only year-specific holidays"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /holidays [get]
func (h *HolidayHandler) List(c *gin.Context) {
	var query dto.HolidayQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	holidays, err := h.service.List(c.Request.Context(), models.HolidayFilter{Year: query.Year, Fixed: query.Fixed})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, holidays)
}

// Create godoc
// @Summary Create public holiday
// @Tags Holidays
// @Accept json
// @Produce json
// @Param payload body dto.HolidayRequest true "Holiday"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /holidays [post]
func (h *HolidayHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.HolidayRequest
	if !bindJSON(c, &req, "invalid holiday payload") {
		return
	}
	holiday, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, holiday)
}

// Update godoc
// @Summary Update public holiday
// @Tags Holidays
// @Accept json
// @Produce json
// @Param id path string true "Holiday ID"
// @Param payload body dto.HolidayRequest true "Holiday"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /holidays/{id} [put]
func (h *HolidayHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.HolidayRequest
	if !bindJSON(c, &req, "invalid holiday payload") {
		return
	}
	holiday, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, holiday)
}

// Delete godoc
// @Summary Delete public holiday
// @Tags Holidays
// @Param id path string true "Holiday ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /holidays/{id} [delete]
func (h *HolidayHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// WorkingDays godoc
// @Summary Count working days
// @Description Weekdays in the inclusive range minus public holidays
// @Tags Holidays
// @Produce json
// @Param start query string true "Start date (YYYY-MM-DD)"
// @Param end query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /holidays/working-days [get]
func (h *HolidayHandler) WorkingDays(c *gin.Context) {
	var query dto.WorkingDaysQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.service.WorkingDays(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
