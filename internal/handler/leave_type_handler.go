package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/pkg/response"
)

type leaveTypeService interface {
	List(ctx context.Context) ([]models.LeaveType, error)
	Create(ctx context.Context, req dto.LeaveTypeRequest, actor *models.JWTClaims) (*models.LeaveType, error)
	Update(ctx context.Context, id string, req dto.LeaveTypeRequest, actor *models.JWTClaims) (*models.LeaveType, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// LeaveTypeHandler exposes the leave type catalog.
type LeaveTypeHandler struct {
	service leaveTypeService
}

// NewLeaveTypeHandler builds a new handler.
func NewLeaveTypeHandler(service leaveTypeService) *LeaveTypeHandler {
	return &LeaveTypeHandler{service: service}
}

// List godoc
// @Summary List leave types
// @Tags LeaveTypes
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-types [get]
func (h *LeaveTypeHandler) List(c *gin.Context) {
	types, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, types)
}

// Create godoc
// @Summary Create leave type
// @Tags LeaveTypes
// @Accept json
// @Produce json
// @Param payload body dto.LeaveTypeRequest true "Leave type"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-types [post]
func (h *LeaveTypeHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.LeaveTypeRequest
	if !bindJSON(c, &req, "invalid leave type payload") {
		return
	}
	lt, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lt)
}

// Update godoc
// @Summary Update leave type
// @Tags LeaveTypes
// @Accept json
// @Produce json
// @Param id path string true "Leave type ID"
// @Param payload body dto.LeaveTypeRequest true "Leave type"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-types/{id} [put]
func (h *LeaveTypeHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.LeaveTypeRequest
	if !bindJSON(c, &req, "invalid leave type payload") {
		return
	}
	lt, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lt)
}

// Delete godoc
// @Summary Delete leave type
// @Description Fails with 409 while requests still reference the type
// @Tags LeaveTypes
// @Param id path string true "Leave type ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-types/{id} [delete]
func (h *LeaveTypeHandler) Delete(c *gin.Context) {
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
