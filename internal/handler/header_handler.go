package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/pkg/response"
)

type headerService interface {
	Publish(ctx context.Context, req dto.PublishHeaderRequest, actor *models.JWTClaims) (*models.HeaderText, error)
	Active(ctx context.Context) (*dto.ActiveHeader, error)
	History(ctx context.Context, limit int) ([]models.HeaderText, error)
}

// HeaderHandler exposes decision header texts.
type HeaderHandler struct {
	service headerService
}

// NewHeaderHandler builds a new handler.
func NewHeaderHandler(service headerService) *HeaderHandler {
	return &HeaderHandler{service: service}
}

// History godoc
// @Summary Header history
// @Description Published header texts, newest first
// @Tags Headers
// @Produce json
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /headers [get]
func (h *HeaderHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	headers, err := h.service.History(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, headers)
}

// Active godoc
// @Summary Active header
// @Tags Headers
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /headers/active [get]
func (h *HeaderHandler) Active(c *gin.Context) {
	header, err := h.service.Active(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, header)
}

// Publish godoc
// @Summary Publish header
// @Description The new text becomes active for requests created afterwards
// @Tags Headers
// @Accept json
// @Produce json
// @Param payload body dto.PublishHeaderRequest true "Header"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /headers [post]
func (h *HeaderHandler) Publish(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.PublishHeaderRequest
	if !bindJSON(c, &req, "invalid header payload") {
		return
	}
	header, err := h.service.Publish(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, header)
}
