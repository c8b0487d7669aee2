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

type directoryService interface {
	ListEmployees(ctx context.Context, query dto.EmployeeQuery, actor *models.JWTClaims) ([]models.EmployeeProfile, *models.Pagination, error)
	GetEmployee(ctx context.Context, id string, actor *models.JWTClaims) (*models.EmployeeProfile, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	AppointHead(ctx context.Context, departmentID string, req dto.AppointHeadRequest, actor *models.JWTClaims) (*dto.DepartmentHeadChange, error)
}

// DirectoryHandler exposes employees and departments.
type DirectoryHandler struct {
	service directoryService
}

// NewDirectoryHandler builds a new handler.
func NewDirectoryHandler(service directoryService) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

// ListEmployees godoc
// @Summary List employees
// @Description Officers see everyone, department heads their own departments
// @Tags Directory
// @Produce json
// @Param departmentId query string false "Department filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Name or email search"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /employees [get]
func (h *DirectoryHandler) ListEmployees(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.EmployeeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	employees, pagination, err := h.service.ListEmployees(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employees, pagination)
}

// GetEmployee godoc
// @Summary Get employee
// @Tags Directory
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/{id} [get]
func (h *DirectoryHandler) GetEmployee(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	employee, err := h.service.GetEmployee(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, employee)
}

// ListDepartments godoc
// @Summary List departments
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /departments [get]
func (h *DirectoryHandler) ListDepartments(c *gin.Context) {
	departments, err := h.service.ListDepartments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, departments)
}

// AppointHead godoc
// @Summary Appoint department head
// @Description Sets or clears the head of a department, moving the DEPARTMENT_HEAD role accordingly
// @Tags Directory
// @Accept json
// @Produce json
// @Param id path string true "Department ID"
// @Param payload body dto.AppointHeadRequest true "Head payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /departments/{id}/head [put]
func (h *DirectoryHandler) AppointHead(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.AppointHeadRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	change, err := h.service.AppointHead(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, change)
}
