package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/internal/service"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
	"github.com/noah-isme/leave-decision-api/pkg/response"
)

type leaveRequestService interface {
	Create(ctx context.Context, req dto.CreateLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error)
	ListMine(ctx context.Context, query dto.LeaveRequestQuery, actor *models.JWTClaims) ([]dto.LeaveRequestDetail, *models.Pagination, error)
	ListSubordinates(ctx context.Context, query dto.LeaveRequestQuery, actor *models.JWTClaims) ([]dto.LeaveRequestDetail, *models.Pagination, error)
	ListAll(ctx context.Context, query dto.LeaveRequestQuery) ([]dto.LeaveRequestDetail, *models.Pagination, error)
	Export(ctx context.Context, query dto.LeaveRequestQuery) ([]byte, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.LeaveRequestDetail, error)
	Approve(ctx context.Context, id string, req dto.ApproveLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error)
	Reject(ctx context.Context, id string, req dto.RejectLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims, meta models.LoginRequest) error
}

type decisionService interface {
	Generate(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.DecisionResult, error)
	ApproveAndIssue(ctx context.Context, requestID string, req dto.ApproveLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.DecisionResult, error)
	DownloadLink(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.DecisionResult, error)
	Download(ctx context.Context, token string) (*service.DecisionFile, error)
}

// LeaveRequestHandler exposes the leave request lifecycle and decision
// documents.
type LeaveRequestHandler struct {
	requests  leaveRequestService
	decisions decisionService
}

// NewLeaveRequestHandler builds a new handler.
func NewLeaveRequestHandler(requests leaveRequestService, decisions decisionService) *LeaveRequestHandler {
	return &LeaveRequestHandler{requests: requests, decisions: decisions}
}

// Create godoc
// @Summary Submit leave request
// @Description Creates a PENDING request for the caller's employee record
// @Tags LeaveRequests
// @Accept json
// @Produce json
// @Param payload body dto.CreateLeaveRequest true "Leave request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests [post]
func (h *LeaveRequestHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateLeaveRequest
	if !bindJSON(c, &req, "invalid leave request payload") {
		return
	}
	detail, err := h.requests.Create(c.Request.Context(), req, claims, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// ListMine godoc
// @Summary My leave requests
// @Tags LeaveRequests
// @Produce json
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/mine [get]
func (h *LeaveRequestHandler) ListMine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	query, ok := bindLeaveQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.requests.ListMine(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListSubordinates godoc
// @Summary Subordinate leave requests
// @Description Requests of employees in departments headed by the caller
// @Tags LeaveRequests
// @Produce json
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/subordinates [get]
func (h *LeaveRequestHandler) ListSubordinates(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	query, ok := bindLeaveQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.requests.ListSubordinates(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListAll godoc
// @Summary All leave requests
// @Tags LeaveRequests
// @Produce json
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests [get]
func (h *LeaveRequestHandler) ListAll(c *gin.Context) {
	query, ok := bindLeaveQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.requests.ListAll(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Export leave requests
// @Tags LeaveRequests
// @Produce text/csv
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Success 200 {string} string "CSV document"
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/export [get]
func (h *LeaveRequestHandler) Export(c *gin.Context) {
	query, ok := bindLeaveQuery(c)
	if !ok {
		return
	}
	data, err := h.requests.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("leave_requests_%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// Get godoc
// @Summary Get leave request
// @Tags LeaveRequests
// @Produce json
// @Param id path string true "Leave request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/{id} [get]
func (h *LeaveRequestHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	detail, err := h.requests.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Approve godoc
// @Summary Approve leave request
// @Tags LeaveRequests
// @Accept json
// @Produce json
// @Param id path string true "Leave request ID"
// @Param payload body dto.ApproveLeaveRequest true "Decision metadata"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/{id}/approve [post]
func (h *LeaveRequestHandler) Approve(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ApproveLeaveRequest
	if !bindJSON(c, &req, "invalid approval payload") {
		return
	}
	detail, err := h.requests.Approve(c.Request.Context(), c.Param("id"), req, claims, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Reject godoc
// @Summary Reject leave request
// @Tags LeaveRequests
// @Accept json
// @Produce json
// @Param id path string true "Leave request ID"
// @Param payload body dto.RejectLeaveRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/{id}/reject [post]
func (h *LeaveRequestHandler) Reject(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.RejectLeaveRequest
	if !bindJSON(c, &req, "invalid rejection payload") {
		return
	}
	detail, err := h.requests.Reject(c.Request.Context(), c.Param("id"), req, claims, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Delete godoc
// @Summary Delete leave request
// @Description Issued requests cannot be deleted
// @Tags LeaveRequests
// @Param id path string true "Leave request ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/{id} [delete]
func (h *LeaveRequestHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.requests.Delete(c.Request.Context(), c.Param("id"), claims, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// IssueDecision godoc
// @Summary Issue decision document
// @Description Renders the decision of an APPROVED request and moves it to ISSUED
// @Tags Decisions
// @Produce json
// @Param id path string true "Leave request ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/{id}/decision [post]
func (h *LeaveRequestHandler) IssueDecision(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	result, err := h.decisions.Generate(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ApproveAndIssue godoc
// @Summary Approve and issue
// @Description Approves a PENDING request and issues its decision in one call
// @Tags Decisions
// @Accept json
// @Produce json
// @Param id path string true "Leave request ID"
// @Param payload body dto.ApproveLeaveRequest true "Decision metadata"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/{id}/approve-and-issue [post]
func (h *LeaveRequestHandler) ApproveAndIssue(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ApproveLeaveRequest
	if !bindJSON(c, &req, "invalid approval payload") {
		return
	}
	result, err := h.decisions.ApproveAndIssue(c.Request.Context(), c.Param("id"), req, claims, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// DecisionLink godoc
// @Summary Decision download link
// @Description Returns a fresh signed link for an issued decision
// @Tags Decisions
// @Produce json
// @Param id path string true "Leave request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /leave-requests/{id}/decision [get]
func (h *LeaveRequestHandler) DecisionLink(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	result, err := h.decisions.DownloadLink(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Download godoc
// @Summary Download decision
// @Description Streams the PDF behind a signed token
// @Tags Decisions
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /decisions/download/{token} [get]
func (h *LeaveRequestHandler) Download(c *gin.Context) {
	file, err := h.decisions.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.AbsolutePath, file.FileName)
}

func bindLeaveQuery(c *gin.Context) (dto.LeaveRequestQuery, bool) {
	var query dto.LeaveRequestQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return query, false
	}
	return query, true
}
