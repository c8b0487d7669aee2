package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/middleware"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/internal/service"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
)

type leaveRequestServiceMock struct {
	createReq  dto.CreateLeaveRequest
	lastQuery  dto.LeaveRequestQuery
	approveErr error
	exportData []byte
}

func (m *leaveRequestServiceMock) Create(ctx context.Context, req dto.CreateLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error) {
	m.createReq = req
	return &dto.LeaveRequestDetail{ID: "r1", EmployeeID: actor.EmployeeID, Status: models.LeaveStatusPending, TotalWorkingDays: 4}, nil
}

func (m *leaveRequestServiceMock) ListMine(ctx context.Context, query dto.LeaveRequestQuery, actor *models.JWTClaims) ([]dto.LeaveRequestDetail, *models.Pagination, error) {
	m.lastQuery = query
	return []dto.LeaveRequestDetail{{ID: "r1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *leaveRequestServiceMock) ListSubordinates(ctx context.Context, query dto.LeaveRequestQuery, actor *models.JWTClaims) ([]dto.LeaveRequestDetail, *models.Pagination, error) {
	m.lastQuery = query
	return []dto.LeaveRequestDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *leaveRequestServiceMock) ListAll(ctx context.Context, query dto.LeaveRequestQuery) ([]dto.LeaveRequestDetail, *models.Pagination, error) {
	m.lastQuery = query
	return []dto.LeaveRequestDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *leaveRequestServiceMock) Export(ctx context.Context, query dto.LeaveRequestQuery) ([]byte, error) {
	return m.exportData, nil
}

func (m *leaveRequestServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.LeaveRequestDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrForbidden, "leave request is outside your scope")
}

func (m *leaveRequestServiceMock) Approve(ctx context.Context, id string, req dto.ApproveLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error) {
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	return &dto.LeaveRequestDetail{ID: id, Status: models.LeaveStatusApproved}, nil
}

func (m *leaveRequestServiceMock) Reject(ctx context.Context, id string, req dto.RejectLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.LeaveRequestDetail, error) {
	return &dto.LeaveRequestDetail{ID: id, Status: models.LeaveStatusRejected}, nil
}

func (m *leaveRequestServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims, meta models.LoginRequest) error {
	return nil
}

type decisionServiceMock struct {
	generateErr error
	file        *service.DecisionFile
}

func (m *decisionServiceMock) Generate(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.DecisionResult, error) {
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return &dto.DecisionResult{LeaveRequestID: requestID, Status: "ISSUED", DownloadURL: "/api/v1/decisions/download/tok"}, nil
}

func (m *decisionServiceMock) ApproveAndIssue(ctx context.Context, requestID string, req dto.ApproveLeaveRequest, actor *models.JWTClaims, meta models.LoginRequest) (*dto.DecisionResult, error) {
	return m.Generate(ctx, requestID, actor)
}

func (m *decisionServiceMock) DownloadLink(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.DecisionResult, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "decision has not been issued")
}

func (m *decisionServiceMock) Download(ctx context.Context, token string) (*service.DecisionFile, error) {
	if m.file == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	return m.file, nil
}

func newLeaveContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", EmployeeID: "emp-1", Roles: []models.UserRole{models.RoleLeaveOfficer}})
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestLeaveRequestHandlerCreate(t *testing.T) {
	svc := &leaveRequestServiceMock{}
	handler := NewLeaveRequestHandler(svc, &decisionServiceMock{})
	c, w := newLeaveContext(http.MethodPost, "/leave-requests", dto.CreateLeaveRequest{
		LeaveTypeID: "lt1",
		Intervals:   []dto.LeaveIntervalInput{{StartDate: "2025-03-03", EndDate: "2025-03-07"}},
	})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "lt1", svc.createReq.LeaveTypeID)
	assert.Contains(t, w.Body.String(), `"totalWorkingDays":4`)
}

func TestLeaveRequestHandlerCreateInvalidBody(t *testing.T) {
	handler := NewLeaveRequestHandler(&leaveRequestServiceMock{}, &decisionServiceMock{})
	c, w := newLeaveContext(http.MethodPost, "/leave-requests", "invalid")

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaveRequestHandlerRequiresClaims(t *testing.T) {
	handler := NewLeaveRequestHandler(&leaveRequestServiceMock{}, &decisionServiceMock{})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/leave-requests/mine", nil)

	handler.ListMine(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLeaveRequestHandlerListBindsStatuses(t *testing.T) {
	svc := &leaveRequestServiceMock{}
	handler := NewLeaveRequestHandler(svc, &decisionServiceMock{})
	c, w := newLeaveContext(http.MethodGet, "/leave-requests/mine?status=PENDING&status=APPROVED&page=2&pageSize=5", nil)

	handler.ListMine(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.LeaveStatus{models.LeaveStatusPending, models.LeaveStatusApproved}, svc.lastQuery.Status)
	assert.Equal(t, 2, svc.lastQuery.Page)
	assert.Equal(t, 5, svc.lastQuery.PageSize)
	assert.Contains(t, decodeEnvelope(t, w), "pagination")
}

func TestLeaveRequestHandlerApproveConflict(t *testing.T) {
	svc := &leaveRequestServiceMock{approveErr: appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move a REJECTED request to APPROVED")}
	handler := NewLeaveRequestHandler(svc, &decisionServiceMock{})
	c, w := newLeaveContext(http.MethodPost, "/leave-requests/r1/approve", dto.ApproveLeaveRequest{ProtocolNumber: "1", FinalSignatory: "Director"})
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.Approve(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrInvalidTransition.Code)
}

func TestLeaveRequestHandlerGetForbidden(t *testing.T) {
	handler := NewLeaveRequestHandler(&leaveRequestServiceMock{}, &decisionServiceMock{})
	c, w := newLeaveContext(http.MethodGet, "/leave-requests/r1", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.Get(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLeaveRequestHandlerExport(t *testing.T) {
	svc := &leaveRequestServiceMock{exportData: []byte("id,status\nr1,PENDING\n")}
	handler := NewLeaveRequestHandler(svc, &decisionServiceMock{})
	c, w := newLeaveContext(http.MethodGet, "/leave-requests/export", nil)

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "leave_requests_")
	assert.Equal(t, "id,status\nr1,PENDING\n", w.Body.String())
}

func TestLeaveRequestHandlerIssueDecision(t *testing.T) {
	handler := NewLeaveRequestHandler(&leaveRequestServiceMock{}, &decisionServiceMock{})
	c, w := newLeaveContext(http.MethodPost, "/leave-requests/r1/decision", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.IssueDecision(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/decisions/download/tok")
}

func TestLeaveRequestHandlerIssueDecisionRenderFailure(t *testing.T) {
	decisions := &decisionServiceMock{generateErr: appErrors.ErrDecisionRender}
	handler := NewLeaveRequestHandler(&leaveRequestServiceMock{}, decisions)
	c, w := newLeaveContext(http.MethodPost, "/leave-requests/r1/decision", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.IssueDecision(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "DECISION_RENDER_FAILED")
}

func TestLeaveRequestHandlerDecisionLinkNotIssued(t *testing.T) {
	handler := NewLeaveRequestHandler(&leaveRequestServiceMock{}, &decisionServiceMock{})
	c, w := newLeaveContext(http.MethodGet, "/leave-requests/r1/decision", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.DecisionLink(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaveRequestHandlerDownload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "decision.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3"), 0o600))

	handler := NewLeaveRequestHandler(&leaveRequestServiceMock{}, &decisionServiceMock{file: &service.DecisionFile{AbsolutePath: path, FileName: "decision.pdf"}})
	c, w := newLeaveContext(http.MethodGet, "/decisions/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "decision.pdf")
	assert.Equal(t, "%PDF-1.3", w.Body.String())
}

func TestLeaveRequestHandlerDownloadInvalidToken(t *testing.T) {
	handler := NewLeaveRequestHandler(&leaveRequestServiceMock{}, &decisionServiceMock{})
	c, w := newLeaveContext(http.MethodGet, "/decisions/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
