package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/internal/repository"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
	"github.com/noah-isme/leave-decision-api/pkg/events"
	"github.com/noah-isme/leave-decision-api/pkg/workday"
)

type mockLeaveRequestStore struct {
	mu         sync.Mutex
	requests   map[string]*models.LeaveRequest
	lastFilter models.LeaveRequestFilter
	issueErr   error
	seq        int
}

func newMockLeaveRequestStore(requests ...*models.LeaveRequest) *mockLeaveRequestStore {
	store := &mockLeaveRequestStore{requests: map[string]*models.LeaveRequest{}}
	for _, r := range requests {
		store.requests[r.ID] = r
	}
	return store
}

func (m *mockLeaveRequestStore) Create(ctx context.Context, req *models.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	req.ID = "req-" + string(rune('0'+m.seq))
	req.CreatedAt = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	req.UpdatedAt = req.CreatedAt
	stored := *req
	m.requests[req.ID] = &stored
	return nil
}

func (m *mockLeaveRequestStore) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	found := *r
	return &found, nil
}

func (m *mockLeaveRequestStore) List(ctx context.Context, filter models.LeaveRequestFilter) ([]models.LeaveRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	if filter.EmployeeIDs != nil && len(filter.EmployeeIDs) == 0 {
		return nil, 0, nil
	}
	var out []models.LeaveRequest
	for _, r := range m.requests {
		if filter.EmployeeID != "" && r.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.EmployeeIDs != nil && !containsString(filter.EmployeeIDs, r.EmployeeID) {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, s := range filter.Status {
				match = match || s == r.Status
			}
			if !match {
				continue
			}
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockLeaveRequestStore) Review(ctx context.Context, params repository.ReviewParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[params.ID]
	if !ok || r.Status != models.LeaveStatusPending {
		return repository.ErrStatusChanged
	}
	r.Status = params.Status
	r.RejectionReason = params.RejectionReason
	r.ProcessedBy = &params.ProcessedBy
	r.ProtocolNumber = params.ProtocolNumber
	r.DirectorateProtocolNum = params.DirectorateProtocolNum
	r.FinalSignatory = params.FinalSignatory
	r.CustomDecisionText = params.CustomDecisionText
	return nil
}

func (m *mockLeaveRequestStore) MarkIssued(ctx context.Context, params repository.IssueParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issueErr != nil {
		return m.issueErr
	}
	r, ok := m.requests[params.ID]
	if !ok || r.Status != models.LeaveStatusApproved {
		return repository.ErrStatusChanged
	}
	r.Status = models.LeaveStatusIssued
	r.DecisionPath = &params.DecisionPath
	r.ProcessedByName = &params.ProcessedByName
	r.ProcessedByPhone = params.ProcessedByPhone
	return nil
}

func (m *mockLeaveRequestStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status == models.LeaveStatusIssued {
		return repository.ErrStatusChanged
	}
	delete(m.requests, id)
	return nil
}

type stubHeaders struct{ text string }

func (s stubHeaders) Active(ctx context.Context) (*dto.ActiveHeader, error) {
	return &dto.ActiveHeader{Text: s.text}, nil
}

type stubCalendar struct{ calendar *workday.Calendar }

func (s stubCalendar) Calendar(ctx context.Context) (*workday.Calendar, error) {
	return s.calendar, nil
}

type stubSubordinates struct{ ids map[string][]string }

func (s stubSubordinates) SubordinateIDs(ctx context.Context, actor *models.JWTClaims) ([]string, error) {
	if ids, ok := s.ids[actor.EmployeeID]; ok {
		return ids, nil
	}
	return []string{}, nil
}

type recordedEvent struct {
	Type    string
	Key     string
	Payload interface{}
}

type mockEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *mockEmitter) Emit(eventType, key string, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{Type: eventType, Key: key, Payload: payload})
}

type mockEmployees struct {
	byID map[string]*models.EmployeeProfile
}

func (m *mockEmployees) FindByID(ctx context.Context, id string) (*models.EmployeeProfile, error) {
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEmployees) FindByUserID(ctx context.Context, userID string) (*models.EmployeeProfile, error) {
	for _, e := range m.byID {
		if e.UserID != nil && *e.UserID == userID {
			return e, nil
		}
	}
	return nil, sql.ErrNoRows
}

type leaveFixture struct {
	store     *mockLeaveRequestStore
	emitter   *mockEmitter
	audit     *mockAudit
	employees *mockEmployees
	types     *mockLeaveTypeRepo
	calendar  *workday.Calendar
	svc       *LeaveRequestService
}

func newLeaveFixture(requests ...*models.LeaveRequest) *leaveFixture {
	f := &leaveFixture{
		store:   newMockLeaveRequestStore(requests...),
		emitter: &mockEmitter{},
		audit:   &mockAudit{},
		employees: &mockEmployees{byID: map[string]*models.EmployeeProfile{
			"emp-1":   {Employee: models.Employee{ID: "emp-1", UserID: sptr("u-1"), Name: "Maria", Surname: "Papadopoulou", FatherName: "Georgios", WorkEmail: sptr("maria@sch.gr"), NotificationRecipients: sptr("Personnel\nPayroll")}, SpecialtyName: sptr("Physics"), ServiceName: sptr("Directorate")},
			"officer": {Employee: models.Employee{ID: "officer", UserID: sptr("u-off"), Name: "Nikos", Surname: "Officer", Phone: sptr("2100000000")}},
		}},
		types:    &mockLeaveTypeRepo{types: map[string]models.LeaveType{"lt1": regularLeaveType()}},
		calendar: workday.New(models.PublicHoliday{Name: "Clean Monday", Day: 3, Month: 3, Year: intPtr(2025)}),
	}
	f.svc = NewLeaveRequestService(LeaveRequestDeps{
		Requests:     f.store,
		LeaveTypes:   f.types,
		Employees:    f.employees,
		Headers:      stubHeaders{text: "HELLENIC REPUBLIC"},
		Calendar:     stubCalendar{calendar: f.calendar},
		Subordinates: stubSubordinates{ids: map[string][]string{"head": {"emp-1"}}},
		Events:       f.emitter,
		Audit:        f.audit,
		Metrics:      NewMetricsService(),
	}, validator.New(), zap.NewNop())
	return f
}

func employeeClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-1", EmployeeID: "emp-1", Roles: []models.UserRole{models.RoleEmployee}}
}

func officerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-off", EmployeeID: "officer", Roles: []models.UserRole{models.RoleLeaveOfficer}}
}

func pendingRequest(id string) *models.LeaveRequest {
	return &models.LeaveRequest{
		ID:          id,
		EmployeeID:  "emp-1",
		LeaveTypeID: "lt1",
		Status:      models.LeaveStatusPending,
		HeaderText:  "OLD HEADER",
		CreatedAt:   time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC),
		Intervals: []models.LeaveInterval{
			{ID: "i1", StartDate: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func validApproval() dto.ApproveLeaveRequest {
	return dto.ApproveLeaveRequest{ProtocolNumber: "123/2025", FinalSignatory: "The Director"}
}

func TestLeaveRequestServiceCreate(t *testing.T) {
	f := newLeaveFixture()

	detail, err := f.svc.Create(context.Background(), dto.CreateLeaveRequest{
		LeaveTypeID: "lt1",
		Intervals: []dto.LeaveIntervalInput{
			{StartDate: "2025-03-03", EndDate: "2025-03-07"},
			{StartDate: "2025-03-10", EndDate: "2025-03-10"},
		},
	}, employeeClaims(), models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.LeaveStatusPending, detail.Status)
	assert.Equal(t, "HELLENIC REPUBLIC", detail.HeaderText)
	assert.Equal(t, "Regular leave", detail.LeaveTypeName)
	require.Len(t, detail.Intervals, 2)
	assert.Equal(t, 4, detail.Intervals[0].WorkingDays)
	assert.Equal(t, 1, detail.Intervals[1].WorkingDays)
	assert.Equal(t, 5, detail.TotalWorkingDays)

	assert.Equal(t, []string{models.AuditActionLeaveCreate}, f.audit.actions())
	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, events.TypeRequestCreated, f.emitter.events[0].Type)
}

func TestLeaveRequestServiceCreateRejectsBadIntervals(t *testing.T) {
	cases := []struct {
		name      string
		intervals []dto.LeaveIntervalInput
	}{
		{name: "none", intervals: nil},
		{name: "inverted", intervals: []dto.LeaveIntervalInput{{StartDate: "2025-03-10", EndDate: "2025-03-03"}}},
		{name: "overlapping", intervals: []dto.LeaveIntervalInput{
			{StartDate: "2025-03-03", EndDate: "2025-03-07"},
			{StartDate: "2025-03-07", EndDate: "2025-03-11"},
		}},
		{name: "malformed", intervals: []dto.LeaveIntervalInput{{StartDate: "03/03/2025", EndDate: "2025-03-07"}}},
		{name: "too long", intervals: []dto.LeaveIntervalInput{{StartDate: "0001-01-01", EndDate: "9999-12-31"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLeaveFixture()
			_, err := f.svc.Create(context.Background(), dto.CreateLeaveRequest{LeaveTypeID: "lt1", Intervals: tc.intervals}, employeeClaims(), models.LoginRequest{})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
			assert.Empty(t, f.store.requests)
		})
	}
}

func TestLeaveRequestServiceCreateWithoutEmployee(t *testing.T) {
	f := newLeaveFixture()
	_, err := f.svc.Create(context.Background(), dto.CreateLeaveRequest{LeaveTypeID: "lt1"}, &models.JWTClaims{UserID: "admin"}, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestLeaveRequestServiceCreateUnknownLeaveType(t *testing.T) {
	f := newLeaveFixture()
	_, err := f.svc.Create(context.Background(), dto.CreateLeaveRequest{
		LeaveTypeID: "missing",
		Intervals:   []dto.LeaveIntervalInput{{StartDate: "2025-03-03", EndDate: "2025-03-03"}},
	}, employeeClaims(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLeaveRequestServiceApprove(t *testing.T) {
	f := newLeaveFixture(pendingRequest("r1"))

	detail, err := f.svc.Approve(context.Background(), "r1", dto.ApproveLeaveRequest{
		ProtocolNumber:            " 123/2025 ",
		FinalSignatory:            "The Director",
		DirectorateProtocolNumber: sptr("   "),
	}, officerClaims(), models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.LeaveStatusApproved, detail.Status)
	assert.Equal(t, "123/2025", *detail.ProtocolNumber)
	assert.Nil(t, detail.DirectorateProtocolNumber)
	assert.Equal(t, "u-off", *f.store.requests["r1"].ProcessedBy)
	assert.Equal(t, "Maria Papadopoulou", detail.EmployeeName)
	assert.Equal(t, 4, detail.TotalWorkingDays)
	assert.Equal(t, "OLD HEADER", detail.HeaderText)
	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, events.TypeRequestReviewed, f.emitter.events[0].Type)
}

func TestLeaveRequestServiceReject(t *testing.T) {
	f := newLeaveFixture(pendingRequest("r1"))

	detail, err := f.svc.Reject(context.Background(), "r1", dto.RejectLeaveRequest{Reason: "Staff shortage"}, officerClaims(), models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusRejected, detail.Status)
	assert.Equal(t, "Staff shortage", *detail.RejectionReason)

	_, err = f.svc.Reject(context.Background(), "r1", dto.RejectLeaveRequest{Reason: "again"}, officerClaims(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestLeaveRequestServiceRejectRequiresReason(t *testing.T) {
	f := newLeaveFixture(pendingRequest("r1"))

	_, err := f.svc.Reject(context.Background(), "r1", dto.RejectLeaveRequest{Reason: "  "}, officerClaims(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.LeaveStatusPending, f.store.requests["r1"].Status)
}

func TestLeaveRequestServiceTransitionsFromTerminalStates(t *testing.T) {
	for _, status := range []models.LeaveStatus{models.LeaveStatusRejected, models.LeaveStatusIssued, models.LeaveStatusApproved} {
		t.Run(string(status), func(t *testing.T) {
			req := pendingRequest("r1")
			req.Status = status
			f := newLeaveFixture(req)

			_, err := f.svc.Approve(context.Background(), "r1", validApproval(), officerClaims(), models.LoginRequest{})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
			assert.Equal(t, status, f.store.requests["r1"].Status)
		})
	}
}

func TestLeaveRequestServiceConcurrentApprovals(t *testing.T) {
	f := newLeaveFixture(pendingRequest("r1"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Approve(context.Background(), "r1", validApproval(), officerClaims(), models.LoginRequest{})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestLeaveRequestServiceGetAccess(t *testing.T) {
	f := newLeaveFixture(pendingRequest("r1"))
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "r1", employeeClaims())
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "r1", officerClaims())
	require.NoError(t, err)

	head := &models.JWTClaims{UserID: "u-head", EmployeeID: "head", Roles: []models.UserRole{models.RoleDepartmentHead}}
	_, err = f.svc.Get(ctx, "r1", head)
	require.NoError(t, err)

	stranger := &models.JWTClaims{UserID: "u-x", EmployeeID: "emp-x", Roles: []models.UserRole{models.RoleEmployee, models.RoleDepartmentHead}}
	_, err = f.svc.Get(ctx, "r1", stranger)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Get(ctx, "missing", officerClaims())
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLeaveRequestServiceListings(t *testing.T) {
	other := pendingRequest("r2")
	other.EmployeeID = "emp-2"
	f := newLeaveFixture(pendingRequest("r1"), other)
	ctx := context.Background()

	mine, pagination, err := f.svc.ListMine(ctx, dto.LeaveRequestQuery{}, employeeClaims())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "r1", mine[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 20, f.store.lastFilter.Limit)

	head := &models.JWTClaims{EmployeeID: "head", Roles: []models.UserRole{models.RoleDepartmentHead}}
	subordinates, _, err := f.svc.ListSubordinates(ctx, dto.LeaveRequestQuery{}, head)
	require.NoError(t, err)
	require.Len(t, subordinates, 1)
	assert.Equal(t, "emp-1", subordinates[0].EmployeeID)

	nobody := &models.JWTClaims{EmployeeID: "emp-2", Roles: []models.UserRole{models.RoleDepartmentHead}}
	subordinates, _, err = f.svc.ListSubordinates(ctx, dto.LeaveRequestQuery{}, nobody)
	require.NoError(t, err)
	assert.Empty(t, subordinates)

	all, _, err := f.svc.ListAll(ctx, dto.LeaveRequestQuery{Status: []models.LeaveStatus{models.LeaveStatusPending}, Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 5, f.store.lastFilter.Offset)

	_, _, err = f.svc.ListAll(ctx, dto.LeaveRequestQuery{Status: []models.LeaveStatus{"ARCHIVED"}})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLeaveRequestServiceExport(t *testing.T) {
	f := newLeaveFixture(pendingRequest("r1"))

	data, err := f.svc.Export(context.Background(), dto.LeaveRequestQuery{})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,employee_id,leave_type_id,status,protocol_number,intervals,total_working_days,created_at", lines[0])
	assert.Equal(t, "r1,emp-1,lt1,PENDING,,2025-03-03/2025-03-07,4,2025-03-01T08:00:00Z", lines[1])
}

func TestLeaveRequestServiceDelete(t *testing.T) {
	issued := pendingRequest("r2")
	issued.Status = models.LeaveStatusIssued
	f := newLeaveFixture(pendingRequest("r1"), issued)

	require.NoError(t, f.svc.Delete(context.Background(), "r1", officerClaims(), models.LoginRequest{}))
	assert.NotContains(t, f.store.requests, "r1")

	err := f.svc.Delete(context.Background(), "r2", officerClaims(), models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Contains(t, f.store.requests, "r2")
}

func TestLeaveRequestServiceAuditFailureDoesNotFailApproval(t *testing.T) {
	f := newLeaveFixture(pendingRequest("r1"))
	f.audit.err = errors.New("audit down")

	_, err := f.svc.Approve(context.Background(), "r1", validApproval(), officerClaims(), models.LoginRequest{})
	require.NoError(t, err)
}
