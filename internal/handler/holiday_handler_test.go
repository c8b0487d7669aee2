package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leave-decision-api/internal/dto"
	"github.com/noah-isme/leave-decision-api/internal/models"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
)

type holidayServiceMock struct {
	filter models.HolidayFilter
	query  dto.WorkingDaysQuery
}

func (m *holidayServiceMock) List(ctx context.Context, filter models.HolidayFilter) ([]models.PublicHoliday, error) {
	m.filter = filter
	return []models.PublicHoliday{{ID: "h1", Name: "New Year", Day: 1, Month: 1, IsFixed: true}}, nil
}

func (m *holidayServiceMock) Create(ctx context.Context, req dto.HolidayRequest, actor *models.JWTClaims) (*models.PublicHoliday, error) {
	if req.Day == 31 && req.Month == 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day does not exist in month")
	}
	return &models.PublicHoliday{ID: "h2", Name: req.Name, Day: req.Day, Month: req.Month, IsFixed: req.IsFixed}, nil
}

func (m *holidayServiceMock) Update(ctx context.Context, id string, req dto.HolidayRequest, actor *models.JWTClaims) (*models.PublicHoliday, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
}

func (m *holidayServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	return nil
}

func (m *holidayServiceMock) WorkingDays(ctx context.Context, query dto.WorkingDaysQuery) (*dto.WorkingDaysResult, error) {
	m.query = query
	return &dto.WorkingDaysResult{Start: query.Start, End: query.End, WorkingDays: 3, Holidays: []string{"2025-01-01"}}, nil
}

func TestHolidayHandlerListFilters(t *testing.T) {
	svc := &holidayServiceMock{}
	handler := NewHolidayHandler(svc)
	c, w := newLeaveContext(http.MethodGet, "/holidays?year=2025&fixed=false", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.filter.Year)
	assert.Equal(t, 2025, *svc.filter.Year)
	require.NotNil(t, svc.filter.Fixed)
	assert.False(t, *svc.filter.Fixed)
}

func TestHolidayHandlerCreate(t *testing.T) {
	handler := NewHolidayHandler(&holidayServiceMock{})

	c, w := newLeaveContext(http.MethodPost, "/holidays", dto.HolidayRequest{Name: "Labour Day", Day: 1, Month: 5, IsFixed: true})
	handler.Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newLeaveContext(http.MethodPost, "/holidays", dto.HolidayRequest{Name: "Broken", Day: 31, Month: 2, IsFixed: true})
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHolidayHandlerUpdateMissing(t *testing.T) {
	handler := NewHolidayHandler(&holidayServiceMock{})
	c, w := newLeaveContext(http.MethodPut, "/holidays/nope", dto.HolidayRequest{Name: "X", Day: 1, Month: 1, IsFixed: true})
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	handler.Update(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHolidayHandlerWorkingDays(t *testing.T) {
	svc := &holidayServiceMock{}
	handler := NewHolidayHandler(svc)
	c, w := newLeaveContext(http.MethodGet, "/holidays/working-days?start=2024-12-30&end=2025-01-02", nil)

	handler.WorkingDays(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-12-30", svc.query.Start)
	assert.Contains(t, w.Body.String(), `"2025-01-01"`)
}
