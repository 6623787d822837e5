package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/middleware"
	"github.com/skillforge/skillforge-api/internal/models"
)

type statsServiceMock struct {
	dashboard     *models.DashboardSummary
	dashboardHit  bool
	groupStats    *models.GroupStats
	performance   *models.TrainerPerformance
	lastTrainerID string
}

func (m *statsServiceMock) Dashboard(ctx context.Context) (*models.DashboardSummary, bool, error) {
	return m.dashboard, m.dashboardHit, nil
}

func (m *statsServiceMock) GroupStats(ctx context.Context, groupID string) (*models.GroupStats, error) {
	return m.groupStats, nil
}

func (m *statsServiceMock) TrainerPerformance(ctx context.Context, trainerID string) (*models.TrainerPerformance, error) {
	m.lastTrainerID = trainerID
	return m.performance, nil
}

func (m *statsServiceMock) TopTrainers(ctx context.Context, limit int) ([]models.TrainerPerformance, error) {
	return nil, nil
}

func (m *statsServiceMock) CourseRollups(ctx context.Context) ([]models.CourseRollup, error) {
	return nil, nil
}

func (m *statsServiceMock) StudentSummary(ctx context.Context, studentID, groupID string) (*models.AttendanceSummary, error) {
	return nil, nil
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

func TestDashboardHandlerDashboard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &statsServiceMock{
		dashboard: &models.DashboardSummary{
			GeneratedAt:     time.Now(),
			ActiveGroups:    4,
			ActiveStudents:  61,
			SessionsToday:   3,
			PendingPayments: 2,
		},
	}
	handler := NewDashboardHandler(mock)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/clo/dashboard", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "clo-1", Role: models.RoleCLO})

	handler.Dashboard(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.EqualValues(t, 4, envelope.Data["active_groups"])
	assert.EqualValues(t, 61, envelope.Data["active_students"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestDashboardHandlerDashboardCacheHitMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &statsServiceMock{
		dashboard:    &models.DashboardSummary{GeneratedAt: time.Now(), ActiveGroups: 4},
		dashboardHit: true,
	}
	handler := NewDashboardHandler(mock)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/clo/dashboard", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "clo-1", Role: models.RoleCLO})

	handler.Dashboard(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestDashboardHandlerGroupStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &statsServiceMock{
		groupStats: &models.GroupStats{GroupID: "grp-1", AvgAttendanceRate: 87.5},
	}
	handler := NewDashboardHandler(mock)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/groups/grp-1/stats", nil)
	c.Params = gin.Params{{Key: "id", Value: "grp-1"}}

	handler.GroupStats(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "grp-1", envelope.Data["group_id"])
}

func TestDashboardHandlerMyPerformance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &statsServiceMock{
		performance: &models.TrainerPerformance{TrainerID: "trainer-1", TotalSessions: 12},
	}
	handler := NewDashboardHandler(mock)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/trainer/performance", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "trainer-1", Role: models.RoleTrainer})

	handler.MyPerformance(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trainer-1", mock.lastTrainerID)
}

func TestDashboardHandlerMyPerformanceUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&statsServiceMock{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/trainer/performance", nil)

	handler.MyPerformance(c)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
