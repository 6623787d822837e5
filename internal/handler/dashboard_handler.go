package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillforge/skillforge-api/internal/middleware"
	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
	"github.com/skillforge/skillforge-api/pkg/response"
)

type statsService interface {
	Dashboard(ctx context.Context) (*models.DashboardSummary, bool, error)
	GroupStats(ctx context.Context, groupID string) (*models.GroupStats, error)
	TrainerPerformance(ctx context.Context, trainerID string) (*models.TrainerPerformance, error)
	TopTrainers(ctx context.Context, limit int) ([]models.TrainerPerformance, error)
	CourseRollups(ctx context.Context) ([]models.CourseRollup, error)
	StudentSummary(ctx context.Context, studentID, groupID string) (*models.AttendanceSummary, error)
}

// DashboardHandler wires the read-time stats service to HTTP endpoints.
type DashboardHandler struct {
	stats statsService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(stats statsService) *DashboardHandler {
	return &DashboardHandler{stats: stats}
}

// Dashboard godoc
// @Summary Organisation-wide dashboard summary
// @Description Every figure is recomputed from operational rows at read time
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clo/dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	if h.stats == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	if _, stamped := meta["processing_time_ms"]; !stamped {
		meta["processing_time_ms"] = time.Since(start).Milliseconds()
	}
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// GroupStats godoc
// @Summary Attendance statistics for a group
// @Tags Dashboard
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/stats [get]
func (h *DashboardHandler) GroupStats(c *gin.Context) {
	stats, err := h.stats.GroupStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// TrainerPerformance godoc
// @Summary Performance metrics for a trainer
// @Tags Dashboard
// @Produce json
// @Param id path string true "Trainer ID"
// @Success 200 {object} response.Envelope
// @Router /clo/trainers/{id}/performance [get]
func (h *DashboardHandler) TrainerPerformance(c *gin.Context) {
	perf, err := h.stats.TrainerPerformance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perf, nil)
}

// MyPerformance godoc
// @Summary Performance metrics for the current trainer
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /trainer/performance [get]
func (h *DashboardHandler) MyPerformance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	perf, err := h.stats.TrainerPerformance(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perf, nil)
}

// TopTrainers godoc
// @Summary Trainers ranked by average attendance
// @Tags Dashboard
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /clo/trainers/top [get]
func (h *DashboardHandler) TopTrainers(c *gin.Context) {
	limit := 10
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && v > 0 {
		limit = v
	}
	trainers, err := h.stats.TopTrainers(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trainers, nil)
}

// CourseRollups godoc
// @Summary Per-course enrollment and revenue rollup
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clo/courses/rollup [get]
func (h *DashboardHandler) CourseRollups(c *gin.Context) {
	rollups, err := h.stats.CourseRollups(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rollups, nil)
}
