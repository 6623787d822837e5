package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skillforge/skillforge-api/internal/models"
	"github.com/skillforge/skillforge-api/internal/service"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
	"github.com/skillforge/skillforge-api/pkg/response"
)

// EvaluationHandler exposes per-session student rating endpoints.
type EvaluationHandler struct {
	evaluations *service.EvaluationService
}

// NewEvaluationHandler constructs EvaluationHandler.
func NewEvaluationHandler(evaluations *service.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations}
}

// Rate godoc
// @Summary Rate a student for a session
// @Description Creates or updates the score for one criterion
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body service.RateStudentRequest true "Evaluation payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /trainer/evaluations [post]
func (h *EvaluationHandler) Rate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	eval, err := h.evaluations.Rate(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, eval, nil)
}

// List godoc
// @Summary List evaluations
// @Tags Evaluations
// @Produce json
// @Param sessionId query string false "Filter by session"
// @Param studentId query string false "Filter by student"
// @Param criterion query string false "Filter by criterion"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	var filter models.EvaluationFilter
	filter.SessionID = c.Query("sessionId")
	filter.StudentID = c.Query("studentId")
	filter.Criterion = c.Query("criterion")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	evals, pagination, err := h.evaluations.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evals, pagination)
}

// StudentAverage godoc
// @Summary Average evaluation score for a student
// @Tags Evaluations
// @Produce json
// @Param id path string true "Student ID"
// @Param groupId query string false "Restrict to one group"
// @Success 200 {object} response.Envelope
// @Router /evaluations/students/{id}/average [get]
func (h *EvaluationHandler) StudentAverage(c *gin.Context) {
	avg, err := h.evaluations.StudentAverage(c.Request.Context(), c.Param("id"), c.Query("groupId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": c.Param("id"), "average_score": avg}, nil)
}

// MyEvaluations godoc
// @Summary Evaluations for the current student
// @Tags Evaluations
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /student/evaluations [get]
func (h *EvaluationHandler) MyEvaluations(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var filter models.EvaluationFilter
	filter.StudentID = claims.UserID
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	evals, pagination, err := h.evaluations.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evals, pagination)
}
