package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillforge/skillforge-api/internal/models"
	"github.com/skillforge/skillforge-api/internal/service"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
	"github.com/skillforge/skillforge-api/pkg/response"
)

// CompetitionHandler exposes competition, team, and project endpoints.
type CompetitionHandler struct {
	competitions *service.CompetitionService
}

// NewCompetitionHandler constructs CompetitionHandler.
func NewCompetitionHandler(competitions *service.CompetitionService) *CompetitionHandler {
	return &CompetitionHandler{competitions: competitions}
}

// List godoc
// @Summary List competitions
// @Tags Competitions
// @Produce json
// @Param upcoming query bool false "Only upcoming events"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /competitions [get]
func (h *CompetitionHandler) List(c *gin.Context) {
	var filter models.CompetitionFilter
	filter.Upcoming = c.Query("upcoming") == "true"
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	competitions, pagination, err := h.competitions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, competitions, pagination)
}

// Get godoc
// @Summary Get competition detail
// @Tags Competitions
// @Produce json
// @Param id path string true "Competition ID"
// @Success 200 {object} response.Envelope
// @Router /competitions/{id} [get]
func (h *CompetitionHandler) Get(c *gin.Context) {
	competition, err := h.competitions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, competition, nil)
}

// Create godoc
// @Summary Create competition
// @Tags Competitions
// @Accept json
// @Produce json
// @Param payload body service.CreateCompetitionRequest true "Competition payload"
// @Success 201 {object} response.Envelope
// @Router /clo/competitions [post]
func (h *CompetitionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateCompetitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	competition, err := h.competitions.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, competition)
}

// RegisterTeam godoc
// @Summary Register a team
// @Description Registration is only accepted while the registration window is open
// @Tags Competitions
// @Accept json
// @Produce json
// @Param payload body service.RegisterTeamRequest true "Team payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /competitions/teams [post]
func (h *CompetitionHandler) RegisterTeam(c *gin.Context) {
	var req service.RegisterTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	team, err := h.competitions.RegisterTeam(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, team)
}

// Teams godoc
// @Summary List teams for a competition
// @Tags Competitions
// @Produce json
// @Param id path string true "Competition ID"
// @Success 200 {object} response.Envelope
// @Router /competitions/{id}/teams [get]
func (h *CompetitionHandler) Teams(c *gin.Context) {
	teams, err := h.competitions.Teams(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teams, nil)
}

// TeamMembers godoc
// @Summary List members of a team
// @Tags Competitions
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /competitions/teams/{id}/members [get]
func (h *CompetitionHandler) TeamMembers(c *gin.Context) {
	members, err := h.competitions.TeamMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// AddTeamMember godoc
// @Summary Add a student to a team
// @Tags Competitions
// @Accept json
// @Produce json
// @Param id path string true "Team ID"
// @Param payload body map[string]string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /competitions/teams/{id}/members [post]
func (h *CompetitionHandler) AddTeamMember(c *gin.Context) {
	var payload struct {
		StudentID string `json:"student_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "student_id is required"))
		return
	}
	if err := h.competitions.AddTeamMember(c.Request.Context(), c.Param("id"), payload.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveTeamMember godoc
// @Summary Remove a student from a team
// @Tags Competitions
// @Produce json
// @Param id path string true "Team ID"
// @Param studentId path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /competitions/teams/{id}/members/{studentId} [delete]
func (h *CompetitionHandler) RemoveTeamMember(c *gin.Context) {
	if err := h.competitions.RemoveTeamMember(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SubmitProject godoc
// @Summary Submit a team project
// @Description Submissions close after the event date
// @Tags Competitions
// @Accept json
// @Produce json
// @Param id path string true "Team ID"
// @Param payload body service.SubmitProjectRequest true "Project payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /competitions/teams/{id}/project [put]
func (h *CompetitionHandler) SubmitProject(c *gin.Context) {
	var req service.SubmitProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	project, err := h.competitions.SubmitProject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Projects godoc
// @Summary List submitted projects for a competition
// @Tags Competitions
// @Produce json
// @Param id path string true "Competition ID"
// @Success 200 {object} response.Envelope
// @Router /competitions/{id}/projects [get]
func (h *CompetitionHandler) Projects(c *gin.Context) {
	projects, err := h.competitions.Projects(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}

// ScoreProject godoc
// @Summary Score a submitted project
// @Tags Competitions
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body service.ScoreProjectRequest true "Score payload"
// @Success 204 {object} response.Envelope
// @Router /clo/competitions/projects/{id}/score [post]
func (h *CompetitionHandler) ScoreProject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ScoreProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.competitions.ScoreProject(c.Request.Context(), c.Param("id"), req, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
