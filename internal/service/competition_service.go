package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type competitionRepository interface {
	List(ctx context.Context, filter models.CompetitionFilter) ([]models.Competition, int, error)
	FindByID(ctx context.Context, id string) (*models.Competition, error)
	Create(ctx context.Context, comp *models.Competition) error
	Update(ctx context.Context, comp *models.Competition) error
	Teams(ctx context.Context, competitionID string) ([]models.Team, error)
	FindTeam(ctx context.Context, id string) (*models.Team, error)
	CreateTeam(ctx context.Context, team *models.Team, memberIDs []string) error
	TeamMembers(ctx context.Context, teamID string) ([]models.TeamMember, error)
	CountTeamMembers(ctx context.Context, teamID string) (int, error)
	AddTeamMember(ctx context.Context, teamID, studentID string) error
	RemoveTeamMember(ctx context.Context, teamID, studentID string) error
	SubmitProject(ctx context.Context, project *models.Project) error
	Projects(ctx context.Context, competitionID string) ([]models.ProjectDetail, error)
	ScoreProject(ctx context.Context, projectID, scorerID string, score float64, ts time.Time) error
}

// CreateCompetitionRequest payload for opening a competition.
type CreateCompetitionRequest struct {
	Name        string    `json:"name" validate:"required"`
	Description *string   `json:"description"`
	RegOpensAt  time.Time `json:"reg_opens_at" validate:"required"`
	RegClosesAt time.Time `json:"reg_closes_at" validate:"required,gtfield=RegOpensAt"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	MaxTeamSize int       `json:"max_team_size" validate:"required,min=1,max=20"`
}

// RegisterTeamRequest registers a team while the window is open.
type RegisterTeamRequest struct {
	CompetitionID string   `json:"competition_id" validate:"required,uuid"`
	Name          string   `json:"name" validate:"required"`
	LeaderID      string   `json:"leader_id" validate:"required,uuid"`
	MemberIDs     []string `json:"member_ids" validate:"omitempty,dive,uuid"`
}

// SubmitProjectRequest records or replaces a team's submission.
type SubmitProjectRequest struct {
	Title   string  `json:"title" validate:"required"`
	Summary *string `json:"summary" validate:"omitempty,max=4000"`
	RepoURL *string `json:"repo_url" validate:"omitempty,url"`
}

// ScoreProjectRequest is a juror's score for a submitted project.
type ScoreProjectRequest struct {
	Score float64 `json:"score" validate:"gte=0,lte=100"`
}

// CompetitionService manages competitions, team registration, and project
// scoring.
type CompetitionService struct {
	repo      competitionRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCompetitionService creates an instance of CompetitionService.
func NewCompetitionService(repo competitionRepository, validate *validator.Validate, logger *zap.Logger) *CompetitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CompetitionService{repo: repo, validator: validate, logger: logger, now: time.Now}
}

// List returns competitions.
func (s *CompetitionService) List(ctx context.Context, filter models.CompetitionFilter) ([]models.Competition, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	comps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list competitions")
	}
	return comps, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one competition.
func (s *CompetitionService) Get(ctx context.Context, id string) (*models.Competition, error) {
	comp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "competition not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load competition")
	}
	return comp, nil
}

// Create opens a competition.
func (s *CompetitionService) Create(ctx context.Context, req CreateCompetitionRequest, creatorID string) (*models.Competition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create competition payload")
	}
	comp := &models.Competition{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		RegOpensAt:  req.RegOpensAt,
		RegClosesAt: req.RegClosesAt,
		EventDate:   req.EventDate,
		MaxTeamSize: req.MaxTeamSize,
		CreatedBy:   creatorID,
	}
	if err := s.repo.Create(ctx, comp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create competition")
	}
	return comp, nil
}

// RegisterTeam registers a team. The registration window must be open and
// the roster, leader included, must fit the team size limit.
func (s *CompetitionService) RegisterTeam(ctx context.Context, req RegisterTeamRequest) (*models.Team, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid team payload")
	}

	comp, err := s.Get(ctx, req.CompetitionID)
	if err != nil {
		return nil, err
	}
	if !comp.RegistrationOpen(s.now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration window is closed")
	}

	members := make([]string, 0, len(req.MemberIDs)+1)
	members = append(members, req.LeaderID)
	seen := map[string]bool{req.LeaderID: true}
	for _, id := range req.MemberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	if len(members) > comp.MaxTeamSize {
		return nil, appErrors.Clone(appErrors.ErrConflict, "team exceeds the maximum size")
	}

	team := &models.Team{
		ID:            uuid.NewString(),
		CompetitionID: req.CompetitionID,
		Name:          req.Name,
		LeaderID:      req.LeaderID,
	}
	if err := s.repo.CreateTeam(ctx, team, members); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register team")
	}
	s.logger.Info("team registered",
		zap.String("team_id", team.ID),
		zap.String("competition_id", comp.ID),
		zap.Int("members", len(members)))
	return team, nil
}

// Teams lists the teams of a competition.
func (s *CompetitionService) Teams(ctx context.Context, competitionID string) ([]models.Team, error) {
	if _, err := s.Get(ctx, competitionID); err != nil {
		return nil, err
	}
	teams, err := s.repo.Teams(ctx, competitionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teams")
	}
	return teams, nil
}

// TeamMembers lists a team's roster.
func (s *CompetitionService) TeamMembers(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	if _, err := s.getTeam(ctx, teamID); err != nil {
		return nil, err
	}
	members, err := s.repo.TeamMembers(ctx, teamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list team members")
	}
	return members, nil
}

// AddTeamMember adds a student while the window is open and the team has
// room.
func (s *CompetitionService) AddTeamMember(ctx context.Context, teamID, studentID string) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	comp, err := s.Get(ctx, team.CompetitionID)
	if err != nil {
		return err
	}
	if !comp.RegistrationOpen(s.now().UTC()) {
		return appErrors.Clone(appErrors.ErrConflict, "registration window is closed")
	}

	count, err := s.repo.CountTeamMembers(ctx, teamID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count team members")
	}
	if count >= comp.MaxTeamSize {
		return appErrors.Clone(appErrors.ErrConflict, "team is full")
	}

	if err := s.repo.AddTeamMember(ctx, teamID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add team member")
	}
	return nil
}

// RemoveTeamMember removes a student from a team. The leader cannot be
// removed.
func (s *CompetitionService) RemoveTeamMember(ctx context.Context, teamID, studentID string) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.LeaderID == studentID {
		return appErrors.Clone(appErrors.ErrConflict, "team leader cannot be removed")
	}
	if err := s.repo.RemoveTeamMember(ctx, teamID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "team member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove team member")
	}
	return nil
}

// SubmitProject records a team's submission. A resubmission replaces the
// previous one and clears any score.
func (s *CompetitionService) SubmitProject(ctx context.Context, teamID string, req SubmitProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	comp, err := s.Get(ctx, team.CompetitionID)
	if err != nil {
		return nil, err
	}
	if s.now().UTC().After(comp.EventDate) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submissions are closed after the event date")
	}

	project := &models.Project{
		ID:      uuid.NewString(),
		TeamID:  teamID,
		Title:   req.Title,
		Summary: req.Summary,
		RepoURL: req.RepoURL,
	}
	if err := s.repo.SubmitProject(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit project")
	}
	return project, nil
}

// Projects returns the ranked submissions of a competition, scored first.
func (s *CompetitionService) Projects(ctx context.Context, competitionID string) ([]models.ProjectDetail, error) {
	if _, err := s.Get(ctx, competitionID); err != nil {
		return nil, err
	}
	projects, err := s.repo.Projects(ctx, competitionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	return projects, nil
}

// ScoreProject records a juror's score on a submitted project.
func (s *CompetitionService) ScoreProject(ctx context.Context, projectID string, req ScoreProjectRequest, scorerID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	if err := s.repo.ScoreProject(ctx, projectID, scorerID, req.Score, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to score project")
	}
	return nil
}

func (s *CompetitionService) getTeam(ctx context.Context, teamID string) (*models.Team, error) {
	team, err := s.repo.FindTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	return team, nil
}
