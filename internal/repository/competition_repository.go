package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/skillforge/skillforge-api/internal/models"
)

// CompetitionRepository handles persistence for competitions, teams and projects.
type CompetitionRepository struct {
	db *sqlx.DB
}

// NewCompetitionRepository constructs the repository.
func NewCompetitionRepository(db *sqlx.DB) *CompetitionRepository {
	return &CompetitionRepository{db: db}
}

const competitionColumns = "id, name, description, reg_opens_at, reg_closes_at, event_date, max_team_size, created_by, created_at, updated_at"

// List returns competitions matching the provided filter.
func (r *CompetitionRepository) List(ctx context.Context, filter models.CompetitionFilter) ([]models.Competition, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Upcoming {
		where = append(where, "event_date >= NOW()")
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := sortColumnOrDefault(filter.SortBy, map[string]string{
		"name":       "name",
		"event_date": "event_date",
	}, "event_date")
	order := sortOrderOrDefault(filter.SortOrder)
	if filter.SortOrder == "" {
		order = "ASC"
	}
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM competitions WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		competitionColumns, whereClause, sortColumn, order, limit, offset)

	var rows []models.Competition
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list competitions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM competitions WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count competitions: %w", err)
	}
	return rows, total, nil
}

// FindByID returns one competition.
func (r *CompetitionRepository) FindByID(ctx context.Context, id string) (*models.Competition, error) {
	var comp models.Competition
	if err := r.db.GetContext(ctx, &comp, fmt.Sprintf("SELECT %s FROM competitions WHERE id = $1", competitionColumns), id); err != nil {
		return nil, err
	}
	return &comp, nil
}

// Create inserts a new competition.
func (r *CompetitionRepository) Create(ctx context.Context, comp *models.Competition) error {
	now := time.Now().UTC()
	if comp.ID == "" {
		comp.ID = uuid.NewString()
	}
	comp.CreatedAt = now
	comp.UpdatedAt = now
	query := `INSERT INTO competitions (id, name, description, reg_opens_at, reg_closes_at, event_date, max_team_size, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query,
		comp.ID, comp.Name, comp.Description, comp.RegOpensAt, comp.RegClosesAt,
		comp.EventDate, comp.MaxTeamSize, comp.CreatedBy, comp.CreatedAt, comp.UpdatedAt); err != nil {
		return fmt.Errorf("create competition: %w", err)
	}
	return nil
}

// Update persists mutable competition fields.
func (r *CompetitionRepository) Update(ctx context.Context, comp *models.Competition) error {
	comp.UpdatedAt = time.Now().UTC()
	query := `UPDATE competitions SET name = $2, description = $3, reg_opens_at = $4, reg_closes_at = $5,
event_date = $6, max_team_size = $7, updated_at = $8 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		comp.ID, comp.Name, comp.Description, comp.RegOpensAt, comp.RegClosesAt,
		comp.EventDate, comp.MaxTeamSize, comp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update competition: %w", err)
	}
	return requireRowsAffected(res, "competition")
}

// Teams returns the teams registered for a competition.
func (r *CompetitionRepository) Teams(ctx context.Context, competitionID string) ([]models.Team, error) {
	query := `SELECT id, competition_id, name, leader_id, created_at
FROM teams WHERE competition_id = $1 ORDER BY created_at`
	var rows []models.Team
	if err := r.db.SelectContext(ctx, &rows, query, competitionID); err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return rows, nil
}

// FindTeam returns one team.
func (r *CompetitionRepository) FindTeam(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	query := "SELECT id, competition_id, name, leader_id, created_at FROM teams WHERE id = $1"
	if err := r.db.GetContext(ctx, &team, query, id); err != nil {
		return nil, err
	}
	return &team, nil
}

// CreateTeam inserts a team and its initial members in one transaction.
func (r *CompetitionRepository) CreateTeam(ctx context.Context, team *models.Team, memberIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create team: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	team.CreatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO teams (id, competition_id, name, leader_id, created_at) VALUES ($1, $2, $3, $4, $5)",
		team.ID, team.CompetitionID, team.Name, team.LeaderID, team.CreatedAt); err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	for _, studentID := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO team_members (team_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			team.ID, studentID); err != nil {
			return fmt.Errorf("add team member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create team: %w", err)
	}
	commit = true
	return nil
}

// TeamMembers returns the members of a team with student names.
func (r *CompetitionRepository) TeamMembers(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	query := `SELECT tm.team_id, tm.student_id, u.full_name AS student_name
FROM team_members tm
JOIN users u ON u.id = tm.student_id
WHERE tm.team_id = $1
ORDER BY u.full_name`
	var rows []models.TeamMember
	if err := r.db.SelectContext(ctx, &rows, query, teamID); err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	return rows, nil
}

// CountTeamMembers returns the current team size.
func (r *CompetitionRepository) CountTeamMembers(ctx context.Context, teamID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM team_members WHERE team_id = $1", teamID); err != nil {
		return 0, fmt.Errorf("count team members: %w", err)
	}
	return count, nil
}

// AddTeamMember adds a student to a team. Adding twice is a no-op.
func (r *CompetitionRepository) AddTeamMember(ctx context.Context, teamID, studentID string) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO team_members (team_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		teamID, studentID); err != nil {
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}

// RemoveTeamMember removes a student from a team.
func (r *CompetitionRepository) RemoveTeamMember(ctx context.Context, teamID, studentID string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM team_members WHERE team_id = $1 AND student_id = $2", teamID, studentID)
	if err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	return requireRowsAffected(res, "team member")
}

// SubmitProject inserts or replaces the team's submission. Resubmitting
// overwrites the previous one and clears any earlier score.
func (r *CompetitionRepository) SubmitProject(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	project.SubmittedAt = time.Now().UTC()
	query := `INSERT INTO projects (id, team_id, title, summary, repo_url, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (team_id) DO UPDATE SET
        title = EXCLUDED.title,
        summary = EXCLUDED.summary,
        repo_url = EXCLUDED.repo_url,
        score = NULL,
        scored_by = NULL,
        scored_at = NULL,
        submitted_at = EXCLUDED.submitted_at
RETURNING id, team_id, title, summary, repo_url, score, scored_by, scored_at, submitted_at`
	if err := r.db.GetContext(ctx, project, query,
		project.ID, project.TeamID, project.Title, project.Summary, project.RepoURL, project.SubmittedAt); err != nil {
		return fmt.Errorf("submit project: %w", err)
	}
	return nil
}

// Projects returns the submissions for a competition.
func (r *CompetitionRepository) Projects(ctx context.Context, competitionID string) ([]models.ProjectDetail, error) {
	query := `SELECT p.id, p.team_id, p.title, p.summary, p.repo_url, p.score, p.scored_by, p.scored_at, p.submitted_at,
        t.name AS team_name, t.competition_id, c.name AS competition_name
FROM projects p
JOIN teams t ON t.id = p.team_id
JOIN competitions c ON c.id = t.competition_id
WHERE t.competition_id = $1
ORDER BY p.score DESC NULLS LAST, p.submitted_at`
	var rows []models.ProjectDetail
	if err := r.db.SelectContext(ctx, &rows, query, competitionID); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return rows, nil
}

// ScoreProject records a score for a submission.
func (r *CompetitionRepository) ScoreProject(ctx context.Context, projectID, scorerID string, score float64, ts time.Time) error {
	query := "UPDATE projects SET score = $2, scored_by = $3, scored_at = $4 WHERE id = $1"
	res, err := r.db.ExecContext(ctx, query, projectID, score, scorerID, ts)
	if err != nil {
		return fmt.Errorf("score project: %w", err)
	}
	return requireRowsAffected(res, "project")
}
