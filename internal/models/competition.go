package models

import "time"

// Competition is an event teams register for within a window.
type Competition struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   *string   `db:"description" json:"description,omitempty"`
	RegOpensAt    time.Time `db:"reg_opens_at" json:"reg_opens_at"`
	RegClosesAt   time.Time `db:"reg_closes_at" json:"reg_closes_at"`
	EventDate     time.Time `db:"event_date" json:"event_date"`
	MaxTeamSize   int       `db:"max_team_size" json:"max_team_size"`
	CreatedBy     string    `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// RegistrationOpen reports whether teams can still register at ts.
func (c Competition) RegistrationOpen(ts time.Time) bool {
	return !ts.Before(c.RegOpensAt) && !ts.After(c.RegClosesAt)
}

// Team is a set of students registered for a competition.
type Team struct {
	ID            string    `db:"id" json:"id"`
	CompetitionID string    `db:"competition_id" json:"competition_id"`
	Name          string    `db:"name" json:"name"`
	LeaderID      string    `db:"leader_id" json:"leader_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// TeamMember is one student on a team.
type TeamMember struct {
	TeamID      string `db:"team_id" json:"team_id"`
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
}

// Project is a team's submission to a competition.
type Project struct {
	ID          string     `db:"id" json:"id"`
	TeamID      string     `db:"team_id" json:"team_id"`
	Title       string     `db:"title" json:"title"`
	Summary     *string    `db:"summary" json:"summary,omitempty"`
	RepoURL     *string    `db:"repo_url" json:"repo_url,omitempty"`
	Score       *float64   `db:"score" json:"score,omitempty"`
	ScoredBy    *string    `db:"scored_by" json:"scored_by,omitempty"`
	ScoredAt    *time.Time `db:"scored_at" json:"scored_at,omitempty"`
	SubmittedAt time.Time  `db:"submitted_at" json:"submitted_at"`
}

// ProjectDetail enriches Project with team and competition names.
type ProjectDetail struct {
	Project
	TeamName        string `db:"team_name" json:"team_name"`
	CompetitionID   string `db:"competition_id" json:"competition_id"`
	CompetitionName string `db:"competition_name" json:"competition_name"`
}

// CompetitionFilter scopes competition listing queries.
type CompetitionFilter struct {
	Upcoming  bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
