package models

import "time"

// Evaluation scores one student in one session against a criterion.
type Evaluation struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Criterion string    `db:"criterion" json:"criterion"`
	Score     float64   `db:"score" json:"score"`
	Comments  *string   `db:"comments" json:"comments,omitempty"`
	RatedBy   string    `db:"rated_by" json:"rated_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EvaluationRecord extends the row with student metadata.
type EvaluationRecord struct {
	Evaluation
	StudentName string `db:"student_name" json:"student_name"`
}

// EvaluationFilter scopes listing queries.
type EvaluationFilter struct {
	SessionID string
	StudentID string
	Criterion string
	Page      int
	PageSize  int
}
