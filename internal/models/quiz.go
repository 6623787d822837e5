package models

import "time"

// Quiz belongs to a group and is answered once per student.
type Quiz struct {
	ID        string     `db:"id" json:"id"`
	GroupID   string     `db:"group_id" json:"group_id"`
	Title     string     `db:"title" json:"title"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	OpensAt   *time.Time `db:"opens_at" json:"opens_at,omitempty"`
	ClosesAt  *time.Time `db:"closes_at" json:"closes_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Open reports whether students can submit at ts.
func (q Quiz) Open(ts time.Time) bool {
	if q.OpensAt != nil && ts.Before(*q.OpensAt) {
		return false
	}
	if q.ClosesAt != nil && ts.After(*q.ClosesAt) {
		return false
	}
	return true
}

// QuizQuestion is one multiple-choice question.
type QuizQuestion struct {
	ID         string   `db:"id" json:"id"`
	QuizID     string   `db:"quiz_id" json:"quiz_id"`
	Prompt     string   `db:"prompt" json:"prompt"`
	Choices    []string `db:"-" json:"choices"`
	RawChoices string   `db:"choices" json:"-"`
	Correct    int      `db:"correct" json:"-"`
	Position   int      `db:"position" json:"position"`
}

// QuizSubmission is one student's graded answer set.
type QuizSubmission struct {
	ID          string    `db:"id" json:"id"`
	QuizID      string    `db:"quiz_id" json:"quiz_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Answers     []int     `db:"-" json:"answers"`
	RawAnswers  string    `db:"answers" json:"-"`
	Score       float64   `db:"score" json:"score"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// QuizResultRow summarises one submission for trainer result listings.
type QuizResultRow struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	Score       float64   `db:"score" json:"score"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// QuizFilter scopes quiz listing queries.
type QuizFilter struct {
	GroupID   string
	CreatedBy string
	Page      int
	PageSize  int
}
