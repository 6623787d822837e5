package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/skillforge/skillforge-api/internal/models"
)

// QuizRepository handles persistence for quizzes, questions and submissions.
// Choices and answers are stored as JSON text columns.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// List returns quizzes matching the provided filter.
func (r *QuizRepository) List(ctx context.Context, filter models.QuizFilter) ([]models.Quiz, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.CreatedBy != "" {
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	whereClause := strings.Join(where, " AND ")
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT id, group_id, title, created_by, opens_at, closes_at, created_at, updated_at
FROM quizzes WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, whereClause, limit, offset)

	var rows []models.Quiz
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM quizzes WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}
	return rows, total, nil
}

// FindByID returns one quiz.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	var quiz models.Quiz
	query := "SELECT id, group_id, title, created_by, opens_at, closes_at, created_at, updated_at FROM quizzes WHERE id = $1"
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// Create inserts a quiz with its questions in one transaction.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz, questions []models.QuizQuestion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create quiz: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	quiz.CreatedAt = now
	quiz.UpdatedAt = now
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quizzes (id, group_id, title, created_by, opens_at, closes_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		quiz.ID, quiz.GroupID, quiz.Title, quiz.CreatedBy, quiz.OpensAt, quiz.ClosesAt, quiz.CreatedAt, quiz.UpdatedAt); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.QuizID = quiz.ID
		q.Position = i + 1
		raw, err := json.Marshal(q.Choices)
		if err != nil {
			return fmt.Errorf("encode choices: %w", err)
		}
		q.RawChoices = string(raw)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quiz_questions (id, quiz_id, prompt, choices, correct, position)
VALUES ($1, $2, $3, $4, $5, $6)`,
			q.ID, q.QuizID, q.Prompt, q.RawChoices, q.Correct, q.Position); err != nil {
			return fmt.Errorf("create quiz question: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create quiz: %w", err)
	}
	commit = true
	return nil
}

// Questions returns the ordered questions of a quiz with choices decoded.
func (r *QuizRepository) Questions(ctx context.Context, quizID string) ([]models.QuizQuestion, error) {
	query := `SELECT id, quiz_id, prompt, choices, correct, position
FROM quiz_questions WHERE quiz_id = $1 ORDER BY position`
	var rows []models.QuizQuestion
	if err := r.db.SelectContext(ctx, &rows, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	for i := range rows {
		if err := json.Unmarshal([]byte(rows[i].RawChoices), &rows[i].Choices); err != nil {
			return nil, fmt.Errorf("decode choices: %w", err)
		}
	}
	return rows, nil
}

// CreateSubmission inserts a graded submission. A second submission for the
// same quiz and student hits the unique constraint and inserts nothing; the
// caller detects that through the returned inserted flag.
func (r *QuizRepository) CreateSubmission(ctx context.Context, sub *models.QuizSubmission) (bool, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	raw, err := json.Marshal(sub.Answers)
	if err != nil {
		return false, fmt.Errorf("encode answers: %w", err)
	}
	sub.RawAnswers = string(raw)
	sub.SubmittedAt = time.Now().UTC()
	query := `INSERT INTO quiz_submissions (id, quiz_id, student_id, answers, score, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (quiz_id, student_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.QuizID, sub.StudentID, sub.RawAnswers, sub.Score, sub.SubmittedAt)
	if err != nil {
		return false, fmt.Errorf("create quiz submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create quiz submission: %w", err)
	}
	return affected > 0, nil
}

// FindSubmission returns one student's submission for a quiz.
func (r *QuizRepository) FindSubmission(ctx context.Context, quizID, studentID string) (*models.QuizSubmission, error) {
	var sub models.QuizSubmission
	query := `SELECT id, quiz_id, student_id, answers, score, submitted_at
FROM quiz_submissions WHERE quiz_id = $1 AND student_id = $2`
	if err := r.db.GetContext(ctx, &sub, query, quizID, studentID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sub.RawAnswers), &sub.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return &sub, nil
}

// Results returns all submissions for a quiz with student names.
func (r *QuizRepository) Results(ctx context.Context, quizID string) ([]models.QuizResultRow, error) {
	query := `SELECT s.student_id, u.full_name AS student_name, s.score, s.submitted_at
FROM quiz_submissions s
JOIN users u ON u.id = s.student_id
WHERE s.quiz_id = $1
ORDER BY s.score DESC, s.submitted_at`
	var rows []models.QuizResultRow
	if err := r.db.SelectContext(ctx, &rows, query, quizID); err != nil {
		return nil, fmt.Errorf("list quiz results: %w", err)
	}
	return rows, nil
}
