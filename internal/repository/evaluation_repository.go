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

// EvaluationRepository handles persistence for session evaluations.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs the repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Upsert inserts or updates one evaluation per (session, student, criterion).
func (r *EvaluationRepository) Upsert(ctx context.Context, eval *models.Evaluation) (*models.Evaluation, error) {
	now := time.Now().UTC()
	if eval.ID == "" {
		eval.ID = uuid.NewString()
	}
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = now
	}
	eval.UpdatedAt = now
	query := `INSERT INTO evaluations (id, session_id, student_id, criterion, score, comments, rated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (session_id, student_id, criterion)
DO UPDATE SET score = EXCLUDED.score, comments = EXCLUDED.comments, rated_by = EXCLUDED.rated_by, updated_at = EXCLUDED.updated_at
RETURNING id, session_id, student_id, criterion, score, comments, rated_by, created_at, updated_at`
	var stored models.Evaluation
	if err := r.db.GetContext(ctx, &stored, query,
		eval.ID, eval.SessionID, eval.StudentID, eval.Criterion, eval.Score, eval.Comments, eval.RatedBy, eval.CreatedAt, eval.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert evaluation: %w", err)
	}
	return &stored, nil
}

// List returns evaluations matching the provided filter.
func (r *EvaluationRepository) List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, int, error) {
	base := `FROM evaluations e
JOIN users u ON u.id = e.student_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SessionID != "" {
		where = append(where, fmt.Sprintf("e.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Criterion != "" {
		where = append(where, fmt.Sprintf("e.criterion = $%d", len(args)+1))
		args = append(args, filter.Criterion)
	}
	whereClause := strings.Join(where, " AND ")
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT e.id, e.session_id, e.student_id, e.criterion, e.score, e.comments, e.rated_by, e.created_at, e.updated_at,
        u.full_name AS student_name
        %s WHERE %s
        ORDER BY e.created_at DESC
        LIMIT %d OFFSET %d`, base, whereClause, limit, offset)

	var rows []models.EvaluationRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list evaluations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count evaluations: %w", err)
	}
	return rows, total, nil
}

// StudentAverage returns the mean score for a student within a group.
func (r *EvaluationRepository) StudentAverage(ctx context.Context, studentID, groupID string) (float64, error) {
	query := `SELECT COALESCE(AVG(e.score), 0)
FROM evaluations e
JOIN sessions s ON s.id = e.session_id
WHERE e.student_id = $1 AND ($2 = '' OR s.group_id = $2) AND s.status <> 'cancelled'`
	var avg float64
	if err := r.db.GetContext(ctx, &avg, query, studentID, groupID); err != nil {
		return 0, fmt.Errorf("student evaluation average: %w", err)
	}
	return avg, nil
}
