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

// EnrollmentRepository handles persistence for enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollment details matching the provided filter.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN courses c ON c.id = e.course_id
LEFT JOIN groups g ON g.id = e.group_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("e.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := sortColumnOrDefault(filter.SortBy, map[string]string{
		"joined_at":  "e.joined_at",
		"status":     "e.status",
		"created_at": "e.created_at",
	}, "created_at")
	order := sortOrderOrDefault(filter.SortOrder)
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.group_id, e.status, e.joined_at, e.left_at, e.created_at, e.updated_at,
        u.full_name AS student_name, c.name AS course_name, g.name AS group_name, c.price AS course_price,
        COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.enrollment_id = e.id AND p.status = 'completed'), 0) AS paid_total
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, limit, offset)

	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return rows, total, nil
}

// FindByID returns a single enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT id, student_id, course_id, group_id, status, joined_at, left_at, created_at, updated_at
FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsActive reports whether the student already has a live enrollment
// in the course.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3)`
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now().UTC()
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.JoinedAt.IsZero() {
		enrollment.JoinedAt = now
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	query := `INSERT INTO enrollments (id, student_id, course_id, group_id, status, joined_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrollment.GroupID,
		enrollment.Status, enrollment.JoinedAt, enrollment.CreatedAt, enrollment.UpdatedAt); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus changes the enrollment lifecycle state.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE enrollments SET status = $2, left_at = $3, updated_at = NOW() WHERE id = $1", id, status, leftAt)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return requireRowsAffected(res, "enrollment")
}

// AssignGroup places the enrollment into a cohort.
func (r *EnrollmentRepository) AssignGroup(ctx context.Context, id, groupID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE enrollments SET group_id = $2, updated_at = NOW() WHERE id = $1", id, groupID)
	if err != nil {
		return fmt.Errorf("assign enrollment group: %w", err)
	}
	return requireRowsAffected(res, "enrollment")
}

// CountActiveStudents returns distinct students with a live enrollment.
func (r *EnrollmentRepository) CountActiveStudents(ctx context.Context) (int, error) {
	var total int
	query := `SELECT COUNT(DISTINCT student_id) FROM enrollments WHERE status = $1`
	if err := r.db.GetContext(ctx, &total, query, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return total, nil
}
