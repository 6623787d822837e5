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

// CourseRepository handles persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = "id, name, description, price, duration_weeks, active, created_at, updated_at"

// List returns courses matching the provided filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := sortColumnOrDefault(filter.SortBy, map[string]string{
		"name":       "name",
		"price":      "price",
		"created_at": "created_at",
	}, "created_at")
	order := sortOrderOrDefault(filter.SortOrder)
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM courses WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		courseColumns, whereClause, sortColumn, order, limit, offset)

	var rows []models.Course
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM courses WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return rows, total, nil
}

// FindByID returns a single course.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.db.GetContext(ctx, &course, fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns), id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	course.CreatedAt = now
	course.UpdatedAt = now
	query := `INSERT INTO courses (id, name, description, price, duration_weeks, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		course.ID, course.Name, course.Description, course.Price, course.DurationWks, course.Active, course.CreatedAt, course.UpdatedAt); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	query := `UPDATE courses SET name = $2, description = $3, price = $4, duration_weeks = $5, active = $6, updated_at = $7
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		course.ID, course.Name, course.Description, course.Price, course.DurationWks, course.Active, course.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return requireRowsAffected(res, "course")
}

// Deactivate retires a course without deleting enrollment history.
func (r *CourseRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE courses SET active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deactivate course: %w", err)
	}
	return requireRowsAffected(res, "course")
}
