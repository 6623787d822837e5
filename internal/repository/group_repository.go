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

// GroupRepository handles persistence for groups and their rosters.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// List returns group details matching the provided filter.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.GroupDetail, int, error) {
	base := `FROM groups g
JOIN courses c ON c.id = g.course_id
JOIN users t ON t.id = g.trainer_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.CourseID != "" {
		where = append(where, fmt.Sprintf("g.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TrainerID != "" {
		where = append(where, fmt.Sprintf("g.trainer_id = $%d", len(args)+1))
		args = append(args, filter.TrainerID)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("g.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("g.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := sortColumnOrDefault(filter.SortBy, map[string]string{
		"name":       "g.name",
		"created_at": "g.created_at",
	}, "created_at")
	order := sortOrderOrDefault(filter.SortOrder)
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT g.id, g.name, g.course_id, g.trainer_id, g.schedule, g.active, g.created_at, g.updated_at,
        c.name AS course_name, t.full_name AS trainer_name,
        (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS student_count
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, limit, offset)

	var rows []models.GroupDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}
	return rows, total, nil
}

// FindByID returns a single group.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	query := `SELECT id, name, course_id, trainer_id, schedule, active, created_at, updated_at FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	now := time.Now().UTC()
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.CreatedAt = now
	group.UpdatedAt = now
	query := `INSERT INTO groups (id, name, course_id, trainer_id, schedule, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		group.ID, group.Name, group.CourseID, group.TrainerID, group.Schedule, group.Active, group.CreatedAt, group.UpdatedAt); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update persists mutable group fields.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	query := `UPDATE groups SET name = $2, course_id = $3, trainer_id = $4, schedule = $5, active = $6, updated_at = $7
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		group.ID, group.Name, group.CourseID, group.TrainerID, group.Schedule, group.Active, group.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return requireRowsAffected(res, "group")
}

// Members returns the roster for a group.
func (r *GroupRepository) Members(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	query := `SELECT gm.group_id, gm.student_id, u.full_name AS student_name, gm.joined_at
FROM group_members gm
JOIN users u ON u.id = gm.student_id
WHERE gm.group_id = $1
ORDER BY u.full_name`
	var rows []models.GroupMember
	if err := r.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return rows, nil
}

// AddMember adds a student to the roster. Re-adding is a no-op.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, studentID string) error {
	query := `INSERT INTO group_members (group_id, student_id, joined_at)
VALUES ($1, $2, $3)
ON CONFLICT (group_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// RemoveMember removes a student from the roster.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, studentID string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = $1 AND student_id = $2", groupID, studentID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return requireRowsAffected(res, "group member")
}

// IsMember reports whether the student is on the group roster.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, studentID string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND student_id = $2)"
	if err := r.db.GetContext(ctx, &exists, query, groupID, studentID); err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return exists, nil
}
