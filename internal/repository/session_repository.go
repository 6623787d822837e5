package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/skillforge/skillforge-api/internal/models"
)

// SessionRepository handles persistence for class sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `s.id, s.group_id, s.trainer_id, s.topic, s.status, s.scheduled_at, s.duration_minutes,
s.started_at, s.ended_at, s.cancel_reason, s.created_at, s.updated_at`

// List returns session details matching the provided filter.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	base := `FROM sessions s
JOIN groups g ON g.id = s.group_id
JOIN courses c ON c.id = g.course_id
JOIN users t ON t.id = s.trainer_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("s.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.TrainerID != "" {
		where = append(where, fmt.Sprintf("s.trainer_id = $%d", len(args)+1))
		args = append(args, filter.TrainerID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, fmt.Sprintf("s.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("s.scheduled_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("s.scheduled_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := sortColumnOrDefault(filter.SortBy, map[string]string{
		"scheduled_at": "s.scheduled_at",
		"status":       "s.status",
		"created_at":   "s.created_at",
	}, "scheduled_at")
	order := sortOrderOrDefault(filter.SortOrder)
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s,
        g.name AS group_name, g.course_id, c.name AS course_name, t.full_name AS trainer_name
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, sessionColumns, base, whereClause, sortColumn, order, limit, offset)

	var rows []models.SessionDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return rows, total, nil
}

// FindByID returns a single session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT id, group_id, trainer_id, topic, status, scheduled_at, duration_minutes,
started_at, ended_at, cancel_reason, created_at, updated_at
FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// Create inserts a new scheduled session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	query := `INSERT INTO sessions (id, group_id, trainer_id, topic, status, scheduled_at, duration_minutes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		session.ID, session.GroupID, session.TrainerID, session.Topic, session.Status,
		session.ScheduledAt, session.DurationMins, session.CreatedAt, session.UpdatedAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update persists mutable scheduling fields. Status is changed only
// through UpdateStatus.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	query := `UPDATE sessions SET topic = $2, scheduled_at = $3, duration_minutes = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		session.ID, session.Topic, session.ScheduledAt, session.DurationMins, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRowsAffected(res, "session")
}

// UpdateStatus transitions a session from an expected status to the next
// one. The WHERE clause on the current status makes concurrent transition
// attempts race-safe: the loser sees sql.ErrNoRows.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, ts time.Time, cancelReason *string) error {
	set := []string{"status = $3", "updated_at = $4"}
	args := []interface{}{id, from, to, ts}
	switch to {
	case models.SessionStatusInProgress:
		set = append(set, fmt.Sprintf("started_at = $%d", len(args)+1))
		args = append(args, ts)
	case models.SessionStatusCompleted:
		set = append(set, fmt.Sprintf("ended_at = $%d", len(args)+1))
		args = append(args, ts)
	case models.SessionStatusCancelled:
		set = append(set, fmt.Sprintf("cancel_reason = $%d", len(args)+1))
		args = append(args, cancelReason)
	}
	query := fmt.Sprintf("UPDATE sessions SET %s WHERE id = $1 AND status = $2", strings.Join(set, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRowsAffected(res, "session")
}

// CountToday returns sessions scheduled within the given day.
func (r *SessionRepository) CountToday(ctx context.Context, dayStart, dayEnd time.Time) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM sessions WHERE scheduled_at >= $1 AND scheduled_at < $2 AND status <> 'cancelled'`
	if err := r.db.GetContext(ctx, &total, query, dayStart, dayEnd); err != nil {
		return 0, fmt.Errorf("count sessions today: %w", err)
	}
	return total, nil
}
