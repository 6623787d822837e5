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

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance rows matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := `FROM attendance a
JOIN sessions s ON s.id = a.session_id
JOIN users u ON u.id = a.student_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SessionID != "" {
		where = append(where, fmt.Sprintf("a.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("s.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
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
		"status":       "a.status",
		"created_at":   "a.created_at",
	}, "scheduled_at")
	order := sortOrderOrDefault(filter.SortOrder)
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT a.id, a.session_id, a.student_id, a.status, a.notes, a.marked_by, a.created_at, a.updated_at,
        u.full_name AS student_name, s.group_id, s.topic, s.scheduled_at, s.status AS session_status
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, limit, offset)

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// Upsert inserts or updates one attendance record. The unique constraint
// on (session_id, student_id) makes re-submission overwrite, never duplicate.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance (id, session_id, student_id, status, notes, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id, student_id)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
RETURNING id, session_id, student_id, status, notes, marked_by, created_at, updated_at`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.SessionID, record.StudentID, record.Status, record.Notes, record.MarkedBy, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// BulkUpsert writes a batch of records in one transaction. In atomic mode
// any per-row failure aborts the batch; in partial mode failing rows are
// returned as conflicts and the rest commit.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.AttendanceBulkConflict, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk attendance: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	query := `INSERT INTO attendance (id, session_id, student_id, status, notes, marked_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id, student_id)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
RETURNING id`
	now := time.Now().UTC()
	conflicts := make([]models.AttendanceBulkConflict, 0)
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		var storedID string
		err := tx.QueryRowxContext(ctx, query,
			rec.ID, rec.SessionID, rec.StudentID, rec.Status, rec.Notes, rec.MarkedBy, rec.CreatedAt, rec.UpdatedAt).Scan(&storedID)
		if err != nil {
			if atomic {
				return nil, fmt.Errorf("bulk attendance for student %s: %w", rec.StudentID, err)
			}
			conflicts = append(conflicts, models.AttendanceBulkConflict{
				SessionID: rec.SessionID,
				StudentID: rec.StudentID,
				Reason:    err.Error(),
			})
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk attendance: %w", err)
	}
	commit = true
	return conflicts, nil
}

// SessionSheet returns the attendance sheet for one session.
func (r *AttendanceRepository) SessionSheet(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	query := `SELECT a.id, a.session_id, a.student_id, a.status, a.notes, a.marked_by, a.created_at, a.updated_at,
u.full_name AS student_name, s.group_id, s.topic, s.scheduled_at, s.status AS session_status
FROM attendance a
JOIN sessions s ON s.id = a.session_id
JOIN users u ON u.id = a.student_id
WHERE a.session_id = $1
ORDER BY u.full_name`
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("session attendance sheet: %w", err)
	}
	return rows, nil
}

// StudentSummary aggregates counts for a student across non-cancelled sessions.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID, groupID string) (*models.AttendanceSummary, error) {
	query := `SELECT a.status, COUNT(*) AS cnt
FROM attendance a
JOIN sessions s ON s.id = a.session_id
WHERE a.student_id = $1 AND ($2 = '' OR s.group_id = $2) AND s.status <> 'cancelled'
GROUP BY a.status`
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"cnt"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, studentID, groupID); err != nil {
		return nil, fmt.Errorf("student attendance summary: %w", err)
	}
	summary := &models.AttendanceSummary{}
	for _, row := range rows {
		switch models.AttendanceStatus(row.Status) {
		case models.AttendanceStatusPresent:
			summary.Present += row.Count
		case models.AttendanceStatusLate:
			summary.Late += row.Count
		case models.AttendanceStatusAbsent:
			summary.Absent += row.Count
		}
		summary.Total += row.Count
	}
	if summary.Total > 0 {
		summary.Rate = float64(summary.Present+summary.Late) / float64(summary.Total) * 100
	}
	return summary, nil
}
