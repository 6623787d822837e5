package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/skillforge/skillforge-api/internal/models"
)

// StatsRepository computes aggregations at read time. Nothing here is
// materialised; every figure is derived from the base tables so that an
// attendance correction is reflected on the next read.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GroupStats aggregates session counts and the average attendance rate for
// one group. The rate is the mean of per-student rates (attended/marked over
// non-cancelled sessions), not a pooled row count, so a student with many
// marked rows does not outweigh one with few. Cancelled sessions count in
// cancelled_sessions but are excluded from the rate.
func (r *StatsRepository) GroupStats(ctx context.Context, groupID string) (*models.GroupStats, error) {
	query := `SELECT
        g.id AS group_id,
        g.name AS group_name,
        COUNT(DISTINCT s.id) AS total_sessions,
        COUNT(DISTINCT s.id) FILTER (WHERE s.status = 'completed') AS completed_sessions,
        COUNT(DISTINCT s.id) FILTER (WHERE s.status = 'cancelled') AS cancelled_sessions,
        (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS student_count,
        COALESCE(ar.avg_rate, 0) AS avg_attendance_rate
FROM groups g
LEFT JOIN sessions s ON s.group_id = g.id
LEFT JOIN LATERAL (
        SELECT AVG(sr.rate) AS avg_rate
        FROM (
                SELECT COUNT(*) FILTER (WHERE a.status IN ('present', 'late')) * 100.0 / COUNT(*) AS rate
                FROM attendance a
                JOIN sessions ss ON ss.id = a.session_id
                WHERE ss.group_id = g.id AND ss.status <> 'cancelled'
                GROUP BY a.student_id
        ) sr
) ar ON TRUE
WHERE g.id = $1
GROUP BY g.id, g.name, ar.avg_rate`
	var stats models.GroupStats
	if err := r.db.GetContext(ctx, &stats, query, groupID); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AllGroupStats returns the aggregation for every active group.
func (r *StatsRepository) AllGroupStats(ctx context.Context) ([]models.GroupStats, error) {
	query := `SELECT
        g.id AS group_id,
        g.name AS group_name,
        COUNT(DISTINCT s.id) AS total_sessions,
        COUNT(DISTINCT s.id) FILTER (WHERE s.status = 'completed') AS completed_sessions,
        COUNT(DISTINCT s.id) FILTER (WHERE s.status = 'cancelled') AS cancelled_sessions,
        (SELECT COUNT(*) FROM group_members gm WHERE gm.group_id = g.id) AS student_count,
        COALESCE(ar.avg_rate, 0) AS avg_attendance_rate
FROM groups g
LEFT JOIN sessions s ON s.group_id = g.id
LEFT JOIN LATERAL (
        SELECT AVG(sr.rate) AS avg_rate
        FROM (
                SELECT COUNT(*) FILTER (WHERE a.status IN ('present', 'late')) * 100.0 / COUNT(*) AS rate
                FROM attendance a
                JOIN sessions ss ON ss.id = a.session_id
                WHERE ss.group_id = g.id AND ss.status <> 'cancelled'
                GROUP BY a.student_id
        ) sr
) ar ON TRUE
WHERE g.active = TRUE
GROUP BY g.id, g.name, ar.avg_rate
ORDER BY g.name`
	var rows []models.GroupStats
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("group stats: %w", err)
	}
	return rows, nil
}

// TrainerPerformance aggregates one trainer's sessions, cancellation count
// and average attendance rate across their non-cancelled sessions. The rate
// is the mean of per-student rates, matching GroupStats.
func (r *StatsRepository) TrainerPerformance(ctx context.Context, trainerID string) (*models.TrainerPerformance, error) {
	query := trainerPerformanceQuery + " WHERE u.id = $1 GROUP BY u.id, u.full_name, ar.avg_rate"
	var perf models.TrainerPerformance
	if err := r.db.GetContext(ctx, &perf, query, trainerID); err != nil {
		return nil, err
	}
	return &perf, nil
}

const trainerPerformanceQuery = `SELECT
        u.id AS trainer_id,
        u.full_name AS trainer_name,
        COUNT(DISTINCT s.id) AS total_sessions,
        COUNT(DISTINCT s.id) FILTER (WHERE s.status = 'completed') AS completed_sessions,
        COUNT(DISTINCT s.id) FILTER (WHERE s.status = 'cancelled') AS cancelled_sessions,
        COALESCE(ar.avg_rate, 0) AS avg_attendance_rate,
        COUNT(DISTINCT s.group_id) AS group_count
FROM users u
LEFT JOIN sessions s ON s.trainer_id = u.id
LEFT JOIN LATERAL (
        SELECT AVG(sr.rate) AS avg_rate
        FROM (
                SELECT COUNT(*) FILTER (WHERE a.status IN ('present', 'late')) * 100.0 / COUNT(*) AS rate
                FROM attendance a
                JOIN sessions ss ON ss.id = a.session_id
                WHERE ss.trainer_id = u.id AND ss.status <> 'cancelled'
                GROUP BY a.student_id
        ) sr
) ar ON TRUE`

// TopTrainers ranks trainers by average attendance rate.
func (r *StatsRepository) TopTrainers(ctx context.Context, limit int) ([]models.TrainerPerformance, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`%s
WHERE u.role = 'TRAINER' AND u.active = TRUE
GROUP BY u.id, u.full_name, ar.avg_rate
ORDER BY avg_attendance_rate DESC, total_sessions DESC
LIMIT %d`, trainerPerformanceQuery, limit)
	var rows []models.TrainerPerformance
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("top trainers: %w", err)
	}
	return rows, nil
}

// CourseRollups summarises enrollments, groups and confirmed revenue per course.
func (r *StatsRepository) CourseRollups(ctx context.Context) ([]models.CourseRollup, error) {
	query := `SELECT
        c.id AS course_id,
        c.name AS course_name,
        COUNT(DISTINCT e.id) AS enrollments,
        COUNT(DISTINCT g.id) AS group_count,
        COALESCE((
                SELECT SUM(p.amount)
                FROM payments p
                JOIN enrollments pe ON pe.id = p.enrollment_id
                WHERE pe.course_id = c.id AND p.status = 'completed'
        ), 0) AS paid_total
FROM courses c
LEFT JOIN enrollments e ON e.course_id = c.id AND e.status <> 'dropped'
LEFT JOIN groups g ON g.course_id = c.id
WHERE c.active = TRUE
GROUP BY c.id, c.name
ORDER BY c.name`
	var rows []models.CourseRollup
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("course rollups: %w", err)
	}
	return rows, nil
}

// CountActiveGroups returns the number of active groups.
func (r *StatsRepository) CountActiveGroups(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM groups WHERE active = TRUE"); err != nil {
		return 0, fmt.Errorf("count active groups: %w", err)
	}
	return count, nil
}

// CountPendingPayments returns payments awaiting reference or verification.
func (r *StatsRepository) CountPendingPayments(ctx context.Context) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM payments WHERE status IN ('pending', 'processing')"
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count pending payments: %w", err)
	}
	return count, nil
}

// CountSessionsOn returns the number of non-cancelled sessions scheduled on
// the given day.
func (r *StatsRepository) CountSessionsOn(ctx context.Context, day time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sessions
WHERE scheduled_at >= $1 AND scheduled_at < $2 AND status <> 'cancelled'`
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	if err := r.db.GetContext(ctx, &count, query, start, start.AddDate(0, 0, 1)); err != nil {
		return 0, fmt.Errorf("count sessions on day: %w", err)
	}
	return count, nil
}
