package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newStatsRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

// The attendance rate must be the mean of per-student rates, not a pooled
// row count: a student present in 1 session and one absent in 3 average to
// 50%, not 25%. The query therefore has to subaggregate per student
// (GROUP BY a.student_id) before AVG.
func TestStatsRepositoryGroupStatsPerStudentMean(t *testing.T) {
	db, mock, cleanup := newStatsRepoMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	rows := sqlmock.NewRows([]string{
		"group_id", "group_name", "total_sessions", "completed_sessions",
		"cancelled_sessions", "student_count", "avg_attendance_rate",
	}).AddRow("grp-1", "Robotics A", 4, 3, 1, 2, 50.0)

	mock.ExpectQuery(`SELECT AVG\(sr\.rate\) AS avg_rate[\s\S]*GROUP BY a\.student_id`).
		WithArgs("grp-1").
		WillReturnRows(rows)

	stats, err := repo.GroupStats(context.Background(), "grp-1")
	require.NoError(t, err)
	require.Equal(t, "grp-1", stats.GroupID)
	require.InDelta(t, 50.0, stats.AvgAttendanceRate, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryTrainerPerformancePerStudentMean(t *testing.T) {
	db, mock, cleanup := newStatsRepoMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	rows := sqlmock.NewRows([]string{
		"trainer_id", "trainer_name", "total_sessions", "completed_sessions",
		"cancelled_sessions", "avg_attendance_rate", "group_count",
	}).AddRow("trn-1", "Dana", 6, 5, 1, 75.0, 2)

	mock.ExpectQuery(`SELECT AVG\(sr\.rate\) AS avg_rate[\s\S]*GROUP BY a\.student_id[\s\S]*WHERE u\.id = \$1`).
		WithArgs("trn-1").
		WillReturnRows(rows)

	perf, err := repo.TrainerPerformance(context.Background(), "trn-1")
	require.NoError(t, err)
	require.Equal(t, "trn-1", perf.TrainerID)
	require.InDelta(t, 75.0, perf.AvgAttendanceRate, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}
