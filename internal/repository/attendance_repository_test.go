package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/models"
)

var errForeignKey = errors.New(`pq: insert or update on table "attendance" violates foreign key constraint "attendance_student_id_fkey"`)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceReturningRows(rec models.Attendance, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "session_id", "student_id", "status", "notes", "marked_by", "created_at", "updated_at"}).
		AddRow(rec.ID, rec.SessionID, rec.StudentID, rec.Status, rec.Notes, rec.MarkedBy, now, now)
}

func TestAttendanceRepositoryUpsertOverwrites(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	record := models.Attendance{
		ID:        "att-1",
		SessionID: "ses-1",
		StudentID: "stu-1",
		Status:    models.AttendanceStatusLate,
		MarkedBy:  "trn-1",
	}

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (session_id, student_id)")).
		WithArgs(record.ID, record.SessionID, record.StudentID, record.Status, record.Notes, record.MarkedBy, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(attendanceReturningRows(record, now))

	stored, err := repo.Upsert(context.Background(), &record)
	require.NoError(t, err)
	require.Equal(t, models.AttendanceStatusLate, stored.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertAtomicAborts(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	records := []models.Attendance{
		{SessionID: "ses-1", StudentID: "stu-1", Status: models.AttendanceStatusPresent, MarkedBy: "trn-1"},
		{SessionID: "ses-1", StudentID: "stu-x", Status: models.AttendanceStatusAbsent, MarkedBy: "trn-1"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance")).
		WithArgs(sqlmock.AnyArg(), "ses-1", "stu-1", models.AttendanceStatusPresent, nil, "trn-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("att-1"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance")).
		WithArgs(sqlmock.AnyArg(), "ses-1", "stu-x", models.AttendanceStatusAbsent, nil, "trn-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errForeignKey)
	mock.ExpectRollback()

	conflicts, err := repo.BulkUpsert(context.Background(), records, true)
	require.Error(t, err)
	require.Nil(t, conflicts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertPartialCollectsConflicts(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	records := []models.Attendance{
		{SessionID: "ses-1", StudentID: "stu-1", Status: models.AttendanceStatusPresent, MarkedBy: "trn-1"},
		{SessionID: "ses-1", StudentID: "stu-x", Status: models.AttendanceStatusAbsent, MarkedBy: "trn-1"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance")).
		WithArgs(sqlmock.AnyArg(), "ses-1", "stu-1", models.AttendanceStatusPresent, nil, "trn-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("att-1"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance")).
		WithArgs(sqlmock.AnyArg(), "ses-1", "stu-x", models.AttendanceStatusAbsent, nil, "trn-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errForeignKey)
	mock.ExpectCommit()

	conflicts, err := repo.BulkUpsert(context.Background(), records, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "stu-x", conflicts[0].StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentSummary(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"status", "cnt"}).
		AddRow("present", 7).
		AddRow("late", 1).
		AddRow("absent", 2)
	mock.ExpectQuery(regexp.QuoteMeta("s.status <> 'cancelled'")).
		WithArgs("stu-1", "grp-1").
		WillReturnRows(rows)

	summary, err := repo.StudentSummary(context.Background(), "stu-1", "grp-1")
	require.NoError(t, err)
	require.Equal(t, 10, summary.Total)
	require.Equal(t, 7, summary.Present)
	require.Equal(t, 1, summary.Late)
	require.Equal(t, 2, summary.Absent)
	require.InDelta(t, 80.0, summary.Rate, 0.01)
	require.NoError(t, mock.ExpectationsWereMet())
}
