package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSessionRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "group_id", "trainer_id", "topic", "status", "scheduled_at", "duration_minutes",
		"started_at", "ended_at", "cancel_reason", "created_at", "updated_at",
	}).AddRow("ses-1", "grp-1", "trn-1", "Soldering basics", models.SessionStatusScheduled, now, 90, nil, nil, nil, now, now)

	mock.ExpectQuery("SELECT id, group_id, trainer_id, topic, status, scheduled_at").
		WithArgs("ses-1").
		WillReturnRows(rows)

	session, err := repo.FindByID(context.Background(), "ses-1")
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusScheduled, session.Status)
	require.Equal(t, "grp-1", session.GroupID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateStatusStart(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	ts := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET status = $3, updated_at = $4, started_at = $5 WHERE id = $1 AND status = $2")).
		WithArgs("ses-1", models.SessionStatusScheduled, models.SessionStatusInProgress, ts, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "ses-1", models.SessionStatusScheduled, models.SessionStatusInProgress, ts, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateStatusCancelled(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	ts := time.Now()
	reason := "trainer unavailable"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET status = $3, updated_at = $4, cancel_reason = $5 WHERE id = $1 AND status = $2")).
		WithArgs("ses-1", models.SessionStatusInProgress, models.SessionStatusCancelled, ts, &reason).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "ses-1", models.SessionStatusInProgress, models.SessionStatusCancelled, ts, &reason)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateStatusRace(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	// A concurrent transition already moved the row off the expected status.
	ts := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET status = $3, updated_at = $4, ended_at = $5 WHERE id = $1 AND status = $2")).
		WithArgs("ses-1", models.SessionStatusInProgress, models.SessionStatusCompleted, ts, ts).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "ses-1", models.SessionStatusInProgress, models.SessionStatusCompleted, ts, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	session := &models.Session{
		GroupID:      "grp-1",
		TrainerID:    "trn-1",
		Topic:        "Intro to robotics",
		Status:       models.SessionStatusScheduled,
		ScheduledAt:  time.Now().Add(24 * time.Hour),
		DurationMins: 120,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions (id, group_id, trainer_id, topic, status, scheduled_at, duration_minutes, created_at, updated_at)")).
		WithArgs(sqlmock.AnyArg(), session.GroupID, session.TrainerID, session.Topic, session.Status,
			session.ScheduledAt, session.DurationMins, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), session))
	require.NotEmpty(t, session.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCountToday(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sessions WHERE scheduled_at >= $1 AND scheduled_at < $2 AND status <> 'cancelled'")).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	total, err := repo.CountToday(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
