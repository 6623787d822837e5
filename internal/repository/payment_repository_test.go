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

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositorySubmitReference(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	ts := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status IN ($5, $6)")).
		WithArgs("pay-1", models.PaymentStatusProcessing, "TRX-20260301-0042", ts,
			models.PaymentStatusPending, models.PaymentStatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SubmitReference(context.Background(), "pay-1", "TRX-20260301-0042", ts)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySubmitReferenceWrongState(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	// Payment already completed; the guarded UPDATE touches nothing.
	ts := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status IN ($5, $6)")).
		WithArgs("pay-1", models.PaymentStatusProcessing, "TRX-1", ts,
			models.PaymentStatusPending, models.PaymentStatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SubmitReference(context.Background(), "pay-1", "TRX-1", ts)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryVerifyApproved(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	ts := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $6")).
		WithArgs("pay-1", models.PaymentStatusCompleted, "rec-1", ts, nil, models.PaymentStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Verify(context.Background(), "pay-1", "rec-1", true, nil, ts)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryVerifyRejected(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	ts := time.Now()
	reason := "reference not found in bank statement"
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $6")).
		WithArgs("pay-1", models.PaymentStatusFailed, "rec-1", ts, &reason, models.PaymentStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Verify(context.Background(), "pay-1", "rec-1", false, &reason, ts)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
