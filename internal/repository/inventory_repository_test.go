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

func newInventoryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func partRows(quantity int, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "sku", "quantity", "min_stock", "unit_price", "created_at", "updated_at"}).
		AddRow("part-1", "Servo motor", "SRV-9G", quantity, 5, 3.5, now, now)
}

func TestInventoryRepositoryAdjustStock(t *testing.T) {
	db, mock, cleanup := newInventoryRepoMock(t)
	defer cleanup()
	repo := NewInventoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND quantity + $2 >= 0")).
		WithArgs("part-1", -3).
		WillReturnRows(partRows(7, time.Now()))

	part, err := repo.AdjustStock(context.Background(), "part-1", -3)
	require.NoError(t, err)
	require.Equal(t, 7, part.Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepositoryAdjustStockRejectsNegative(t *testing.T) {
	db, mock, cleanup := newInventoryRepoMock(t)
	defer cleanup()
	repo := NewInventoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND quantity + $2 >= 0")).
		WithArgs("part-1", -50).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.AdjustStock(context.Background(), "part-1", -50)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepositoryFulfillOrderDecrementsStock(t *testing.T) {
	db, mock, cleanup := newInventoryRepoMock(t)
	defer cleanup()
	repo := NewInventoryRepository(db)

	ts := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, part_id, quantity, status FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "part_id", "quantity", "status"}).
			AddRow("ord-1", "part-1", 3, models.OrderStatusApproved))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND quantity >= $2")).
		WithArgs("part-1", 3, ts).
		WillReturnRows(partRows(7, ts))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("ord-1", models.OrderStatusFulfilled, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	part, err := repo.FulfillOrder(context.Background(), "ord-1", ts)
	require.NoError(t, err)
	require.Equal(t, 7, part.Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepositoryFulfillOrderInsufficientStock(t *testing.T) {
	db, mock, cleanup := newInventoryRepoMock(t)
	defer cleanup()
	repo := NewInventoryRepository(db)

	ts := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, part_id, quantity, status FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "part_id", "quantity", "status"}).
			AddRow("ord-1", "part-1", 99, models.OrderStatusApproved))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND quantity >= $2")).
		WithArgs("part-1", 99, ts).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.FulfillOrder(context.Background(), "ord-1", ts)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepositoryFulfillOrderRequiresApproved(t *testing.T) {
	db, mock, cleanup := newInventoryRepoMock(t)
	defer cleanup()
	repo := NewInventoryRepository(db)

	ts := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, part_id, quantity, status FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "part_id", "quantity", "status"}).
			AddRow("ord-1", "part-1", 3, models.OrderStatusPending))
	mock.ExpectRollback()

	_, err := repo.FulfillOrder(context.Background(), "ord-1", ts)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepositoryDecideOrder(t *testing.T) {
	db, mock, cleanup := newInventoryRepoMock(t)
	defer cleanup()
	repo := NewInventoryRepository(db)

	ts := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $6")).
		WithArgs("ord-1", models.OrderStatusApproved, "clo-1", ts, nil, models.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DecideOrder(context.Background(), "ord-1", "clo-1", models.OrderStatusApproved, nil, ts)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
