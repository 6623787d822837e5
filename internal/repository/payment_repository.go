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

// PaymentRepository handles persistence for payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `p.id, p.enrollment_id, p.amount, p.status, p.reference, p.submitted_at,
p.verified_by, p.verified_at, p.fail_reason, p.created_at, p.updated_at`

// List returns payment details matching the provided filter.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments p
JOIN enrollments e ON e.id = p.enrollment_id
JOIN users u ON u.id = e.student_id
JOIN courses c ON c.id = e.course_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EnrollmentID != "" {
		where = append(where, fmt.Sprintf("p.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	sortColumn := sortColumnOrDefault(filter.SortBy, map[string]string{
		"amount":     "p.amount",
		"status":     "p.status",
		"created_at": "p.created_at",
	}, "created_at")
	order := sortOrderOrDefault(filter.SortOrder)
	limit, offset := pageToLimitOffset(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s,
        e.student_id, u.full_name AS student_name, c.name AS course_name
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, paymentColumns, base, whereClause, sortColumn, order, limit, offset)

	var rows []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return rows, total, nil
}

// FindByID returns a single payment.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT id, enrollment_id, amount, status, reference, submitted_at, verified_by, verified_at, fail_reason, created_at, updated_at
FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create inserts a pending payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	now := time.Now().UTC()
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now
	query := `INSERT INTO payments (id, enrollment_id, amount, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.EnrollmentID, payment.Amount, payment.Status, payment.CreatedAt, payment.UpdatedAt); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// SubmitReference records the payer's transaction reference and moves the
// payment to processing. Legal only from pending or failed; the WHERE
// clause enforces it.
func (r *PaymentRepository) SubmitReference(ctx context.Context, id, reference string, ts time.Time) error {
	query := `UPDATE payments SET status = $2, reference = $3, submitted_at = $4, fail_reason = NULL, updated_at = $4
WHERE id = $1 AND status IN ($5, $6)`
	res, err := r.db.ExecContext(ctx, query,
		id, models.PaymentStatusProcessing, reference, ts, models.PaymentStatusPending, models.PaymentStatusFailed)
	if err != nil {
		return fmt.Errorf("submit payment reference: %w", err)
	}
	return requireRowsAffected(res, "payment")
}

// Verify finalises a processing payment as completed or failed.
func (r *PaymentRepository) Verify(ctx context.Context, id, verifierID string, approved bool, failReason *string, ts time.Time) error {
	status := models.PaymentStatusCompleted
	if !approved {
		status = models.PaymentStatusFailed
	}
	query := `UPDATE payments SET status = $2, verified_by = $3, verified_at = $4, fail_reason = $5, updated_at = $4
WHERE id = $1 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, status, verifierID, ts, failReason, models.PaymentStatusProcessing)
	if err != nil {
		return fmt.Errorf("verify payment: %w", err)
	}
	return requireRowsAffected(res, "payment")
}

// CountByStatus returns the number of payments in the given status.
func (r *PaymentRepository) CountByStatus(ctx context.Context, status models.PaymentStatus) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payments WHERE status = $1", status); err != nil {
		return 0, fmt.Errorf("count payments by status: %w", err)
	}
	return total, nil
}
