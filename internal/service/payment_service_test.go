package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type mockPaymentRepo struct {
	payments map[string]models.Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: map[string]models.Payment{}}
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	out := make([]models.PaymentDetail, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, models.PaymentDetail{Payment: p})
	}
	return out, len(out), nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := p
	return &copied, nil
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	m.payments[payment.ID] = *payment
	return nil
}

func (m *mockPaymentRepo) SubmitReference(ctx context.Context, id, reference string, ts time.Time) error {
	p, ok := m.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return sql.ErrNoRows
	}
	p.Status = models.PaymentStatusProcessing
	p.Reference = &reference
	p.SubmittedAt = &ts
	m.payments[id] = p
	return nil
}

func (m *mockPaymentRepo) Verify(ctx context.Context, id, verifierID string, approved bool, failReason *string, ts time.Time) error {
	p, ok := m.payments[id]
	if !ok || p.Status != models.PaymentStatusProcessing {
		return sql.ErrNoRows
	}
	if approved {
		p.Status = models.PaymentStatusCompleted
	} else {
		p.Status = models.PaymentStatusFailed
		p.FailReason = failReason
	}
	p.VerifiedBy = &verifierID
	p.VerifiedAt = &ts
	m.payments[id] = p
	return nil
}

type mockPaymentEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
}

func (m *mockPaymentEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := e
	return &copied, nil
}

func newPaymentService(repo *mockPaymentRepo, enr *mockPaymentEnrollmentRepo) *PaymentService {
	return NewPaymentService(repo, enr, nil, nil)
}

func TestPaymentServiceCreatePending(t *testing.T) {
	repo := newMockPaymentRepo()
	enr := &mockPaymentEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"11111111-1111-1111-1111-111111111111": {ID: "11111111-1111-1111-1111-111111111111", Status: models.EnrollmentStatusActive},
	}}
	svc := newPaymentService(repo, enr)

	payment, err := svc.Create(context.Background(), CreatePaymentRequest{
		EnrollmentID: "11111111-1111-1111-1111-111111111111",
		Amount:       450,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Nil(t, payment.Reference)
}

func TestPaymentServiceCreateRejectsInactiveEnrollment(t *testing.T) {
	repo := newMockPaymentRepo()
	enr := &mockPaymentEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"11111111-1111-1111-1111-111111111111": {ID: "11111111-1111-1111-1111-111111111111", Status: models.EnrollmentStatusDropped},
	}}
	svc := newPaymentService(repo, enr)

	_, err := svc.Create(context.Background(), CreatePaymentRequest{
		EnrollmentID: "11111111-1111-1111-1111-111111111111",
		Amount:       450,
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestPaymentServiceManualConfirmationFlow(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["pay-1"] = models.Payment{ID: "pay-1", EnrollmentID: "enr-1", Status: models.PaymentStatusPending, Amount: 450}
	enr := &mockPaymentEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusActive},
	}}
	svc := newPaymentService(repo, enr)

	payment, err := svc.SubmitReference(context.Background(), "pay-1", "stu-1", SubmitReferenceRequest{Reference: "TRX-2026-0042"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, payment.Status)
	require.NotNil(t, payment.Reference)
	assert.Equal(t, "TRX-2026-0042", *payment.Reference)

	payment, err = svc.Verify(context.Background(), "pay-1", VerifyPaymentRequest{Approved: true}, "reception-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.NotNil(t, payment.VerifiedBy)
	assert.Equal(t, "reception-1", *payment.VerifiedBy)
}

func TestPaymentServiceSubmitReferenceWrongState(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["pay-1"] = models.Payment{ID: "pay-1", EnrollmentID: "enr-1", Status: models.PaymentStatusCompleted}
	enr := &mockPaymentEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusActive},
	}}
	svc := newPaymentService(repo, enr)

	_, err := svc.SubmitReference(context.Background(), "pay-1", "stu-1", SubmitReferenceRequest{Reference: "TRX-2026-0042"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidPaymentState.Code, appErr.Code)
}

func TestPaymentServiceSubmitReferenceWrongStudent(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["pay-1"] = models.Payment{ID: "pay-1", EnrollmentID: "enr-1", Status: models.PaymentStatusPending}
	enr := &mockPaymentEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", Status: models.EnrollmentStatusActive},
	}}
	svc := newPaymentService(repo, enr)

	_, err := svc.SubmitReference(context.Background(), "pay-1", "stu-2", SubmitReferenceRequest{Reference: "TRX-2026-0042"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	stored, findErr := repo.FindByID(context.Background(), "pay-1")
	require.NoError(t, findErr)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
}

func TestPaymentServiceRejectRequiresReason(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["pay-1"] = models.Payment{ID: "pay-1", Status: models.PaymentStatusProcessing}
	svc := newPaymentService(repo, &mockPaymentEnrollmentRepo{})

	_, err := svc.Verify(context.Background(), "pay-1", VerifyPaymentRequest{Approved: false}, "reception-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	reason := "reference not found in bank statement"
	payment, err := svc.Verify(context.Background(), "pay-1", VerifyPaymentRequest{Approved: false, FailReason: &reason}, "reception-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	require.NotNil(t, payment.FailReason)
	assert.Equal(t, reason, *payment.FailReason)
}

func TestPaymentServiceVerifyNotProcessing(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["pay-1"] = models.Payment{ID: "pay-1", Status: models.PaymentStatusPending}
	svc := newPaymentService(repo, &mockPaymentEnrollmentRepo{})

	_, err := svc.Verify(context.Background(), "pay-1", VerifyPaymentRequest{Approved: true}, "reception-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidPaymentState.Code, appErr.Code)
}
