package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	SubmitReference(ctx context.Context, id, reference string, ts time.Time) error
	Verify(ctx context.Context, id, verifierID string, approved bool, failReason *string, ts time.Time) error
}

type paymentEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// CreatePaymentRequest opens a pending payment against an enrollment.
type CreatePaymentRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required,uuid"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
}

// SubmitReferenceRequest carries the manually entered bank transaction
// reference. No gateway is called; verification is a human step.
type SubmitReferenceRequest struct {
	Reference string `json:"reference" validate:"required,min=4,max=64"`
}

// VerifyPaymentRequest is reception's decision on a processing payment.
type VerifyPaymentRequest struct {
	Approved   bool    `json:"approved"`
	FailReason *string `json:"fail_reason" validate:"omitempty,max=500"`
}

// PaymentService tracks manual payment confirmation.
type PaymentService struct {
	repo        paymentRepository
	enrollments paymentEnrollmentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService creates an instance of PaymentService.
func NewPaymentService(repo paymentRepository, enrollments paymentEnrollmentRepository, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaymentService{repo: repo, enrollments: enrollments, validator: validate, logger: logger}
}

// List returns payments with student and course context.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return rows, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// Create opens a pending payment for an active enrollment.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create payment payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}

	payment := &models.Payment{
		ID:           uuid.NewString(),
		EnrollmentID: req.EnrollmentID,
		Amount:       req.Amount,
		Status:       models.PaymentStatusPending,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	return payment, nil
}

// SubmitReference moves a pending or failed payment to processing. The
// guarded update loses when the payment is in neither state. Only the
// student who owns the payment's enrollment may submit its reference.
func (s *PaymentService) SubmitReference(ctx context.Context, id, studentID string, req SubmitReferenceRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reference payload")
	}
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.enrollments.FindByID(ctx, payment.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another student")
	}

	if err := s.repo.SubmitReference(ctx, id, req.Reference, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidPaymentState, "payment is not awaiting a reference")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit payment reference")
	}
	s.logger.Info("payment reference submitted", zap.String("payment_id", id))
	return s.Get(ctx, id)
}

// Verify settles a processing payment as completed or failed. A rejection
// requires a fail reason.
func (s *PaymentService) Verify(ctx context.Context, id string, req VerifyPaymentRequest, verifierID string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verify payload")
	}
	if !req.Approved && (req.FailReason == nil || *req.FailReason == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fail_reason is required when rejecting a payment")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if err := s.repo.Verify(ctx, id, verifierID, req.Approved, req.FailReason, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidPaymentState, "payment is not awaiting verification")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify payment")
	}
	s.logger.Info("payment verified",
		zap.String("payment_id", id),
		zap.Bool("approved", req.Approved),
		zap.String("verified_by", verifierID))
	return s.Get(ctx, id)
}
