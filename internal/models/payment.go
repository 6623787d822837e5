package models

import "time"

// PaymentStatus represents the lifecycle of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Valid returns true when the status is a supported value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// Payment tracks a student's financial standing against an enrollment.
// Confirmation is a manual trust-based step: the payer submits a bank
// transaction reference and reception verifies it. No gateway is called.
type Payment struct {
	ID           string        `db:"id" json:"id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	Amount       float64       `db:"amount" json:"amount"`
	Status       PaymentStatus `db:"status" json:"status"`
	Reference    *string       `db:"reference" json:"reference,omitempty"`
	SubmittedAt  *time.Time    `db:"submitted_at" json:"submitted_at,omitempty"`
	VerifiedBy   *string       `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt   *time.Time    `db:"verified_at" json:"verified_at,omitempty"`
	FailReason   *string       `db:"fail_reason" json:"fail_reason,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches Payment with enrollment info.
type PaymentDetail struct {
	Payment
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// PaymentFilter scopes payment listing queries.
type PaymentFilter struct {
	EnrollmentID string
	StudentID    string
	Status       *PaymentStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
