package models

import "time"

// SessionStatus represents the lifecycle state of a class session.
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// CanTransitionTo encodes the legal lifecycle edges:
// scheduled -> in_progress -> completed, with cancelled reachable from
// either non-terminal state. Everything else is rejected.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusScheduled:
		return next == SessionStatusInProgress || next == SessionStatusCancelled
	case SessionStatusInProgress:
		return next == SessionStatusCompleted || next == SessionStatusCancelled
	default:
		return false
	}
}

// AttendanceOpen reports whether attendance may still be recorded.
func (s SessionStatus) AttendanceOpen() bool {
	return s == SessionStatusScheduled || s == SessionStatusInProgress
}

// Session is one scheduled class meeting belonging to a group.
type Session struct {
	ID           string        `db:"id" json:"id"`
	GroupID      string        `db:"group_id" json:"group_id"`
	TrainerID    string        `db:"trainer_id" json:"trainer_id"`
	Topic        string        `db:"topic" json:"topic"`
	Status       SessionStatus `db:"status" json:"status"`
	ScheduledAt  time.Time     `db:"scheduled_at" json:"scheduled_at"`
	DurationMins int           `db:"duration_minutes" json:"duration_minutes"`
	StartedAt    *time.Time    `db:"started_at" json:"started_at,omitempty"`
	EndedAt      *time.Time    `db:"ended_at" json:"ended_at,omitempty"`
	CancelReason *string       `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionDetail enriches Session with group metadata.
type SessionDetail struct {
	Session
	GroupName   string `db:"group_name" json:"group_name"`
	CourseID    string `db:"course_id" json:"course_id"`
	CourseName  string `db:"course_name" json:"course_name"`
	TrainerName string `db:"trainer_name" json:"trainer_name"`
}

// SessionFilter scopes session listing queries.
type SessionFilter struct {
	GroupID   string
	TrainerID string
	Statuses  []SessionStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
