package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// Attended reports whether the status counts toward attendance rates.
// Late arrivals count as attended.
func (s AttendanceStatus) Attended() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusLate
}

// BulkOperationMode controls how batch writes behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)

// Attendance is one record per (session, student) pair.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	MarkedBy  string           `db:"marked_by" json:"marked_by"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the row with student and session metadata.
type AttendanceRecord struct {
	Attendance
	StudentName string        `db:"student_name" json:"student_name"`
	GroupID     string        `db:"group_id" json:"group_id"`
	Topic       string        `db:"topic" json:"topic"`
	ScheduledAt time.Time     `db:"scheduled_at" json:"scheduled_at"`
	SessionStat SessionStatus `db:"session_status" json:"session_status"`
}

// AttendanceFilter scopes listing queries.
type AttendanceFilter struct {
	SessionID string
	GroupID   string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AttendanceBulkConflict captures an entry that failed in a batch write.
type AttendanceBulkConflict struct {
	SessionID string `json:"session_id"`
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// AttendanceSummary summarises counts for one student.
type AttendanceSummary struct {
	Present int     `json:"present"`
	Late    int     `json:"late"`
	Absent  int     `json:"absent"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}
