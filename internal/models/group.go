package models

import "time"

// Group is a cohort of students enrolled together in a course.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CourseID  string    `db:"course_id" json:"course_id"`
	TrainerID string    `db:"trainer_id" json:"trainer_id"`
	Schedule  *string   `db:"schedule" json:"schedule,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GroupDetail enriches Group with course and trainer names.
type GroupDetail struct {
	Group
	CourseName   string `db:"course_name" json:"course_name"`
	TrainerName  string `db:"trainer_name" json:"trainer_name"`
	StudentCount int    `db:"student_count" json:"student_count"`
}

// GroupMember is one student on a group roster.
type GroupMember struct {
	GroupID     string    `db:"group_id" json:"group_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at"`
}

// GroupFilter scopes group listing queries.
type GroupFilter struct {
	CourseID  string
	TrainerID string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// GroupStats carries derived cohort statistics, computed at read time
// from attendance rows of non-cancelled sessions.
type GroupStats struct {
	GroupID           string  `db:"group_id" json:"group_id"`
	GroupName         string  `db:"group_name" json:"group_name"`
	TotalSessions     int     `db:"total_sessions" json:"total_sessions"`
	CompletedSessions int     `db:"completed_sessions" json:"completed_sessions"`
	CancelledSessions int     `db:"cancelled_sessions" json:"cancelled_sessions"`
	StudentCount      int     `db:"student_count" json:"student_count"`
	AvgAttendanceRate float64 `db:"avg_attendance_rate" json:"avg_attendance_rate"`
}
