package models

import "time"

// StudentAttendanceStat is the per-student aggregation backing group stats.
type StudentAttendanceStat struct {
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	Attended    int     `db:"attended" json:"attended"`
	Total       int     `db:"total" json:"total"`
	Rate        float64 `db:"rate" json:"rate"`
}

// TrainerPerformance aggregates session and attendance outcomes per trainer.
type TrainerPerformance struct {
	TrainerID         string  `db:"trainer_id" json:"trainer_id"`
	TrainerName       string  `db:"trainer_name" json:"trainer_name"`
	TotalSessions     int     `db:"total_sessions" json:"total_sessions"`
	CompletedSessions int     `db:"completed_sessions" json:"completed_sessions"`
	CancelledSessions int     `db:"cancelled_sessions" json:"cancelled_sessions"`
	AvgAttendanceRate float64 `db:"avg_attendance_rate" json:"avg_attendance_rate"`
	GroupCount        int     `db:"group_count" json:"group_count"`
}

// CourseRollup summarises enrollment and revenue per course.
type CourseRollup struct {
	CourseID    string  `db:"course_id" json:"course_id"`
	CourseName  string  `db:"course_name" json:"course_name"`
	Enrollments int     `db:"enrollments" json:"enrollments"`
	GroupCount  int     `db:"group_count" json:"group_count"`
	PaidTotal   float64 `db:"paid_total" json:"paid_total"`
}

// SystemMetrics is a lightweight snapshot of runtime counters exposed to
// operators alongside the Prometheus endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"avg_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// DashboardSummary is the CLO landing payload composed at read time.
type DashboardSummary struct {
	GeneratedAt     time.Time            `json:"generated_at"`
	ActiveGroups    int                  `json:"active_groups"`
	ActiveStudents  int                  `json:"active_students"`
	SessionsToday   int                  `json:"sessions_today"`
	PendingPayments int                  `json:"pending_payments"`
	TopTrainers     []TrainerPerformance `json:"top_trainers"`
	GroupStats      []GroupStats         `json:"group_stats"`
	CourseRollups   []CourseRollup       `json:"course_rollups"`
}
