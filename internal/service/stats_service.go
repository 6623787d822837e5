package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type statsRepository interface {
	GroupStats(ctx context.Context, groupID string) (*models.GroupStats, error)
	AllGroupStats(ctx context.Context) ([]models.GroupStats, error)
	TrainerPerformance(ctx context.Context, trainerID string) (*models.TrainerPerformance, error)
	TopTrainers(ctx context.Context, limit int) ([]models.TrainerPerformance, error)
	CourseRollups(ctx context.Context) ([]models.CourseRollup, error)
	CountActiveGroups(ctx context.Context) (int, error)
	CountPendingPayments(ctx context.Context) (int, error)
	CountSessionsOn(ctx context.Context, day time.Time) (int, error)
}

type statsEnrollmentRepository interface {
	CountActiveStudents(ctx context.Context) (int, error)
}

type statsAttendanceRepository interface {
	StudentSummary(ctx context.Context, studentID, groupID string) (*models.AttendanceSummary, error)
}

// StatsService computes derived statistics at read time. Nothing here is
// stored authoritatively: every figure is recomputed from attendance,
// session, enrollment, and payment rows, with a short-TTL cache in front.
type StatsService struct {
	repo        statsRepository
	enrollments statsEnrollmentRepository
	attendance  statsAttendanceRepository
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
}

// NewStatsService creates an instance of StatsService.
func NewStatsService(repo statsRepository, enrollments statsEnrollmentRepository, attendance statsAttendanceRepository, cache *CacheService, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{repo: repo, enrollments: enrollments, attendance: attendance, cache: cache, logger: logger, now: time.Now}
}

// GroupStats returns a group's session counts and average attendance rate.
// Cancelled sessions are excluded from the attendance denominator.
func (s *StatsService) GroupStats(ctx context.Context, groupID string) (*models.GroupStats, error) {
	key := cacheKeyGroupPrefix + groupID
	if s.cache != nil && s.cache.Enabled() {
		var cached models.GroupStats
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	stats, err := s.repo.GroupStats(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute group stats")
	}

	s.cacheSet(ctx, key, stats)
	return stats, nil
}

// TrainerPerformance aggregates one trainer's sessions and attendance
// outcomes across their groups.
func (s *StatsService) TrainerPerformance(ctx context.Context, trainerID string) (*models.TrainerPerformance, error) {
	key := cacheKeyTrainerStats + trainerID
	if s.cache != nil && s.cache.Enabled() {
		var cached models.TrainerPerformance
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	perf, err := s.repo.TrainerPerformance(ctx, trainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute trainer performance")
	}

	s.cacheSet(ctx, key, perf)
	return perf, nil
}

// StudentSummary returns a student's attendance counts within a group.
func (s *StatsService) StudentSummary(ctx context.Context, studentID, groupID string) (*models.AttendanceSummary, error) {
	summary, err := s.attendance.StudentSummary(ctx, studentID, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute attendance summary")
	}
	return summary, nil
}

// Dashboard composes the CLO landing payload: live headcounts, today's
// schedule load, pending payments, top trainers, per-group stats, and
// course revenue rollups. The second return reports whether the payload
// was served from cache, so the handler can surface it in response meta.
func (s *StatsService) Dashboard(ctx context.Context) (*models.DashboardSummary, bool, error) {
	if s.cache != nil && s.cache.Enabled() {
		var cached models.DashboardSummary
		if hit, err := s.cache.Get(ctx, cacheKeyDashboard, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	summary := &models.DashboardSummary{GeneratedAt: s.now().UTC()}

	var err error
	if summary.ActiveGroups, err = s.repo.CountActiveGroups(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active groups")
	}
	if summary.ActiveStudents, err = s.enrollments.CountActiveStudents(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active students")
	}
	if summary.SessionsToday, err = s.repo.CountSessionsOn(ctx, summary.GeneratedAt); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count today's sessions")
	}
	if summary.PendingPayments, err = s.repo.CountPendingPayments(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending payments")
	}
	if summary.TopTrainers, err = s.repo.TopTrainers(ctx, 5); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank trainers")
	}
	if summary.GroupStats, err = s.repo.AllGroupStats(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute group stats")
	}
	if summary.CourseRollups, err = s.repo.CourseRollups(ctx); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute course rollups")
	}

	s.cacheSet(ctx, cacheKeyDashboard, summary)
	return summary, false, nil
}

// TopTrainers returns the best performing trainers by average attendance.
func (s *StatsService) TopTrainers(ctx context.Context, limit int) ([]models.TrainerPerformance, error) {
	rows, err := s.repo.TopTrainers(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank trainers")
	}
	return rows, nil
}

// CourseRollups returns enrollment and revenue per course.
func (s *StatsService) CourseRollups(ctx context.Context) ([]models.CourseRollup, error) {
	rows, err := s.repo.CourseRollups(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute course rollups")
	}
	return rows, nil
}

func (s *StatsService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		s.logger.Warn("failed to cache stats payload", zap.String("key", key), zap.Error(err))
	}
}
