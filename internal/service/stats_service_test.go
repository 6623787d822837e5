package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type mockStatsRepo struct {
	groupStats map[string]models.GroupStats
	trainers   []models.TrainerPerformance
	rollups    []models.CourseRollup

	activeGroups    int
	pendingPayments int
	sessionsToday   int

	groupStatsCalls int
	trainerCalls    int
}

func (m *mockStatsRepo) GroupStats(ctx context.Context, groupID string) (*models.GroupStats, error) {
	m.groupStatsCalls++
	stats, ok := m.groupStats[groupID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := stats
	return &copied, nil
}

func (m *mockStatsRepo) AllGroupStats(ctx context.Context) ([]models.GroupStats, error) {
	out := make([]models.GroupStats, 0, len(m.groupStats))
	for _, stats := range m.groupStats {
		out = append(out, stats)
	}
	return out, nil
}

func (m *mockStatsRepo) TrainerPerformance(ctx context.Context, trainerID string) (*models.TrainerPerformance, error) {
	m.trainerCalls++
	for _, perf := range m.trainers {
		if perf.TrainerID == trainerID {
			copied := perf
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStatsRepo) TopTrainers(ctx context.Context, limit int) ([]models.TrainerPerformance, error) {
	if limit > len(m.trainers) {
		limit = len(m.trainers)
	}
	return m.trainers[:limit], nil
}

func (m *mockStatsRepo) CourseRollups(ctx context.Context) ([]models.CourseRollup, error) {
	return m.rollups, nil
}

func (m *mockStatsRepo) CountActiveGroups(ctx context.Context) (int, error) {
	return m.activeGroups, nil
}

func (m *mockStatsRepo) CountPendingPayments(ctx context.Context) (int, error) {
	return m.pendingPayments, nil
}

func (m *mockStatsRepo) CountSessionsOn(ctx context.Context, day time.Time) (int, error) {
	return m.sessionsToday, nil
}

type mockStatsEnrollmentRepo struct {
	activeStudents int
}

func (m *mockStatsEnrollmentRepo) CountActiveStudents(ctx context.Context) (int, error) {
	return m.activeStudents, nil
}

type mockStatsAttendanceRepo struct {
	summary *models.AttendanceSummary
}

func (m *mockStatsAttendanceRepo) StudentSummary(ctx context.Context, studentID, groupID string) (*models.AttendanceSummary, error) {
	return m.summary, nil
}

type memoryCacheStore struct {
	entries map[string][]byte
}

func newMemoryCacheStore() *memoryCacheStore {
	return &memoryCacheStore{entries: map[string][]byte{}}
}

func (m *memoryCacheStore) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheStore) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func newStatsServiceForTest(repo *mockStatsRepo, cacheStore *memoryCacheStore) (*StatsService, *CacheService) {
	var cache *CacheService
	if cacheStore != nil {
		cache = NewCacheService(cacheStore, nil, time.Minute, nil, true)
	}
	return NewStatsService(repo, &mockStatsEnrollmentRepo{activeStudents: 42}, &mockStatsAttendanceRepo{}, cache, nil), cache
}

func TestStatsServiceDashboardComposition(t *testing.T) {
	repo := &mockStatsRepo{
		groupStats: map[string]models.GroupStats{
			"grp-1": {GroupID: "grp-1", GroupName: "Robotics A", TotalSessions: 12, CompletedSessions: 9, CancelledSessions: 1, StudentCount: 14, AvgAttendanceRate: 87.5},
		},
		trainers: []models.TrainerPerformance{
			{TrainerID: "tr-1", TrainerName: "Dana", TotalSessions: 20, CompletedSessions: 18, AvgAttendanceRate: 91.0, GroupCount: 2},
		},
		rollups:         []models.CourseRollup{{CourseID: "crs-1", CourseName: "Robotics", Enrollments: 30, GroupCount: 2, PaidTotal: 13500}},
		activeGroups:    2,
		pendingPayments: 3,
		sessionsToday:   4,
	}
	svc, _ := newStatsServiceForTest(repo, nil)

	summary, cacheHit, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 2, summary.ActiveGroups)
	assert.Equal(t, 42, summary.ActiveStudents)
	assert.Equal(t, 4, summary.SessionsToday)
	assert.Equal(t, 3, summary.PendingPayments)
	require.Len(t, summary.TopTrainers, 1)
	assert.Equal(t, "Dana", summary.TopTrainers[0].TrainerName)
	require.Len(t, summary.GroupStats, 1)
	assert.InDelta(t, 87.5, summary.GroupStats[0].AvgAttendanceRate, 0.001)
	require.Len(t, summary.CourseRollups, 1)
	assert.InDelta(t, 13500, summary.CourseRollups[0].PaidTotal, 0.001)
}

func TestStatsServiceGroupStatsCacheAside(t *testing.T) {
	repo := &mockStatsRepo{
		groupStats: map[string]models.GroupStats{
			"grp-1": {GroupID: "grp-1", GroupName: "Robotics A", AvgAttendanceRate: 80},
		},
	}
	store := newMemoryCacheStore()
	svc, _ := newStatsServiceForTest(repo, store)

	first, err := svc.GroupStats(context.Background(), "grp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.groupStatsCalls)

	second, err := svc.GroupStats(context.Background(), "grp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.groupStatsCalls, "second read should hit the cache")
	assert.Equal(t, first.GroupID, second.GroupID)
	assert.InDelta(t, first.AvgAttendanceRate, second.AvgAttendanceRate, 0.001)
}

func TestStatsServiceGroupStatsInvalidation(t *testing.T) {
	repo := &mockStatsRepo{
		groupStats: map[string]models.GroupStats{
			"grp-1": {GroupID: "grp-1", AvgAttendanceRate: 80},
		},
	}
	store := newMemoryCacheStore()
	svc, cache := newStatsServiceForTest(repo, store)

	_, err := svc.GroupStats(context.Background(), "grp-1")
	require.NoError(t, err)

	repo.groupStats["grp-1"] = models.GroupStats{GroupID: "grp-1", AvgAttendanceRate: 60}
	require.NoError(t, cache.InvalidateGroup(context.Background(), "grp-1"))

	refreshed, err := svc.GroupStats(context.Background(), "grp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.groupStatsCalls)
	assert.InDelta(t, 60, refreshed.AvgAttendanceRate, 0.001)
}

func TestStatsServiceInvalidateGroupDropsTrainerStats(t *testing.T) {
	repo := &mockStatsRepo{
		groupStats: map[string]models.GroupStats{
			"grp-1": {GroupID: "grp-1", AvgAttendanceRate: 80},
		},
		trainers: []models.TrainerPerformance{
			{TrainerID: "trn-1", TrainerName: "Dana", AvgAttendanceRate: 90},
		},
	}
	store := newMemoryCacheStore()
	svc, cache := newStatsServiceForTest(repo, store)

	_, err := svc.TrainerPerformance(context.Background(), "trn-1")
	require.NoError(t, err)
	_, err = svc.TrainerPerformance(context.Background(), "trn-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.trainerCalls, "second read should hit the cache")

	// Group attendance feeds trainer performance, so invalidating the
	// group must drop trainer entries too.
	require.NoError(t, cache.InvalidateGroup(context.Background(), "grp-1"))

	_, err = svc.TrainerPerformance(context.Background(), "trn-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.trainerCalls)
}

func TestStatsServiceGroupStatsNotFound(t *testing.T) {
	repo := &mockStatsRepo{groupStats: map[string]models.GroupStats{}}
	svc, _ := newStatsServiceForTest(repo, nil)

	_, err := svc.GroupStats(context.Background(), "missing")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
