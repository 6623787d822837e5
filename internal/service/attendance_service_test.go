package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type mockAttendanceRepo struct {
	records   map[string]models.Attendance
	conflicts []models.AttendanceBulkConflict
	bulkErr   error
	summary   *models.AttendanceSummary
}

func attendanceKey(sessionID, studentID string) string {
	return sessionID + "|" + studentID
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return nil, 0, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	if m.records == nil {
		m.records = make(map[string]models.Attendance)
	}
	if record.ID == "" {
		record.ID = "att-" + record.StudentID
	}
	m.records[attendanceKey(record.SessionID, record.StudentID)] = *record
	stored := *record
	return &stored, nil
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.AttendanceBulkConflict, error) {
	if m.bulkErr != nil {
		return nil, m.bulkErr
	}
	if m.records == nil {
		m.records = make(map[string]models.Attendance)
	}
	for _, rec := range records {
		m.records[attendanceKey(rec.SessionID, rec.StudentID)] = rec
	}
	return m.conflicts, nil
}

func (m *mockAttendanceRepo) SessionSheet(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	rows := make([]models.AttendanceRecord, 0)
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			rows = append(rows, models.AttendanceRecord{Attendance: rec})
		}
	}
	return rows, nil
}

func (m *mockAttendanceRepo) StudentSummary(ctx context.Context, studentID, groupID string) (*models.AttendanceSummary, error) {
	if m.summary != nil {
		return m.summary, nil
	}
	return &models.AttendanceSummary{}, nil
}

type mockAttendanceSessionRepo struct {
	sessions map[string]models.Session
}

func (m *mockAttendanceSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockAttendanceGroupRepo struct {
	members map[string]bool
}

func (m *mockAttendanceGroupRepo) IsMember(ctx context.Context, groupID, studentID string) (bool, error) {
	return m.members[groupID+"|"+studentID], nil
}

func newAttendanceServiceForTest(repo *mockAttendanceRepo, sessions *mockAttendanceSessionRepo, groups *mockAttendanceGroupRepo) *AttendanceService {
	return NewAttendanceService(repo, sessions, groups, nil, nil, nil)
}

func TestAttendanceServiceMarkWhileOpen(t *testing.T) {
	repo := &mockAttendanceRepo{}
	sessions := &mockAttendanceSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", Status: models.SessionStatusInProgress},
	}}
	groups := &mockAttendanceGroupRepo{members: map[string]bool{"grp-1|stu-1": true}}
	svc := newAttendanceServiceForTest(repo, sessions, groups)

	stored, err := svc.Mark(context.Background(), "trn-1", MarkAttendanceRequest{
		SessionID: "ses-1",
		StudentID: "stu-1",
		Status:    "present",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, stored.Status)
	assert.Equal(t, "trn-1", stored.MarkedBy)
}

func TestAttendanceServiceMarkOverwrites(t *testing.T) {
	repo := &mockAttendanceRepo{}
	sessions := &mockAttendanceSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", Status: models.SessionStatusScheduled},
	}}
	groups := &mockAttendanceGroupRepo{members: map[string]bool{"grp-1|stu-1": true}}
	svc := newAttendanceServiceForTest(repo, sessions, groups)

	_, err := svc.Mark(context.Background(), "trn-1", MarkAttendanceRequest{
		SessionID: "ses-1", StudentID: "stu-1", Status: "absent",
	})
	require.NoError(t, err)

	stored, err := svc.Mark(context.Background(), "trn-1", MarkAttendanceRequest{
		SessionID: "ses-1", StudentID: "stu-1", Status: "late",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, stored.Status)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceServiceMarkClosedSession(t *testing.T) {
	repo := &mockAttendanceRepo{}
	for _, status := range []models.SessionStatus{models.SessionStatusCompleted, models.SessionStatusCancelled} {
		sessions := &mockAttendanceSessionRepo{sessions: map[string]models.Session{
			"ses-1": {ID: "ses-1", GroupID: "grp-1", Status: status},
		}}
		svc := newAttendanceServiceForTest(repo, sessions, &mockAttendanceGroupRepo{})

		_, err := svc.Mark(context.Background(), "trn-1", MarkAttendanceRequest{
			SessionID: "ses-1", StudentID: "stu-1", Status: "present",
		})
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrSessionFinalized.Code, appErr.Code)
	}
}

func TestAttendanceServiceMarkNonMember(t *testing.T) {
	repo := &mockAttendanceRepo{}
	sessions := &mockAttendanceSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", Status: models.SessionStatusScheduled},
	}}
	svc := newAttendanceServiceForTest(repo, sessions, &mockAttendanceGroupRepo{})

	_, err := svc.Mark(context.Background(), "trn-1", MarkAttendanceRequest{
		SessionID: "ses-1", StudentID: "stranger", Status: "present",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAttendanceServiceBulkMarkPartial(t *testing.T) {
	repo := &mockAttendanceRepo{conflicts: []models.AttendanceBulkConflict{
		{SessionID: "ses-1", StudentID: "stu-2", Reason: "unknown student"},
	}}
	sessions := &mockAttendanceSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", Status: models.SessionStatusInProgress},
	}}
	groups := &mockAttendanceGroupRepo{members: map[string]bool{"grp-1|stu-1": true, "grp-1|stu-2": true}}
	svc := newAttendanceServiceForTest(repo, sessions, groups)

	result, err := svc.BulkMark(context.Background(), "trn-1", BulkMarkAttendanceRequest{
		SessionID: "ses-1",
		Mode:      "partialOnError",
		Items: []BulkAttendanceItem{
			{StudentID: "stu-1", Status: "present"},
			{StudentID: "stu-2", Status: "absent"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Success)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "stu-2", result.Conflicts[0].StudentID)
}

func TestAttendanceServiceBulkMarkAtomicRejected(t *testing.T) {
	repo := &mockAttendanceRepo{bulkErr: errors.New("fk violation")}
	sessions := &mockAttendanceSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", Status: models.SessionStatusInProgress},
	}}
	groups := &mockAttendanceGroupRepo{members: map[string]bool{"grp-1|stu-1": true}}
	svc := newAttendanceServiceForTest(repo, sessions, groups)

	_, err := svc.BulkMark(context.Background(), "trn-1", BulkMarkAttendanceRequest{
		SessionID: "ses-1",
		Mode:      "atomic",
		Items:     []BulkAttendanceItem{{StudentID: "stu-1", Status: "present"}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAttendanceServiceBulkMarkDuplicateStudent(t *testing.T) {
	repo := &mockAttendanceRepo{}
	sessions := &mockAttendanceSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", Status: models.SessionStatusScheduled},
	}}
	groups := &mockAttendanceGroupRepo{members: map[string]bool{"grp-1|stu-1": true}}
	svc := newAttendanceServiceForTest(repo, sessions, groups)

	_, err := svc.BulkMark(context.Background(), "trn-1", BulkMarkAttendanceRequest{
		SessionID: "ses-1",
		Mode:      "atomic",
		Items: []BulkAttendanceItem{
			{StudentID: "stu-1", Status: "present"},
			{StudentID: "stu-1", Status: "late"},
		},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAttendanceServiceBulkMarkNonMember(t *testing.T) {
	sessions := &mockAttendanceSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", Status: models.SessionStatusInProgress},
	}}
	groups := &mockAttendanceGroupRepo{members: map[string]bool{"grp-1|stu-1": true}}

	// atomic: a single outsider rejects the whole sheet
	repo := &mockAttendanceRepo{}
	svc := newAttendanceServiceForTest(repo, sessions, groups)
	_, err := svc.BulkMark(context.Background(), "trn-1", BulkMarkAttendanceRequest{
		SessionID: "ses-1",
		Mode:      "atomic",
		Items: []BulkAttendanceItem{
			{StudentID: "stu-1", Status: "present"},
			{StudentID: "stranger", Status: "present"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.records)

	// partial: members are stored, the outsider comes back as a conflict
	repo = &mockAttendanceRepo{}
	svc = newAttendanceServiceForTest(repo, sessions, groups)
	result, err := svc.BulkMark(context.Background(), "trn-1", BulkMarkAttendanceRequest{
		SessionID: "ses-1",
		Mode:      "partialOnError",
		Items: []BulkAttendanceItem{
			{StudentID: "stu-1", Status: "present"},
			{StudentID: "stranger", Status: "present"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Success)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "stranger", result.Conflicts[0].StudentID)
	assert.Len(t, repo.records, 1)
}
