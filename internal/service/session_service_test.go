package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions    map[string]models.Session
	created     *models.Session
	updated     *models.Session
	transitions []string
	failNext    error
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	rows := make([]models.SessionDetail, 0, len(m.sessions))
	for _, s := range m.sessions {
		rows = append(rows, models.SessionDetail{Session: s})
	}
	return rows, len(rows), nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if m.sessions == nil {
		m.sessions = make(map[string]models.Session)
	}
	if session.ID == "" {
		session.ID = "new-session"
	}
	m.sessions[session.ID] = *session
	m.created = session
	return nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *models.Session) error {
	if _, ok := m.sessions[session.ID]; !ok {
		return sql.ErrNoRows
	}
	m.sessions[session.ID] = *session
	m.updated = session
	return nil
}

func (m *mockSessionRepo) UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, ts time.Time, cancelReason *string) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	s, ok := m.sessions[id]
	if !ok || s.Status != from {
		return sql.ErrNoRows
	}
	s.Status = to
	switch to {
	case models.SessionStatusInProgress:
		s.StartedAt = &ts
	case models.SessionStatusCompleted:
		s.EndedAt = &ts
	case models.SessionStatusCancelled:
		s.CancelReason = cancelReason
	}
	m.sessions[id] = s
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
	return nil
}

type mockSessionGroupRepo struct {
	groups map[string]models.Group
}

func (m *mockSessionGroupRepo) FindByID(ctx context.Context, id string) (*models.Group, error) {
	if g, ok := m.groups[id]; ok {
		return &g, nil
	}
	return nil, sql.ErrNoRows
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(eventType string, payload interface{}) {
	p.events = append(p.events, eventType)
}

func newSessionServiceForTest(repo *mockSessionRepo, groups *mockSessionGroupRepo) (*SessionService, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewSessionService(repo, groups, nil, pub, nil, nil), pub
}

func activeGroup(id string) models.Group {
	return models.Group{ID: id, Name: "Robotics A", Active: true}
}

func TestSessionServiceCreate(t *testing.T) {
	repo := &mockSessionRepo{}
	groups := &mockSessionGroupRepo{groups: map[string]models.Group{"grp-1": activeGroup("grp-1")}}
	svc, _ := newSessionServiceForTest(repo, groups)

	session, err := svc.Create(context.Background(), CreateSessionRequest{
		GroupID:      "grp-1",
		TrainerID:    "trn-1",
		Topic:        "Sensors and actuators",
		ScheduledAt:  time.Now().Add(48 * time.Hour),
		DurationMins: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScheduled, session.Status)
	assert.NotNil(t, repo.created)
}

func TestSessionServiceCreateInactiveGroup(t *testing.T) {
	repo := &mockSessionRepo{}
	group := activeGroup("grp-1")
	group.Active = false
	groups := &mockSessionGroupRepo{groups: map[string]models.Group{"grp-1": group}}
	svc, _ := newSessionServiceForTest(repo, groups)

	_, err := svc.Create(context.Background(), CreateSessionRequest{
		GroupID:      "grp-1",
		TrainerID:    "trn-1",
		Topic:        "Sensors",
		ScheduledAt:  time.Now(),
		DurationMins: 60,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSessionServiceTransitionHappyPath(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", TrainerID: "trn-1", Status: models.SessionStatusScheduled},
	}}
	groups := &mockSessionGroupRepo{groups: map[string]models.Group{"grp-1": activeGroup("grp-1")}}
	svc, pub := newSessionServiceForTest(repo, groups)

	started, err := svc.Transition(context.Background(), "ses-1", "trn-1", models.RoleTrainer, TransitionRequest{Status: "in_progress"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, started.Status)

	completed, err := svc.Transition(context.Background(), "ses-1", "trn-1", models.RoleTrainer, TransitionRequest{Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, completed.Status)

	assert.Equal(t, []string{"scheduled->in_progress", "in_progress->completed"}, repo.transitions)
	assert.Equal(t, []string{"session.in_progress", "session.completed"}, pub.events)
}

func TestSessionServiceTransitionIllegalEdge(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", TrainerID: "trn-1", Status: models.SessionStatusScheduled},
	}}
	groups := &mockSessionGroupRepo{}
	svc, _ := newSessionServiceForTest(repo, groups)

	// scheduled cannot jump straight to completed
	_, err := svc.Transition(context.Background(), "ses-1", "trn-1", models.RoleTrainer, TransitionRequest{Status: "completed"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
	assert.Empty(t, repo.transitions)
}

func TestSessionServiceTransitionFromTerminal(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", TrainerID: "trn-1", Status: models.SessionStatusCompleted},
	}}
	svc, _ := newSessionServiceForTest(repo, &mockSessionGroupRepo{})

	_, err := svc.Transition(context.Background(), "ses-1", "trn-1", models.RoleTrainer, TransitionRequest{Status: "cancelled", CancelReason: strPtr("too late")})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestSessionServiceCancelRequiresReason(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", TrainerID: "trn-1", Status: models.SessionStatusScheduled},
	}}
	svc, _ := newSessionServiceForTest(repo, &mockSessionGroupRepo{})

	_, err := svc.Transition(context.Background(), "ses-1", "adm-1", models.RoleAdmin, TransitionRequest{Status: "cancelled"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSessionServiceTransitionWrongTrainer(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", TrainerID: "trn-1", Status: models.SessionStatusScheduled},
	}}
	svc, _ := newSessionServiceForTest(repo, &mockSessionGroupRepo{})

	_, err := svc.Transition(context.Background(), "ses-1", "trn-2", models.RoleTrainer, TransitionRequest{Status: "in_progress"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.transitions)
}

func TestSessionServiceTransitionLostRace(t *testing.T) {
	repo := &mockSessionRepo{
		sessions: map[string]models.Session{
			"ses-1": {ID: "ses-1", GroupID: "grp-1", TrainerID: "trn-1", Status: models.SessionStatusScheduled},
		},
		failNext: sql.ErrNoRows,
	}
	svc, _ := newSessionServiceForTest(repo, &mockSessionGroupRepo{})

	_, err := svc.Transition(context.Background(), "ses-1", "trn-1", models.RoleTrainer, TransitionRequest{Status: "in_progress"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestSessionServiceUpdateOnlyWhileScheduled(t *testing.T) {
	repo := &mockSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", GroupID: "grp-1", Status: models.SessionStatusInProgress, Topic: "Original"},
	}}
	svc, _ := newSessionServiceForTest(repo, &mockSessionGroupRepo{})

	_, err := svc.Update(context.Background(), "ses-1", UpdateSessionRequest{Topic: strPtr("New topic")})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSessionFinalized.Code, appErr.Code)
}

func strPtr(s string) *string { return &s }
