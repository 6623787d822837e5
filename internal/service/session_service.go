package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, ts time.Time, cancelReason *string) error
}

type sessionGroupRepository interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type eventPublisher interface {
	Publish(eventType string, payload interface{})
}

// SessionService coordinates the session lifecycle. All status changes run
// through Transition so the legal-move table is enforced in one place.
type SessionService struct {
	repo      sessionRepository
	groups    sessionGroupRepository
	cache     *CacheService
	events    eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs the session service.
func NewSessionService(repo sessionRepository, groups sessionGroupRepository, cache *CacheService, events eventPublisher, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SessionService{repo: repo, groups: groups, cache: cache, events: events, validator: validate, logger: logger}
	svc.validator.RegisterValidation("session_status", func(fl validator.FieldLevel) bool {
		return models.SessionStatus(fl.Field().String()).Valid()
	})
	return svc
}

// SessionListRequest filters session listings.
type SessionListRequest struct {
	GroupID   string     `json:"group_id"`
	TrainerID string     `json:"trainer_id"`
	Statuses  []string   `json:"statuses" validate:"omitempty,dive,session_status"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

// CreateSessionRequest schedules a new session.
type CreateSessionRequest struct {
	GroupID      string    `json:"group_id" validate:"required"`
	TrainerID    string    `json:"trainer_id" validate:"required"`
	Topic        string    `json:"topic" validate:"required,min=2,max=200"`
	ScheduledAt  time.Time `json:"scheduled_at" validate:"required"`
	DurationMins int       `json:"duration_minutes" validate:"required,min=15,max=480"`
}

// UpdateSessionRequest reschedules or retitles a session that has not
// started yet.
type UpdateSessionRequest struct {
	Topic        *string    `json:"topic" validate:"omitempty,min=2,max=200"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	DurationMins *int       `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
}

// TransitionRequest moves a session to its next lifecycle status.
type TransitionRequest struct {
	Status       string  `json:"status" validate:"required,session_status"`
	CancelReason *string `json:"cancel_reason" validate:"omitempty,max=500"`
}

// List returns paginated session details.
func (s *SessionService) List(ctx context.Context, req SessionListRequest) ([]models.SessionDetail, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	statuses := make([]models.SessionStatus, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		statuses = append(statuses, models.SessionStatus(raw))
	}
	page, size := normalizePage(req.Page, req.PageSize)
	filter := models.SessionFilter{
		GroupID:   req.GroupID,
		TrainerID: req.TrainerID,
		Statuses:  statuses,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

// Get returns one session.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// Create schedules a session for a group. New sessions always start as
// scheduled.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if !group.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "group is inactive")
	}

	session := &models.Session{
		GroupID:      req.GroupID,
		TrainerID:    req.TrainerID,
		Topic:        req.Topic,
		Status:       models.SessionStatusScheduled,
		ScheduledAt:  req.ScheduledAt,
		DurationMins: req.DurationMins,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.invalidateStats(ctx, session.GroupID)
	return session, nil
}

// Update reschedules a session. Only scheduled sessions can move.
func (s *SessionService) Update(ctx context.Context, id string, req UpdateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrSessionFinalized, "only scheduled sessions can be rescheduled")
	}

	if req.Topic != nil {
		session.Topic = *req.Topic
	}
	if req.ScheduledAt != nil {
		session.ScheduledAt = *req.ScheduledAt
	}
	if req.DurationMins != nil {
		session.DurationMins = *req.DurationMins
	}
	if err := s.repo.Update(ctx, session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// Transition moves a session along its lifecycle. Only the session's
// trainer (or an admin) may transition it; the target must be legal from
// the session's current status; a concurrent transition surfaces as a
// conflict because the guarded UPDATE matches nothing.
func (s *SessionService) Transition(ctx context.Context, id string, actorID string, role models.UserRole, req TransitionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && session.TrainerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the session trainer may change its status")
	}

	target := models.SessionStatus(req.Status)
	if !session.Status.CanTransitionTo(target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"cannot move session from "+string(session.Status)+" to "+string(target))
	}
	if target == models.SessionStatusCancelled && (req.CancelReason == nil || *req.CancelReason == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancel_reason is required when cancelling")
	}

	ts := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, session.Status, target, ts, req.CancelReason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "session status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition session")
	}

	s.logger.Info("session transitioned",
		zap.String("session_id", id),
		zap.String("from", string(session.Status)),
		zap.String("to", string(target)),
		zap.String("actor_id", actorID))

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, updated.GroupID)
	if s.events != nil {
		s.events.Publish("session."+string(target), updated)
	}
	return updated, nil
}

func (s *SessionService) invalidateStats(ctx context.Context, groupID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateGroup(ctx, groupID); err != nil {
		s.logger.Warn("failed to invalidate group stats cache", zap.String("group_id", groupID), zap.Error(err))
	}
}
