package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type evaluationRepository interface {
	Upsert(ctx context.Context, eval *models.Evaluation) (*models.Evaluation, error)
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, int, error)
	StudentAverage(ctx context.Context, studentID, groupID string) (float64, error)
}

type evaluationSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type evaluationGroupRepository interface {
	IsMember(ctx context.Context, groupID, studentID string) (bool, error)
}

// RateStudentRequest scores one student in one session against a criterion.
// A second rating for the same (session, student, criterion) overwrites the
// first.
type RateStudentRequest struct {
	SessionID string  `json:"session_id" validate:"required,uuid"`
	StudentID string  `json:"student_id" validate:"required,uuid"`
	Criterion string  `json:"criterion" validate:"required,max=128"`
	Score     float64 `json:"score" validate:"gte=0,lte=100"`
	Comments  *string `json:"comments" validate:"omitempty,max=2000"`
}

// EvaluationService records per-session student ratings.
type EvaluationService struct {
	repo      evaluationRepository
	sessions  evaluationSessionRepository
	groups    evaluationGroupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEvaluationService creates an instance of EvaluationService.
func NewEvaluationService(repo evaluationRepository, sessions evaluationSessionRepository, groups evaluationGroupRepository, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EvaluationService{repo: repo, sessions: sessions, groups: groups, validator: validate, logger: logger}
}

// Rate records or overwrites an evaluation. Cancelled sessions cannot be
// rated; the student must be on the session's group roster.
func (s *EvaluationService) Rate(ctx context.Context, req RateStudentRequest, raterID string) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status == models.SessionStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cannot evaluate a cancelled session")
	}

	member, err := s.groups.IsMember(ctx, session.GroupID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group membership")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is not a member of the session's group")
	}

	eval, err := s.repo.Upsert(ctx, &models.Evaluation{
		SessionID: req.SessionID,
		StudentID: req.StudentID,
		Criterion: req.Criterion,
		Score:     req.Score,
		Comments:  req.Comments,
		RatedBy:   raterID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save evaluation")
	}
	return eval, nil
}

// List returns evaluations matching a filter.
func (s *EvaluationService) List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationRecord, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// StudentAverage returns a student's mean score across a group's sessions.
func (s *EvaluationService) StudentAverage(ctx context.Context, studentID, groupID string) (float64, error) {
	avg, err := s.repo.StudentAverage(ctx, studentID, groupID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute student average")
	}
	return avg, nil
}
