package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type quizRepository interface {
	List(ctx context.Context, filter models.QuizFilter) ([]models.Quiz, int, error)
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	Create(ctx context.Context, quiz *models.Quiz, questions []models.QuizQuestion) error
	Questions(ctx context.Context, quizID string) ([]models.QuizQuestion, error)
	CreateSubmission(ctx context.Context, sub *models.QuizSubmission) (bool, error)
	FindSubmission(ctx context.Context, quizID, studentID string) (*models.QuizSubmission, error)
	Results(ctx context.Context, quizID string) ([]models.QuizResultRow, error)
}

type quizGroupRepository interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	IsMember(ctx context.Context, groupID, studentID string) (bool, error)
}

// QuizQuestionInput is one question in a create payload.
type QuizQuestionInput struct {
	Prompt  string   `json:"prompt" validate:"required"`
	Choices []string `json:"choices" validate:"required,min=2,max=8,dive,required"`
	Correct int      `json:"correct" validate:"gte=0"`
}

// CreateQuizRequest payload for a trainer creating a quiz.
type CreateQuizRequest struct {
	GroupID   string              `json:"group_id" validate:"required,uuid"`
	Title     string              `json:"title" validate:"required"`
	OpensAt   *time.Time          `json:"opens_at"`
	ClosesAt  *time.Time          `json:"closes_at"`
	Questions []QuizQuestionInput `json:"questions" validate:"required,min=1,max=100,dive"`
}

// SubmitQuizRequest is one student's answer sheet. Answers are choice
// indexes in question order.
type SubmitQuizRequest struct {
	Answers []int `json:"answers" validate:"required,min=1"`
}

// QuizService manages quizzes and graded submissions.
type QuizService struct {
	repo      quizRepository
	groups    quizGroupRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewQuizService creates an instance of QuizService.
func NewQuizService(repo quizRepository, groups quizGroupRepository, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &QuizService{repo: repo, groups: groups, validator: validate, logger: logger, now: time.Now}
}

// List returns quizzes.
func (s *QuizService) List(ctx context.Context, filter models.QuizFilter) ([]models.Quiz, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	quizzes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	return quizzes, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one quiz.
func (s *QuizService) Get(ctx context.Context, id string) (*models.Quiz, error) {
	quiz, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	return quiz, nil
}

// Create adds a quiz with its questions in one transaction.
func (s *QuizService) Create(ctx context.Context, req CreateQuizRequest, creatorID string) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create quiz payload")
	}
	if req.OpensAt != nil && req.ClosesAt != nil && !req.ClosesAt.After(*req.OpensAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "closes_at must be after opens_at")
	}
	for i, q := range req.Questions {
		if q.Correct >= len(q.Choices) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("correct answer index out of range for question %d", i+1))
		}
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

	quiz := &models.Quiz{
		ID:        uuid.NewString(),
		GroupID:   req.GroupID,
		Title:     req.Title,
		CreatedBy: creatorID,
		OpensAt:   req.OpensAt,
		ClosesAt:  req.ClosesAt,
	}
	questions := make([]models.QuizQuestion, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = models.QuizQuestion{
			ID:      uuid.NewString(),
			QuizID:  quiz.ID,
			Prompt:  q.Prompt,
			Choices: q.Choices,
			Correct: q.Correct,
		}
	}
	if err := s.repo.Create(ctx, quiz, questions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	return quiz, nil
}

// Questions returns a quiz's questions. Correct answers are never
// serialised to clients.
func (s *QuizService) Questions(ctx context.Context, quizID string) ([]models.QuizQuestion, error) {
	if _, err := s.Get(ctx, quizID); err != nil {
		return nil, err
	}
	questions, err := s.repo.Questions(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz questions")
	}
	return questions, nil
}

// Submit grades a student's answers and records the submission. Each
// student submits once; the quiz must be open and the student must be a
// member of the quiz's group.
func (s *QuizService) Submit(ctx context.Context, quizID, studentID string, req SubmitQuizRequest) (*models.QuizSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	quiz, err := s.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.Open(s.now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "quiz is not open for submissions")
	}

	member, err := s.groups.IsMember(ctx, quiz.GroupID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group membership")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is not a member of the quiz's group")
	}

	questions, err := s.repo.Questions(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz questions")
	}
	if len(req.Answers) != len(questions) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "answer count does not match question count")
	}

	correct := 0
	for i, q := range questions {
		if req.Answers[i] == q.Correct {
			correct++
		}
	}
	score := 0.0
	if len(questions) > 0 {
		score = math.Round(float64(correct)/float64(len(questions))*10000) / 100
	}

	sub := &models.QuizSubmission{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		StudentID: studentID,
		Answers:   req.Answers,
		Score:     score,
	}
	inserted, err := s.repo.CreateSubmission(ctx, sub)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrAlreadySubmitted, "quiz already submitted by this student")
	}
	s.logger.Info("quiz submitted",
		zap.String("quiz_id", quizID),
		zap.String("student_id", studentID),
		zap.Float64("score", score))
	return sub, nil
}

// Result returns a student's own submission.
func (s *QuizService) Result(ctx context.Context, quizID, studentID string) (*models.QuizSubmission, error) {
	sub, err := s.repo.FindSubmission(ctx, quizID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return sub, nil
}

// Results returns all submissions for a quiz, highest score first.
func (s *QuizService) Results(ctx context.Context, quizID string) ([]models.QuizResultRow, error) {
	if _, err := s.Get(ctx, quizID); err != nil {
		return nil, err
	}
	rows, err := s.repo.Results(ctx, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz results")
	}
	return rows, nil
}
