package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/models"
	appErrors "github.com/skillforge/skillforge-api/pkg/errors"
)

type mockQuizRepo struct {
	quizzes     map[string]models.Quiz
	questions   map[string][]models.QuizQuestion
	submissions map[string]models.QuizSubmission
}

func newMockQuizRepo() *mockQuizRepo {
	return &mockQuizRepo{
		quizzes:     map[string]models.Quiz{},
		questions:   map[string][]models.QuizQuestion{},
		submissions: map[string]models.QuizSubmission{},
	}
}

func (m *mockQuizRepo) List(ctx context.Context, filter models.QuizFilter) ([]models.Quiz, int, error) {
	out := make([]models.Quiz, 0, len(m.quizzes))
	for _, q := range m.quizzes {
		out = append(out, q)
	}
	return out, len(out), nil
}

func (m *mockQuizRepo) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	q, ok := m.quizzes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := q
	return &copied, nil
}

func (m *mockQuizRepo) Create(ctx context.Context, quiz *models.Quiz, questions []models.QuizQuestion) error {
	m.quizzes[quiz.ID] = *quiz
	m.questions[quiz.ID] = questions
	return nil
}

func (m *mockQuizRepo) Questions(ctx context.Context, quizID string) ([]models.QuizQuestion, error) {
	return m.questions[quizID], nil
}

func (m *mockQuizRepo) CreateSubmission(ctx context.Context, sub *models.QuizSubmission) (bool, error) {
	key := sub.QuizID + "|" + sub.StudentID
	if _, ok := m.submissions[key]; ok {
		return false, nil
	}
	m.submissions[key] = *sub
	return true, nil
}

func (m *mockQuizRepo) FindSubmission(ctx context.Context, quizID, studentID string) (*models.QuizSubmission, error) {
	sub, ok := m.submissions[quizID+"|"+studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := sub
	return &copied, nil
}

func (m *mockQuizRepo) Results(ctx context.Context, quizID string) ([]models.QuizResultRow, error) {
	out := []models.QuizResultRow{}
	for _, sub := range m.submissions {
		if sub.QuizID == quizID {
			out = append(out, models.QuizResultRow{StudentID: sub.StudentID, Score: sub.Score})
		}
	}
	return out, nil
}

type mockQuizGroupRepo struct {
	groups  map[string]models.Group
	members map[string]bool
}

func (m *mockQuizGroupRepo) FindByID(ctx context.Context, id string) (*models.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := g
	return &copied, nil
}

func (m *mockQuizGroupRepo) IsMember(ctx context.Context, groupID, studentID string) (bool, error) {
	return m.members[groupID+"|"+studentID], nil
}

func quizFixture(repo *mockQuizRepo, opensAt, closesAt *time.Time) models.Quiz {
	quiz := models.Quiz{ID: "quiz-1", GroupID: "grp-1", Title: "Unit 3 check", OpensAt: opensAt, ClosesAt: closesAt}
	repo.quizzes[quiz.ID] = quiz
	repo.questions[quiz.ID] = []models.QuizQuestion{
		{ID: "q1", QuizID: quiz.ID, Prompt: "2+2?", Choices: []string{"3", "4", "5"}, Correct: 1, Position: 1},
		{ID: "q2", QuizID: quiz.ID, Prompt: "3*3?", Choices: []string{"9", "6", "3"}, Correct: 0, Position: 2},
		{ID: "q3", QuizID: quiz.ID, Prompt: "10/2?", Choices: []string{"2", "4", "5"}, Correct: 2, Position: 3},
		{ID: "q4", QuizID: quiz.ID, Prompt: "7-4?", Choices: []string{"3", "4", "2"}, Correct: 0, Position: 4},
	}
	return quiz
}

func newQuizServiceForTest(repo *mockQuizRepo, groups *mockQuizGroupRepo) *QuizService {
	return NewQuizService(repo, groups, nil, nil)
}

func TestQuizServiceSubmitGrades(t *testing.T) {
	repo := newMockQuizRepo()
	quizFixture(repo, nil, nil)
	groups := &mockQuizGroupRepo{members: map[string]bool{"grp-1|stu-1": true}}
	svc := newQuizServiceForTest(repo, groups)

	sub, err := svc.Submit(context.Background(), "quiz-1", "stu-1", SubmitQuizRequest{Answers: []int{1, 0, 2, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 75.0, sub.Score, 0.001)
}

func TestQuizServiceSubmitTwice(t *testing.T) {
	repo := newMockQuizRepo()
	quizFixture(repo, nil, nil)
	groups := &mockQuizGroupRepo{members: map[string]bool{"grp-1|stu-1": true}}
	svc := newQuizServiceForTest(repo, groups)

	_, err := svc.Submit(context.Background(), "quiz-1", "stu-1", SubmitQuizRequest{Answers: []int{1, 0, 2, 0}})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "quiz-1", "stu-1", SubmitQuizRequest{Answers: []int{1, 0, 2, 0}})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrAlreadySubmitted.Code, appErr.Code)
}

func TestQuizServiceSubmitOutsideWindow(t *testing.T) {
	repo := newMockQuizRepo()
	closes := time.Now().Add(-time.Hour)
	quizFixture(repo, nil, &closes)
	groups := &mockQuizGroupRepo{members: map[string]bool{"grp-1|stu-1": true}}
	svc := newQuizServiceForTest(repo, groups)

	_, err := svc.Submit(context.Background(), "quiz-1", "stu-1", SubmitQuizRequest{Answers: []int{1, 0, 2, 0}})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestQuizServiceSubmitNonMember(t *testing.T) {
	repo := newMockQuizRepo()
	quizFixture(repo, nil, nil)
	groups := &mockQuizGroupRepo{members: map[string]bool{}}
	svc := newQuizServiceForTest(repo, groups)

	_, err := svc.Submit(context.Background(), "quiz-1", "stu-9", SubmitQuizRequest{Answers: []int{1, 0, 2, 0}})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestQuizServiceSubmitWrongAnswerCount(t *testing.T) {
	repo := newMockQuizRepo()
	quizFixture(repo, nil, nil)
	groups := &mockQuizGroupRepo{members: map[string]bool{"grp-1|stu-1": true}}
	svc := newQuizServiceForTest(repo, groups)

	_, err := svc.Submit(context.Background(), "quiz-1", "stu-1", SubmitQuizRequest{Answers: []int{1, 0}})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestQuizServiceCreateValidatesCorrectIndex(t *testing.T) {
	repo := newMockQuizRepo()
	groups := &mockQuizGroupRepo{groups: map[string]models.Group{
		"33333333-3333-3333-3333-333333333333": {ID: "33333333-3333-3333-3333-333333333333", Active: true},
	}}
	svc := newQuizServiceForTest(repo, groups)

	_, err := svc.Create(context.Background(), CreateQuizRequest{
		GroupID: "33333333-3333-3333-3333-333333333333",
		Title:   "Broken quiz",
		Questions: []QuizQuestionInput{
			{Prompt: "2+2?", Choices: []string{"3", "4"}, Correct: 5},
		},
	}, "trainer-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
