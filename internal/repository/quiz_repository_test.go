package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge-api/internal/models"
)

func newQuizRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestQuizRepositoryCreateSubmission(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	sub := &models.QuizSubmission{
		QuizID:    "quiz-1",
		StudentID: "stu-1",
		Answers:   []int{0, 2, 1},
		Score:     66.67,
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (quiz_id, student_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "quiz-1", "stu-1", "[0,2,1]", 66.67, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.CreateSubmission(context.Background(), sub)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryCreateSubmissionDuplicate(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	sub := &models.QuizSubmission{
		QuizID:    "quiz-1",
		StudentID: "stu-1",
		Answers:   []int{1},
		Score:     100,
	}

	// The unique constraint swallows the second insert.
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (quiz_id, student_id) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "quiz-1", "stu-1", "[1]", 100.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.CreateSubmission(context.Background(), sub)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryQuestionsDecodesChoices(t *testing.T) {
	db, mock, cleanup := newQuizRepoMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	rows := sqlmock.NewRows([]string{"id", "quiz_id", "prompt", "choices", "correct", "position"}).
		AddRow("q-1", "quiz-1", "Pick one", `["a","b","c"]`, 2, 1)
	mock.ExpectQuery(regexp.QuoteMeta("FROM quiz_questions WHERE quiz_id = $1 ORDER BY position")).
		WithArgs("quiz-1").
		WillReturnRows(rows)

	questions, err := repo.Questions(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, []string{"a", "b", "c"}, questions[0].Choices)
	require.Equal(t, 2, questions[0].Correct)
	require.NoError(t, mock.ExpectationsWereMet())
}
