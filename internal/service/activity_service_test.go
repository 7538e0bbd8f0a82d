package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/internal/repository"
)

func setupActivity(t *testing.T) (ActivityService, repository.AttemptRepository) {
	t.Helper()
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Student{Name: "Ada", Email: "ada@example.com"}).Error)

	attempts := repository.NewAttemptRepository(db)
	students := repository.NewStudentRepository(db)
	rewards := NewGamificationService(repository.NewGamificationRepository(db), nil, DefaultRuleTable(), testLogger())

	svc := NewActivityService(attempts, students, rewards, validator.New(validator.WithRequiredStructEnabled()), testLogger())
	return svc, attempts
}

func TestCompleteQuizRecordsAttemptAndAwards(t *testing.T) {
	svc, attempts := setupActivity(t)

	result, err := svc.CompleteQuiz(context.Background(), dto.QuizCompleteRequest{
		StudentID:        1,
		Subject:          "Science",
		Topic:            "Plants",
		Score:            8,
		MaxScore:         10,
		ElapsedSeconds:   90,
		TimeLimitSeconds: 300,
	})
	require.NoError(t, err)
	require.Equal(t, 10, result.PointsAwarded)
	require.Equal(t, 1, result.CurrentStreak)

	listed, err := attempts.List(context.Background(), repository.AttemptFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, models.AttemptKindQuiz, listed[0].Kind)
	require.Equal(t, models.AttemptStateCompleted, listed[0].State)
	require.Equal(t, "science", listed[0].Subject)
	require.NotNil(t, listed[0].CompletedAt)
}

func TestCompleteJourneyAwardsJourneyBase(t *testing.T) {
	svc, _ := setupActivity(t)

	result, err := svc.CompleteJourney(context.Background(), dto.JourneyCompleteRequest{
		StudentID: 1,
		Subject:   "History",
		Score:     95,
		MaxScore:  100,
	})
	require.NoError(t, err)
	// Base 15 + high-score 15.
	require.Equal(t, 30, result.PointsAwarded)
}

func TestCompleteGameImprovementBonus(t *testing.T) {
	svc, _ := setupActivity(t)

	prior := 40.0
	result, err := svc.CompleteGame(context.Background(), dto.GameCompleteRequest{
		StudentID:  1,
		Subject:    "Math",
		Score:      7,
		MaxScore:   10,
		PriorScore: &prior,
	})
	require.NoError(t, err)

	reasons := make([]string, 0, len(result.Reasons))
	for _, reason := range result.Reasons {
		reasons = append(reasons, reason.Reason)
	}
	require.Contains(t, reasons, "improvement")
}

func TestCompleteQuizUnknownStudent(t *testing.T) {
	svc, _ := setupActivity(t)

	_, err := svc.CompleteQuiz(context.Background(), dto.QuizCompleteRequest{
		StudentID: 42,
		Subject:   "Science",
		Score:     5,
		MaxScore:  10,
	})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestCompleteQuizValidatesPayload(t *testing.T) {
	svc, _ := setupActivity(t)

	_, err := svc.CompleteQuiz(context.Background(), dto.QuizCompleteRequest{
		StudentID: 1,
		Subject:   "Science",
		Score:     5,
	})
	require.Error(t, err, "max_score is required")
}
