package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praxia/praxia-go-api/internal/models"
)

func TestClaimPendingIsExclusive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)

	attempt := models.Attempt{StudentID: 1, Kind: models.AttemptKindAssessment, State: models.AttemptStatePending}
	require.NoError(t, repo.Create(context.Background(), &attempt))

	claimed, err := repo.ClaimPending(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	again, err := repo.ClaimPending(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.False(t, again, "an attempt can only be claimed once")

	reloaded, err := repo.GetByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStateProcessing, reloaded.State)
}

func TestClaimPendingIgnoresTerminalAttempts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)

	attempt := models.Attempt{StudentID: 1, Kind: models.AttemptKindAssessment, State: models.AttemptStateCompleted}
	require.NoError(t, repo.Create(context.Background(), &attempt))

	claimed, err := repo.ClaimPending(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestFailStaleProcessing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)

	stale := models.Attempt{StudentID: 1, Kind: models.AttemptKindAssessment, State: models.AttemptStateProcessing}
	require.NoError(t, repo.Create(context.Background(), &stale))
	fresh := models.Attempt{StudentID: 1, Kind: models.AttemptKindAssessment, State: models.AttemptStatePending}
	require.NoError(t, repo.Create(context.Background(), &fresh))

	swept, err := repo.FailStaleProcessing(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, swept)

	reloaded, err := repo.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStateFailed, reloaded.State)
	require.Equal(t, models.FailureStageTimeout, reloaded.FailureStage)

	untouched, err := repo.GetByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatePending, untouched.State)
}

func TestFinishProcessingIsConditional(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)

	attempt := models.Attempt{StudentID: 1, Kind: models.AttemptKindAssessment, State: models.AttemptStateProcessing}
	require.NoError(t, repo.Create(context.Background(), &attempt))

	score, max := 10.0, 10.0
	completedAt := time.Now().UTC()
	attempt.State = models.AttemptStateCompleted
	attempt.Score = &score
	attempt.MaxScore = &max
	attempt.CompletedAt = &completedAt

	won, err := repo.FinishProcessing(context.Background(), &attempt)
	require.NoError(t, err)
	require.True(t, won)

	reloaded, err := repo.GetByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStateCompleted, reloaded.State)
	require.NotNil(t, reloaded.Score)

	// A second terminal write loses: the row is no longer processing.
	attempt.State = models.AttemptStateFailed
	won, err = repo.FinishProcessing(context.Background(), &attempt)
	require.NoError(t, err)
	require.False(t, won)

	reloaded, err = repo.GetByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStateCompleted, reloaded.State, "terminal states never transition")
}

func TestFinishProcessingLosesAgainstSweep(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)

	attempt := models.Attempt{StudentID: 1, Kind: models.AttemptKindAssessment, State: models.AttemptStateProcessing}
	require.NoError(t, repo.Create(context.Background(), &attempt))

	swept, err := repo.FailStaleProcessing(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, swept)

	score, max := 10.0, 10.0
	attempt.State = models.AttemptStateCompleted
	attempt.Score = &score
	attempt.MaxScore = &max

	won, err := repo.FinishProcessing(context.Background(), &attempt)
	require.NoError(t, err)
	require.False(t, won, "a swept attempt must not be revived")

	reloaded, err := repo.GetByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStateFailed, reloaded.State)
	require.Equal(t, models.FailureStageTimeout, reloaded.FailureStage)
	require.Nil(t, reloaded.Score)
}

func TestSetEnrichmentErrorLeavesOtherColumnsAlone(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)

	score, max := 8.0, 10.0
	attempt := models.Attempt{
		StudentID: 1,
		Kind:      models.AttemptKindAssessment,
		State:     models.AttemptStateCompleted,
		Score:     &score,
		MaxScore:  &max,
		Feedback:  "Good effort",
		Viewed:    true,
	}
	require.NoError(t, repo.Create(context.Background(), &attempt))

	require.NoError(t, repo.SetEnrichmentError(context.Background(), attempt.ID, "gamification: award failed"))

	reloaded, err := repo.GetByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.EnrichmentError)
	require.Equal(t, "gamification: award failed", *reloaded.EnrichmentError)
	require.True(t, reloaded.Viewed, "targeted update must not clobber the viewed flag")
	require.Equal(t, "Good effort", reloaded.Feedback)
}

func TestListRecentCompletedFiltersSubject(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)

	seed := func(subject string, daysAgo int) {
		score, max := 80.0, 100.0
		completedAt := time.Now().UTC().AddDate(0, 0, -daysAgo)
		require.NoError(t, db.Create(&models.Attempt{
			StudentID:   1,
			Kind:        models.AttemptKindQuiz,
			State:       models.AttemptStateCompleted,
			Subject:     subject,
			Score:       &score,
			MaxScore:    &max,
			CompletedAt: &completedAt,
		}).Error)
	}
	seed("math", 1)
	seed("math", 2)
	seed("science", 1)

	math, err := repo.ListRecentCompleted(context.Background(), 1, "math", 10)
	require.NoError(t, err)
	require.Len(t, math, 2)

	all, err := repo.ListRecentCompleted(context.Background(), 1, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)

	limited, err := repo.ListRecentCompleted(context.Background(), 1, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestMostRecentActivityAtNilWhenEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)

	at, err := repo.MostRecentActivityAt(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, at)
}
