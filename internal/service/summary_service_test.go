package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/internal/repository"
)

func TestSummaryServiceCachesAndInvalidates(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Student{Name: "Ada", Email: "ada@example.com"}).Error)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	attempts := repository.NewAttemptRepository(db)
	rewardsRepo := repository.NewGamificationRepository(db)
	rewards := NewGamificationService(rewardsRepo, redisClient, DefaultRuleTable(), testLogger())
	summaries := NewSummaryService(rewards, attempts, redisClient, time.Minute, testLogger())

	_, err = rewards.Award(context.Background(), 1, ActivityResult{Kind: models.AttemptKindQuiz, Score: 8, MaxScore: 10})
	require.NoError(t, err)

	first, err := summaries.GetSummary(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 10, first.TotalPoints)
	require.True(t, mr.Exists("gamification:summary:1"), "summary must be cached")

	// The next award drops the cache entry.
	_, err = rewards.Award(context.Background(), 1, ActivityResult{Kind: models.AttemptKindQuiz, Score: 9, MaxScore: 10})
	require.NoError(t, err)
	require.False(t, mr.Exists("gamification:summary:1"), "award must invalidate the cached summary")

	second, err := summaries.GetSummary(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 35, second.TotalPoints, "base 10 + base 10 + high-score 15")
}

func TestSummaryServiceRecentAverage(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Student{Name: "Ada", Email: "ada@example.com"}).Error)

	attempts := repository.NewAttemptRepository(db)
	rewards := NewGamificationService(repository.NewGamificationRepository(db), nil, DefaultRuleTable(), testLogger())
	summaries := NewSummaryService(rewards, attempts, nil, time.Minute, testLogger())

	_, err := rewards.Award(context.Background(), 1, ActivityResult{Kind: models.AttemptKindQuiz, Score: 6, MaxScore: 10})
	require.NoError(t, err)

	for _, score := range []float64{60, 80} {
		value := score
		max := 100.0
		completedAt := time.Now().UTC()
		require.NoError(t, db.Create(&models.Attempt{
			StudentID:   1,
			Kind:        models.AttemptKindQuiz,
			State:       models.AttemptStateCompleted,
			Subject:     "math",
			Score:       &value,
			MaxScore:    &max,
			CompletedAt: &completedAt,
		}).Error)
	}

	summary, err := summaries.GetSummary(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, summary.RecentAverage)
	require.InDelta(t, 70.0, *summary.RecentAverage, 0.01)
}
