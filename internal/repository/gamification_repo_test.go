package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praxia/praxia-go-api/internal/models"
)

func TestWithinAwardCreatesStateLazily(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGamificationRepository(db)

	err := repo.WithinAward(context.Background(), 1, func(tx AwardTx, state *models.GamificationState) error {
		require.Equal(t, 1, state.Level)
		state.TotalPoints = 10
		return nil
	})
	require.NoError(t, err)

	state, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 10, state.TotalPoints)
}

func TestAddBadgeReportsDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGamificationRepository(db)

	err := repo.WithinAward(context.Background(), 1, func(tx AwardTx, state *models.GamificationState) error {
		inserted, err := tx.AddBadge(&models.Badge{StudentID: 1, BadgeID: "perfect-score", EarnedAt: time.Now().UTC()})
		require.NoError(t, err)
		require.True(t, inserted)

		duplicate, err := tx.AddBadge(&models.Badge{StudentID: 1, BadgeID: "perfect-score", EarnedAt: time.Now().UTC()})
		require.NoError(t, err)
		require.False(t, duplicate)
		return nil
	})
	require.NoError(t, err)

	badges, err := repo.ListBadges(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, badges, 1)
}

func TestWithinAwardRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGamificationRepository(db)

	require.NoError(t, repo.WithinAward(context.Background(), 1, func(tx AwardTx, state *models.GamificationState) error {
		state.TotalPoints = 50
		return nil
	}))

	err := repo.WithinAward(context.Background(), 1, func(tx AwardTx, state *models.GamificationState) error {
		state.TotalPoints = 9000
		return context.DeadlineExceeded
	})
	require.Error(t, err)

	state, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 50, state.TotalPoints, "failed award must not change state")
}
