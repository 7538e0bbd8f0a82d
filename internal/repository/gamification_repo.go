package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/praxia/praxia-go-api/internal/models"
)

// GamificationRepository persists per-student reward state. Award mutations
// run inside a single transaction with the state row locked, so concurrent
// awards for the same student serialize at the database.
type GamificationRepository interface {
	Get(ctx context.Context, studentID uint) (models.GamificationState, error)
	ListBadges(ctx context.Context, studentID uint) ([]models.Badge, error)
	// WithinAward runs fn against a row-locked snapshot of the student's
	// state, creating the row if it does not exist yet. The state mutations,
	// badge inserts and achievement rows commit atomically.
	WithinAward(ctx context.Context, studentID uint, fn func(tx AwardTx, state *models.GamificationState) error) error
}

// AwardTx exposes the write operations available inside an award transaction.
type AwardTx interface {
	// AddBadge inserts the badge unless the student already holds it and
	// reports whether a new row was written.
	AddBadge(badge *models.Badge) (bool, error)
	AppendAchievement(achievement *models.Achievement) error
}

type gamificationRepository struct {
	db *gorm.DB
}

// NewGamificationRepository instantiates the repository.
func NewGamificationRepository(db *gorm.DB) GamificationRepository {
	return &gamificationRepository{db: db}
}

func (r *gamificationRepository) Get(ctx context.Context, studentID uint) (models.GamificationState, error) {
	var state models.GamificationState
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&state).Error; err != nil {
		return models.GamificationState{}, err
	}
	return state, nil
}

func (r *gamificationRepository) ListBadges(ctx context.Context, studentID uint) ([]models.Badge, error) {
	var badges []models.Badge
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("earned_at ASC").
		Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

func (r *gamificationRepository) WithinAward(ctx context.Context, studentID uint, fn func(tx AwardTx, state *models.GamificationState) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var state models.GamificationState
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("student_id = ?", studentID).
			First(&state).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			state = models.GamificationState{StudentID: studentID, Level: 1}
			if err := tx.Create(&state).Error; err != nil {
				return err
			}
			// Re-read under the lock so two lazy creators cannot race past
			// each other.
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("student_id = ?", studentID).
				First(&state).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := fn(&awardTx{tx: tx}, &state); err != nil {
			return err
		}

		return tx.Save(&state).Error
	})
}

type awardTx struct {
	tx *gorm.DB
}

func (a *awardTx) AddBadge(badge *models.Badge) (bool, error) {
	if badge.EarnedAt.IsZero() {
		badge.EarnedAt = time.Now().UTC()
	}
	result := a.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(badge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (a *awardTx) AppendAchievement(achievement *models.Achievement) error {
	return a.tx.Create(achievement).Error
}
