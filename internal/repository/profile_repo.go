package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/praxia/praxia-go-api/internal/models"
)

// ProfileRepository persists learning profiles and mistake patterns.
type ProfileRepository interface {
	Get(ctx context.Context, studentID uint) (models.LearningProfile, error)
	Save(ctx context.Context, profile *models.LearningProfile) error
	// RecordMistake upserts a (student, subject, pattern) row, incrementing
	// frequency when it already exists.
	RecordMistake(ctx context.Context, studentID uint, subject, pattern string, at time.Time) error
	ListMistakes(ctx context.Context, studentID uint) ([]models.MistakePattern, error)
	ListMistakesSince(ctx context.Context, studentID uint, since time.Time) ([]models.MistakePattern, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository instantiates the repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Get(ctx context.Context, studentID uint) (models.LearningProfile, error) {
	var profile models.LearningProfile
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&profile).Error; err != nil {
		return models.LearningProfile{}, err
	}
	return profile, nil
}

func (r *profileRepository) Save(ctx context.Context, profile *models.LearningProfile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		UpdateAll: true,
	}).Create(profile).Error
}

func (r *profileRepository) RecordMistake(ctx context.Context, studentID uint, subject, pattern string, at time.Time) error {
	row := models.MistakePattern{
		StudentID:      studentID,
		Subject:        subject,
		PatternName:    pattern,
		Frequency:      1,
		LastOccurrence: at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}, {Name: "subject"}, {Name: "pattern_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"frequency":       gorm.Expr("mistake_patterns.frequency + 1"),
			"last_occurrence": at,
		}),
	}).Create(&row).Error
}

func (r *profileRepository) ListMistakes(ctx context.Context, studentID uint) ([]models.MistakePattern, error) {
	var patterns []models.MistakePattern
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("frequency DESC").
		Find(&patterns).Error; err != nil {
		return nil, err
	}
	return patterns, nil
}

func (r *profileRepository) ListMistakesSince(ctx context.Context, studentID uint, since time.Time) ([]models.MistakePattern, error) {
	var patterns []models.MistakePattern
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND last_occurrence >= ?", studentID, since).
		Order("frequency DESC").
		Find(&patterns).Error; err != nil {
		return nil, err
	}
	return patterns, nil
}
