package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/praxia/praxia-go-api/internal/models"
)

// AttemptFilter narrows attempt queries.
type AttemptFilter struct {
	StudentID *uint
	Kind      *string
	State     *string
	Subject   *string
}

// AttemptRepository defines data operations for attempts.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.Attempt) error
	GetByID(ctx context.Context, id uint) (models.Attempt, error)
	Update(ctx context.Context, attempt *models.Attempt) error
	List(ctx context.Context, filter AttemptFilter) ([]models.Attempt, error)
	// ClaimPending atomically moves a pending attempt into processing and
	// reports whether this caller won the claim.
	ClaimPending(ctx context.Context, id uint) (bool, error)
	// FinishProcessing persists the terminal transition carried on the
	// attempt, conditional on the row still being in processing. It reports
	// whether this caller performed the transition; a false return means the
	// attempt already reached a terminal state (for example via the stale
	// sweep) and the late result was discarded.
	FinishProcessing(ctx context.Context, attempt *models.Attempt) (bool, error)
	// SetEnrichmentError records an enrichment failure without touching any
	// other column.
	SetEnrichmentError(ctx context.Context, id uint, message string) error
	ListRecentCompleted(ctx context.Context, studentID uint, subject string, limit int) ([]models.Attempt, error)
	ListCompletedSince(ctx context.Context, studentID uint, since time.Time) ([]models.Attempt, error)
	ListSince(ctx context.Context, studentID uint, since time.Time) ([]models.Attempt, error)
	MostRecentActivityAt(ctx context.Context, studentID uint) (*time.Time, error)
	// FailStaleProcessing fails attempts stuck in processing since before the
	// cutoff and returns how many were swept.
	FailStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates the repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *attemptRepository) GetByID(ctx context.Context, id uint) (models.Attempt, error) {
	var attempt models.Attempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return models.Attempt{}, err
	}
	return attempt, nil
}

func (r *attemptRepository) Update(ctx context.Context, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *attemptRepository) List(ctx context.Context, filter AttemptFilter) ([]models.Attempt, error) {
	query := r.db.WithContext(ctx).Model(&models.Attempt{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.Subject != nil {
		query = query.Where("subject = ?", *filter.Subject)
	}

	var attempts []models.Attempt
	if err := query.Order("created_at DESC").Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepository) ClaimPending(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND state = ?", id, models.AttemptStatePending).
		Update("state", models.AttemptStateProcessing)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *attemptRepository) FinishProcessing(ctx context.Context, attempt *models.Attempt) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND state = ?", attempt.ID, models.AttemptStateProcessing).
		Updates(map[string]interface{}{
			"state":                  attempt.State,
			"image_url":              attempt.ImageURL,
			"extracted_text":         attempt.ExtractedText,
			"score":                  attempt.Score,
			"max_score":              attempt.MaxScore,
			"breakdown":              attempt.Breakdown,
			"mistakes":               attempt.Mistakes,
			"feedback":               attempt.Feedback,
			"failure_stage":          attempt.FailureStage,
			"completed_at":           attempt.CompletedAt,
			"processing_duration_ms": attempt.ProcessingDurationMs,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *attemptRepository) SetEnrichmentError(ctx context.Context, id uint, message string) error {
	return r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ?", id).
		Update("enrichment_error", message).Error
}

func (r *attemptRepository) ListRecentCompleted(ctx context.Context, studentID uint, subject string, limit int) ([]models.Attempt, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ? AND state = ?", studentID, models.AttemptStateCompleted)
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}

	var attempts []models.Attempt
	if err := query.Order("completed_at DESC").Limit(limit).Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepository) ListCompletedSince(ctx context.Context, studentID uint, since time.Time) ([]models.Attempt, error) {
	var attempts []models.Attempt
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND state = ? AND completed_at >= ?", studentID, models.AttemptStateCompleted, since).
		Order("completed_at ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepository) ListSince(ctx context.Context, studentID uint, since time.Time) ([]models.Attempt, error) {
	var attempts []models.Attempt
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND created_at >= ?", studentID, since).
		Order("created_at ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepository) MostRecentActivityAt(ctx context.Context, studentID uint) (*time.Time, error) {
	var attempt models.Attempt
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	at := attempt.CreatedAt
	return &at, nil
}

func (r *attemptRepository) FailStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("state = ? AND updated_at < ?", models.AttemptStateProcessing, cutoff).
		Updates(map[string]interface{}{
			"state":         models.AttemptStateFailed,
			"failure_stage": models.FailureStageTimeout,
		})
	return result.RowsAffected, result.Error
}
