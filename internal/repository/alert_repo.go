package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/praxia/praxia-go-api/internal/models"
)

// AlertRepository persists analyzer alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id uint) (models.Alert, error)
	Update(ctx context.Context, alert *models.Alert) error
	ListByStudent(ctx context.Context, studentID uint, statuses []string) ([]models.Alert, error)
	// HasActiveSince reports whether an active alert of the given type exists
	// for the student created at or after the cutoff.
	HasActiveSince(ctx context.Context, studentID uint, alertType string, cutoff time.Time) (bool, error)
	// ResolveExpired auto-resolves actionable alerts whose expiry has passed
	// and returns how many rows were touched.
	ResolveExpired(ctx context.Context, now time.Time) (int64, error)
}

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository instantiates the repository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *alertRepository) GetByID(ctx context.Context, id uint) (models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return models.Alert{}, err
	}
	return alert, nil
}

func (r *alertRepository) Update(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

func (r *alertRepository) ListByStudent(ctx context.Context, studentID uint, statuses []string) ([]models.Alert, error) {
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var alerts []models.Alert
	if err := query.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *alertRepository) HasActiveSince(ctx context.Context, studentID uint, alertType string, cutoff time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Alert{}).
		Where("student_id = ? AND type = ? AND status = ? AND created_at >= ?",
			studentID, alertType, models.AlertStatusActive, cutoff).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *alertRepository) ResolveExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Alert{}).
		Where("status IN ? AND expires_at < ?",
			[]string{models.AlertStatusActive, models.AlertStatusAcknowledged}, now).
		Update("status", models.AlertStatusResolved)
	return result.RowsAffected, result.Error
}
