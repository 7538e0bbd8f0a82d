package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/internal/repository"
)

type alertFixture struct {
	service *alertService
	alerts  repository.AlertRepository
	db      *gorm.DB
	now     time.Time
}

func setupAlerts(t *testing.T) *alertFixture {
	t.Helper()
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Student{Name: "Ada", Email: "ada@example.com"}).Error)

	alerts := repository.NewAlertRepository(db)
	svc := NewAlertService(
		alerts,
		repository.NewAttemptRepository(db),
		repository.NewGamificationRepository(db),
		repository.NewProfileRepository(db),
		testLogger(),
	).(*alertService)

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &alertFixture{service: svc, alerts: alerts, db: db, now: now}
}

func (f *alertFixture) seedCompleted(t *testing.T, daysAgo int, score, maxScore float64) {
	t.Helper()
	completedAt := f.now.AddDate(0, 0, -daysAgo)
	attempt := models.Attempt{
		StudentID:   1,
		Kind:        models.AttemptKindQuiz,
		State:       models.AttemptStateCompleted,
		Subject:     "math",
		Score:       &score,
		MaxScore:    &maxScore,
		CreatedAt:   completedAt,
		CompletedAt: &completedAt,
	}
	require.NoError(t, f.db.Create(&attempt).Error)
}

func TestAnalyzeLowScoresRaisesAlert(t *testing.T) {
	f := setupAlerts(t)
	f.seedCompleted(t, 10, 40, 100)
	f.seedCompleted(t, 8, 45, 100)
	f.seedCompleted(t, 5, 55, 100)

	created, err := f.service.Analyze(context.Background(), 1)
	require.NoError(t, err)

	var alert *models.Alert
	all, err := f.alerts.ListByStudent(context.Background(), 1, nil)
	require.NoError(t, err)
	for i := range all {
		if all[i].Type == models.AlertTypeLowActivityScores {
			alert = &all[i]
		}
	}
	require.NotNil(t, alert, "low-activity-scores alert expected")
	require.Equal(t, models.AlertStatusActive, alert.Status)
	require.NotEmpty(t, created)
}

func TestAnalyzeDeduplicatesWithinWindow(t *testing.T) {
	f := setupAlerts(t)
	f.seedCompleted(t, 10, 40, 100)
	f.seedCompleted(t, 8, 45, 100)
	f.seedCompleted(t, 5, 55, 100)

	first, err := f.service.Analyze(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := f.service.Analyze(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, second, "identical active alerts within 7 days must not repeat")
}

func TestAnalyzeDeclineComparesHalves(t *testing.T) {
	f := setupAlerts(t)
	// Older half well outside the 30-day low-score window.
	f.seedCompleted(t, 45, 90, 100)
	f.seedCompleted(t, 40, 85, 100)
	// Newer half recent and poor.
	f.seedCompleted(t, 6, 40, 100)
	f.seedCompleted(t, 5, 35, 100)

	created, err := f.service.Analyze(context.Background(), 1)
	require.NoError(t, err)

	var decline bool
	for _, alert := range created {
		if alert.Type == models.AlertTypePerformanceDecline {
			decline = true
			require.Equal(t, models.AlertSeverityHigh, alert.Severity)
			require.InDelta(t, 87.5, alert.Metrics["previousScore"], 0.01)
			require.InDelta(t, 37.5, alert.Metrics["currentScore"], 0.01)
		}
	}
	require.True(t, decline, "performance-decline alert expected")
}

func TestAnalyzeInactivity(t *testing.T) {
	f := setupAlerts(t)
	f.seedCompleted(t, 20, 80, 100)

	created, err := f.service.Analyze(context.Background(), 1)
	require.NoError(t, err)

	var inactivity bool
	for _, alert := range created {
		if alert.Type == models.AlertTypeNoActivity {
			inactivity = true
			require.Equal(t, models.AlertSeverityMedium, alert.Severity)
		}
	}
	require.True(t, inactivity, "no-activity alert expected after 20 idle days")
}

func TestAnalyzeBrokenStreak(t *testing.T) {
	f := setupAlerts(t)
	lastActivity := f.now.AddDate(0, 0, -3)
	require.NoError(t, f.db.Create(&models.GamificationState{
		StudentID:      1,
		LongestStreak:  9,
		CurrentStreak:  9,
		LastActivityAt: &lastActivity,
	}).Error)

	created, err := f.service.Analyze(context.Background(), 1)
	require.NoError(t, err)

	var broken bool
	for _, alert := range created {
		if alert.Type == models.AlertTypeStreakBroken {
			broken = true
			require.Equal(t, models.AlertSeverityLow, alert.Severity)
		}
	}
	require.True(t, broken, "streak-broken alert expected for a 3-day lapse")
}

func TestAnalyzeConceptWeakness(t *testing.T) {
	f := setupAlerts(t)
	require.NoError(t, f.db.Create(&models.MistakePattern{
		StudentID:      1,
		Subject:        "math",
		PatternName:    "carrying errors",
		Frequency:      6,
		LastOccurrence: f.now.AddDate(0, 0, -2),
	}).Error)
	// Keep the student active so inactivity noise stays out.
	f.seedCompleted(t, 1, 80, 100)

	created, err := f.service.Analyze(context.Background(), 1)
	require.NoError(t, err)

	var weakness bool
	for _, alert := range created {
		if alert.Type == models.AlertTypeConceptWeakness {
			weakness = true
		}
	}
	require.True(t, weakness, "concept-weakness alert expected at frequency 6")
}

func TestAlertLifecycleTransitions(t *testing.T) {
	f := setupAlerts(t)
	alert := models.Alert{
		StudentID: 1,
		Type:      models.AlertTypeNoActivity,
		Severity:  models.AlertSeverityMedium,
		Status:    models.AlertStatusActive,
		ExpiresAt: f.now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, f.alerts.Create(context.Background(), &alert))

	acked, err := f.service.Acknowledge(context.Background(), alert.ID)
	require.NoError(t, err)
	require.Equal(t, models.AlertStatusAcknowledged, acked.Status)

	resolved, err := f.service.Resolve(context.Background(), alert.ID)
	require.NoError(t, err)
	require.Equal(t, models.AlertStatusResolved, resolved.Status)

	// Illegal transition: resolved alerts stay resolved.
	dismissed, err := f.service.Dismiss(context.Background(), alert.ID)
	require.NoError(t, err)
	require.Equal(t, models.AlertStatusResolved, dismissed.Status)
}

func TestAlertTransitionUnknownAlert(t *testing.T) {
	f := setupAlerts(t)

	_, err := f.service.Acknowledge(context.Background(), 123)
	require.ErrorIs(t, err, ErrAlertNotFound)
}

func TestExpireOverdueAutoResolves(t *testing.T) {
	f := setupAlerts(t)
	alert := models.Alert{
		StudentID: 1,
		Type:      models.AlertTypeNoActivity,
		Severity:  models.AlertSeverityMedium,
		Status:    models.AlertStatusActive,
		ExpiresAt: f.now.Add(-time.Hour),
	}
	require.NoError(t, f.alerts.Create(context.Background(), &alert))

	resolved, err := f.service.ExpireOverdue(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, resolved)

	reloaded, err := f.alerts.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	require.Equal(t, models.AlertStatusResolved, reloaded.Status)
}
