package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/internal/observability"
	"github.com/praxia/praxia-go-api/internal/repository"
)

// ErrAlertNotFound indicates the alert cannot be located.
var ErrAlertNotFound = errors.New("alert not found")

// Analyzer windows and thresholds.
const (
	alertDedupWindow    = 7 * 24 * time.Hour
	alertExpiryHorizon  = 30 * 24 * time.Hour
	lowScoreWindow      = 30 * 24 * time.Hour
	declineWindow       = 60 * 24 * time.Hour
	inactivityThreshold = 14
	inactivityHighDays  = 30
)

// AlertService inspects a student's recent history and raises deduplicated
// alerts; it also owns the alert lifecycle actions.
type AlertService interface {
	// Analyze runs every check and returns only the alerts created by this run.
	Analyze(ctx context.Context, studentID uint) ([]dto.AlertResponse, error)
	ListAlerts(ctx context.Context, studentID uint, statuses []string) ([]dto.AlertResponse, error)
	Acknowledge(ctx context.Context, alertID uint) (dto.AlertResponse, error)
	Resolve(ctx context.Context, alertID uint) (dto.AlertResponse, error)
	Dismiss(ctx context.Context, alertID uint) (dto.AlertResponse, error)
	// ExpireOverdue auto-resolves alerts past their expiry horizon.
	ExpireOverdue(ctx context.Context) (int64, error)
}

type alertService struct {
	alerts   repository.AlertRepository
	attempts repository.AttemptRepository
	rewards  repository.GamificationRepository
	profiles repository.ProfileRepository
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAlertService constructs the analyzer.
func NewAlertService(
	alerts repository.AlertRepository,
	attempts repository.AttemptRepository,
	rewards repository.GamificationRepository,
	profiles repository.ProfileRepository,
	logger zerolog.Logger,
) AlertService {
	return &alertService{
		alerts:   alerts,
		attempts: attempts,
		rewards:  rewards,
		profiles: profiles,
		logger:   logger.With().Str("component", "alert_service").Logger(),
		now:      time.Now,
	}
}

type candidateAlert struct {
	alertType string
	severity  string
	message   string
	metrics   map[string]interface{}
}

func (s *alertService) Analyze(ctx context.Context, studentID uint) ([]dto.AlertResponse, error) {
	now := s.now().UTC()

	var candidates []candidateAlert
	appendIf := func(candidate *candidateAlert) {
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}
	}

	completed30d, err := s.attempts.ListCompletedSince(ctx, studentID, now.Add(-lowScoreWindow))
	if err != nil {
		return nil, err
	}
	appendIf(checkLowScores(completed30d))

	completed60d, err := s.attempts.ListCompletedSince(ctx, studentID, now.Add(-declineWindow))
	if err != nil {
		return nil, err
	}
	appendIf(checkDecline(completed60d))

	lastActivity, err := s.attempts.MostRecentActivityAt(ctx, studentID)
	if err != nil {
		return nil, err
	}
	appendIf(checkInactivity(lastActivity, now))

	appendIf(s.checkBrokenStreak(ctx, studentID, now))
	appendIf(s.checkConceptWeakness(ctx, studentID, now))

	all30d, err := s.attempts.ListSince(ctx, studentID, now.Add(-lowScoreWindow))
	if err != nil {
		return nil, err
	}
	appendIf(checkLowCompletion(all30d))

	created := make([]dto.AlertResponse, 0, len(candidates))
	for _, candidate := range candidates {
		duplicate, err := s.alerts.HasActiveSince(ctx, studentID, candidate.alertType, now.Add(-alertDedupWindow))
		if err != nil {
			return nil, err
		}
		if duplicate {
			continue
		}

		alert := models.Alert{
			StudentID: studentID,
			Type:      candidate.alertType,
			Severity:  candidate.severity,
			Message:   candidate.message,
			Metrics:   datatypes.JSONMap(candidate.metrics),
			Status:    models.AlertStatusActive,
			ExpiresAt: now.Add(alertExpiryHorizon),
		}
		if err := s.alerts.Create(ctx, &alert); err != nil {
			return nil, err
		}

		observability.AlertsRaised().WithLabelValues(alert.Type, alert.Severity).Inc()
		s.logger.Info().
			Uint("student_id", studentID).
			Str("type", alert.Type).
			Str("severity", alert.Severity).
			Msg("alert raised")
		created = append(created, dto.NewAlertResponse(alert))
	}

	return created, nil
}

// checkLowScores flags a run of poor recent results.
func checkLowScores(completed []models.Attempt) *candidateAlert {
	scored := scoredAttempts(completed)
	if len(scored) < 3 {
		return nil
	}

	var sum float64
	for _, pct := range scored {
		sum += pct
	}
	average := sum / float64(len(scored))

	lastFive := scored
	if len(lastFive) > 5 {
		lastFive = lastFive[len(lastFive)-5:]
	}
	failures := 0
	for _, pct := range lastFive {
		if pct < 50 {
			failures++
		}
	}

	if average >= 60 && failures < 2 {
		return nil
	}

	severity := models.AlertSeverityMedium
	if average < 40 || failures >= 3 {
		severity = models.AlertSeverityHigh
	}

	return &candidateAlert{
		alertType: models.AlertTypeLowActivityScores,
		severity:  severity,
		message:   fmt.Sprintf("Average score over the last 30 days is %.1f%% with %d recent results below 50%%", average, failures),
		metrics: map[string]interface{}{
			"average":        average,
			"recentFailures": failures,
			"sampleSize":     len(scored),
		},
	}
}

// checkDecline compares the older and newer halves of the 60-day history.
func checkDecline(completed []models.Attempt) *candidateAlert {
	scored := scoredAttempts(completed)
	if len(scored) < 4 {
		return nil
	}

	half := len(scored) / 2
	olderAvg := average(scored[:half])
	newerAvg := average(scored[half:])
	drop := olderAvg - newerAvg
	if drop <= 15 {
		return nil
	}

	severity := models.AlertSeverityMedium
	if drop > 25 {
		severity = models.AlertSeverityHigh
	}

	return &candidateAlert{
		alertType: models.AlertTypePerformanceDecline,
		severity:  severity,
		message:   fmt.Sprintf("Average score dropped from %.1f%% to %.1f%%", olderAvg, newerAvg),
		metrics: map[string]interface{}{
			"previousScore": olderAvg,
			"currentScore":  newerAvg,
			"drop":          drop,
		},
	}
}

func checkInactivity(lastActivity *time.Time, now time.Time) *candidateAlert {
	if lastActivity == nil {
		// Never active: nothing meaningful to alert on.
		return nil
	}

	daysInactive := int(now.Sub(*lastActivity).Hours() / 24)
	if daysInactive <= inactivityThreshold {
		return nil
	}

	severity := models.AlertSeverityMedium
	if daysInactive > inactivityHighDays {
		severity = models.AlertSeverityHigh
	}

	return &candidateAlert{
		alertType: models.AlertTypeNoActivity,
		severity:  severity,
		message:   fmt.Sprintf("No activity for %d days", daysInactive),
		metrics:   map[string]interface{}{"daysInactive": daysInactive},
	}
}

// checkBrokenStreak flags a long-standing streak that lapsed within the last
// week, while the student can still realistically pick it back up.
func (s *alertService) checkBrokenStreak(ctx context.Context, studentID uint, now time.Time) *candidateAlert {
	state, err := s.rewards.Get(ctx, studentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to load gamification state")
		}
		return nil
	}

	if state.LongestStreak < 7 || state.LastActivityAt == nil {
		return nil
	}

	gapDays := int(now.Sub(*state.LastActivityAt).Hours() / 24)
	if gapDays < 2 || gapDays > 7 {
		return nil
	}

	return &candidateAlert{
		alertType: models.AlertTypeStreakBroken,
		severity:  models.AlertSeverityLow,
		message:   fmt.Sprintf("A %d-day streak lapsed %d days ago", state.LongestStreak, gapDays),
		metrics: map[string]interface{}{
			"longestStreak": state.LongestStreak,
			"gapDays":       gapDays,
		},
	}
}

func (s *alertService) checkConceptWeakness(ctx context.Context, studentID uint, now time.Time) *candidateAlert {
	patterns, err := s.profiles.ListMistakesSince(ctx, studentID, now.Add(-lowScoreWindow))
	if err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to load mistake patterns")
		return nil
	}

	for _, pattern := range patterns {
		if pattern.Frequency < 5 {
			continue
		}
		severity := models.AlertSeverityMedium
		if pattern.Frequency >= 10 {
			severity = models.AlertSeverityHigh
		}
		return &candidateAlert{
			alertType: models.AlertTypeConceptWeakness,
			severity:  severity,
			message:   fmt.Sprintf("Recurring mistake %q in %s seen %d times", pattern.PatternName, pattern.Subject, pattern.Frequency),
			metrics: map[string]interface{}{
				"subject":   pattern.Subject,
				"pattern":   pattern.PatternName,
				"frequency": pattern.Frequency,
			},
		}
	}
	return nil
}

func checkLowCompletion(attempts []models.Attempt) *candidateAlert {
	if len(attempts) < 5 {
		return nil
	}

	failed := 0
	terminal := 0
	for _, attempt := range attempts {
		if !attempt.IsTerminal() {
			continue
		}
		terminal++
		if attempt.State == models.AttemptStateFailed {
			failed++
		}
	}
	if terminal < 5 {
		return nil
	}

	failureRate := float64(failed) / float64(terminal)
	if failureRate <= 0.4 {
		return nil
	}

	return &candidateAlert{
		alertType: models.AlertTypeLowCompletion,
		severity:  models.AlertSeverityMedium,
		message:   fmt.Sprintf("%d of %d recent attempts failed to complete", failed, terminal),
		metrics: map[string]interface{}{
			"failed":      failed,
			"terminal":    terminal,
			"failureRate": failureRate,
		},
	}
}

func (s *alertService) ListAlerts(ctx context.Context, studentID uint, statuses []string) ([]dto.AlertResponse, error) {
	alerts, err := s.alerts.ListByStudent(ctx, studentID, statuses)
	if err != nil {
		return nil, err
	}
	return dto.NewAlertResponseSlice(alerts), nil
}

func (s *alertService) Acknowledge(ctx context.Context, alertID uint) (dto.AlertResponse, error) {
	return s.transition(ctx, alertID, models.AlertStatusAcknowledged, []string{models.AlertStatusActive})
}

func (s *alertService) Resolve(ctx context.Context, alertID uint) (dto.AlertResponse, error) {
	return s.transition(ctx, alertID, models.AlertStatusResolved, []string{models.AlertStatusActive, models.AlertStatusAcknowledged})
}

func (s *alertService) Dismiss(ctx context.Context, alertID uint) (dto.AlertResponse, error) {
	return s.transition(ctx, alertID, models.AlertStatusDismissed, []string{models.AlertStatusActive, models.AlertStatusAcknowledged})
}

// transition applies a caller-driven status change. An illegal transition is
// a no-op: the current alert is returned unchanged.
func (s *alertService) transition(ctx context.Context, alertID uint, target string, allowedFrom []string) (dto.AlertResponse, error) {
	alert, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AlertResponse{}, ErrAlertNotFound
		}
		return dto.AlertResponse{}, err
	}

	allowed := false
	for _, status := range allowedFrom {
		if alert.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		s.logger.Debug().
			Uint("alert_id", alertID).
			Str("from", alert.Status).
			Str("to", target).
			Msg("ignoring illegal alert transition")
		return dto.NewAlertResponse(alert), nil
	}

	alert.Status = target
	if err := s.alerts.Update(ctx, &alert); err != nil {
		return dto.AlertResponse{}, err
	}
	return dto.NewAlertResponse(alert), nil
}

func (s *alertService) ExpireOverdue(ctx context.Context) (int64, error) {
	resolved, err := s.alerts.ResolveExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if resolved > 0 {
		s.logger.Info().Int64("count", resolved).Msg("auto-resolved expired alerts")
	}
	return resolved, nil
}

func scoredAttempts(attempts []models.Attempt) []float64 {
	scored := make([]float64, 0, len(attempts))
	for _, attempt := range attempts {
		if pct, ok := attempt.Percentage(); ok {
			scored = append(scored, pct)
		}
	}
	return scored
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}
