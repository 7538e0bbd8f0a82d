package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/internal/observability"
	"github.com/praxia/praxia-go-api/internal/repository"
)

// Badge identifiers handed out by the rules engine.
const (
	BadgeFirstActivity   = "first-activity"
	BadgeFiveActivities  = "five-activities"
	BadgeTenActivities   = "ten-activities"
	BadgeTwentyActivity  = "twenty-activities"
	BadgeFiftyActivities = "fifty-activities"
	BadgePerfectScore    = "perfect-score"
	BadgeSpeedster       = "speedster"
	BadgeHighAchiever    = "high-achiever"
)

// ActivityResult is the normalized completion event consumed by Award,
// regardless of which of the four activity kinds produced it.
type ActivityResult struct {
	Kind             string
	AttemptID        *uint
	Score            float64
	MaxScore         float64
	PriorScore       *float64
	ElapsedSeconds   int
	TimeLimitSeconds int
}

// RuleTable is the single catalogue of point amounts and thresholds shared by
// every activity kind. Quiz and game use the same speed thresholds.
type RuleTable struct {
	BasePoints        map[string]int
	PerfectBonus      int
	HighScoreBonus    int
	ImprovementBonus  int
	SpeedBonus        int
	SpeedBadgeSeconds int
	StreakMultiplier  float64
	MultiplierStreak  int
}

// DefaultRuleTable returns the standard scoring catalogue.
func DefaultRuleTable() RuleTable {
	return RuleTable{
		BasePoints: map[string]int{
			models.AttemptKindAssessment: 20,
			models.AttemptKindQuiz:       10,
			models.AttemptKindGame:       10,
			models.AttemptKindJourney:    15,
		},
		PerfectBonus:      25,
		HighScoreBonus:    15,
		ImprovementBonus:  10,
		SpeedBonus:        10,
		SpeedBadgeSeconds: 60,
		StreakMultiplier:  1.5,
		MultiplierStreak:  3,
	}
}

// levelThresholds is the canonical level table: index i holds the minimum
// points for level i+1. This is the only level function in the codebase.
var levelThresholds = []int{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 11000}

// LevelForPoints maps a point total onto a level through the canonical
// threshold table.
func LevelForPoints(points int) int {
	level := 1
	for i, threshold := range levelThresholds {
		if points >= threshold {
			level = i + 1
		}
	}
	return level
}

// GamificationService applies reward rules to normalized activity results.
type GamificationService interface {
	Award(ctx context.Context, studentID uint, result ActivityResult) (dto.GamificationResult, error)
	GetSummary(ctx context.Context, studentID uint) (dto.GamificationSummaryResponse, error)
}

type gamificationService struct {
	repo   repository.GamificationRepository
	cache  *redis.Client
	rules  RuleTable
	logger zerolog.Logger
	tracer trace.Tracer
	locks  stripedLocks
	now    func() time.Time
}

// NewGamificationService constructs the rules engine.
func NewGamificationService(repo repository.GamificationRepository, cache *redis.Client, rules RuleTable, logger zerolog.Logger) GamificationService {
	if rules.BasePoints == nil {
		rules = DefaultRuleTable()
	}
	return &gamificationService{
		repo:   repo,
		cache:  cache,
		rules:  rules,
		logger: logger.With().Str("component", "gamification_service").Logger(),
		tracer: otel.Tracer("github.com/praxia/praxia-go-api/internal/service/gamification"),
		now:    time.Now,
	}
}

func (s *gamificationService) Award(ctx context.Context, studentID uint, result ActivityResult) (dto.GamificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "gamification.award", trace.WithAttributes(
		attribute.Int("student_id", int(studentID)),
		attribute.String("activity.kind", result.Kind),
	))
	defer span.End()

	if _, ok := s.rules.BasePoints[result.Kind]; !ok {
		return dto.GamificationResult{}, fmt.Errorf("unknown activity kind %q", result.Kind)
	}

	// Striped in-process lock on top of the database row lock: awards for the
	// same student serialize before they contend on the transaction.
	unlock := s.locks.lock(studentID)
	defer unlock()

	var outcome dto.GamificationResult
	err := s.repo.WithinAward(ctx, studentID, func(tx repository.AwardTx, state *models.GamificationState) error {
		now := s.now().UTC()
		s.updateStreak(state, now)

		reasons := s.scoreReasons(result, state.CurrentStreak)

		var badges []string
		addBadge := func(id string) error {
			inserted, err := tx.AddBadge(&models.Badge{StudentID: studentID, BadgeID: id, EarnedAt: now})
			if err != nil {
				return err
			}
			if inserted {
				badges = append(badges, id)
			}
			return nil
		}

		percentage := percentageOf(result.Score, result.MaxScore)
		if percentage >= 100 {
			if err := addBadge(BadgePerfectScore); err != nil {
				return err
			}
		}
		if result.isTimed() && result.ElapsedSeconds > 0 && result.ElapsedSeconds < s.rules.SpeedBadgeSeconds {
			if err := addBadge(BadgeSpeedster); err != nil {
				return err
			}
		}

		state.ActivityCount++
		for _, badgeID := range milestoneBadges(state.ActivityCount) {
			if err := addBadge(badgeID); err != nil {
				return err
			}
		}
		if percentage >= 90 && state.BestScorePct < 90 {
			if err := addBadge(BadgeHighAchiever); err != nil {
				return err
			}
		}
		if percentage > state.BestScorePct {
			state.BestScorePct = percentage
		}

		total := 0
		for _, reason := range reasons {
			total += reason.Points
			if err := tx.AppendAchievement(&models.Achievement{
				StudentID: studentID,
				AttemptID: result.AttemptID,
				Reason:    reason.Reason,
				Points:    reason.Points,
			}); err != nil {
				return err
			}
		}

		state.TotalPoints += total
		state.Level = LevelForPoints(state.TotalPoints)

		outcome = dto.GamificationResult{
			PointsAwarded: total,
			Reasons:       reasons,
			TotalPoints:   state.TotalPoints,
			Level:         state.Level,
			CurrentStreak: state.CurrentStreak,
			LongestStreak: state.LongestStreak,
			BadgesEarned:  badges,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return dto.GamificationResult{}, err
	}

	observability.Awards().WithLabelValues(result.Kind).Inc()
	observability.PointsAwarded().Add(float64(outcome.PointsAwarded))
	s.invalidateSummary(ctx, studentID)

	s.logger.Info().
		Uint("student_id", studentID).
		Str("kind", result.Kind).
		Int("points", outcome.PointsAwarded).
		Int("streak", outcome.CurrentStreak).
		Strs("badges", outcome.BadgesEarned).
		Msg("activity rewarded")

	return outcome, nil
}

func (s *gamificationService) GetSummary(ctx context.Context, studentID uint) (dto.GamificationSummaryResponse, error) {
	state, err := s.repo.Get(ctx, studentID)
	if err != nil {
		return dto.GamificationSummaryResponse{}, err
	}

	badges, err := s.repo.ListBadges(ctx, studentID)
	if err != nil {
		return dto.GamificationSummaryResponse{}, err
	}

	return dto.NewGamificationSummaryResponse(state, badges), nil
}

// updateStreak applies day-granularity streak arithmetic against the wall
// clock: same day keeps the streak, exactly one day later extends it, any
// larger gap resets to one.
func (s *gamificationService) updateStreak(state *models.GamificationState, now time.Time) {
	today := now.Truncate(24 * time.Hour)

	switch {
	case state.LastActivityAt == nil:
		state.CurrentStreak = 1
	case state.LastActivityAt.UTC().Truncate(24 * time.Hour).Equal(today):
		// Same calendar day: streak unchanged.
	case state.LastActivityAt.UTC().Truncate(24 * time.Hour).Equal(today.AddDate(0, 0, -1)):
		state.CurrentStreak++
	default:
		state.CurrentStreak = 1
	}

	if state.CurrentStreak > state.LongestStreak {
		state.LongestStreak = state.CurrentStreak
	}
	state.LastActivityAt = &now
}

// scoreReasons computes every point-awarding reason for the activity. The
// streak multiplier applies per individual amount, not once to the sum, so
// the achievement log stays granular.
func (s *gamificationService) scoreReasons(result ActivityResult, streak int) []dto.PointsReason {
	multiply := func(points int) int {
		if streak >= s.rules.MultiplierStreak {
			return int(float64(points) * s.rules.StreakMultiplier)
		}
		return points
	}

	reasons := []dto.PointsReason{
		{Reason: "completion:" + result.Kind, Points: multiply(s.rules.BasePoints[result.Kind])},
	}

	percentage := percentageOf(result.Score, result.MaxScore)
	switch {
	case percentage >= 100:
		reasons = append(reasons, dto.PointsReason{Reason: "perfect-score", Points: multiply(s.rules.PerfectBonus)})
	case percentage >= 90:
		reasons = append(reasons, dto.PointsReason{Reason: "high-score", Points: multiply(s.rules.HighScoreBonus)})
	}

	if result.PriorScore != nil && percentage > *result.PriorScore {
		reasons = append(reasons, dto.PointsReason{Reason: "improvement", Points: multiply(s.rules.ImprovementBonus)})
	}

	if result.isTimed() && result.TimeLimitSeconds > 0 && result.ElapsedSeconds > 0 &&
		result.ElapsedSeconds < result.TimeLimitSeconds/2 {
		reasons = append(reasons, dto.PointsReason{Reason: "speed", Points: multiply(s.rules.SpeedBonus)})
	}

	return reasons
}

func (s *gamificationService) invalidateSummary(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}
	key := fmt.Sprintf("gamification:summary:%d", studentID)
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate summary cache")
	}
}

func (r ActivityResult) isTimed() bool {
	return r.Kind == models.AttemptKindQuiz || r.Kind == models.AttemptKindGame
}

func milestoneBadges(activityCount int) []string {
	switch activityCount {
	case 1:
		return []string{BadgeFirstActivity}
	case 5:
		return []string{BadgeFiveActivities}
	case 10:
		return []string{BadgeTenActivities}
	case 20:
		return []string{BadgeTwentyActivity}
	case 50:
		return []string{BadgeFiftyActivities}
	default:
		return nil
	}
}

func percentageOf(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return (score / maxScore) * 100
}

// stripedLocks serializes award application per student within this process.
const lockStripes = 64

type stripedLocks struct {
	mu [lockStripes]sync.Mutex
}

func (s *stripedLocks) lock(studentID uint) func() {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d", studentID)
	stripe := &s.mu[h.Sum32()%lockStripes]
	stripe.Lock()
	return stripe.Unlock
}
