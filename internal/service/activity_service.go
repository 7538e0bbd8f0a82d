package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/internal/repository"
)

// ActivityService records quiz, game and journey completions. These kinds
// are graded by their own handlers, so the attempt is created already
// completed and the reward engine is invoked inline.
type ActivityService interface {
	CompleteQuiz(ctx context.Context, payload dto.QuizCompleteRequest) (dto.GamificationResult, error)
	CompleteGame(ctx context.Context, payload dto.GameCompleteRequest) (dto.GamificationResult, error)
	CompleteJourney(ctx context.Context, payload dto.JourneyCompleteRequest) (dto.GamificationResult, error)
}

type activityService struct {
	attempts  repository.AttemptRepository
	students  repository.StudentRepository
	rewards   GamificationService
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewActivityService constructs the activity completion service.
func NewActivityService(
	attempts repository.AttemptRepository,
	students repository.StudentRepository,
	rewards GamificationService,
	validate *validator.Validate,
	logger zerolog.Logger,
) ActivityService {
	return &activityService{
		attempts:  attempts,
		students:  students,
		rewards:   rewards,
		validator: validate,
		logger:    logger.With().Str("component", "activity_service").Logger(),
		now:       time.Now,
	}
}

func (s *activityService) CompleteQuiz(ctx context.Context, payload dto.QuizCompleteRequest) (dto.GamificationResult, error) {
	return s.completeTimed(ctx, models.AttemptKindQuiz, payload)
}

func (s *activityService) CompleteGame(ctx context.Context, payload dto.GameCompleteRequest) (dto.GamificationResult, error) {
	return s.completeTimed(ctx, models.AttemptKindGame, payload)
}

func (s *activityService) CompleteJourney(ctx context.Context, payload dto.JourneyCompleteRequest) (dto.GamificationResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GamificationResult{}, err
	}

	attempt, err := s.recordAttempt(ctx, models.AttemptKindJourney, payload.StudentID, payload.Subject, payload.Topic, payload.Score, payload.MaxScore)
	if err != nil {
		return dto.GamificationResult{}, err
	}

	return s.award(ctx, attempt, ActivityResult{
		Kind:      models.AttemptKindJourney,
		AttemptID: &attempt.ID,
		Score:     payload.Score,
		MaxScore:  payload.MaxScore,
	})
}

func (s *activityService) completeTimed(ctx context.Context, kind string, payload dto.QuizCompleteRequest) (dto.GamificationResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GamificationResult{}, err
	}

	attempt, err := s.recordAttempt(ctx, kind, payload.StudentID, payload.Subject, payload.Topic, payload.Score, payload.MaxScore)
	if err != nil {
		return dto.GamificationResult{}, err
	}

	return s.award(ctx, attempt, ActivityResult{
		Kind:             kind,
		AttemptID:        &attempt.ID,
		Score:            payload.Score,
		MaxScore:         payload.MaxScore,
		PriorScore:       payload.PriorScore,
		ElapsedSeconds:   payload.ElapsedSeconds,
		TimeLimitSeconds: payload.TimeLimitSeconds,
	})
}

func (s *activityService) recordAttempt(ctx context.Context, kind string, studentID uint, subject, topic string, score, maxScore float64) (models.Attempt, error) {
	exists, err := s.students.Exists(ctx, studentID)
	if err != nil {
		return models.Attempt{}, err
	}
	if !exists {
		return models.Attempt{}, ErrStudentNotFound
	}

	completedAt := s.now().UTC()
	attempt := models.Attempt{
		StudentID:   studentID,
		Kind:        kind,
		State:       models.AttemptStateCompleted,
		Subject:     strings.ToLower(strings.TrimSpace(subject)),
		Topic:       strings.TrimSpace(topic),
		Score:       &score,
		MaxScore:    &maxScore,
		CompletedAt: &completedAt,
	}
	if err := s.attempts.Create(ctx, &attempt); err != nil {
		return models.Attempt{}, err
	}
	return attempt, nil
}

// award applies the reward rules. A gamification failure never unwinds the
// recorded attempt: the error is logged, attached to the attempt, and the
// caller receives an empty result.
func (s *activityService) award(ctx context.Context, attempt models.Attempt, result ActivityResult) (dto.GamificationResult, error) {
	outcome, err := s.rewards.Award(ctx, attempt.StudentID, result)
	if err != nil {
		s.logger.Error().Err(err).
			Uint("attempt_id", attempt.ID).
			Str("kind", result.Kind).
			Msg("gamification award failed after completion")

		message := "gamification: " + err.Error()
		if len(message) > 512 {
			message = message[:512]
		}
		if saveErr := s.attempts.SetEnrichmentError(ctx, attempt.ID, message); saveErr != nil {
			s.logger.Warn().Err(saveErr).Uint("attempt_id", attempt.ID).Msg("failed to record enrichment error")
		}
		return dto.GamificationResult{}, nil
	}
	return outcome, nil
}
