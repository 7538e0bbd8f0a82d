package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/repository"
)

// summaryRecentWindow bounds how many completed attempts feed the recent
// average.
const summaryRecentWindow = 10

// SummaryService produces the per-student performance snapshot served by the
// dashboard. Results are cached in Redis and the cache entry is dropped by
// the rewards engine whenever an award commits.
type SummaryService interface {
	GetSummary(ctx context.Context, studentID uint) (dto.GamificationSummaryResponse, error)
}

type summaryService struct {
	rewards  GamificationService
	attempts repository.AttemptRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewSummaryService builds the cached summary aggregator.
func NewSummaryService(rewards GamificationService, attempts repository.AttemptRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) SummaryService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &summaryService{
		rewards:  rewards,
		attempts: attempts,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "summary_service").Logger(),
	}
}

func (s *summaryService) GetSummary(ctx context.Context, studentID uint) (dto.GamificationSummaryResponse, error) {
	cacheKey := fmt.Sprintf("gamification:summary:%d", studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.GamificationSummaryResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", studentID).Msg("summary cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read summary cache")
		}
	}

	response, err := s.rewards.GetSummary(ctx, studentID)
	if err != nil {
		return dto.GamificationSummaryResponse{}, err
	}

	recent, err := s.attempts.ListRecentCompleted(ctx, studentID, "", summaryRecentWindow)
	if err != nil {
		return dto.GamificationSummaryResponse{}, err
	}

	var total float64
	var scored int
	for _, attempt := range recent {
		if pct, ok := attempt.Percentage(); ok {
			total += pct
			scored++
		}
	}
	if scored > 0 {
		average := total / float64(scored)
		response.RecentAverage = &average
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store summary cache")
			}
		}
	}

	return response, nil
}
