package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/internal/repository"
	"github.com/praxia/praxia-go-api/pkg/ai"
)

// ErrProfileNotFound indicates the student has no learning profile yet.
var ErrProfileNotFound = errors.New("learning profile not found")

// profileTraitCap bounds the strengths and weaknesses sets. On overflow the
// most recent entries win.
const profileTraitCap = 10

// ProfileService folds per-attempt analysis results into the student's
// bounded mastery profile.
type ProfileService interface {
	ApplyResult(ctx context.Context, studentID uint, subject string, result ai.AnalysisResult) error
	GetProfile(ctx context.Context, studentID uint) (dto.LearningProfileResponse, error)
}

type profileService struct {
	repo   repository.ProfileRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewProfileService constructs the profile updater.
func NewProfileService(repo repository.ProfileRepository, logger zerolog.Logger) ProfileService {
	return &profileService{
		repo:   repo,
		logger: logger.With().Str("component", "profile_service").Logger(),
		now:    time.Now,
	}
}

func (s *profileService) ApplyResult(ctx context.Context, studentID uint, subject string, result ai.AnalysisResult) error {
	profile, err := s.repo.Get(ctx, studentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		profile = models.LearningProfile{StudentID: studentID}
	}

	strengths := mergeTraits(decodeTraits(profile.Strengths), result.Strengths)
	weaknesses := mergeTraits(decodeTraits(profile.Weaknesses), result.Weaknesses)

	profile.Strengths = encodeTraits(strengths)
	profile.Weaknesses = encodeTraits(weaknesses)

	if err := s.repo.Save(ctx, &profile); err != nil {
		return err
	}

	now := s.now().UTC()
	for _, mistake := range result.Mistakes {
		pattern := strings.TrimSpace(mistake.Pattern)
		if pattern == "" {
			continue
		}
		if err := s.repo.RecordMistake(ctx, studentID, subject, pattern, now); err != nil {
			return err
		}
	}

	return nil
}

func (s *profileService) GetProfile(ctx context.Context, studentID uint) (dto.LearningProfileResponse, error) {
	profile, err := s.repo.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LearningProfileResponse{}, ErrProfileNotFound
		}
		return dto.LearningProfileResponse{}, err
	}

	mistakes, err := s.repo.ListMistakes(ctx, studentID)
	if err != nil {
		return dto.LearningProfileResponse{}, err
	}

	return dto.NewLearningProfileResponse(profile, mistakes), nil
}

// mergeTraits appends incoming traits to the existing set, deduplicating
// case-insensitively. When the cap is exceeded the oldest entries drop off.
func mergeTraits(existing, incoming []string) []string {
	merged := append([]string(nil), existing...)
	seen := make(map[string]int, len(merged))
	for i, trait := range merged {
		seen[strings.ToLower(trait)] = i
	}

	for _, trait := range incoming {
		trimmed := strings.TrimSpace(trait)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if idx, ok := seen[key]; ok {
			// Refresh recency by moving the trait to the tail.
			merged = append(append(merged[:idx], merged[idx+1:]...), trimmed)
			seen = reindex(merged)
			continue
		}
		merged = append(merged, trimmed)
		seen[key] = len(merged) - 1
	}

	if len(merged) > profileTraitCap {
		merged = merged[len(merged)-profileTraitCap:]
	}
	return merged
}

func reindex(traits []string) map[string]int {
	seen := make(map[string]int, len(traits))
	for i, trait := range traits {
		seen[strings.ToLower(trait)] = i
	}
	return seen
}

func decodeTraits(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var traits []string
	if err := json.Unmarshal(raw, &traits); err != nil {
		return nil
	}
	return traits
}

func encodeTraits(traits []string) datatypes.JSON {
	payload, err := json.Marshal(traits)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(payload)
}
