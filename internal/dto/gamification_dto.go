package dto

import (
	"time"

	"github.com/praxia/praxia-go-api/internal/models"
)

// QuizCompleteRequest carries the normalized outcome of a quiz attempt.
type QuizCompleteRequest struct {
	StudentID        uint     `json:"student_id" validate:"required,gt=0"`
	Subject          string   `json:"subject" validate:"required,min=2,max=64"`
	Topic            string   `json:"topic" validate:"max=128"`
	Score            float64  `json:"score" validate:"gte=0"`
	MaxScore         float64  `json:"max_score" validate:"required,gt=0"`
	PriorScore       *float64 `json:"prior_score,omitempty"`
	ElapsedSeconds   int      `json:"elapsed_seconds" validate:"gte=0"`
	TimeLimitSeconds int      `json:"time_limit_seconds" validate:"gte=0"`
}

// GameCompleteRequest carries the normalized outcome of a game attempt.
type GameCompleteRequest = QuizCompleteRequest

// JourneyCompleteRequest carries the normalized outcome of a guided journey step.
type JourneyCompleteRequest struct {
	StudentID uint    `json:"student_id" validate:"required,gt=0"`
	Subject   string  `json:"subject" validate:"required,min=2,max=64"`
	Topic     string  `json:"topic" validate:"max=128"`
	Score     float64 `json:"score" validate:"gte=0"`
	MaxScore  float64 `json:"max_score" validate:"required,gt=0"`
}

// PointsReason pairs an awarded amount with the rule that produced it.
type PointsReason struct {
	Reason string `json:"reason"`
	Points int    `json:"points"`
}

// GamificationResult summarises the effect of one award.
type GamificationResult struct {
	PointsAwarded int            `json:"points_awarded"`
	Reasons       []PointsReason `json:"reasons"`
	TotalPoints   int            `json:"total_points"`
	Level         int            `json:"level"`
	CurrentStreak int            `json:"current_streak"`
	LongestStreak int            `json:"longest_streak"`
	BadgesEarned  []string       `json:"badges_earned"`
}

// BadgeResponse represents an earned badge.
type BadgeResponse struct {
	BadgeID  string    `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}

// GamificationSummaryResponse is the per-student rewards snapshot.
type GamificationSummaryResponse struct {
	StudentID     uint            `json:"student_id"`
	TotalPoints   int             `json:"total_points"`
	Level         int             `json:"level"`
	CurrentStreak int             `json:"current_streak"`
	LongestStreak int             `json:"longest_streak"`
	ActivityCount int             `json:"activity_count"`
	Badges        []BadgeResponse `json:"badges"`
	RecentAverage *float64        `json:"recent_average,omitempty"`
}

// NewGamificationSummaryResponse builds the summary from state and badges.
func NewGamificationSummaryResponse(state models.GamificationState, badges []models.Badge) GamificationSummaryResponse {
	badgeResponses := make([]BadgeResponse, 0, len(badges))
	for _, badge := range badges {
		badgeResponses = append(badgeResponses, BadgeResponse{BadgeID: badge.BadgeID, EarnedAt: badge.EarnedAt})
	}

	return GamificationSummaryResponse{
		StudentID:     state.StudentID,
		TotalPoints:   state.TotalPoints,
		Level:         state.Level,
		CurrentStreak: state.CurrentStreak,
		LongestStreak: state.LongestStreak,
		ActivityCount: state.ActivityCount,
		Badges:        badgeResponses,
	}
}
