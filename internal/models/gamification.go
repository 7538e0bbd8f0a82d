package models

import "time"

// GamificationState is the single authoritative rewards record per student.
// TotalPoints is monotonic non-decreasing; Level is derived from TotalPoints
// through one canonical threshold table (see service.LevelForPoints).
type GamificationState struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	StudentID      uint       `gorm:"not null;uniqueIndex" json:"student_id"`
	TotalPoints    int        `gorm:"default:0" json:"total_points"`
	Level          int        `gorm:"default:1" json:"level"`
	CurrentStreak  int        `gorm:"default:0" json:"current_streak"`
	LongestStreak  int        `gorm:"default:0" json:"longest_streak"`
	LastActivityAt *time.Time `json:"last_activity_at"`
	ActivityCount  int        `gorm:"default:0" json:"activity_count"`
	BestScorePct   float64    `gorm:"default:0" json:"best_score_pct"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Badge is a one-time-per-student achievement flag. The unique index makes
// awarding an already-held badge a no-op at the database level.
type Badge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_badge_key" json:"student_id"`
	BadgeID   string    `gorm:"size:64;not null;uniqueIndex:idx_badge_key" json:"badge_id"`
	EarnedAt  time.Time `json:"earned_at"`
}

// Achievement is an append-only audit entry for a single point-awarding
// reason. It is informational only and is never read back to reconstruct
// TotalPoints.
type Achievement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;index" json:"student_id"`
	AttemptID *uint     `json:"attempt_id"`
	Reason    string    `gorm:"size:128;not null" json:"reason"`
	Points    int       `gorm:"not null" json:"points"`
	CreatedAt time.Time `json:"created_at"`
}
