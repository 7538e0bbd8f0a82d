package models

import (
	"time"

	"gorm.io/datatypes"
)

// Alert types raised by the performance analyzer.
const (
	AlertTypePerformanceDecline = "performance-decline"
	AlertTypeLowActivityScores  = "low-activity-scores"
	AlertTypeStreakBroken       = "streak-broken"
	AlertTypeNoActivity         = "no-activity"
	AlertTypeConceptWeakness    = "concept-weakness"
	AlertTypeLowCompletion      = "low-completion"
)

// Alert severities.
const (
	AlertSeverityLow      = "low"
	AlertSeverityMedium   = "medium"
	AlertSeverityHigh     = "high"
	AlertSeverityCritical = "critical"
)

// Alert statuses. active -> acknowledged -> resolved is the happy path;
// dismissed is a terminal shortcut from any non-terminal state.
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
	AlertStatusDismissed    = "dismissed"
)

// Alert is a system-generated signal that a student's performance or
// engagement needs human attention. Created only by the analyzer; mutated by
// acknowledge/resolve/dismiss actions; auto-resolved after expiry.
type Alert struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	StudentID uint              `gorm:"not null;index" json:"student_id"`
	Type      string            `gorm:"size:64;not null;index" json:"type"`
	Severity  string            `gorm:"size:16;not null" json:"severity"`
	Message   string            `gorm:"size:512" json:"message"`
	Metrics   datatypes.JSONMap `gorm:"type:json" json:"metrics"`
	Status    string            `gorm:"size:32;not null;index" json:"status"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// IsTerminal reports whether the alert can no longer transition.
func (a Alert) IsTerminal() bool {
	return a.Status == AlertStatusResolved || a.Status == AlertStatusDismissed
}
