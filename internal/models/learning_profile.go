package models

import (
	"time"

	"gorm.io/datatypes"
)

// LearningProfile aggregates a student's strengths and weaknesses. One row
// per student, created lazily on the first completed activity.
type LearningProfile struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	StudentID  uint           `gorm:"not null;uniqueIndex" json:"student_id"`
	Strengths  datatypes.JSON `gorm:"type:json" json:"strengths"`
	Weaknesses datatypes.JSON `gorm:"type:json" json:"weaknesses"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// MistakePattern counts how often a recurring mistake shows up in a
// student's work. Keyed by (student, subject, pattern); frequency increments
// in place rather than duplicating rows.
type MistakePattern struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	StudentID      uint      `gorm:"not null;uniqueIndex:idx_mistake_pattern_key" json:"student_id"`
	Subject        string    `gorm:"size:64;not null;uniqueIndex:idx_mistake_pattern_key" json:"subject"`
	PatternName    string    `gorm:"size:128;not null;uniqueIndex:idx_mistake_pattern_key" json:"pattern_name"`
	Frequency      int       `gorm:"default:1" json:"frequency"`
	LastOccurrence time.Time `json:"last_occurrence"`
	CreatedAt      time.Time `json:"created_at"`
}
