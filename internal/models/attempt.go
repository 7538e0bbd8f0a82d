package models

import (
	"time"

	"gorm.io/datatypes"
)

// AttemptState enumerates the lifecycle states of an attempt.
const (
	AttemptStatePending    = "pending"
	AttemptStateProcessing = "processing"
	AttemptStateCompleted  = "completed"
	AttemptStateFailed     = "failed"
)

// AttemptKind enumerates the gradable activity kinds.
const (
	AttemptKindAssessment = "assessment"
	AttemptKindQuiz       = "quiz"
	AttemptKindGame       = "game"
	AttemptKindJourney    = "journey"
)

// Pipeline stages recorded when an attempt fails.
const (
	FailureStageStorage    = "storage"
	FailureStageExtraction = "extraction"
	FailureStageAnalysis   = "analysis"
	FailureStageTimeout    = "timeout"
)

// Attempt represents one instance of a student performing a gradable activity.
// Photographed-work assessments move through the processing pipeline; quiz,
// game and journey attempts are created already completed by their own
// submit handlers.
type Attempt struct {
	ID                   uint              `gorm:"primaryKey" json:"id"`
	StudentID            uint              `gorm:"not null;index" json:"student_id"`
	Kind                 string            `gorm:"size:32;not null" json:"kind"`
	State                string            `gorm:"size:32;not null;index" json:"state"`
	Subject              string            `gorm:"size:64;index" json:"subject"`
	Topic                string            `gorm:"size:128" json:"topic"`
	GradeLevel           string            `gorm:"size:32" json:"grade_level"`
	ImageURL             string            `gorm:"size:512" json:"image_url"`
	ExtractedText        string            `gorm:"type:text" json:"extracted_text"`
	Score                *float64          `json:"score"`
	MaxScore             *float64          `json:"max_score"`
	Breakdown            datatypes.JSONMap `gorm:"type:json" json:"breakdown"`
	Mistakes             datatypes.JSON    `gorm:"type:json" json:"mistakes"`
	Feedback             string            `gorm:"type:text" json:"feedback"`
	FailureStage         string            `gorm:"size:32" json:"failure_stage,omitempty"`
	EnrichmentError      *string           `gorm:"size:512" json:"enrichment_error,omitempty"`
	Viewed               bool              `gorm:"default:false" json:"viewed"`
	ProcessingDurationMs int64             `gorm:"default:0" json:"processing_duration_ms"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	CompletedAt          *time.Time        `json:"completed_at"`
}

// IsTerminal reports whether the attempt reached a final state.
func (a Attempt) IsTerminal() bool {
	return a.State == AttemptStateCompleted || a.State == AttemptStateFailed
}

// Percentage returns the score as a 0-100 percentage, or false when the
// attempt carries no usable score.
func (a Attempt) Percentage() (float64, bool) {
	if a.Score == nil || a.MaxScore == nil || *a.MaxScore <= 0 {
		return 0, false
	}
	return (*a.Score / *a.MaxScore) * 100, true
}
