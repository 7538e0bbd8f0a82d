package dto

import (
	"encoding/json"
	"time"

	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/pkg/ai"
)

// AssessmentSubmitRequest carries the metadata accompanying a photographed
// piece of student work.
type AssessmentSubmitRequest struct {
	StudentID  uint   `json:"student_id" validate:"required,gt=0"`
	Subject    string `json:"subject" validate:"required,min=2,max=64"`
	Topic      string `json:"topic" validate:"max=128"`
	GradeLevel string `json:"grade_level" validate:"max=32"`
}

// AssessmentSubmitResponse acknowledges an accepted submission.
type AssessmentSubmitResponse struct {
	AttemptID uint   `json:"attempt_id"`
	State     string `json:"state"`
}

// AttemptResponse represents an attempt to API consumers.
type AttemptResponse struct {
	ID                   uint                   `json:"id"`
	StudentID            uint                   `json:"student_id"`
	Kind                 string                 `json:"kind"`
	State                string                 `json:"state"`
	Subject              string                 `json:"subject"`
	Topic                string                 `json:"topic"`
	GradeLevel           string                 `json:"grade_level"`
	ImageURL             string                 `json:"image_url,omitempty"`
	Score                *float64               `json:"score,omitempty"`
	MaxScore             *float64               `json:"max_score,omitempty"`
	Breakdown            map[string]interface{} `json:"breakdown,omitempty"`
	Mistakes             []ai.Mistake           `json:"mistakes,omitempty"`
	Feedback             string                 `json:"feedback,omitempty"`
	FailureStage         string                 `json:"failure_stage,omitempty"`
	EnrichmentError      *string                `json:"enrichment_error,omitempty"`
	Viewed               bool                   `json:"viewed"`
	ProcessingDurationMs int64                  `json:"processing_duration_ms"`
	CreatedAt            time.Time              `json:"created_at"`
	CompletedAt          *time.Time             `json:"completed_at,omitempty"`
}

// NewAttemptResponse builds a response DTO from a model.
func NewAttemptResponse(attempt models.Attempt) AttemptResponse {
	response := AttemptResponse{
		ID:                   attempt.ID,
		StudentID:            attempt.StudentID,
		Kind:                 attempt.Kind,
		State:                attempt.State,
		Subject:              attempt.Subject,
		Topic:                attempt.Topic,
		GradeLevel:           attempt.GradeLevel,
		ImageURL:             attempt.ImageURL,
		Score:                attempt.Score,
		MaxScore:             attempt.MaxScore,
		Feedback:             attempt.Feedback,
		FailureStage:         attempt.FailureStage,
		EnrichmentError:      attempt.EnrichmentError,
		Viewed:               attempt.Viewed,
		ProcessingDurationMs: attempt.ProcessingDurationMs,
		CreatedAt:            attempt.CreatedAt,
		CompletedAt:          attempt.CompletedAt,
	}

	if attempt.Breakdown != nil {
		response.Breakdown = map[string]interface{}(attempt.Breakdown)
	}
	if len(attempt.Mistakes) > 0 {
		var mistakes []ai.Mistake
		if err := json.Unmarshal(attempt.Mistakes, &mistakes); err == nil {
			response.Mistakes = mistakes
		}
	}

	return response
}
