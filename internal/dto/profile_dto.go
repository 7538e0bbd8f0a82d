package dto

import (
	"encoding/json"
	"time"

	"github.com/praxia/praxia-go-api/internal/models"
)

// MistakePatternResponse describes one recurring mistake.
type MistakePatternResponse struct {
	Subject        string    `json:"subject"`
	PatternName    string    `json:"pattern_name"`
	Frequency      int       `json:"frequency"`
	LastOccurrence time.Time `json:"last_occurrence"`
}

// LearningProfileResponse is the aggregated mastery profile for a student.
type LearningProfileResponse struct {
	StudentID       uint                     `json:"student_id"`
	Strengths       []string                 `json:"strengths"`
	Weaknesses      []string                 `json:"weaknesses"`
	MistakePatterns []MistakePatternResponse `json:"mistake_patterns"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// NewLearningProfileResponse builds the profile DTO from its models.
func NewLearningProfileResponse(profile models.LearningProfile, mistakes []models.MistakePattern) LearningProfileResponse {
	response := LearningProfileResponse{
		StudentID:       profile.StudentID,
		Strengths:       decodeStringList(profile.Strengths),
		Weaknesses:      decodeStringList(profile.Weaknesses),
		MistakePatterns: make([]MistakePatternResponse, 0, len(mistakes)),
		UpdatedAt:       profile.UpdatedAt,
	}

	for _, mistake := range mistakes {
		response.MistakePatterns = append(response.MistakePatterns, MistakePatternResponse{
			Subject:        mistake.Subject,
			PatternName:    mistake.PatternName,
			Frequency:      mistake.Frequency,
			LastOccurrence: mistake.LastOccurrence,
		})
	}

	return response
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return []string{}
	}
	return values
}
