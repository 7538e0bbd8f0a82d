package ai

import (
	"context"
	"errors"
)

// ErrMalformedResponse indicates the model replied with something that could
// not be parsed into an AnalysisResult.
var ErrMalformedResponse = errors.New("malformed analysis response")

// HistoryEntry summarises one earlier completed attempt, passed to the model
// as grading context.
type HistoryEntry struct {
	Subject    string
	Topic      string
	Percentage float64
}

// AnalysisInput contains the artefacts needed to grade a piece of extracted
// student work.
type AnalysisInput struct {
	Text       string
	Subject    string
	Topic      string
	GradeLevel string
	History    []HistoryEntry
}

// Mistake is a single recurring error identified in the work.
type Mistake struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
}

// AnalysisResult is the structured grade returned by the analyzer.
type AnalysisResult struct {
	Score      float64                `json:"score"`
	MaxScore   float64                `json:"max_score"`
	Breakdown  map[string]interface{} `json:"breakdown,omitempty"`
	Mistakes   []Mistake              `json:"mistakes,omitempty"`
	Strengths  []string               `json:"strengths,omitempty"`
	Weaknesses []string               `json:"weaknesses,omitempty"`
	Feedback   string                 `json:"feedback"`
	Raw        map[string]interface{} `json:"raw,omitempty"`
}

// Analyzer describes an AI model capable of grading extracted student work.
type Analyzer interface {
	Analyze(ctx context.Context, input AnalysisInput) (AnalysisResult, error)
}
