package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "praxia",
		Subsystem: "ai",
		Name:      "analysis_duration_seconds",
		Help:      "Duration of AI content analysis requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "praxia",
		Subsystem: "ai",
		Name:      "analysis_failures_total",
		Help:      "Number of AI content analysis failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI analyzer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAnalyzer implements Analyzer against the OpenAI chat completion API.
type OpenAIAnalyzer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAnalyzer builds a new analyzer using the provided configuration.
func NewOpenAIAnalyzer(cfg OpenAIConfig) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	tracer := otel.Tracer("github.com/praxia/praxia-go-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIAnalyzer{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Analyze sends the grading request to OpenAI and parses the response.
func (a *OpenAIAnalyzer) Analyze(parent context.Context, input AnalysisInput) (AnalysisResult, error) {
	ctx, span := a.tracer.Start(parent, "openai.analyze", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.String("subject", input.Subject),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: analyzerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildAnalysisPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(a.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		aiFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AnalysisResult{}, fmt.Errorf("openai analyze: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AnalysisResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseAnalysisResponse(content)
	if err != nil {
		aiFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AnalysisResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return result, nil
}

func analyzerSystemPrompt() string {
	return "You are an automated grader for photographed student work. Respond with a JSON object containing score, max_score, " +
		"feedback, and optional breakdown, mistakes (array of {pattern, description}), strengths and weaknesses arrays. " +
		"Grade strictly against the stated subject, topic and grade level."
}

func buildAnalysisPrompt(input AnalysisInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Subject\n")
	builder.WriteString(input.Subject)
	builder.WriteString("\n\n## Topic\n")
	builder.WriteString(input.Topic)
	builder.WriteString("\n\n## Grade Level\n")
	builder.WriteString(input.GradeLevel)
	builder.WriteString("\n\n## Extracted Work\n")
	builder.WriteString(input.Text)
	if len(input.History) > 0 {
		builder.WriteString("\n\n## Recent Performance\n")
		for _, entry := range input.History {
			builder.WriteString(fmt.Sprintf("- %s / %s: %.0f%%\n", entry.Subject, entry.Topic, entry.Percentage))
		}
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

var analysisSchema = jsonschema.MustCompileString("analysis.json", `{
	"type": "object",
	"required": ["score", "feedback"],
	"properties": {
		"score": {"type": "number"},
		"max_score": {"type": "number"},
		"feedback": {"type": "string"},
		"breakdown": {"type": "object"},
		"mistakes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["pattern"],
				"properties": {
					"pattern": {"type": "string"},
					"description": {"type": "string"}
				}
			}
		},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"weaknesses": {"type": "array", "items": {"type": "string"}}
	}
}`)

func parseAnalysisResponse(content string) (AnalysisResult, error) {
	type payload struct {
		Score      float64                `json:"score"`
		MaxScore   float64                `json:"max_score"`
		Feedback   string                 `json:"feedback"`
		Breakdown  map[string]interface{} `json:"breakdown"`
		Mistakes   []Mistake              `json:"mistakes"`
		Strengths  []string               `json:"strengths"`
		Weaknesses []string               `json:"weaknesses"`
	}

	var raw interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return AnalysisResult{}, fmt.Errorf("parse analysis json: %w", ErrMalformedResponse)
	}
	if err := analysisSchema.Validate(raw); err != nil {
		return AnalysisResult{}, fmt.Errorf("analysis schema: %v: %w", err, ErrMalformedResponse)
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return AnalysisResult{}, fmt.Errorf("parse analysis json: %w", ErrMalformedResponse)
	}

	if data.MaxScore <= 0 {
		data.MaxScore = 100
	}
	if data.Score < 0 {
		data.Score = 0
	}
	if data.Score > data.MaxScore {
		data.Score = data.MaxScore
	}

	return AnalysisResult{
		Score:      data.Score,
		MaxScore:   data.MaxScore,
		Feedback:   data.Feedback,
		Breakdown:  data.Breakdown,
		Mistakes:   data.Mistakes,
		Strengths:  data.Strengths,
		Weaknesses: data.Weaknesses,
	}, nil
}
