package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoTextFound indicates the image contained no recognisable text.
var ErrNoTextFound = errors.New("no text found in image")

var (
	ocrDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "praxia",
		Subsystem: "ocr",
		Name:      "extraction_duration_seconds",
		Help:      "Duration of text extraction requests",
	}, []string{"model"})

	ocrFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "praxia",
		Subsystem: "ocr",
		Name:      "extraction_failures_total",
		Help:      "Number of text extraction failures",
	}, []string{"model", "reason"})
)

// Extractor describes a service able to read text out of an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (string, error)
}

// OpenAIConfig defines configuration options for the vision extractor.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Logger    zerolog.Logger
}

// OpenAIExtractor implements Extractor using the OpenAI vision API.
type OpenAIExtractor struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIExtractor builds a vision-based text extractor.
func NewOpenAIExtractor(cfg OpenAIConfig) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey)),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/praxia/praxia-go-api/pkg/ocr/openai"),
		logger: logger,
	}, nil
}

// Extract sends the image to the vision model and returns the transcribed text.
func (e *OpenAIExtractor) Extract(parent context.Context, image []byte) (string, error) {
	ctx, span := e.tracer.Start(parent, "openai.extract_text", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.Int("image.size_bytes", len(image)),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Transcribe all handwritten and printed text in the image exactly as written. Reply with the text only. If the image contains no readable text, reply with NO_TEXT.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL(image),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	ocrDuration.WithLabelValues(e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		ocrFailures.WithLabelValues(e.cfg.Model, "request").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai extract: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		ocrFailures.WithLabelValues(e.cfg.Model, "empty").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" || strings.EqualFold(text, "NO_TEXT") {
		ocrFailures.WithLabelValues(e.cfg.Model, "no_text").Inc()
		span.SetStatus(codes.Error, "no text found")
		return "", ErrNoTextFound
	}

	span.SetAttributes(attribute.Int("text.length", len(text)))
	return text, nil
}

func dataURL(image []byte) string {
	mime := mimetype.Detect(image)
	return fmt.Sprintf("data:%s;base64,%s", mime.String(), base64.StdEncoding.EncodeToString(image))
}
