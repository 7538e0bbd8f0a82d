package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/internal/observability"
	"github.com/praxia/praxia-go-api/internal/repository"
	"github.com/praxia/praxia-go-api/pkg/ai"
	"github.com/praxia/praxia-go-api/pkg/ocr"
)

var (
	// ErrAttemptNotFound indicates the attempt cannot be located.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrStudentNotFound indicates the submitting student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrNotAnImage indicates the submitted payload is not an image.
	ErrNotAnImage = errors.New("submitted file is not an image")
	// ErrAttemptNotTerminal indicates a viewed flag was requested on a live attempt.
	ErrAttemptNotTerminal = errors.New("attempt has not finished processing")
)

// BlobStore abstracts durable image storage.
type BlobStore interface {
	Upload(ctx context.Context, keyHint string, reader io.Reader) (string, error)
}

// Enqueuer hands an accepted attempt to the background processing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, attemptID uint) error
}

// AssessmentConfig carries the pipeline's operational knobs.
type AssessmentConfig struct {
	// AdapterTimeout bounds each individual adapter call.
	AdapterTimeout time.Duration
	// HistoryLimit is how many recent completed attempts feed the analyzer.
	HistoryLimit int
	// StaleCeiling is how long an attempt may sit in processing before the
	// reconciliation sweep declares it abandoned.
	StaleCeiling time.Duration
}

// AssessmentService orchestrates the upload -> extract -> analyze -> persist
// pipeline for photographed student work.
type AssessmentService interface {
	Submit(ctx context.Context, payload dto.AssessmentSubmitRequest, image []byte) (dto.AssessmentSubmitResponse, error)
	// Process drives one attempt through the pipeline. It is safe to call
	// more than once per attempt: only the first caller past the pending
	// state does any work.
	Process(ctx context.Context, attemptID uint) error
	GetAttempt(ctx context.Context, attemptID uint) (dto.AttemptResponse, error)
	MarkViewed(ctx context.Context, attemptID uint) (dto.AttemptResponse, error)
	// SweepStale fails attempts abandoned in processing.
	SweepStale(ctx context.Context) (int64, error)
}

type assessmentService struct {
	attempts  repository.AttemptRepository
	students  repository.StudentRepository
	blobs     BlobStore
	extractor ocr.Extractor
	analyzer  ai.Analyzer
	profiles  ProfileService
	rewards   GamificationService
	queue     Enqueuer
	stash     ImageStash
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	cfg       AssessmentConfig
	now       func() time.Time
}

// NewAssessmentService constructs the pipeline orchestrator.
func NewAssessmentService(
	attempts repository.AttemptRepository,
	students repository.StudentRepository,
	blobs BlobStore,
	extractor ocr.Extractor,
	analyzer ai.Analyzer,
	profiles ProfileService,
	rewards GamificationService,
	queue Enqueuer,
	stash ImageStash,
	validate *validator.Validate,
	logger zerolog.Logger,
	cfg AssessmentConfig,
) AssessmentService {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 30 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	if cfg.StaleCeiling <= 0 {
		cfg.StaleCeiling = 5 * time.Minute
	}

	return &assessmentService{
		attempts:  attempts,
		students:  students,
		blobs:     blobs,
		extractor: extractor,
		analyzer:  analyzer,
		profiles:  profiles,
		rewards:   rewards,
		queue:     queue,
		stash:     stash,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "assessment_service").Logger(),
		tracer:    otel.Tracer("github.com/praxia/praxia-go-api/internal/service/assessment"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit validates the request, persists a pending attempt and enqueues it.
// It never blocks on OCR or analysis latency.
func (s *assessmentService) Submit(ctx context.Context, payload dto.AssessmentSubmitRequest, image []byte) (dto.AssessmentSubmitResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssessmentSubmitResponse{}, err
	}
	if len(image) == 0 {
		return dto.AssessmentSubmitResponse{}, ErrNotAnImage
	}
	if mime := mimetype.Detect(image); !strings.HasPrefix(mime.String(), "image/") {
		return dto.AssessmentSubmitResponse{}, ErrNotAnImage
	}

	exists, err := s.students.Exists(ctx, payload.StudentID)
	if err != nil {
		return dto.AssessmentSubmitResponse{}, err
	}
	if !exists {
		return dto.AssessmentSubmitResponse{}, ErrStudentNotFound
	}

	attempt := models.Attempt{
		StudentID:  payload.StudentID,
		Kind:       models.AttemptKindAssessment,
		State:      models.AttemptStatePending,
		Subject:    strings.ToLower(strings.TrimSpace(payload.Subject)),
		Topic:      strings.TrimSpace(payload.Topic),
		GradeLevel: strings.TrimSpace(payload.GradeLevel),
	}
	if err := s.attempts.Create(ctx, &attempt); err != nil {
		return dto.AssessmentSubmitResponse{}, err
	}

	if err := s.stash.Put(ctx, attempt.ID, image); err != nil {
		return dto.AssessmentSubmitResponse{}, fmt.Errorf("stage image: %w", err)
	}

	if err := s.queue.Enqueue(ctx, attempt.ID); err != nil {
		// The attempt stays pending; the reconciliation sweep or a retried
		// enqueue can still pick it up, but the caller should know.
		s.logger.Error().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to enqueue attempt")
		return dto.AssessmentSubmitResponse{}, fmt.Errorf("enqueue attempt: %w", err)
	}

	return dto.AssessmentSubmitResponse{AttemptID: attempt.ID, State: attempt.State}, nil
}

func (s *assessmentService) Process(ctx context.Context, attemptID uint) error {
	ctx, span := s.tracer.Start(ctx, "assessment.process", trace.WithAttributes(
		attribute.Int("attempt_id", int(attemptID)),
	))
	defer span.End()

	claimed, err := s.attempts.ClaimPending(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !claimed {
		// Duplicate delivery or concurrent trigger: someone else owns this
		// attempt already.
		s.logger.Debug().Uint("attempt_id", attemptID).Msg("attempt not pending, skipping")
		return nil
	}

	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	started := s.now()
	image, err := s.stash.Take(ctx, attemptID)
	if err != nil {
		return s.fail(ctx, &attempt, models.FailureStageStorage, fmt.Errorf("retrieve staged image: %w", err))
	}

	imageURL, err := s.runStage(ctx, "storage", func(stageCtx context.Context) (string, error) {
		keyHint := fmt.Sprintf("attempt-%d-%s", attempt.ID, uuid.NewString()[:8])
		return s.blobs.Upload(stageCtx, keyHint, bytes.NewReader(image))
	})
	if err != nil {
		return s.fail(ctx, &attempt, models.FailureStageStorage, err)
	}
	attempt.ImageURL = imageURL

	text, err := s.runStage(ctx, "extraction", func(stageCtx context.Context) (string, error) {
		return s.extractor.Extract(stageCtx, image)
	})
	if err != nil {
		return s.fail(ctx, &attempt, models.FailureStageExtraction, err)
	}

	history, err := s.attempts.ListRecentCompleted(ctx, attempt.StudentID, attempt.Subject, s.cfg.HistoryLimit)
	if err != nil {
		s.logger.Warn().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to load history, analyzing without context")
		history = nil
	}

	result, err := s.analyze(ctx, attempt, text, history)
	if err != nil {
		return s.fail(ctx, &attempt, models.FailureStageAnalysis, err)
	}

	finished, err := s.complete(ctx, &attempt, text, result, started)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !finished {
		// The stale sweep failed this attempt while an adapter was slow. The
		// terminal state stands; the late result is discarded unrewarded.
		span.SetStatus(codes.Ok, "superseded")
		return nil
	}

	s.enrich(attempt, result)
	span.SetStatus(codes.Ok, "completed")
	return nil
}

func (s *assessmentService) analyze(ctx context.Context, attempt models.Attempt, text string, history []models.Attempt) (ai.AnalysisResult, error) {
	entries := make([]ai.HistoryEntry, 0, len(history))
	for _, prior := range history {
		if pct, ok := prior.Percentage(); ok {
			entries = append(entries, ai.HistoryEntry{Subject: prior.Subject, Topic: prior.Topic, Percentage: pct})
		}
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
	defer cancel()

	start := s.now()
	result, err := s.analyzer.Analyze(stageCtx, ai.AnalysisInput{
		Text:       text,
		Subject:    attempt.Subject,
		Topic:      attempt.Topic,
		GradeLevel: attempt.GradeLevel,
		History:    entries,
	})
	observability.PipelineStageLatency().WithLabelValues("analysis").Observe(time.Since(start).Seconds())
	return result, err
}

// complete persists the structured result and the terminal completed state.
// The write is conditional on the attempt still being in processing; it
// reports whether this caller performed the transition.
func (s *assessmentService) complete(ctx context.Context, attempt *models.Attempt, text string, result ai.AnalysisResult, started time.Time) (bool, error) {
	completedAt := s.now()
	score := result.Score
	maxScore := result.MaxScore

	attempt.State = models.AttemptStateCompleted
	attempt.ExtractedText = text
	attempt.Score = &score
	attempt.MaxScore = &maxScore
	attempt.Feedback = strings.TrimSpace(s.sanitizer.Sanitize(result.Feedback))
	attempt.CompletedAt = &completedAt
	attempt.ProcessingDurationMs = completedAt.Sub(started).Milliseconds()

	if result.Breakdown != nil {
		attempt.Breakdown = datatypes.JSONMap(result.Breakdown)
	}
	if len(result.Mistakes) > 0 {
		if payload, err := json.Marshal(result.Mistakes); err == nil {
			attempt.Mistakes = datatypes.JSON(payload)
		}
	}

	won, err := s.attempts.FinishProcessing(ctx, attempt)
	if err != nil {
		return false, err
	}
	if !won {
		s.logger.Warn().Uint("attempt_id", attempt.ID).Msg("attempt no longer processing, late result discarded")
		return false, nil
	}

	observability.AttemptsProcessed().WithLabelValues("completed", "").Inc()
	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Float64("score", score).
		Int64("duration_ms", attempt.ProcessingDurationMs).
		Msg("attempt completed")
	return true, nil
}

// enrich runs the best-effort steps after an attempt completes: profile
// update synchronously, gamification award detached. Neither can revert the
// completed state.
func (s *assessmentService) enrich(attempt models.Attempt, result ai.AnalysisResult) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AdapterTimeout)
	defer cancel()

	if err := s.profiles.ApplyResult(ctx, attempt.StudentID, attempt.Subject, result); err != nil {
		observability.EnrichmentFailures().WithLabelValues("profile").Inc()
		s.logger.Error().Err(err).Uint("attempt_id", attempt.ID).Msg("profile update failed")
	}

	attemptID := attempt.ID
	go func() {
		awardCtx, cancel := context.WithTimeout(context.Background(), s.cfg.AdapterTimeout)
		defer cancel()

		_, err := s.rewards.Award(awardCtx, attempt.StudentID, ActivityResult{
			Kind:      models.AttemptKindAssessment,
			AttemptID: &attemptID,
			Score:     result.Score,
			MaxScore:  result.MaxScore,
		})
		if err == nil {
			return
		}

		observability.EnrichmentFailures().WithLabelValues("gamification").Inc()
		s.logger.Error().Err(err).Uint("attempt_id", attempt.ID).Msg("gamification award failed")

		message := fmt.Sprintf("gamification: %s", err.Error())
		if len(message) > 512 {
			message = message[:512]
		}
		// Column-targeted so a concurrent MarkViewed is never overwritten.
		if saveErr := s.attempts.SetEnrichmentError(awardCtx, attempt.ID, message); saveErr != nil {
			s.logger.Warn().Err(saveErr).Uint("attempt_id", attempt.ID).Msg("failed to record enrichment error")
		}
	}()
}

// fail marks the attempt terminally failed at the given stage. Partial
// results are deliberately not persisted.
func (s *assessmentService) fail(ctx context.Context, attempt *models.Attempt, stage string, cause error) error {
	attempt.State = models.AttemptStateFailed
	attempt.FailureStage = stage
	attempt.ExtractedText = ""
	attempt.Score = nil
	attempt.MaxScore = nil

	won, err := s.attempts.FinishProcessing(ctx, attempt)
	if err != nil {
		s.logger.Error().Err(err).Uint("attempt_id", attempt.ID).Msg("failed to persist failed state")
		return err
	}
	if !won {
		s.logger.Warn().Uint("attempt_id", attempt.ID).Str("stage", stage).Msg("attempt no longer processing, late failure discarded")
		return nil
	}

	observability.AttemptsProcessed().WithLabelValues("failed", stage).Inc()
	s.logger.Warn().
		Err(cause).
		Uint("attempt_id", attempt.ID).
		Str("stage", stage).
		Msg("attempt failed")
	return nil
}

func (s *assessmentService) GetAttempt(ctx context.Context, attemptID uint) (dto.AttemptResponse, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrAttemptNotFound
		}
		return dto.AttemptResponse{}, err
	}
	return dto.NewAttemptResponse(attempt), nil
}

func (s *assessmentService) MarkViewed(ctx context.Context, attemptID uint) (dto.AttemptResponse, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrAttemptNotFound
		}
		return dto.AttemptResponse{}, err
	}

	if !attempt.IsTerminal() {
		return dto.AttemptResponse{}, ErrAttemptNotTerminal
	}

	if !attempt.Viewed {
		attempt.Viewed = true
		if err := s.attempts.Update(ctx, &attempt); err != nil {
			return dto.AttemptResponse{}, err
		}
	}

	return dto.NewAttemptResponse(attempt), nil
}

func (s *assessmentService) SweepStale(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.StaleCeiling)
	swept, err := s.attempts.FailStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		observability.StaleAttemptsSwept().Add(float64(swept))
		s.logger.Warn().Int64("count", swept).Msg("swept stale processing attempts")
	}
	return swept, nil
}

// runStage executes one adapter call under its own bounded timeout and
// records its latency.
func (s *assessmentService) runStage(ctx context.Context, stage string, fn func(ctx context.Context) (string, error)) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
	defer cancel()

	start := s.now()
	value, err := fn(stageCtx)
	observability.PipelineStageLatency().WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return value, err
}
