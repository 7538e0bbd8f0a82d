package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// ErrQueueFull indicates the in-process buffer has no room for another
// attempt.
var ErrQueueFull = errors.New("attempt queue full")

// Processor consumes a queued attempt id and runs the grading pipeline on it.
type Processor interface {
	Process(ctx context.Context, attemptID uint) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, attemptID uint) error

func (f ProcessorFunc) Process(ctx context.Context, attemptID uint) error {
	return f(ctx, attemptID)
}

type attemptEvent struct {
	Source     string    `json:"source"`
	AttemptID  uint      `json:"attempt_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NATSQueue distributes accepted attempts across worker nodes through a NATS
// queue group, so exactly one subscriber handles each message.
type NATSQueue struct {
	conn      *nats.Conn
	subject   string
	group     string
	processor Processor
	logger    zerolog.Logger
	nodeID    string

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewNATSQueue builds the queue client. Start must be called before messages
// are consumed; Enqueue works immediately.
func NewNATSQueue(conn *nats.Conn, subject, group string, processor Processor, logger zerolog.Logger) *NATSQueue {
	if subject == "" {
		subject = "praxia.attempts"
	}
	if group == "" {
		group = "praxia-workers"
	}
	return &NATSQueue{
		conn:      conn,
		subject:   subject,
		group:     group,
		processor: processor,
		logger:    logger.With().Str("component", "attempt_queue").Logger(),
		nodeID:    uuid.NewString(),
	}
}

// Enqueue publishes the attempt id to the queue subject.
func (q *NATSQueue) Enqueue(ctx context.Context, attemptID uint) error {
	payload, err := json.Marshal(attemptEvent{
		Source:     q.nodeID,
		AttemptID:  attemptID,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return q.conn.Publish(q.subject, payload)
}

// Start subscribes this node to the worker queue group. The subscription is
// drained when ctx is cancelled.
func (q *NATSQueue) Start(ctx context.Context) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		var event attemptEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			q.logger.Warn().Err(err).Msg("invalid attempt event payload")
			return
		}
		if err := q.processor.Process(ctx, event.AttemptID); err != nil {
			q.logger.Error().Err(err).Uint("attempt_id", event.AttemptID).Msg("attempt processing failed")
		}
	})
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.sub = sub
	q.mu.Unlock()

	go func() {
		<-ctx.Done()
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.sub != nil {
			if err := q.sub.Drain(); err != nil {
				q.logger.Warn().Err(err).Msg("failed to drain attempt queue subscription")
			}
			q.sub = nil
		}
	}()

	q.logger.Info().Str("subject", q.subject).Str("group", q.group).Msg("attempt queue consuming")
	return nil
}

// InProcessQueue dispatches attempts to a bounded worker pool inside the API
// process. It backs single-node deployments where NATS is not configured.
type InProcessQueue struct {
	processor Processor
	logger    zerolog.Logger
	jobs      chan uint
	workers   int

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewInProcessQueue builds the in-process dispatcher.
func NewInProcessQueue(processor Processor, workers, buffer int, logger zerolog.Logger) *InProcessQueue {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &InProcessQueue{
		processor: processor,
		logger:    logger.With().Str("component", "attempt_queue").Logger(),
		jobs:      make(chan uint, buffer),
		workers:   workers,
	}
}

// Enqueue hands the attempt to the worker pool. It fails fast when the
// buffer is full rather than blocking the submit path; the attempt stays
// pending and a retried submission can enqueue it again.
func (q *InProcessQueue) Enqueue(ctx context.Context, attemptID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.jobs <- attemptID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker goroutines. Workers exit when ctx is cancelled;
// Wait blocks until they finish.
func (q *InProcessQueue) Start(ctx context.Context) error {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.run(ctx)
		}
		q.logger.Info().Int("workers", q.workers).Msg("in-process attempt queue running")
	})
	return nil
}

// Wait blocks until every worker has exited.
func (q *InProcessQueue) Wait() {
	q.wg.Wait()
}

func (q *InProcessQueue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case attemptID := <-q.jobs:
			if err := q.processor.Process(ctx, attemptID); err != nil {
				q.logger.Error().Err(err).Uint("attempt_id", attemptID).Msg("attempt processing failed")
			}
		}
	}
}
