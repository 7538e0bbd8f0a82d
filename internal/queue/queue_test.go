package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestInProcessQueueDispatchesEveryAttempt(t *testing.T) {
	var mu sync.Mutex
	seen := map[uint]bool{}

	processor := ProcessorFunc(func(ctx context.Context, attemptID uint) error {
		mu.Lock()
		seen[attemptID] = true
		mu.Unlock()
		return nil
	})

	q := NewInProcessQueue(processor, 2, 8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Start(ctx))

	for id := uint(1); id <= 5; id++ {
		require.NoError(t, q.Enqueue(ctx, id))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	q.Wait()
}

func TestInProcessQueueEnqueueFailsFastWhenFull(t *testing.T) {
	processor := ProcessorFunc(func(ctx context.Context, attemptID uint) error { return nil })
	q := NewInProcessQueue(processor, 1, 1, zerolog.Nop())

	// No workers running, so the single buffer slot fills immediately.
	require.NoError(t, q.Enqueue(context.Background(), 1))
	require.ErrorIs(t, q.Enqueue(context.Background(), 2), ErrQueueFull)
}

func TestInProcessQueueEnqueueFailsOnCancelledContext(t *testing.T) {
	processor := ProcessorFunc(func(ctx context.Context, attemptID uint) error { return nil })
	q := NewInProcessQueue(processor, 1, 1, zerolog.Nop())

	// Fill the buffer without starting workers, then cancel.
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(ctx, 1))
	cancel()

	err := q.Enqueue(ctx, 2)
	require.ErrorIs(t, err, context.Canceled)
}
