package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrImageMissing indicates the staged image expired or was never stored.
var ErrImageMissing = errors.New("staged image not found")

// ImageStash holds raw attempt images between Submit and Process. Entries
// are short-lived: the pipeline uploads the blob to durable storage as its
// first stage.
type ImageStash interface {
	Put(ctx context.Context, attemptID uint, image []byte) error
	// Take returns the staged image and removes it from the stash.
	Take(ctx context.Context, attemptID uint) ([]byte, error)
}

type redisImageStash struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisImageStash stages images in Redis so any worker node can pick up
// the attempt.
func NewRedisImageStash(client *redis.Client, ttl time.Duration) ImageStash {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisImageStash{client: client, ttl: ttl}
}

func (s *redisImageStash) Put(ctx context.Context, attemptID uint, image []byte) error {
	return s.client.Set(ctx, stashKey(attemptID), image, s.ttl).Err()
}

func (s *redisImageStash) Take(ctx context.Context, attemptID uint) ([]byte, error) {
	key := stashKey(attemptID)
	image, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrImageMissing
		}
		return nil, err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return nil, err
	}
	return image, nil
}

func stashKey(attemptID uint) string {
	return fmt.Sprintf("attempt:image:%d", attemptID)
}

type memoryImageStash struct {
	mu     sync.Mutex
	images map[uint][]byte
}

// NewMemoryImageStash stages images in process memory. Suitable for single
// node deployments and tests.
func NewMemoryImageStash() ImageStash {
	return &memoryImageStash{images: make(map[uint][]byte)}
}

func (s *memoryImageStash) Put(ctx context.Context, attemptID uint, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[attemptID] = append([]byte(nil), image...)
	return nil
}

func (s *memoryImageStash) Take(ctx context.Context, attemptID uint) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, ok := s.images[attemptID]
	if !ok {
		return nil, ErrImageMissing
	}
	delete(s.images, attemptID)
	return image, nil
}
