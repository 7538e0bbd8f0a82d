package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisImageStashTakeRemovesEntry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	stash := NewRedisImageStash(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	require.NoError(t, stash.Put(context.Background(), 7, []byte{1, 2, 3}))

	image, err := stash.Take(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, image)

	_, err = stash.Take(context.Background(), 7)
	require.ErrorIs(t, err, ErrImageMissing)
}

func TestMemoryImageStash(t *testing.T) {
	stash := NewMemoryImageStash()

	require.NoError(t, stash.Put(context.Background(), 1, []byte("img")))

	image, err := stash.Take(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []byte("img"), image)

	_, err = stash.Take(context.Background(), 1)
	require.ErrorIs(t, err, ErrImageMissing)
}
