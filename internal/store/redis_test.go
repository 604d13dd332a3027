package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisSeenSet_EmptyAddress(t *testing.T) {
	_, err := NewRedisSeenSet(context.Background(), "", "k")
	assert.ErrorIs(t, err, ErrEmptyAddress)
}

func TestRedisSeenSet_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if testing.Short() || addr == "" {
		t.Skip("set REDIS_ADDR to run against a live Redis")
	}
	ctx := context.Background()
	key := "ideaminer:test:" + t.Name()

	s, err := NewRedisSeenSet(ctx, addr, key)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.client.Del(context.Background(), key)
		s.Close()
	})

	require.NoError(t, s.MarkSeen(ctx, "a"))
	require.NoError(t, s.MarkSeen(ctx, "a"))
	seen, err := s.LoadSeen(ctx)
	require.NoError(t, err)
	assert.True(t, seen.Has("a"))
	assert.Len(t, seen, 1)
}
