package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/rushteam/modelwrap/core"
)

func TestNewRedisStore_Unavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	assert.True(t, core.IsUnavailable(err), "got %v", err)
}

func TestRedisStore_EmptyBatches(t *testing.T) {
	// 空批次不访问网络
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	defer s.Close()

	got, err := s.BatchGet(t.Context(), nil)
	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, s.BatchSet(t.Context(), nil))
	assert.Equal(t, "redis", s.Name())
}
