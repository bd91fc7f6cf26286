package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDeliveryStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	store := NewRedisDeliveryStoreWithClient(client, "")
	defer store.Close()
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "wh-1", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to mark delivery wh-1")

	err = store.Release(ctx, "wh-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to release delivery wh-1")
}
