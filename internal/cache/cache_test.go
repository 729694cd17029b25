package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}

	client, err := NewRedisClient(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Del(context.Background(), generationKey).Err())
	return client
}

func TestSearchCache(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	c := NewSearchCache(client, time.Minute)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	key := "slots:search:test:" + uuid.NewString()
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	page := &model.Page[*model.Slot]{
		Items: []*model.Slot{{ID: uuid.New(), ProviderID: "dr-a", Status: model.SlotStatusAvailable}},
		Total: 7,
	}
	require.NoError(t, c.Set(ctx, key, page))

	cached, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, cached.Total)
	assert.Equal(t, page.Items[0].ID, cached.Items[0].ID)

	require.NoError(t, c.Invalidate(ctx))
	gen, err = c.Generation(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)
}

func TestLocker(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	locker := NewLocker(client, zap.NewNop())
	key := "turnos:test:lock:" + uuid.NewString()

	ok, token, err := locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Чужой токен не снимает блокировку
	require.NoError(t, locker.Unlock(ctx, key, "someone-else"))
	ok, _, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Unlock(ctx, key, token))
	ok, _, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewSearchCache_DefaultTTL(t *testing.T) {
	c := NewSearchCache(nil, 0)
	assert.Equal(t, DefaultCacheTTL, c.ttl)
}
