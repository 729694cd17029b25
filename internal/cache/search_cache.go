package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/turnos/internal/model"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	generationKey   = "slots:search:generation"
	DefaultCacheTTL = 30 * time.Second
)

// SearchCache страницы поиска в Redis. Ключи включают номер поколения,
// поэтому инвалидация - это INCR счётчика, старые ключи доживают по TTL.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &SearchCache{client: client, ttl: ttl}
}

func (c *SearchCache) Get(ctx context.Context, key string) (*model.Page[*model.Slot], bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var page model.Page[*model.Slot]
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, false, fmt.Errorf("decode cached page: %w", err)
	}
	if page.Items == nil {
		page.Items = []*model.Slot{}
	}

	return &page, true, nil
}

func (c *SearchCache) Set(ctx context.Context, key string, page *model.Page[*model.Slot]) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Generation текущее поколение; отсутствие ключа - поколение 0
func (c *SearchCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (c *SearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr generation: %w", err)
	}
	return nil
}
