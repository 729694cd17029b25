package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Снимаем блокировку, только если она всё ещё наша
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker блокировка на SETNX с токеном владельца
type Locker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewLocker(client *redis.Client, logger *zap.Logger) *Locker {
	return &Locker{client: client, logger: logger}
}

// TryLock пытается захватить key на ttl; возвращает токен для Unlock
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !acquired {
		l.logger.Debug("Lock is held by another instance", zap.String("key", key))
		return false, "", nil
	}

	return true, token, nil
}

// Unlock освобождает key, если он захвачен с этим токеном
func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	released, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	if released == 0 {
		l.logger.Warn("Lock was not held at release", zap.String("key", key))
	}
	return nil
}
