package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"brandaion/internal/domain"
	"brandaion/internal/domain/ports/adapter"
)

var _ adapter.Locker = (*RedisLocker)(nil)

// RedisLocker guards batch invocations. A held lock is reported, not waited on.
type RedisLocker struct {
	client Client
}

func NewLocker(c Client) *RedisLocker {
	return &RedisLocker{client: c}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrBatchInProgress
	}
	return token, nil
}

// Unlock is a no-op once the key expired or was taken over by another holder.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.client.CompareAndDelete(ctx, key, token)
	return err
}
