package attempts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage counts failed invite code redemptions per user. A counter lives for
// window after the first failure and is reset on a successful join.
type Storage struct {
	redis  *redis.Client
	window time.Duration
}

func NewStorage(client *redis.Client, window time.Duration) *Storage {
	return &Storage{
		redis:  client,
		window: window,
	}
}

func key(userID int64) string {
	return fmt.Sprintf("invite-attempts:%d", userID)
}

func (s *Storage) Get(ctx context.Context, userID int64) (int64, error) {
	count, err := s.redis.Get(ctx, key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Increment records one failed attempt and returns the new count.
func (s *Storage) Increment(ctx context.Context, userID int64) (int64, error) {
	count, err := s.redis.Incr(ctx, key(userID)).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err = s.redis.Expire(ctx, key(userID), s.window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (s *Storage) Reset(ctx context.Context, userID int64) error {
	return s.redis.Del(ctx, key(userID)).Err()
}
