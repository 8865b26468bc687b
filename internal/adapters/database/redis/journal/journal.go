package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aficionados/clubs/pkg/logger/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zapcore"
)

const (
	key         = "logs:recent"
	pushTimeout = time.Second
)

// Storage keeps the most recent log entries, newest first, so operators can
// read warnings without access to the log files.
type Storage struct {
	redis *redis.Client
	size  int64
}

func NewStorage(client *redis.Client, size int64) *Storage {
	return &Storage{
		redis: client,
		size:  size,
	}
}

// Push records entry and drops whatever falls beyond the journal size.
func (s *Storage) Push(ctx context.Context, entry types.Log) error {
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, entryBytes)
		pipe.LTrim(ctx, key, 0, s.size-1)
		return nil
	})
	return err
}

// Recent returns up to n entries, newest first.
func (s *Storage) Recent(ctx context.Context, n int64) ([]types.Log, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := s.redis.LRange(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]types.Log, 0, len(raw))
	for _, item := range raw {
		var entry types.Log
		if err = json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Hook returns a log hook that records entries at or above level.
func (s *Storage) Hook(level zapcore.Level) types.LogHook {
	return func(log types.Log) {
		if log.Level < level {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		// a failed push cannot be reported through the logger that called us
		_ = s.Push(ctx, log)
	}
}
