package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aficionados/clubs/internal/adapters/database/redis/attempts"
	"github.com/aficionados/clubs/internal/adapters/database/redis/journal"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	Attempts *attempts.Storage
	Journal  *journal.Storage

	client *redis.Client
}

type Options struct {
	Host     string
	Port     string
	Password string
	DB       int

	AttemptsWindow time.Duration
	JournalSize    int64
}

func New(opts Options) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{
		Attempts: attempts.NewStorage(client, opts.AttemptsWindow),
		Journal:  journal.NewStorage(client, opts.JournalSize),
		client:   client,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
