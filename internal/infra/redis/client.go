// Package redis publishes accepted Ethereum events to Redis subscribers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/ethwatch/internal/indexing/watch"
)

// DefaultChannel is the pub/sub channel used when Config.Channel is empty.
const DefaultChannel = "ethwatch:accepted"

// Client publishes watcher notifications.
type Client struct {
	rdb     *redis.Client
	channel string
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Channel  string `yaml:"channel"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &Client{rdb: rdb, channel: channel}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func lastBlockKey(channel string) string {
	return fmt.Sprintf("%s:last_block", channel)
}

// NotifyAccepted publishes the events of a committed poll and records its
// head block.
func (c *Client) NotifyAccepted(ctx context.Context, accepted watch.Accepted) error {
	payload, err := encodeAccepted(accepted)
	if err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.Publish(ctx, c.channel, payload)
	pipe.Set(ctx, lastBlockKey(c.channel), accepted.Head, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish accepted events: %w", err)
	}
	return nil
}

// message is the wire form of a notification.
type message struct {
	Version int `json:"version"`
	watch.Accepted
}

func encodeAccepted(a watch.Accepted) ([]byte, error) {
	b, err := json.Marshal(message{Version: 1, Accepted: a})
	if err != nil {
		return nil, fmt.Errorf("encode accepted events: %w", err)
	}
	return b, nil
}

var _ watch.Notifier = (*Client)(nil)
