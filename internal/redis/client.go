package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saviobatista/flight-insights/internal/types"
)

// SnapshotKey holds the most recent snapshot
const SnapshotKey = "snapshot:latest"

// DefaultSnapshotTTL applies when the cache itself never expires
const DefaultSnapshotTTL = 24 * time.Hour

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client stores snapshots in Redis so several service instances share one upstream fetch
type Client struct {
	client RedisClientInterface
	ttl    time.Duration
}

// New creates a new Redis client. A zero ttl uses DefaultSnapshotTTL.
func New(addr string, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Client{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// StoreSnapshot stores the snapshot under SnapshotKey
func (c *Client) StoreSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.client.Set(ctx, SnapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot, or nil when none is stored
func (c *Client) LoadSnapshot(ctx context.Context) (*types.Snapshot, error) {
	data, err := c.client.Get(ctx, SnapshotKey).Bytes()
	if err == redis.Nil {
		return nil, nil // Snapshot not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot data: %w", err)
	}

	var snapshot types.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot data: %w", err)
	}
	if snapshot.Table == nil {
		snapshot.Table = types.NewFlightTable(nil)
	}

	return &snapshot, nil
}

// DeleteSnapshot removes the stored snapshot
func (c *Client) DeleteSnapshot(ctx context.Context) error {
	return c.client.Del(ctx, SnapshotKey).Err()
}
