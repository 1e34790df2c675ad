package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/redis/go-redis/v9"
)

// SnapshotCache stores gateway account snapshots as JSON, keyed by customer ID
type SnapshotCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewSnapshotCache creates a cache whose keys are namespaced by prefix
func NewSnapshotCache(rdb redis.UniversalClient, prefix string) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, prefix: prefix}
}

func (c *SnapshotCache) key(customerID string) string {
	return c.prefix + "snapshot:" + customerID
}

// Get returns nil, nil on a miss
func (c *SnapshotCache) Get(ctx context.Context, customerID string) (*domain.AccountSnapshot, error) {
	data, err := c.rdb.Get(ctx, c.key(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snapshot domain.AccountSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// A corrupt entry is treated as a miss and dropped
		_ = c.rdb.Del(ctx, c.key(customerID)).Err()
		return nil, nil
	}
	return &snapshot, nil
}

// Set stores the snapshot for ttl
func (c *SnapshotCache) Set(ctx context.Context, snapshot *domain.AccountSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(snapshot.CustomerID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// Evict drops the cached snapshot after a mutation
func (c *SnapshotCache) Evict(ctx context.Context, customerID string) error {
	if err := c.rdb.Del(ctx, c.key(customerID)).Err(); err != nil {
		return fmt.Errorf("evict snapshot: %w", err)
	}
	return nil
}

var _ ports.SnapshotCache = (*SnapshotCache)(nil)
