// Package secrets resolves the gateway credentials from AWS Secrets Manager,
// HashiCorp Vault or the local filesystem.
package secrets

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/membership-service/internal/domain/ports"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// CachedProvider memoizes another provider's answers for ttl
type CachedProvider struct {
	next    ports.SecretProvider
	entries map[string]cacheEntry
	ttl     time.Duration
	mu      sync.Mutex
	now     func() time.Time
}

// NewCachedProvider wraps next with a TTL cache
func NewCachedProvider(next ports.SecretProvider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:    next,
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetSecret serves from cache while fresh, otherwise asks the wrapped provider
func (c *CachedProvider) GetSecret(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	if e, ok := c.entries[path]; ok && c.now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	value, err := c.next.GetSecret(ctx, path)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return value, nil
}
