// Package memory holds in-process adapters for single-instance deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

type lease struct {
	expires time.Time
	token   uint64
}

// Locker is a process-local keyed lock with the same fail-fast contract as the Redis locker
type Locker struct {
	mu     sync.Mutex
	leases map[string]lease
	seq    uint64
	now    func() time.Time
}

// NewLocker creates an empty in-process locker
func NewLocker() *Locker {
	return &Locker{
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// Acquire takes the lock or fails fast with domain.ErrLockHeld
func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (ports.ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return nil, domain.ErrLockHeld.WithDetail("key", key)
	}

	l.seq++
	token := l.seq
	l.leases[key] = lease{expires: now.Add(ttl), token: token}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.leases[key]; ok && held.token == token {
			delete(l.leases, key)
		}
		return nil
	}, nil
}

var _ ports.Locker = (*Locker)(nil)
