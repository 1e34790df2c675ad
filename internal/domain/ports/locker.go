package ports

import (
	"context"
	"time"
)

// ReleaseFunc releases a lock obtained from Locker.Acquire
type ReleaseFunc func(ctx context.Context) error

// Locker serializes mutations per key across processes.
// Acquire fails fast with domain.ErrLockHeld when another holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}

// SubscriptionLockKey is the key guarding mutations of one gateway subscription
func SubscriptionLockKey(subscriptionID string) string {
	return "subscription:" + subscriptionID
}

// MemberLockKey is the key guarding enrolment and conversion of one member
func MemberLockKey(memberID string) string {
	return "member:" + memberID
}
