package account

import (
	"context"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/pkg/observability"
	"github.com/kevin07696/membership-service/pkg/timeutil"
)

// Loader fetches account snapshots from the gateway.
// Commands always read fresh; status reads may be served from the cache.
type Loader struct {
	gateway ports.MembershipGateway
	cache   ports.SnapshotCache // optional
	ttl     time.Duration
	clock   timeutil.Clock
	logger  ports.Logger
}

// NewLoader creates a snapshot loader. A nil cache disables caching.
func NewLoader(gateway ports.MembershipGateway, cache ports.SnapshotCache, ttl time.Duration, clock timeutil.Clock, logger ports.Logger) *Loader {
	if clock == nil {
		clock = timeutil.Now
	}
	return &Loader{
		gateway: gateway,
		cache:   cache,
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
	}
}

// Fresh loads the snapshot straight from the gateway
func (l *Loader) Fresh(ctx context.Context, customerID string) (*domain.AccountSnapshot, error) {
	subs, err := l.gateway.ListSubscriptions(ctx, customerID)
	if err != nil {
		return nil, WrapGatewayError("list subscriptions", err)
	}

	payments, err := l.gateway.ListPayments(ctx, customerID)
	if err != nil {
		return nil, WrapGatewayError("list payments", err)
	}

	return &domain.AccountSnapshot{
		FetchedAt:     l.clock(),
		CustomerID:    customerID,
		Payments:      payments,
		Subscriptions: subs,
	}, nil
}

// Cached serves the snapshot from the cache, loading and storing it on a miss.
// Cache failures degrade to a fresh read.
func (l *Loader) Cached(ctx context.Context, customerID string) (*domain.AccountSnapshot, error) {
	if l.cache == nil || l.ttl <= 0 {
		return l.Fresh(ctx, customerID)
	}

	snapshot, err := l.cache.Get(ctx, customerID)
	switch {
	case err != nil:
		observability.RecordStatusCacheLookup("error")
		l.logger.Warn("snapshot cache read failed",
			ports.String("customer_id", customerID),
			ports.Err(err))
	case snapshot != nil:
		observability.RecordStatusCacheLookup("hit")
		return snapshot, nil
	default:
		observability.RecordStatusCacheLookup("miss")
	}

	snapshot, err = l.Fresh(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := l.cache.Set(ctx, snapshot, l.ttl); err != nil {
		l.logger.Warn("snapshot cache write failed",
			ports.String("customer_id", customerID),
			ports.Err(err))
	}
	return snapshot, nil
}

// Evict drops the cached snapshot after a mutation or a gateway event
func (l *Loader) Evict(ctx context.Context, customerID string) {
	if l.cache == nil || customerID == "" {
		return
	}
	if err := l.cache.Evict(ctx, customerID); err != nil {
		l.logger.Warn("snapshot cache eviction failed",
			ports.String("customer_id", customerID),
			ports.Err(err))
	}
}
