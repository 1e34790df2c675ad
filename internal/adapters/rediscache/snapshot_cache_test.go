package rediscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *domain.AccountSnapshot {
	at := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return &domain.AccountSnapshot{
		CustomerID: "cus_1",
		FetchedAt:  at,
		Payments: []domain.PaymentRecord{
			{ID: "pi_1", CustomerID: "cus_1", Status: domain.PaymentStatusSucceeded, AmountCents: 15000, CreatedAt: at},
		},
		Subscriptions: []*domain.SubscriptionRecord{
			{ID: "sub_1", CustomerID: "cus_1", Status: domain.SubscriptionStatusActive, CurrentPeriodEnd: at.AddDate(1, 0, 0)},
		},
	}
}

func TestSnapshotCache_RoundTripAndEvict(t *testing.T) {
	mr, rdb := setupRedis(t)
	cache := NewSnapshotCache(rdb, "test:")
	ctx := context.Background()

	got, err := cache.Get(ctx, "cus_1")
	require.NoError(t, err)
	assert.Nil(t, got, "miss returns nil")

	require.NoError(t, cache.Set(ctx, testSnapshot(), time.Minute))

	got, err = cache.Get(ctx, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sub_1", got.Canonical().ID)
	assert.True(t, domain.HasSucceededPayment(got.Payments))

	mr.FastForward(2 * time.Minute)
	got, err = cache.Get(ctx, "cus_1")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry is a miss")

	require.NoError(t, cache.Set(ctx, testSnapshot(), time.Minute))
	require.NoError(t, cache.Evict(ctx, "cus_1"))
	got, err = cache.Get(ctx, "cus_1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotCache_CorruptEntryIsMiss(t *testing.T) {
	mr, rdb := setupRedis(t)
	cache := NewSnapshotCache(rdb, "test:")

	require.NoError(t, mr.Set("test:snapshot:cus_1", "{not json"))

	got, err := cache.Get(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("test:snapshot:cus_1"))
}

func TestSnapshotCache_RedisError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache := NewSnapshotCache(rdb, "test:")

	mock.ExpectGet("test:snapshot:cus_1").SetErr(errors.New("connection refused"))

	_, err := cache.Get(context.Background(), "cus_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
