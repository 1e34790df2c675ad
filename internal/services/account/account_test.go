package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/internal/testutil/fixtures"
	"github.com/kevin07696/membership-service/internal/testutil/mocks"
	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
	"github.com/kevin07696/membership-service/pkg/timeutil"
)

// MockSnapshotCache is a mock implementation of ports.SnapshotCache
type MockSnapshotCache struct {
	mock.Mock
}

func (m *MockSnapshotCache) Get(ctx context.Context, customerID string) (*domain.AccountSnapshot, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountSnapshot), args.Error(1)
}

func (m *MockSnapshotCache) Set(ctx context.Context, snapshot *domain.AccountSnapshot, ttl time.Duration) error {
	args := m.Called(ctx, snapshot, ttl)
	return args.Error(0)
}

func (m *MockSnapshotCache) Evict(ctx context.Context, customerID string) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestResolve_PrefersStoredLink(t *testing.T) {
	gw := mocks.NewFakeGateway()
	gw.AddCustomer(&ports.Customer{ID: "cus_by_email", Email: "a@example.org"})
	links := mocks.NewCustomerLinks()
	require.NoError(t, links.LinkCustomer(context.Background(), nil, "m1", "cus_linked"))

	r := NewResolver(gw, links, mocks.NewMockLogger())
	member := fixtures.NewMember("m1").WithEmail("a@example.org").Build()

	customerID, err := r.Resolve(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, "cus_linked", customerID)
	assert.Zero(t, gw.Calls(mocks.OpFindCustomer))
}

func TestResolve_EmailFallbackStoresLink(t *testing.T) {
	gw := mocks.NewFakeGateway()
	gw.AddCustomer(&ports.Customer{ID: "cus_1", Email: "a@example.org"})
	links := mocks.NewCustomerLinks()

	r := NewResolver(gw, links, mocks.NewMockLogger())
	member := fixtures.NewMember("m1").WithEmail("a@example.org").Build()

	customerID, err := r.Resolve(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", customerID)

	stored, err := links.GetCustomerID(context.Background(), nil, "m1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", stored)
}

func TestResolve_NotFound(t *testing.T) {
	gw := mocks.NewFakeGateway()
	r := NewResolver(gw, mocks.NewCustomerLinks(), mocks.NewMockLogger())

	_, err := r.Resolve(context.Background(), fixtures.NewMember("m1").Build())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	assert.True(t, domain.IsNotFoundError(err))
}

func TestResolve_GatewayFailureIsTagged(t *testing.T) {
	gw := mocks.NewFakeGateway()
	gw.FailWith(mocks.OpFindCustomer, pkgerrors.NewGatewayError("find_customer", "boom", pkgerrors.CategorySystemError, true))
	r := NewResolver(gw, mocks.NewCustomerLinks(), mocks.NewMockLogger())

	_, err := r.Resolve(context.Background(), fixtures.NewMember("m1").Build())
	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))
	assert.True(t, pkgerrors.IsRetriable(err))
}

func TestResolve_LinkWriteFailureIsNotFatal(t *testing.T) {
	gw := mocks.NewFakeGateway()
	gw.AddCustomer(&ports.Customer{ID: "cus_1", Email: "m1@example.org"})
	links := mocks.NewCustomerLinks()
	logger := mocks.NewMockLogger()
	r := NewResolver(gw, links, logger)

	member := fixtures.NewMember("m1").Build()
	// reads succeed, then the write fails
	customerID, err := r.Resolve(context.Background(), member)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", customerID)

	links.Err = errors.New("db down")
	r.link(context.Background(), "m1", "cus_1")
	assert.True(t, logger.HasWarn("failed to store customer link"))
}

func TestResolveOrCreate(t *testing.T) {
	t.Run("creates and links a new customer", func(t *testing.T) {
		gw := mocks.NewFakeGateway()
		links := mocks.NewCustomerLinks()
		r := NewResolver(gw, links, mocks.NewMockLogger())

		customerID, created, err := r.ResolveOrCreate(context.Background(), fixtures.NewMember("m1").Build())
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEmpty(t, customerID)

		c, err := gw.GetCustomer(context.Background(), customerID)
		require.NoError(t, err)
		assert.Equal(t, "m1", c.Metadata[domain.MetadataMemberID])

		stored, _ := links.GetCustomerID(context.Background(), nil, "m1")
		assert.Equal(t, customerID, stored)
	})

	t.Run("reuses an existing customer", func(t *testing.T) {
		gw := mocks.NewFakeGateway()
		gw.AddCustomer(&ports.Customer{ID: "cus_1", Email: "m1@example.org"})
		r := NewResolver(gw, mocks.NewCustomerLinks(), mocks.NewMockLogger())

		customerID, created, err := r.ResolveOrCreate(context.Background(), fixtures.NewMember("m1").Build())
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "cus_1", customerID)
		assert.Zero(t, gw.Calls(mocks.OpCreateCustomer))
	})

	t.Run("link store failure is returned", func(t *testing.T) {
		links := mocks.NewCustomerLinks()
		links.Err = errors.New("db down")
		r := NewResolver(mocks.NewFakeGateway(), links, mocks.NewMockLogger())

		_, _, err := r.ResolveOrCreate(context.Background(), fixtures.NewMember("m1").Build())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestLoader_Fresh(t *testing.T) {
	gw := mocks.NewFakeGateway()
	sub := fixtures.NewSubscription("cus_1", testNow).Build()
	gw.AddSubscription(sub)
	gw.AddPayment(fixtures.Payment("pi_1", "cus_1", domain.PaymentStatusSucceeded, testNow.AddDate(0, -1, 0)))

	l := NewLoader(gw, nil, time.Minute, timeutil.Fixed(testNow), mocks.NewMockLogger())
	snapshot, err := l.Fresh(context.Background(), "cus_1")
	require.NoError(t, err)

	assert.Equal(t, "cus_1", snapshot.CustomerID)
	assert.Equal(t, testNow, snapshot.FetchedAt)
	require.Len(t, snapshot.Subscriptions, 1)
	assert.Equal(t, sub.ID, snapshot.Subscriptions[0].ID)
	require.Len(t, snapshot.Payments, 1)
}

func TestLoader_FreshWrapsGatewayErrors(t *testing.T) {
	gw := mocks.NewFakeGateway()
	gw.FailWith(mocks.OpListPayments, pkgerrors.NewGatewayError("list_payments", "down", pkgerrors.CategoryNetworkError, true))

	l := NewLoader(gw, nil, time.Minute, timeutil.Fixed(testNow), mocks.NewMockLogger())
	_, err := l.Fresh(context.Background(), "cus_1")
	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))
}

func TestLoader_CachedHitAndMiss(t *testing.T) {
	gw := mocks.NewFakeGateway()
	gw.AddSubscription(fixtures.NewSubscription("cus_1", testNow).Build())
	cache := mocks.NewSnapshotCache()

	l := NewLoader(gw, cache, time.Minute, timeutil.Fixed(testNow), mocks.NewMockLogger())

	first, err := l.Cached(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.Calls(mocks.OpListSubscriptions))

	second, err := l.Cached(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.Calls(mocks.OpListSubscriptions))
	assert.Equal(t, first, second)

	l.Evict(context.Background(), "cus_1")
	assert.Equal(t, 1, cache.Evictions)

	_, err = l.Cached(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, 2, gw.Calls(mocks.OpListSubscriptions))
}

func TestLoader_CacheFailureDegradesToFresh(t *testing.T) {
	gw := mocks.NewFakeGateway()
	cache := new(MockSnapshotCache)
	cache.On("Get", mock.Anything, "cus_1").Return(nil, errors.New("redis down"))
	cache.On("Set", mock.Anything, mock.AnythingOfType("*domain.AccountSnapshot"), time.Minute).Return(errors.New("redis down"))
	logger := mocks.NewMockLogger()

	l := NewLoader(gw, cache, time.Minute, timeutil.Fixed(testNow), logger)
	snapshot, err := l.Cached(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", snapshot.CustomerID)
	assert.True(t, logger.HasWarn("snapshot cache read failed"))
	assert.True(t, logger.HasWarn("snapshot cache write failed"))
	cache.AssertExpectations(t)
}

func TestLoader_NoCacheAlwaysFresh(t *testing.T) {
	gw := mocks.NewFakeGateway()
	l := NewLoader(gw, nil, time.Minute, nil, mocks.NewMockLogger())

	for i := 0; i < 3; i++ {
		_, err := l.Cached(context.Background(), "cus_1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, gw.Calls(mocks.OpListSubscriptions))
	l.Evict(context.Background(), "cus_1")
}

func TestWrapGatewayError(t *testing.T) {
	assert.NoError(t, WrapGatewayError("x", nil))
	assert.ErrorIs(t, WrapGatewayError("x", context.Canceled), context.Canceled)
	assert.False(t, domain.IsGatewayError(WrapGatewayError("x", context.DeadlineExceeded)))
	assert.Equal(t, domain.ErrorCodeLockHeld, domain.GetErrorCode(WrapGatewayError("x", domain.ErrLockHeld)))
	assert.True(t, domain.IsGatewayError(WrapGatewayError("x", errors.New("boom"))))
}
