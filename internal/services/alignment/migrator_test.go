package alignment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/membership-service/internal/adapters/memory"
	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/internal/services/account"
	"github.com/kevin07696/membership-service/internal/services/batch"
	"github.com/kevin07696/membership-service/internal/testutil/fixtures"
	"github.com/kevin07696/membership-service/internal/testutil/mocks"
	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
	"github.com/kevin07696/membership-service/pkg/resilience"
	"github.com/kevin07696/membership-service/pkg/timeutil"
)

var now = time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)

type harness struct {
	migrator *Migrator
	gateway  *mocks.FakeGateway
	members  *mocks.MemberDirectory
	runs     *mocks.JobRuns
	cache    *mocks.SnapshotCache
}

func newHarness(t *testing.T, at time.Time) *harness {
	t.Helper()
	return newHarnessWithTimeouts(t, at, resilience.TestTimeoutConfig())
}

func newHarnessWithTimeouts(t *testing.T, at time.Time, timeouts *resilience.TimeoutConfig) *harness {
	t.Helper()

	gw := mocks.NewFakeGateway()
	gw.Now = func() time.Time { return at }
	members := mocks.NewMemberDirectory()
	runs := mocks.NewJobRuns()
	cache := mocks.NewSnapshotCache()
	logger := mocks.NewMockLogger()
	clock := timeutil.Fixed(at)
	links := mocks.NewCustomerLinks()

	m := NewMigrator(members, gw,
		account.NewResolver(gw, links, logger),
		account.NewLoader(gw, cache, time.Minute, clock, logger),
		memory.NewLocker(), batch.NewAudit(runs, logger), timeouts, clock, time.Minute, logger)

	return &harness{migrator: m, gateway: gw, members: members, runs: runs, cache: cache}
}

func (h *harness) addMember(id, customerID string) {
	h.members.Put(fixtures.NewMember(id).Build())
	h.gateway.AddCustomer(&ports.Customer{ID: customerID, Email: id + "@example.org"})
}

func options(dryRun bool) batch.Options {
	return batch.Options{
		Backoff:     &resilience.FixedBackoff{Delay: time.Millisecond},
		DryRun:      dryRun,
		Concurrency: 3,
		MaxRetries:  3,
		PageSize:    2,
	}
}

// seedMixed gives cus_1 one subscription of every interesting kind
func seedMixed(h *harness) {
	h.addMember("m1", "cus_1")
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).WithID("sub_active").Build())
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).WithID("sub_past_due").
		WithStatus(domain.SubscriptionStatusPastDue).Build())
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).WithID("sub_canceled").Canceled(now.AddDate(0, -2, 0)).Build())
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).WithID("sub_incomplete").
		WithStatus(domain.SubscriptionStatusIncomplete).Build())
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).WithID("sub_expired").
		WithStatus(domain.SubscriptionStatusIncompleteExpired).Build())
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).WithID("sub_aligned").
		Trialing(fixtures.Date(2026, 1, 1)).WithMetadata(domain.MetadataAlignedToJan1, "true").Build())
}

func TestRun_AlignsLiveSubscriptions(t *testing.T) {
	h := newHarness(t, now)
	seedMixed(h)

	summary, err := h.migrator.Run(context.Background(), options(false))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MembersProcessed)
	assert.Equal(t, 6, summary.SubscriptionsProcessed)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 3, summary.SkippedTerminal)
	assert.Equal(t, 1, summary.SkippedAligned)
	assert.Equal(t, 4, summary.Skipped())
	assert.Zero(t, summary.Errored)
	assert.Equal(t, fixtures.Date(2026, 1, 1), summary.TargetDate)
	assert.Equal(t, "2025-06-01T00:00:00Z", summary.MigrationDate)

	for _, id := range []string{"sub_active", "sub_past_due"} {
		req, ok := h.gateway.LastUpdates[id]
		require.True(t, ok, id)
		require.NotNil(t, req.TrialEnd)
		assert.Equal(t, fixtures.Date(2026, 1, 1), *req.TrialEnd)
		assert.Equal(t, ports.ProrationNone, req.ProrationBehavior)
		assert.Equal(t, "true", req.Metadata[domain.MetadataAlignedToJan1])
		assert.Equal(t, "2025-06-01T00:00:00Z", req.Metadata[domain.MetadataMigrationDate])
		assert.True(t, h.gateway.Subscription(id).IsAlignedToJan1())
	}
	assert.Equal(t, 2, h.gateway.Calls(mocks.OpUpdateSubscription))
	assert.Equal(t, 1, h.cache.Evictions)

	recent, err := h.runs.ListRecent(context.Background(), nil, Job, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, ports.JobRunStatusCompleted, recent[0].Status)
	assert.False(t, recent[0].DryRun)
}

func TestRun_IsIdempotent(t *testing.T) {
	h := newHarness(t, now)
	seedMixed(h)

	first, err := h.migrator.Run(context.Background(), options(false))
	require.NoError(t, err)
	require.Equal(t, 2, first.Updated)
	trialEnd := *h.gateway.Subscription("sub_active").TrialEnd
	h.gateway.ResetCalls()

	second, err := h.migrator.Run(context.Background(), options(false))
	require.NoError(t, err)

	assert.Zero(t, second.Updated)
	assert.Equal(t, 3, second.SkippedAligned)
	assert.Zero(t, h.gateway.Calls(mocks.OpUpdateSubscription))
	assert.Equal(t, trialEnd, *h.gateway.Subscription("sub_active").TrialEnd)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_DryRunMatchesLiveCountsWithoutMutations(t *testing.T) {
	dry := newHarness(t, now)
	seedMixed(dry)
	live := newHarness(t, now)
	seedMixed(live)

	drySummary, err := dry.migrator.Run(context.Background(), options(true))
	require.NoError(t, err)
	liveSummary, err := live.migrator.Run(context.Background(), options(false))
	require.NoError(t, err)

	assert.Zero(t, dry.gateway.MutationCalls())
	assert.Zero(t, dry.cache.Evictions)
	assert.True(t, drySummary.DryRun)
	assert.Equal(t, liveSummary.Updated, drySummary.Updated)
	assert.Equal(t, liveSummary.SkippedTerminal, drySummary.SkippedTerminal)
	assert.Equal(t, liveSummary.SkippedAligned, drySummary.SkippedAligned)
	assert.Equal(t, liveSummary.SubscriptionsProcessed, drySummary.SubscriptionsProcessed)
	assert.False(t, dry.gateway.Subscription("sub_active").IsAlignedToJan1())
}

func TestRun_MemberWithoutCustomerIsSkipped(t *testing.T) {
	h := newHarness(t, now)
	h.members.Put(fixtures.NewMember("m_ghost").Build())
	h.addMember("m1", "cus_1")
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).Build())

	summary, err := h.migrator.Run(context.Background(), options(false))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MembersSkipped)
	assert.Equal(t, 1, summary.MembersProcessed)
	assert.Equal(t, 1, summary.Updated)
	assert.False(t, summary.HasErrors())
}

func TestRun_UpdateFailureDoesNotHaltRun(t *testing.T) {
	h := newHarness(t, now)
	for _, id := range []string{"m1", "m2", "m3"} {
		h.addMember(id, "cus_"+id)
		h.gateway.AddSubscription(fixtures.NewSubscription("cus_"+id, now).WithID("sub_" + id).Build())
	}
	h.gateway.FailTimes(mocks.OpUpdateSubscription, 1,
		pkgerrors.NewGatewayError("update_subscription", "invalid trial_end", pkgerrors.CategoryInvalidRequest, false))

	summary, err := h.migrator.Run(context.Background(), options(false))
	require.NoError(t, err)

	assert.Equal(t, 3, summary.SubscriptionsProcessed)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Errored)
	require.Len(t, summary.Errors, 1)
	assert.NotEmpty(t, summary.Errors[0].SubscriptionID)

	recent, _ := h.runs.ListRecent(context.Background(), nil, Job, 1)
	require.Len(t, recent, 1)
	assert.Equal(t, ports.JobRunStatusPartial, recent[0].Status)
}

func TestRun_RetriesRateLimitedUpdates(t *testing.T) {
	h := newHarness(t, now)
	h.addMember("m1", "cus_1")
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).WithID("sub_1").Build())
	h.gateway.FailTimes(mocks.OpUpdateSubscription, 2,
		pkgerrors.NewGatewayError("update_subscription", "too many requests", pkgerrors.CategoryRateLimited, true))

	summary, err := h.migrator.Run(context.Background(), options(false))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	assert.Zero(t, summary.Errored)
	assert.Equal(t, 3, h.gateway.Calls(mocks.OpUpdateSubscription))
}

func TestRun_RetriesRateLimitedEmailLookup(t *testing.T) {
	h := newHarness(t, now)
	h.addMember("m1", "cus_1")
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).WithID("sub_1").Build())
	h.gateway.FailTimes(mocks.OpFindCustomer, 1,
		pkgerrors.NewGatewayError("find_customer", "too many requests", pkgerrors.CategoryRateLimited, true))

	summary, err := h.migrator.Run(context.Background(), options(false))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MembersProcessed)
	assert.Equal(t, 1, summary.Updated)
	assert.Zero(t, summary.Errored)
	assert.Equal(t, 2, h.gateway.Calls(mocks.OpFindCustomer))
}

func TestRun_SharedCustomerVisitsSubscriptionsOnce(t *testing.T) {
	h := newHarness(t, now)
	h.addMember("m1", "cus_1")
	h.members.Put(fixtures.NewMember("m2").WithEmail("m1@example.org").Build())
	h.gateway.AddSubscription(fixtures.NewSubscription("cus_1", now).WithID("sub_1").Build())

	summary, err := h.migrator.Run(context.Background(), options(false))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.MembersProcessed)
	assert.Equal(t, 1, summary.SubscriptionsProcessed)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, h.gateway.Calls(mocks.OpUpdateSubscription))
}

func TestRun_LongRunVisitsEveryMember(t *testing.T) {
	timeouts := resilience.TestTimeoutConfig()
	timeouts.JobLock = 10 * time.Millisecond
	h := newHarnessWithTimeouts(t, now, timeouts)
	for _, id := range []string{"m1", "m2", "m3"} {
		h.addMember(id, "cus_"+id)
		h.gateway.AddSubscription(fixtures.NewSubscription("cus_"+id, now).WithID("sub_" + id).Build())
	}

	opts := options(false)
	opts.Concurrency = 1
	opts.PageSize = 1
	opts.InterBatchDelay = 20 * time.Millisecond

	started := time.Now()
	summary, err := h.migrator.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Greater(t, time.Since(started), timeouts.JobLock)
	assert.Equal(t, 3, summary.MembersProcessed)
	assert.Equal(t, 3, summary.Updated)
	assert.Zero(t, summary.Errored)
}

func TestRun_TargetIsStrictlyAfterRunTime(t *testing.T) {
	h := newHarness(t, fixtures.Date(2025, 1, 1))

	summary, err := h.migrator.Run(context.Background(), options(true))
	require.NoError(t, err)
	assert.Equal(t, fixtures.Date(2026, 1, 1), summary.TargetDate)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		sub  *domain.SubscriptionRecord
		want Outcome
	}{
		{"active", fixtures.NewSubscription("c", now).Build(), OutcomeUpdated},
		{"trialing", fixtures.NewSubscription("c", now).Trialing(now.AddDate(0, 3, 0)).Build(), OutcomeUpdated},
		{"unpaid", fixtures.NewSubscription("c", now).WithStatus(domain.SubscriptionStatusUnpaid).Build(), OutcomeUpdated},
		{"canceled", fixtures.NewSubscription("c", now).Canceled(now).Build(), OutcomeSkippedTerminal},
		{"incomplete", fixtures.NewSubscription("c", now).WithStatus(domain.SubscriptionStatusIncomplete).Build(), OutcomeSkippedTerminal},
		{"incomplete expired", fixtures.NewSubscription("c", now).WithStatus(domain.SubscriptionStatusIncompleteExpired).Build(), OutcomeSkippedTerminal},
		{"aligned", fixtures.NewSubscription("c", now).WithMetadata(domain.MetadataAlignedToJan1, "true").Build(), OutcomeSkippedAligned},
		{"canceled and aligned", fixtures.NewSubscription("c", now).Canceled(now).WithMetadata(domain.MetadataAlignedToJan1, "true").Build(), OutcomeSkippedTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sub))
		})
	}
}
