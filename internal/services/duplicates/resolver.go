// Package duplicates finds gateway customers holding more than one live
// subscription, keeps one and cancels the rest.
package duplicates

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/internal/services/account"
	"github.com/kevin07696/membership-service/internal/services/batch"
	"github.com/kevin07696/membership-service/pkg/observability"
	"github.com/kevin07696/membership-service/pkg/resilience"
	"github.com/kevin07696/membership-service/pkg/timeutil"
)

// Job is the job name used for metrics and job run records
const Job = "resolve_duplicates"

// Entry is the audit record of one customer with duplicates
type Entry struct {
	Email      string   `json:"email"`
	CustomerID string   `json:"customer_id"`
	Kept       string   `json:"kept"`
	Canceled   []string `json:"canceled"`
	Errors     []string `json:"errors"`
}

// Report summarizes a duplicate resolution run
type Report struct {
	StartedAt             time.Time         `json:"started_at"`
	FinishedAt            time.Time         `json:"finished_at"`
	RunID                 string            `json:"run_id"`
	Entries               []Entry           `json:"entries"`
	Errors                []batch.ItemError `json:"errors"`
	MembersScanned        int               `json:"members_scanned"`
	CustomersScanned      int               `json:"customers_scanned"`
	DuplicatesFound       int               `json:"duplicates_found"`
	SubscriptionsCanceled int               `json:"subscriptions_canceled"`
	DryRun                bool              `json:"dry_run"`
}

// HasErrors reports whether any member or cancellation failed
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// Resolver runs duplicate resolution over the member directory
type Resolver struct {
	members  ports.MemberDirectory
	gateway  ports.MembershipGateway
	resolver *account.Resolver
	loader   *account.Loader
	locker   ports.Locker
	audit    *batch.Audit
	timeouts *resilience.TimeoutConfig
	clock    timeutil.Clock
	lockTTL  time.Duration
	logger   ports.Logger
}

// NewResolver creates a duplicate resolver
func NewResolver(
	members ports.MemberDirectory,
	gateway ports.MembershipGateway,
	resolver *account.Resolver,
	loader *account.Loader,
	locker ports.Locker,
	audit *batch.Audit,
	timeouts *resilience.TimeoutConfig,
	clock timeutil.Clock,
	lockTTL time.Duration,
	logger ports.Logger,
) *Resolver {
	if clock == nil {
		clock = timeutil.Now
	}
	return &Resolver{
		members:  members,
		gateway:  gateway,
		resolver: resolver,
		loader:   loader,
		locker:   locker,
		audit:    audit,
		timeouts: timeouts,
		clock:    clock,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// run holds the mutable state of one invocation
type run struct {
	mu      sync.Mutex
	report  *Report
	visited map[string]bool
	runner  *batch.Runner
}

// Run scans every member. Per-item failures are collected in the report; the
// returned error is set only when the scan itself could not complete.
func (r *Resolver) Run(ctx context.Context, opts batch.Options) (*Report, error) {
	started := r.clock()
	state := &run{
		report: &Report{
			StartedAt: started,
			DryRun:    opts.DryRun,
			Entries:   []Entry{},
			Errors:    []batch.ItemError{},
		},
		visited: make(map[string]bool),
		runner:  batch.NewRunner(Job, r.members, r.timeouts, opts, r.logger),
	}
	state.report.RunID = r.audit.Start(ctx, Job, opts.DryRun, started)

	r.logger.Info("duplicate resolution started",
		ports.String("run_id", state.report.RunID),
		ports.Bool("dry_run", opts.DryRun))

	scanned, err := state.runner.ForEachMember(ctx, func(ctx context.Context, member *domain.Member) error {
		return r.processMember(ctx, state, member)
	}, func(member *domain.Member, err error) {
		observability.RecordBatchItem(Job, "errored")
		state.addError(batch.ItemError{MemberID: member.ID, Email: member.Email, Error: err.Error()})
		r.logger.Warn("duplicate resolution failed for member",
			ports.String("member_id", member.ID),
			ports.Err(err))
	})

	report := state.report
	report.MembersScanned = scanned
	report.FinishedAt = r.clock()
	observability.RecordBatchRun(Job, opts.DryRun, report.FinishedAt.Sub(started).Seconds())
	r.audit.Finish(ctx, report.RunID, batch.RunStatus(err, len(report.Errors)), report, report.FinishedAt)

	r.logger.Info("duplicate resolution completed",
		ports.String("run_id", report.RunID),
		ports.Int("members_scanned", report.MembersScanned),
		ports.Int("customers_scanned", report.CustomersScanned),
		ports.Int("duplicates_found", report.DuplicatesFound),
		ports.Int("subscriptions_canceled", report.SubscriptionsCanceled),
		ports.Int("errors", len(report.Errors)))

	if err != nil {
		return report, fmt.Errorf("scan members: %w", err)
	}
	return report, nil
}

func (r *Resolver) processMember(ctx context.Context, state *run, member *domain.Member) error {
	customerID, err := r.resolver.ResolveVia(ctx, member, state.runner.Call)
	if err != nil {
		if domain.IsNotFoundError(err) {
			observability.RecordBatchItem(Job, "no_customer")
			return nil
		}
		return err
	}

	if !state.visit(customerID) {
		observability.RecordBatchItem(Job, "visited_customer")
		return nil
	}

	var subs []*domain.SubscriptionRecord
	err = state.runner.Call(ctx, "list_subscriptions", func(ctx context.Context) error {
		var callErr error
		subs, callErr = r.gateway.ListSubscriptions(ctx, customerID)
		return callErr
	})
	if err != nil {
		return account.WrapGatewayError("list subscriptions", err)
	}

	keep, extra := SelectDuplicates(subs)
	if len(extra) == 0 {
		observability.RecordBatchItem(Job, "clean")
		return nil
	}
	observability.RecordBatchItem(Job, "duplicates")

	entry := Entry{
		Email:      member.Email,
		CustomerID: customerID,
		Kept:       keep.ID,
		Canceled:   []string{},
		Errors:     []string{},
	}

	for _, sub := range extra {
		if state.runner.Options().DryRun {
			entry.Canceled = append(entry.Canceled, sub.ID)
			r.logger.Info("would cancel duplicate subscription",
				ports.String("customer_id", customerID),
				ports.String("subscription_id", sub.ID),
				ports.String("kept", keep.ID))
			continue
		}

		if err := r.cancel(ctx, state, sub); err != nil {
			observability.RecordBatchItem(Job, "errored")
			entry.Errors = append(entry.Errors, fmt.Sprintf("%s: %v", sub.ID, err))
			state.addError(batch.ItemError{
				MemberID:       member.ID,
				Email:          member.Email,
				CustomerID:     customerID,
				SubscriptionID: sub.ID,
				Error:          err.Error(),
			})
			continue
		}
		observability.RecordBatchItem(Job, "canceled")
		entry.Canceled = append(entry.Canceled, sub.ID)
	}

	if !state.runner.Options().DryRun {
		r.loader.Evict(ctx, customerID)
	}
	state.addEntry(entry)
	return nil
}

func (r *Resolver) cancel(ctx context.Context, state *run, sub *domain.SubscriptionRecord) error {
	key := ports.SubscriptionLockKey(sub.ID)
	release, err := r.locker.Acquire(ctx, key, r.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("failed to release lock", ports.String("key", key), ports.Err(err))
		}
	}()

	err = state.runner.Call(ctx, "cancel_subscription", func(ctx context.Context) error {
		_, callErr := r.gateway.CancelSubscription(ctx, sub.ID)
		return callErr
	})
	if err != nil {
		return account.WrapGatewayError("cancel subscription", err)
	}

	r.logger.Info("duplicate subscription canceled",
		ports.String("customer_id", sub.CustomerID),
		ports.String("subscription_id", sub.ID))
	return nil
}

// SelectDuplicates picks the subscription to keep among the trialing and active
// ones and returns the others. keep is nil when there are none.
func SelectDuplicates(subs []*domain.SubscriptionRecord) (keep *domain.SubscriptionRecord, extra []*domain.SubscriptionRecord) {
	candidates := make([]*domain.SubscriptionRecord, 0, len(subs))
	for _, sub := range subs {
		if sub.IsDuplicateCandidate() {
			candidates = append(candidates, sub)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PreferredOver(candidates[j])
	})
	return candidates[0], candidates[1:]
}

func (s *run) visit(customerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[customerID] {
		return false
	}
	s.visited[customerID] = true
	s.report.CustomersScanned++
	return true
}

func (s *run) addEntry(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Entries = append(s.report.Entries, e)
	s.report.DuplicatesFound++
	s.report.SubscriptionsCanceled += len(e.Canceled)
}

func (s *run) addError(e batch.ItemError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Errors = append(s.report.Errors, e)
}
