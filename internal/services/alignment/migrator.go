// Package alignment moves every member's renewal anchor to the next January 1st
// so that all memberships renew together.
package alignment

import (
	"context"
	"fmt"
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
const Job = "align_renewals"

// Outcome is the terminal state of one subscription visited by a run
type Outcome string

const (
	OutcomeUpdated         Outcome = "updated"
	OutcomeSkippedTerminal Outcome = "skipped_terminal"
	OutcomeSkippedAligned  Outcome = "skipped_aligned"
	OutcomeFailed          Outcome = "errored"
)

// Summary reports the counts of one run. A dry run counts would-be updates as updated.
type Summary struct {
	StartedAt              time.Time         `json:"started_at"`
	FinishedAt             time.Time         `json:"finished_at"`
	TargetDate             time.Time         `json:"target_date"`
	RunID                  string            `json:"run_id"`
	MigrationDate          string            `json:"migration_date"`
	Errors                 []batch.ItemError `json:"errors"`
	MembersProcessed       int               `json:"members_processed"`
	MembersSkipped         int               `json:"members_skipped"`
	SubscriptionsProcessed int               `json:"subscriptions_processed"`
	Updated                int               `json:"updated"`
	SkippedTerminal        int               `json:"skipped_terminal"`
	SkippedAligned         int               `json:"skipped_aligned"`
	Errored                int               `json:"errored"`
	DryRun                 bool              `json:"dry_run"`
}

// Skipped is the number of subscriptions left untouched
func (s *Summary) Skipped() int {
	return s.SkippedTerminal + s.SkippedAligned
}

// HasErrors reports whether any member or subscription failed
func (s *Summary) HasErrors() bool {
	return len(s.Errors) > 0
}

// Classify decides what a run does with a subscription, before any gateway call
func Classify(sub *domain.SubscriptionRecord) Outcome {
	switch {
	case sub.Status.IsTerminal():
		return OutcomeSkippedTerminal
	case sub.IsAlignedToJan1():
		return OutcomeSkippedAligned
	default:
		return OutcomeUpdated
	}
}

// Migrator runs the renewal alignment over the member directory
type Migrator struct {
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

// NewMigrator creates a renewal alignment migrator
func NewMigrator(
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
) *Migrator {
	if clock == nil {
		clock = timeutil.Now
	}
	return &Migrator{
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
	summary *Summary
	visited map[string]bool
	runner  *batch.Runner
	update  ports.UpdateSubscriptionRequest
}

// Run aligns every member's subscriptions. Per-item failures only affect the
// summary; the returned error is set when the scan itself could not complete.
func (m *Migrator) Run(ctx context.Context, opts batch.Options) (*Summary, error) {
	started := m.clock()
	target := timeutil.NextJanuaryFirst(started)
	migrationDate := timeutil.StartOfDay(started).Format(time.RFC3339)

	state := &run{
		summary: &Summary{
			StartedAt:     started,
			TargetDate:    target,
			MigrationDate: migrationDate,
			Errors:        []batch.ItemError{},
			DryRun:        opts.DryRun,
		},
		visited: make(map[string]bool),
		runner:  batch.NewRunner(Job, m.members, m.timeouts, opts, m.logger),
		update: ports.UpdateSubscriptionRequest{
			TrialEnd:          &target,
			ProrationBehavior: ports.ProrationNone,
			Metadata: map[string]string{
				domain.MetadataAlignedToJan1: "true",
				domain.MetadataMigrationDate: migrationDate,
			},
		},
	}
	state.summary.RunID = m.audit.Start(ctx, Job, opts.DryRun, started)

	m.logger.Info("renewal alignment started",
		ports.String("run_id", state.summary.RunID),
		ports.Time("target_date", target),
		ports.Bool("dry_run", opts.DryRun))

	_, err := state.runner.ForEachMember(ctx, func(ctx context.Context, member *domain.Member) error {
		return m.processMember(ctx, state, member)
	}, func(member *domain.Member, err error) {
		observability.RecordBatchItem(Job, "member_errored")
		state.fail(batch.ItemError{MemberID: member.ID, Email: member.Email, Error: err.Error()}, false)
		m.logger.Warn("renewal alignment failed for member",
			ports.String("member_id", member.ID),
			ports.Err(err))
	})

	summary := state.summary
	summary.FinishedAt = m.clock()
	observability.RecordBatchRun(Job, opts.DryRun, summary.FinishedAt.Sub(started).Seconds())
	m.audit.Finish(ctx, summary.RunID, batch.RunStatus(err, len(summary.Errors)), summary, summary.FinishedAt)

	m.logger.Info("renewal alignment completed",
		ports.String("run_id", summary.RunID),
		ports.Int("members_processed", summary.MembersProcessed),
		ports.Int("members_skipped", summary.MembersSkipped),
		ports.Int("subscriptions_processed", summary.SubscriptionsProcessed),
		ports.Int("updated", summary.Updated),
		ports.Int("skipped", summary.Skipped()),
		ports.Int("errored", summary.Errored))

	if err != nil {
		return summary, fmt.Errorf("scan members: %w", err)
	}
	return summary, nil
}

func (m *Migrator) processMember(ctx context.Context, state *run, member *domain.Member) error {
	customerID, err := m.resolver.ResolveVia(ctx, member, state.runner.Call)
	if err != nil {
		if domain.IsNotFoundError(err) {
			observability.RecordBatchItem(Job, "member_skipped")
			state.memberSkipped()
			return nil
		}
		return err
	}

	var subs []*domain.SubscriptionRecord
	err = state.runner.Call(ctx, "list_subscriptions", func(ctx context.Context) error {
		var callErr error
		subs, callErr = m.gateway.ListSubscriptions(ctx, customerID)
		return callErr
	})
	if err != nil {
		return account.WrapGatewayError("list subscriptions", err)
	}
	state.memberProcessed()

	changed := false
	for _, sub := range subs {
		if !state.visit(sub.ID) {
			continue
		}

		outcome := Classify(sub)
		if outcome == OutcomeUpdated {
			if state.runner.Options().DryRun {
				m.logger.Info("would align subscription",
					ports.String("customer_id", customerID),
					ports.String("subscription_id", sub.ID),
					ports.Time("trial_end", *state.update.TrialEnd))
			} else if err := m.align(ctx, state, sub); err != nil {
				outcome = OutcomeFailed
				state.fail(batch.ItemError{
					MemberID:       member.ID,
					Email:          member.Email,
					CustomerID:     customerID,
					SubscriptionID: sub.ID,
					Error:          err.Error(),
				}, true)
			} else {
				changed = true
			}
		}

		observability.RecordBatchItem(Job, string(outcome))
		state.record(outcome)
	}

	if changed {
		m.loader.Evict(ctx, customerID)
	}
	return nil
}

func (m *Migrator) align(ctx context.Context, state *run, sub *domain.SubscriptionRecord) error {
	key := ports.SubscriptionLockKey(sub.ID)
	release, err := m.locker.Acquire(ctx, key, m.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("failed to release lock", ports.String("key", key), ports.Err(err))
		}
	}()

	req := state.update
	req.IdempotencyKey = "align-" + sub.ID + "-" + state.summary.MigrationDate
	err = state.runner.Call(ctx, "update_subscription", func(ctx context.Context) error {
		_, callErr := m.gateway.UpdateSubscription(ctx, sub.ID, req)
		return callErr
	})
	if err != nil {
		return account.WrapGatewayError("align subscription", err)
	}

	m.logger.Info("subscription aligned",
		ports.String("subscription_id", sub.ID),
		ports.Time("trial_end", *req.TrialEnd))
	return nil
}

func (s *run) visit(subscriptionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[subscriptionID] {
		return false
	}
	s.visited[subscriptionID] = true
	return true
}

func (s *run) record(outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.SubscriptionsProcessed++
	switch outcome {
	case OutcomeUpdated:
		s.summary.Updated++
	case OutcomeSkippedTerminal:
		s.summary.SkippedTerminal++
	case OutcomeSkippedAligned:
		s.summary.SkippedAligned++
	case OutcomeFailed:
		s.summary.Errored++
	}
}

func (s *run) fail(e batch.ItemError, subscription bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Errors = append(s.summary.Errors, e)
	if !subscription {
		s.summary.Errored++
	}
}

func (s *run) memberProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.MembersProcessed++
}

func (s *run) memberSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.MembersSkipped++
}
