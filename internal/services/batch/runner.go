// Package batch runs a job over every member of the directory with bounded
// concurrency, a shared gateway rate limit and retries on retriable gateway errors.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
	"github.com/kevin07696/membership-service/pkg/resilience"
)

// Options tune a batch run
type Options struct {
	// Backoff between retries of a retriable gateway error; nil uses RateLimitBackoff
	Backoff resilience.BackoffStrategy
	// DryRun computes and reports changes without gateway mutations
	DryRun bool
	// Concurrency is the number of members processed at once
	Concurrency int
	// RequestsPerSecond caps gateway calls across all workers; <= 0 disables the limit
	RequestsPerSecond float64
	// InterBatchDelay pauses between directory pages
	InterBatchDelay time.Duration
	// MaxRetries is the number of attempts for one gateway call
	MaxRetries int
	// PageSize is the number of members read from the directory at once
	PageSize int
}

// DefaultOptions returns conservative production settings
func DefaultOptions() Options {
	return Options{
		Concurrency:       4,
		RequestsPerSecond: 20,
		MaxRetries:        5,
		PageSize:          100,
	}
}

func (o Options) normalized() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 100
	}
	if o.Backoff == nil {
		o.Backoff = resilience.RateLimitBackoff()
	}
	return o
}

// MemberFunc processes one member. Its error is recorded against the member and
// never stops the run.
type MemberFunc func(ctx context.Context, member *domain.Member) error

// Runner drives one batch job
type Runner struct {
	job      string
	members  ports.MemberDirectory
	limiter  *rate.Limiter
	timeouts *resilience.TimeoutConfig
	opts     Options
	logger   ports.Logger
}

// NewRunner creates a runner for the named job
func NewRunner(job string, members ports.MemberDirectory, timeouts *resilience.TimeoutConfig, opts Options, logger ports.Logger) *Runner {
	opts = opts.normalized()
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = opts.Concurrency
	}

	return &Runner{
		job:      job,
		members:  members,
		limiter:  rate.NewLimiter(limit, burst),
		timeouts: timeouts,
		opts:     opts,
		logger:   logger,
	}
}

// Options returns the normalized options of the run
func (r *Runner) Options() Options {
	return r.opts
}

// Call performs one gateway call under the shared rate limit, retrying retriable errors
func (r *Runner) Call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	cfg := resilience.RetryConfig{
		Backoff:     r.opts.Backoff,
		MaxAttempts: r.opts.MaxRetries,
		ShouldRetry: pkgerrors.IsRetriable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			r.logger.Warn("retrying gateway call",
				ports.String("job", r.job),
				ports.String("operation", operation),
				ports.Int("attempt", attempt),
				ports.Duration("delay", delay),
				ports.Err(err))
		},
	}

	return resilience.WithRetry(ctx, cfg, func(ctx context.Context) error {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		return fn(ctx)
	})
}

// ForEachMember pages through the directory and runs fn for every member with
// bounded concurrency. Only a directory failure or ctx cancellation aborts the run;
// per-member errors go to onError.
func (r *Runner) ForEachMember(ctx context.Context, fn MemberFunc, onError func(member *domain.Member, err error)) (int, error) {
	var (
		mu      sync.Mutex
		visited int
		afterID string
	)

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return visited, err
		}

		members, err := r.members.ListMembers(ctx, afterID, r.opts.PageSize)
		if err != nil {
			return visited, fmt.Errorf("list members after %q: %w", afterID, err)
		}
		if len(members) == 0 {
			return visited, nil
		}

		if page > 0 && r.opts.InterBatchDelay > 0 {
			if err := sleep(ctx, r.opts.InterBatchDelay); err != nil {
				return visited, err
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Concurrency)

		for _, member := range members {
			member := member
			g.Go(func() error {
				itemCtx, cancel := r.timeouts.BatchItemContext(gctx)
				defer cancel()

				if err := fn(itemCtx, member); err != nil {
					onError(member, err)
				}
				mu.Lock()
				visited++
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		afterID = members[len(members)-1].ID
		if len(members) < r.opts.PageSize {
			return visited, ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
