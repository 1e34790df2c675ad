package ports

import (
	"context"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
)

// MemberDirectory is the external member store. The core only reads it.
type MemberDirectory interface {
	GetMember(ctx context.Context, memberID string) (*domain.Member, error)

	// ListMembers pages through members ordered by ID, starting after afterID
	ListMembers(ctx context.Context, afterID string, limit int) ([]*domain.Member, error)
}

// TierCatalog is the external tier price list
type TierCatalog interface {
	GetTier(ctx context.Context, tierID string) (*domain.Tier, error)
}

// CustomerLinkRepository stores the member to gateway customer association owned by the core
type CustomerLinkRepository interface {
	// GetCustomerID returns "" with no error when the member has no link yet
	GetCustomerID(ctx context.Context, db DBTX, memberID string) (string, error)
	LinkCustomer(ctx context.Context, tx DBTX, memberID, customerID string) error
}

// SnapshotCache caches gateway account snapshots for status reads
type SnapshotCache interface {
	// Get returns nil, nil on a miss
	Get(ctx context.Context, customerID string) (*domain.AccountSnapshot, error)
	Set(ctx context.Context, snapshot *domain.AccountSnapshot, ttl time.Duration) error
	Evict(ctx context.Context, customerID string) error
}

// WebhookEvent is a verified gateway event recorded for de-duplication
type WebhookEvent struct {
	ReceivedAt time.Time
	ID         string
	Type       string
	ObjectID   string
}

// WebhookEventRepository records processed gateway events
type WebhookEventRepository interface {
	// MarkProcessed returns false when the event was already recorded
	MarkProcessed(ctx context.Context, tx DBTX, event *WebhookEvent) (bool, error)
}

// JobRun is the persisted audit record of one batch job run
type JobRun struct {
	StartedAt  time.Time
	FinishedAt *time.Time
	Summary    []byte // JSON
	ID         string
	Job        string
	Status     string
	DryRun     bool
}

// Job run statuses
const (
	JobRunStatusRunning   = "running"
	JobRunStatusCompleted = "completed"
	JobRunStatusPartial   = "partial"
	JobRunStatusFailed    = "failed"
)

// JobRunRepository persists batch job summaries
type JobRunRepository interface {
	Start(ctx context.Context, tx DBTX, run *JobRun) error
	Finish(ctx context.Context, tx DBTX, runID, status string, summary []byte, finishedAt time.Time) error
	ListRecent(ctx context.Context, db DBTX, job string, limit int) ([]*JobRun, error)
}
