package ports

import (
	"context"

	"github.com/kevin07696/membership-service/internal/services/alignment"
	"github.com/kevin07696/membership-service/internal/services/batch"
	"github.com/kevin07696/membership-service/internal/services/duplicates"
)

// DuplicateResolver defines the port for the duplicate subscription job
type DuplicateResolver interface {
	Run(ctx context.Context, opts batch.Options) (*duplicates.Report, error)
}

// RenewalAligner defines the port for the renewal alignment job
type RenewalAligner interface {
	Run(ctx context.Context, opts batch.Options) (*alignment.Summary, error)
}

// SnapshotEvicter drops cached account snapshots when the gateway reports a change
type SnapshotEvicter interface {
	Evict(ctx context.Context, customerID string)
}

var (
	_ DuplicateResolver = (*duplicates.Resolver)(nil)
	_ RenewalAligner    = (*alignment.Migrator)(nil)
)
