package servicemocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/kevin07696/membership-service/internal/services/alignment"
	"github.com/kevin07696/membership-service/internal/services/batch"
	"github.com/kevin07696/membership-service/internal/services/duplicates"
	"github.com/kevin07696/membership-service/internal/services/ports"
)

// MockDuplicateResolver is a mock implementation of ports.DuplicateResolver
type MockDuplicateResolver struct {
	mock.Mock
}

func (m *MockDuplicateResolver) Run(ctx context.Context, opts batch.Options) (*duplicates.Report, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*duplicates.Report), args.Error(1)
}

// MockRenewalAligner is a mock implementation of ports.RenewalAligner
type MockRenewalAligner struct {
	mock.Mock
}

func (m *MockRenewalAligner) Run(ctx context.Context, opts batch.Options) (*alignment.Summary, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alignment.Summary), args.Error(1)
}

// SnapshotEvicter records the customers whose snapshots were evicted
type SnapshotEvicter struct {
	mu      sync.Mutex
	Evicted []string
}

func (e *SnapshotEvicter) Evict(_ context.Context, customerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Evicted = append(e.Evicted, customerID)
}

var (
	_ ports.DuplicateResolver = (*MockDuplicateResolver)(nil)
	_ ports.RenewalAligner    = (*MockRenewalAligner)(nil)
	_ ports.SnapshotEvicter   = (*SnapshotEvicter)(nil)
)
