package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// MemberDirectory is an in-memory member directory
type MemberDirectory struct {
	mu      sync.RWMutex
	members map[string]*domain.Member
	Err     error
}

// NewMemberDirectory creates a directory holding the given members
func NewMemberDirectory(members ...*domain.Member) *MemberDirectory {
	d := &MemberDirectory{members: make(map[string]*domain.Member)}
	for _, m := range members {
		d.members[m.ID] = m
	}
	return d
}

// Put adds or replaces a member
func (d *MemberDirectory) Put(m *domain.Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
}

func (d *MemberDirectory) GetMember(_ context.Context, memberID string) (*domain.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	m, ok := d.members[memberID]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (d *MemberDirectory) ListMembers(_ context.Context, afterID string, limit int) ([]*domain.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	ids := make([]string, 0, len(d.members))
	for id := range d.members {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*domain.Member, 0, len(ids))
	for _, id := range ids {
		cp := *d.members[id]
		out = append(out, &cp)
	}
	return out, nil
}

// TierCatalog is an in-memory tier catalogue
type TierCatalog struct {
	tiers map[string]*domain.Tier
}

// NewTierCatalog creates a catalogue holding the given tiers
func NewTierCatalog(tiers ...*domain.Tier) *TierCatalog {
	c := &TierCatalog{tiers: make(map[string]*domain.Tier)}
	for _, t := range tiers {
		c.tiers[t.ID] = t
	}
	return c
}

func (c *TierCatalog) GetTier(_ context.Context, tierID string) (*domain.Tier, error) {
	t, ok := c.tiers[tierID]
	if !ok {
		return nil, domain.ErrTierNotFound
	}
	cp := *t
	return &cp, nil
}

// CustomerLinks is an in-memory CustomerLinkRepository
type CustomerLinks struct {
	mu    sync.Mutex
	links map[string]string
	Err   error
}

// NewCustomerLinks creates an empty link store
func NewCustomerLinks() *CustomerLinks {
	return &CustomerLinks{links: make(map[string]string)}
}

func (l *CustomerLinks) GetCustomerID(_ context.Context, _ ports.DBTX, memberID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return "", l.Err
	}
	return l.links[memberID], nil
}

func (l *CustomerLinks) LinkCustomer(_ context.Context, _ ports.DBTX, memberID, customerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.links[memberID] = customerID
	return nil
}

// SnapshotCache is an in-memory SnapshotCache that ignores TTLs
type SnapshotCache struct {
	mu        sync.Mutex
	snapshots map[string]*domain.AccountSnapshot
	Evictions int
}

// NewSnapshotCache creates an empty cache
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{snapshots: make(map[string]*domain.AccountSnapshot)}
}

func (c *SnapshotCache) Get(_ context.Context, customerID string) (*domain.AccountSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots[customerID], nil
}

func (c *SnapshotCache) Set(_ context.Context, snapshot *domain.AccountSnapshot, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snapshot.CustomerID] = snapshot
	return nil
}

func (c *SnapshotCache) Evict(_ context.Context, customerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, customerID)
	c.Evictions++
	return nil
}

// WebhookEvents is an in-memory WebhookEventRepository
type WebhookEvents struct {
	mu   sync.Mutex
	seen map[string]ports.WebhookEvent
}

// NewWebhookEvents creates an empty event store
func NewWebhookEvents() *WebhookEvents {
	return &WebhookEvents{seen: make(map[string]ports.WebhookEvent)}
}

func (w *WebhookEvents) MarkProcessed(_ context.Context, _ ports.DBTX, event *ports.WebhookEvent) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[event.ID]; ok {
		return false, nil
	}
	w.seen[event.ID] = *event
	return true, nil
}

// JobRuns is an in-memory JobRunRepository
type JobRuns struct {
	mu   sync.Mutex
	runs []*ports.JobRun
}

// NewJobRuns creates an empty job run store
func NewJobRuns() *JobRuns {
	return &JobRuns{}
}

func (j *JobRuns) Start(_ context.Context, _ ports.DBTX, run *ports.JobRun) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := *run
	j.runs = append(j.runs, &cp)
	return nil
}

func (j *JobRuns) Finish(_ context.Context, _ ports.DBTX, runID, status string, summary []byte, finishedAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, r := range j.runs {
		if r.ID == runID {
			r.Status = status
			r.Summary = summary
			r.FinishedAt = &finishedAt
			return nil
		}
	}
	return domain.NewDomainError(domain.ErrorCodeInternalError, "job run not started")
}

func (j *JobRuns) ListRecent(_ context.Context, _ ports.DBTX, job string, limit int) ([]*ports.JobRun, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*ports.JobRun
	for i := len(j.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if j.runs[i].Job == job {
			cp := *j.runs[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// NoopDB is a DBPort whose transactions hand a nil tx to the callback
type NoopDB struct {
	PingErr error
}

func (NoopDB) GetDB() *pgxpool.Pool { return nil }

func (n NoopDB) Ping(context.Context) error { return n.PingErr }

func (NoopDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (NoopDB) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

var (
	_ ports.MemberDirectory        = (*MemberDirectory)(nil)
	_ ports.TierCatalog            = (*TierCatalog)(nil)
	_ ports.CustomerLinkRepository = (*CustomerLinks)(nil)
	_ ports.SnapshotCache          = (*SnapshotCache)(nil)
	_ ports.WebhookEventRepository = (*WebhookEvents)(nil)
	_ ports.JobRunRepository       = (*JobRuns)(nil)
	_ ports.DBPort                 = NoopDB{}
)
