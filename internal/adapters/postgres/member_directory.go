package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

const memberColumns = `id, email, name, hospital, address, tier_id, newsletter_opt_in, legacy_paid_through`

// MemberDirectory reads members from the content system's tables
type MemberDirectory struct {
	pool *pgxpool.Pool
}

// NewMemberDirectory creates a read-only member directory
func NewMemberDirectory(db ports.DBPort) *MemberDirectory {
	return &MemberDirectory{pool: db.GetDB()}
}

func scanMember(row pgx.Row) (*domain.Member, error) {
	var (
		m           domain.Member
		paidThrough pgtype.Timestamptz
	)
	if err := row.Scan(&m.ID, &m.Email, &m.Name, &m.Hospital, &m.Address, &m.TierID,
		&m.NewsletterOptIn, &paidThrough); err != nil {
		return nil, err
	}
	m.LegacyPaidThrough = timestamptzPtr(paidThrough)
	return &m, nil
}

// GetMember returns domain.ErrMemberNotFound when the ID is unknown
func (d *MemberDirectory) GetMember(ctx context.Context, memberID string) (*domain.Member, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, memberID)
	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMemberNotFound.WithDetail("member_id", memberID)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers pages through members ordered by ID
func (d *MemberDirectory) ListMembers(ctx context.Context, afterID string, limit int) ([]*domain.Member, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// TierCatalog reads the tier price list
type TierCatalog struct {
	pool *pgxpool.Pool
}

// NewTierCatalog creates a read-only tier catalogue
func NewTierCatalog(db ports.DBPort) *TierCatalog {
	return &TierCatalog{pool: db.GetDB()}
}

// GetTier returns domain.ErrTierNotFound when the ID is unknown
func (c *TierCatalog) GetTier(ctx context.Context, tierID string) (*domain.Tier, error) {
	var (
		t        domain.Tier
		price    pgtype.Numeric
		interval string
	)
	err := c.pool.QueryRow(ctx,
		`SELECT id, name, price, currency, billing_interval FROM tiers WHERE id = $1`, tierID).
		Scan(&t.ID, &t.Name, &price, &t.Currency, &interval)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTierNotFound.WithDetail("tier_id", tierID)
	}
	if err != nil {
		return nil, fmt.Errorf("get tier: %w", err)
	}

	t.Price, err = pgNumericToDecimal(price)
	if err != nil {
		return nil, fmt.Errorf("tier price: %w", err)
	}
	t.Interval = domain.BillingInterval(interval)
	return &t, nil
}

var (
	_ ports.MemberDirectory = (*MemberDirectory)(nil)
	_ ports.TierCatalog     = (*TierCatalog)(nil)
)
