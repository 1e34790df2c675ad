package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// CustomerLinkRepository stores the member to gateway customer association
type CustomerLinkRepository struct {
	pool ports.DBTX
}

// NewCustomerLinkRepository creates a new customer link repository
func NewCustomerLinkRepository(db ports.DBPort) *CustomerLinkRepository {
	return &CustomerLinkRepository{pool: db.GetDB()}
}

// GetCustomerID returns "" when the member has no link yet
func (r *CustomerLinkRepository) GetCustomerID(ctx context.Context, db ports.DBTX, memberID string) (string, error) {
	var customerID string
	err := conn(r.pool, db).QueryRow(ctx,
		`SELECT customer_id FROM customer_links WHERE member_id = $1`, memberID).Scan(&customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get customer link: %w", err)
	}
	return customerID, nil
}

// LinkCustomer upserts the link; the latest resolution wins
func (r *CustomerLinkRepository) LinkCustomer(ctx context.Context, tx ports.DBTX, memberID, customerID string) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO customer_links (member_id, customer_id, linked_at)
		VALUES ($1, $2, now())
		ON CONFLICT (member_id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id, linked_at = EXCLUDED.linked_at
		WHERE customer_links.customer_id <> EXCLUDED.customer_id`,
		memberID, customerID)
	if err != nil {
		return fmt.Errorf("link customer: %w", err)
	}
	return nil
}

var _ ports.CustomerLinkRepository = (*CustomerLinkRepository)(nil)
