package postgres

import (
	"context"
	"fmt"

	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// WebhookEventRepository records processed gateway events for de-duplication
type WebhookEventRepository struct {
	pool ports.DBTX
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db ports.DBPort) *WebhookEventRepository {
	return &WebhookEventRepository{pool: db.GetDB()}
}

// MarkProcessed inserts the event and returns false when it was already recorded
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, tx ports.DBTX, event *ports.WebhookEvent) (bool, error) {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO webhook_events (id, type, object_id, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Type, event.ObjectID, event.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ ports.WebhookEventRepository = (*WebhookEventRepository)(nil)
