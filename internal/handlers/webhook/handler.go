// Package webhook receives payment gateway events.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/internal/handlers"
	svcports "github.com/kevin07696/membership-service/internal/services/ports"
	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
	"github.com/kevin07696/membership-service/pkg/observability"
	"github.com/kevin07696/membership-service/pkg/resilience"
	"github.com/kevin07696/membership-service/pkg/timeutil"
)

const (
	// SignatureHeader carries the gateway's payload signature
	SignatureHeader = "Stripe-Signature"

	maxPayloadBytes = 1 << 16

	eventSetupIntentSucceeded = "setup_intent.succeeded"
)

// Event processing results, used as the metric label and in the response body
const (
	ResultProcessed = "processed"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultInvalid   = "invalid"
	ResultFailed    = "failed"
)

// Response is the body returned to the gateway
type Response struct {
	EventID string `json:"event_id,omitempty"`
	Result  string `json:"result"`
}

// Handler verifies gateway events, records them once and reacts to the ones that
// change what a member's status derives to
type Handler struct {
	verifier   ports.WebhookVerifier
	db         ports.TransactionManager
	events     ports.WebhookEventRepository
	membership svcports.MembershipService
	snapshots  svcports.SnapshotEvicter
	timeouts   *resilience.TimeoutConfig
	clock      timeutil.Clock
	logger     *zap.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(
	verifier ports.WebhookVerifier,
	db ports.TransactionManager,
	events ports.WebhookEventRepository,
	membership svcports.MembershipService,
	snapshots svcports.SnapshotEvicter,
	timeouts *resilience.TimeoutConfig,
	clock timeutil.Clock,
	logger *zap.Logger,
) *Handler {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	if clock == nil {
		clock = timeutil.Now
	}
	return &Handler{
		verifier:   verifier,
		db:         db,
		events:     events,
		membership: membership,
		snapshots:  snapshots,
		timeouts:   timeouts,
		clock:      clock,
		logger:     logger,
	}
}

// HandleEvent handles POST /webhooks/gateway
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		handlers.WriteMessage(w, h.logger, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		observability.RecordWebhookEvent("unknown", ResultInvalid)
		handlers.WriteMessage(w, h.logger, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	event, err := h.verifier.VerifyWebhook(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		observability.RecordWebhookEvent("unknown", ResultInvalid)
		var validation *pkgerrors.ValidationError
		if errors.As(err, &validation) {
			h.logger.Warn("Rejected webhook with bad signature",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			handlers.WriteMessage(w, h.logger, http.StatusBadRequest, "invalid signature")
			return
		}
		h.logger.Error("Failed to decode webhook event", zap.Error(err))
		handlers.WriteMessage(w, h.logger, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx, cancel := h.timeouts.HandlerContext(r.Context())
	defer cancel()

	result, err := h.record(ctx, event)
	observability.RecordWebhookEvent(event.Type, result)
	if err != nil {
		h.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		handlers.WriteMessage(w, h.logger, http.StatusInternalServerError, "event processing failed")
		return
	}

	h.logger.Info("Webhook event handled",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("result", result),
	)
	handlers.WriteJSON(w, h.logger, http.StatusOK, Response{EventID: event.ID, Result: result})
}

// record marks the event processed and acts on it in one transaction, so a failed
// action leaves the event unrecorded and the gateway's redelivery is processed again
func (h *Handler) record(ctx context.Context, event *ports.GatewayEvent) (string, error) {
	result := ResultFailed
	err := h.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		fresh, err := h.events.MarkProcessed(ctx, tx, &ports.WebhookEvent{
			ID:         event.ID,
			Type:       event.Type,
			ObjectID:   event.ObjectID,
			ReceivedAt: h.clock(),
		})
		if err != nil {
			return err
		}
		if !fresh {
			result = ResultDuplicate
			return nil
		}

		result, err = h.process(ctx, event)
		return err
	})
	if err != nil {
		return ResultFailed, err
	}
	return result, nil
}

func (h *Handler) process(ctx context.Context, event *ports.GatewayEvent) (string, error) {
	switch {
	case event.Type == eventSetupIntentSucceeded:
		if event.SubscriptionID == "" || event.PaymentMethodID == "" {
			return ResultIgnored, nil
		}
		if _, err := h.membership.AttachPaymentMethod(ctx, event.SubscriptionID, event.PaymentMethodID); err != nil {
			return ResultFailed, err
		}
		return ResultProcessed, nil

	case affectsStatus(event.Type):
		if event.CustomerID == "" {
			return ResultIgnored, nil
		}
		h.snapshots.Evict(ctx, event.CustomerID)
		return ResultProcessed, nil

	default:
		return ResultIgnored, nil
	}
}

func affectsStatus(eventType string) bool {
	for _, prefix := range []string{"payment_intent.", "invoice.", "customer.subscription.", "charge."} {
		if strings.HasPrefix(eventType, prefix) {
			return true
		}
	}
	return false
}
