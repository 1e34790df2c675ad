package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
	"github.com/stripe/stripe-go/v74/webhook"
)

// eventObject is the subset of a webhook data object shared by the event types we consume.
// Expandable references arrive either as a bare ID or as the expanded object.
type eventObject struct {
	Metadata      map[string]string `json:"metadata"`
	ID            string            `json:"id"`
	Object        string            `json:"object"`
	Customer      json.RawMessage   `json:"customer"`
	Subscription  json.RawMessage   `json:"subscription"`
	PaymentMethod json.RawMessage   `json:"payment_method"`
}

// VerifyWebhook checks the signature header against the webhook secret and decodes the event
func (a *Adapter) VerifyWebhook(payload []byte, signatureHeader string) (*ports.GatewayEvent, error) {
	// Only identifiers are decoded, so events rendered for another API version are accepted
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, a.webhookSecret,
		webhook.ConstructEventOptions{
			Tolerance:                webhook.DefaultTolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		return nil, pkgerrors.NewValidationError("Stripe-Signature", err.Error())
	}

	var obj eventObject
	if event.Data != nil && len(event.Data.Raw) > 0 {
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("decode %s object: %w", event.Type, err)
		}
	}

	ev := &ports.GatewayEvent{
		ID:              event.ID,
		Type:            string(event.Type),
		ObjectID:        obj.ID,
		CustomerID:      expandableID(obj.Customer),
		SubscriptionID:  expandableID(obj.Subscription),
		PaymentMethodID: expandableID(obj.PaymentMethod),
	}

	switch obj.Object {
	case "subscription":
		ev.SubscriptionID = obj.ID
	case "customer":
		ev.CustomerID = obj.ID
	}
	if ev.SubscriptionID == "" {
		ev.SubscriptionID = obj.Metadata[domain.MetadataSubscriptionID]
	}
	return ev, nil
}

func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
