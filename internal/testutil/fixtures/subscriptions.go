package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/membership-service/internal/domain"
)

// SubscriptionBuilder provides fluent API for building test subscriptions.
type SubscriptionBuilder struct {
	subscription *domain.SubscriptionRecord
}

// NewSubscription creates an active yearly subscription with a payment method attached.
func NewSubscription(customerID string, now time.Time) *SubscriptionBuilder {
	return &SubscriptionBuilder{
		subscription: &domain.SubscriptionRecord{
			ID:                 "sub_" + uuid.NewString()[:8],
			CustomerID:         customerID,
			TierID:             "regular",
			Status:             domain.SubscriptionStatusActive,
			CurrentPeriodStart: now.AddDate(0, -1, 0),
			CurrentPeriodEnd:   now.AddDate(0, 11, 0),
			CreatedAt:          now.AddDate(0, -1, 0),
			HasPaymentMethod:   true,
			Metadata:           map[string]string{domain.MetadataTierID: "regular"},
		},
	}
}

func (b *SubscriptionBuilder) WithID(id string) *SubscriptionBuilder {
	b.subscription.ID = id
	return b
}

func (b *SubscriptionBuilder) WithStatus(status domain.SubscriptionStatus) *SubscriptionBuilder {
	b.subscription.Status = status
	return b
}

func (b *SubscriptionBuilder) Trialing(trialEnd time.Time) *SubscriptionBuilder {
	b.subscription.Status = domain.SubscriptionStatusTrialing
	b.subscription.TrialEnd = &trialEnd
	b.subscription.CurrentPeriodEnd = trialEnd
	return b
}

func (b *SubscriptionBuilder) Canceled(at time.Time) *SubscriptionBuilder {
	b.subscription.Status = domain.SubscriptionStatusCanceled
	b.subscription.CanceledAt = &at
	return b
}

func (b *SubscriptionBuilder) CancelAtPeriodEnd() *SubscriptionBuilder {
	b.subscription.CancelAtPeriodEnd = true
	return b
}

func (b *SubscriptionBuilder) WithoutPaymentMethod() *SubscriptionBuilder {
	b.subscription.HasPaymentMethod = false
	return b
}

func (b *SubscriptionBuilder) WithPeriod(start, end time.Time) *SubscriptionBuilder {
	b.subscription.CurrentPeriodStart = start
	b.subscription.CurrentPeriodEnd = end
	return b
}

func (b *SubscriptionBuilder) CreatedAt(t time.Time) *SubscriptionBuilder {
	b.subscription.CreatedAt = t
	return b
}

func (b *SubscriptionBuilder) WithMetadata(key, value string) *SubscriptionBuilder {
	b.subscription.Metadata[key] = value
	return b
}

func (b *SubscriptionBuilder) Build() *domain.SubscriptionRecord {
	return b.subscription
}

// Payment builds a payment record for a customer
func Payment(id, customerID string, status domain.PaymentStatus, at time.Time) domain.PaymentRecord {
	return domain.PaymentRecord{
		ID:          id,
		CustomerID:  customerID,
		Currency:    "usd",
		Status:      status,
		AmountCents: 15000,
		CreatedAt:   at,
	}
}
