package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member is read from the external member directory; the core never writes it back.
type Member struct {
	// LegacyPaidThrough is the pre-subscription override date, if any.
	LegacyPaidThrough *time.Time `json:"legacy_paid_through,omitempty"`
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	Hospital          string     `json:"hospital"`
	Address           string     `json:"address"`
	TierID            string     `json:"tier_id"`
	NewsletterOptIn   bool       `json:"newsletter_opt_in"`
}

// BillingInterval is the recurrence of a tier price
type BillingInterval string

const (
	BillingIntervalYear  BillingInterval = "year"
	BillingIntervalMonth BillingInterval = "month"
)

// Tier is a membership tier as priced by the tier catalogue
type Tier struct {
	Price    decimal.Decimal `json:"price"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Currency string          `json:"currency"`
	Interval BillingInterval `json:"interval"`
}

// AmountCents converts the tier price to the gateway's minor currency unit
func (t *Tier) AmountCents() int64 {
	return t.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// PriceLookupKey is the stable key used to find or create the gateway price for this tier
func (t *Tier) PriceLookupKey() string {
	interval := t.Interval
	if interval == "" {
		interval = BillingIntervalYear
	}
	return "membership_" + t.ID + "_" + string(interval)
}

// AccountSnapshot is the gateway-side state of one customer, as consumed by the deriver
type AccountSnapshot struct {
	FetchedAt     time.Time             `json:"fetched_at"`
	CustomerID    string                `json:"customer_id"`
	Payments      []PaymentRecord       `json:"payments"`
	Subscriptions []*SubscriptionRecord `json:"subscriptions"`
}

// Canonical returns the canonical subscription of the snapshot, or nil
func (a *AccountSnapshot) Canonical() *SubscriptionRecord {
	if a == nil {
		return nil
	}
	return SelectCanonical(a.Subscriptions)
}

// IsFirstEnrolment reports whether the customer has never paid and never held a subscription
func (a *AccountSnapshot) IsFirstEnrolment() bool {
	if a == nil {
		return true
	}
	return !HasSucceededPayment(a.Payments) && len(a.Subscriptions) == 0
}
