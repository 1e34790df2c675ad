package ports

import (
	"context"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
)

// ConfirmationKind tells the browser which client-side flow completes an operation
type ConfirmationKind string

const (
	// ConfirmationPayment confirms a charge (payment intent)
	ConfirmationPayment ConfirmationKind = "payment"
	// ConfirmationSetup collects a payment method without charging (setup intent)
	ConfirmationSetup ConfirmationKind = "setup"
)

// Confirmation is the client secret handed to the browser to finish an operation
type Confirmation struct {
	Kind         ConfirmationKind `json:"kind"`
	ClientSecret string           `json:"client_secret"`
	IntentID     string           `json:"intent_id"`
}

// Customer is a payment gateway customer
type Customer struct {
	Metadata map[string]string
	ID       string
	Email    string
	Name     string
}

// CreateCustomerRequest represents a request to create a gateway customer
type CreateCustomerRequest struct {
	Metadata       map[string]string
	Email          string
	Name           string
	IdempotencyKey string
}

// CreateSubscriptionRequest represents a request to start a recurring subscription
type CreateSubscriptionRequest struct {
	TrialEnd       *time.Time // first billing date; nil bills immediately
	Metadata       map[string]string
	CustomerID     string
	PriceID        string
	IdempotencyKey string
}

// SubscriptionResult is a created subscription and the confirmation that completes it
type SubscriptionResult struct {
	Subscription *domain.SubscriptionRecord
	Confirmation *Confirmation
}

// ProrationBehavior controls charges created when a billing anchor moves
type ProrationBehavior string

const (
	ProrationNone            ProrationBehavior = "none"
	ProrationCreateProration ProrationBehavior = "create_prorations"
)

// UpdateSubscriptionRequest carries the fields to change; nil fields are left untouched
type UpdateSubscriptionRequest struct {
	TrialEnd             *time.Time
	CancelAtPeriodEnd    *bool
	DefaultPaymentMethod *string
	Metadata             map[string]string
	ProrationBehavior    ProrationBehavior
	IdempotencyKey       string
}

// PaymentIntentRequest represents a one-time charge
type PaymentIntentRequest struct {
	Metadata       map[string]string
	CustomerID     string
	Currency       string
	Description    string
	IdempotencyKey string
	AmountCents    int64
}

// SetupIntentRequest represents a request to collect a payment method without charging
type SetupIntentRequest struct {
	Metadata   map[string]string
	CustomerID string
}

// Price is a gateway price object
type Price struct {
	ID          string
	LookupKey   string
	Currency    string
	Interval    domain.BillingInterval
	AmountCents int64
}

// CreatePriceRequest represents a request to create a recurring price
type CreatePriceRequest struct {
	LookupKey   string
	Currency    string
	ProductName string
	Interval    domain.BillingInterval
	AmountCents int64
}

// MembershipGateway is the typed gateway client. It holds no business rules:
// every guard lives with the caller.
type MembershipGateway interface {
	// FindCustomerByEmail returns nil, nil when no customer has this email
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error)

	// ListSubscriptions returns every subscription of the customer, whatever its status
	ListSubscriptions(ctx context.Context, customerID string) ([]*domain.SubscriptionRecord, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*SubscriptionResult, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, req UpdateSubscriptionRequest) (*domain.SubscriptionRecord, error)
	// CancelSubscription cancels immediately, not at period end
	CancelSubscription(ctx context.Context, subscriptionID string) (*domain.SubscriptionRecord, error)

	ListPayments(ctx context.Context, customerID string) ([]domain.PaymentRecord, error)
	GetPayment(ctx context.Context, paymentID string) (*domain.PaymentRecord, error)
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*Confirmation, error)
	CreateSetupIntent(ctx context.Context, req SetupIntentRequest) (*Confirmation, error)

	// FindPriceByLookupKey returns nil, nil when no active price has this key
	FindPriceByLookupKey(ctx context.Context, lookupKey string) (*Price, error)
	CreatePrice(ctx context.Context, req CreatePriceRequest) (*Price, error)
}

// GatewayEvent is a verified webhook event reduced to the identifiers the core acts on
type GatewayEvent struct {
	ID              string
	Type            string
	ObjectID        string
	CustomerID      string
	SubscriptionID  string
	PaymentMethodID string
}

// WebhookVerifier authenticates and decodes gateway webhook payloads
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (*GatewayEvent, error)
}
