package membership

import (
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// Config holds the command handler settings
type Config struct {
	// TrialYears is the free period granted on a member's first-ever enrolment
	TrialYears int
	// LockTTL bounds how long a crashed command can block its key
	LockTTL time.Duration
	// Currency is used when a tier carries none
	Currency string
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		TrialYears: 1,
		LockTTL:    30 * time.Second,
		Currency:   "usd",
	}
}

// EnrolRequest starts a membership, recurring or one-time
type EnrolRequest struct {
	MemberID  string `json:"member_id"`
	Recurring bool   `json:"recurring"`
}

// EnrolResult is returned by Enrol and ConvertToRecurring. The browser finishes
// the operation with the confirmation's client secret.
type EnrolResult struct {
	Confirmation    *ports.Confirmation `json:"confirmation"`
	MemberID        string              `json:"member_id"`
	CustomerID      string              `json:"customer_id"`
	SubscriptionID  string              `json:"subscription_id,omitempty"`
	PaymentIntentID string              `json:"payment_intent_id,omitempty"`
	Recurring       bool                `json:"recurring"`
	Trial           bool                `json:"trial"`
}

// CommandResult is returned by the commands acting on an existing subscription
type CommandResult struct {
	Confirmation   *ports.Confirmation     `json:"confirmation,omitempty"`
	Window         domain.MembershipWindow `json:"window"`
	MemberID       string                  `json:"member_id"`
	SubscriptionID string                  `json:"subscription_id"`
	// Changed is false when the subscription was already in the requested state
	Changed bool `json:"changed"`
}

// MembershipView is the read model of one member's dues
type MembershipView struct {
	Member       *domain.Member             `json:"member"`
	Subscription *domain.SubscriptionRecord `json:"subscription,omitempty"`
	Window       domain.MembershipWindow    `json:"window"`
	CustomerID   string                     `json:"customer_id,omitempty"`
	AsOf         time.Time                  `json:"as_of"`
}

// PaymentVerification is the server-observed outcome of a payment
type PaymentVerification struct {
	Window    domain.MembershipWindow `json:"window"`
	MemberID  string                  `json:"member_id"`
	PaymentID string                  `json:"payment_id"`
	Status    domain.PaymentStatus    `json:"status"`
}
