package ports

import (
	"context"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/services/membership"
)

// MembershipService defines the port for per-member commands and status reads
type MembershipService interface {
	// Enrol starts a recurring or one-time membership
	Enrol(ctx context.Context, req membership.EnrolRequest) (*membership.EnrolResult, error)

	// Cancel stops automatic renewal at the end of the paid period
	Cancel(ctx context.Context, memberID string) (*membership.CommandResult, error)

	// Reactivate resumes automatic renewal of a subscription set to cancel
	Reactivate(ctx context.Context, memberID string) (*membership.CommandResult, error)

	// UpdatePaymentMethod returns a setup confirmation for a new card
	UpdatePaymentMethod(ctx context.Context, memberID string) (*membership.CommandResult, error)

	// AttachPaymentMethod makes a collected payment method the subscription default
	AttachPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) (*domain.SubscriptionRecord, error)

	// ConvertToRecurring turns a current one-time membership into a subscription
	ConvertToRecurring(ctx context.Context, memberID string) (*membership.EnrolResult, error)

	// Status derives the member's current membership window
	Status(ctx context.Context, memberID string) (*membership.MembershipView, error)

	// VerifyPayment reads a payment outcome from the gateway
	VerifyPayment(ctx context.Context, memberID, paymentID string) (*membership.PaymentVerification, error)
}

var _ MembershipService = (*membership.Service)(nil)
