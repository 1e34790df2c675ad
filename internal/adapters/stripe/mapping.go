package stripe

import (
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	stripego "github.com/stripe/stripe-go/v74"
)

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixTimePtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := unixTime(sec)
	return &t
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func customerID(c *stripego.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func toCustomer(c *stripego.Customer) *ports.Customer {
	return &ports.Customer{
		ID:       c.ID,
		Email:    c.Email,
		Name:     c.Name,
		Metadata: copyMetadata(c.Metadata),
	}
}

func toSubscriptionRecord(s *stripego.Subscription) *domain.SubscriptionRecord {
	rec := &domain.SubscriptionRecord{
		ID:                 s.ID,
		CustomerID:         customerID(s.Customer),
		Status:             domain.SubscriptionStatus(s.Status),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
		CreatedAt:          unixTime(s.Created),
		TrialEnd:           unixTimePtr(s.TrialEnd),
		CanceledAt:         unixTimePtr(s.CanceledAt),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		HasPaymentMethod:   s.DefaultPaymentMethod != nil || s.DefaultSource != nil,
		Metadata:           copyMetadata(s.Metadata),
	}
	rec.TierID = rec.Metadata[domain.MetadataTierID]
	return rec
}

// paymentStatus normalizes a payment intent status. The second return is false
// for intents that never saw a charge attempt.
func paymentStatus(pi *stripego.PaymentIntent) (domain.PaymentStatus, bool) {
	switch pi.Status {
	case stripego.PaymentIntentStatusSucceeded:
		return domain.PaymentStatusSucceeded, true
	case stripego.PaymentIntentStatusProcessing,
		stripego.PaymentIntentStatusRequiresAction,
		stripego.PaymentIntentStatusRequiresConfirmation,
		stripego.PaymentIntentStatusRequiresCapture:
		return domain.PaymentStatusPending, true
	case stripego.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError == nil {
			return "", false
		}
		return domain.PaymentStatusFailed, true
	default:
		return domain.PaymentStatusFailed, true
	}
}

func toPaymentRecord(pi *stripego.PaymentIntent) (domain.PaymentRecord, bool) {
	status, attempted := paymentStatus(pi)
	if !attempted {
		return domain.PaymentRecord{}, false
	}
	return domain.PaymentRecord{
		ID:          pi.ID,
		CustomerID:  customerID(pi.Customer),
		Currency:    string(pi.Currency),
		Description: pi.Description,
		Status:      status,
		AmountCents: pi.Amount,
		CreatedAt:   unixTime(pi.Created),
	}, true
}

func toPrice(p *stripego.Price) *ports.Price {
	price := &ports.Price{
		ID:          p.ID,
		LookupKey:   p.LookupKey,
		Currency:    string(p.Currency),
		AmountCents: p.UnitAmount,
	}
	if p.Recurring != nil {
		price.Interval = domain.BillingInterval(p.Recurring.Interval)
	}
	return price
}

// subscriptionConfirmation picks the client secret that completes a new subscription
func subscriptionConfirmation(s *stripego.Subscription) *ports.Confirmation {
	if si := s.PendingSetupIntent; si != nil && si.ClientSecret != "" {
		return &ports.Confirmation{
			Kind:         ports.ConfirmationSetup,
			ClientSecret: si.ClientSecret,
			IntentID:     si.ID,
		}
	}
	if inv := s.LatestInvoice; inv != nil && inv.PaymentIntent != nil && inv.PaymentIntent.ClientSecret != "" {
		return &ports.Confirmation{
			Kind:         ports.ConfirmationPayment,
			ClientSecret: inv.PaymentIntent.ClientSecret,
			IntentID:     inv.PaymentIntent.ID,
		}
	}
	return nil
}
