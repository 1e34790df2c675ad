package domain

import (
	"sort"
	"time"
)

// SubscriptionStatus represents the gateway-side subscription state
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"

	// SubscriptionStatusNone is synthetic: the member has no subscription at all.
	SubscriptionStatusNone SubscriptionStatus = "none"
)

// MaxTrialPeriod is the furthest ahead the gateway accepts a subscription's trial end
const MaxTrialPeriod = 730 * 24 * time.Hour

// Metadata keys stamped on gateway subscriptions
const (
	MetadataMemberID             = "member_id"
	MetadataTierID               = "tier_id"
	MetadataAlignedToJan1        = "alignedToJan1"
	MetadataMigrationDate        = "migrationDate"
	MetadataConvertedFromOneTime = "convertedFromOneTime"
	MetadataSubscriptionID       = "subscription_id"
)

// SubscriptionRecord mirrors a subscription object held at the payment gateway.
// It is never destroyed, only transitioned to canceled.
type SubscriptionRecord struct {
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	CreatedAt          time.Time          `json:"created_at"`
	TrialEnd           *time.Time         `json:"trial_end,omitempty"`
	CanceledAt         *time.Time         `json:"canceled_at,omitempty"`
	Metadata           map[string]string  `json:"metadata"`
	ID                 string             `json:"id"`
	CustomerID         string             `json:"customer_id"`
	TierID             string             `json:"tier_id"`
	Status             SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	HasPaymentMethod   bool               `json:"has_payment_method"`
}

// IsLive returns true for statuses that can still bill or grant access
func (s SubscriptionStatus) IsLive() bool {
	switch s {
	case SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusPastDue:
		return true
	}
	return false
}

// IsTerminal returns true for statuses the renewal alignment never touches
func (s SubscriptionStatus) IsTerminal() bool {
	switch s {
	case SubscriptionStatusCanceled, SubscriptionStatusIncomplete, SubscriptionStatusIncompleteExpired:
		return true
	}
	return false
}

// IsLive reports whether the subscription is trialing, active or past_due
func (s *SubscriptionRecord) IsLive() bool {
	return s != nil && s.Status.IsLive()
}

// IsCanceled returns true once the gateway has fully canceled the subscription
func (s *SubscriptionRecord) IsCanceled() bool {
	return s != nil && s.Status == SubscriptionStatusCanceled
}

// IsAlignedToJan1 reports whether the renewal alignment already stamped this subscription
func (s *SubscriptionRecord) IsAlignedToJan1() bool {
	return s != nil && s.Metadata[MetadataAlignedToJan1] == "true"
}

// IsDuplicateCandidate returns true for the statuses duplicate resolution considers
func (s *SubscriptionRecord) IsDuplicateCandidate() bool {
	return s != nil && (s.Status == SubscriptionStatusTrialing || s.Status == SubscriptionStatusActive)
}

// PreferredOver orders two subscriptions for keep/canonical selection:
// attached payment method first, then most recent period start, then most recent creation.
func (s *SubscriptionRecord) PreferredOver(other *SubscriptionRecord) bool {
	if s.HasPaymentMethod != other.HasPaymentMethod {
		return s.HasPaymentMethod
	}
	if !s.CurrentPeriodStart.Equal(other.CurrentPeriodStart) {
		return s.CurrentPeriodStart.After(other.CurrentPeriodStart)
	}
	if !s.CreatedAt.Equal(other.CreatedAt) {
		return s.CreatedAt.After(other.CreatedAt)
	}
	return s.ID < other.ID
}

// SelectCanonical picks the one subscription the status derivation should see.
// Live subscriptions win over non-live ones; ties are broken by PreferredOver.
func SelectCanonical(subs []*SubscriptionRecord) *SubscriptionRecord {
	var best *SubscriptionRecord
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if best == nil {
			best = sub
			continue
		}
		if sub.IsLive() != best.IsLive() {
			if sub.IsLive() {
				best = sub
			}
			continue
		}
		if sub.PreferredOver(best) {
			best = sub
		}
	}
	return best
}

// LiveSubscriptions returns the live subscriptions ordered by preference
func LiveSubscriptions(subs []*SubscriptionRecord) []*SubscriptionRecord {
	live := make([]*SubscriptionRecord, 0, len(subs))
	for _, sub := range subs {
		if sub.IsLive() {
			live = append(live, sub)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].PreferredOver(live[j])
	})
	return live
}
