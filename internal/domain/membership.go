package domain

import "time"

// Override dates outside this range are treated as corrupt legacy data.
const (
	overrideMinYear       = 1990
	overrideMaxYearsAhead = 50
	membershipGrantYears  = 1
)

// WindowSource names the rule that produced a membership end date
type WindowSource string

const (
	WindowSourceNone         WindowSource = "none"
	WindowSourceOverride     WindowSource = "override"
	WindowSourcePayment      WindowSource = "payment"
	WindowSourceSubscription WindowSource = "subscription"
)

// MembershipWindow is the derived validity of a member's dues. It is computed on every
// read and never persisted.
type MembershipWindow struct {
	ValidUntil        *time.Time         `json:"valid_until,omitempty"`
	EffectiveStatus   SubscriptionStatus `json:"effective_status"`
	Source            WindowSource       `json:"source"`
	IsRecurring       bool               `json:"is_recurring"`
	IsInTrial         bool               `json:"is_in_trial"`
	Valid             bool               `json:"valid"`
	Expired           bool               `json:"expired"`
	FailedPayment     bool               `json:"failed_payment"`
	OneTimePayment    bool               `json:"one_time_payment"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
}

// WindowInput is everything the derivation needs about one member
type WindowInput struct {
	Override     *time.Time
	Subscription *SubscriptionRecord
	Payments     []PaymentRecord
}

// EffectiveStatus masks the trial label once a payment has succeeded.
func EffectiveStatus(sub *SubscriptionRecord, payments []PaymentRecord) SubscriptionStatus {
	if sub == nil {
		return SubscriptionStatusNone
	}
	if sub.Status == SubscriptionStatusTrialing && HasSucceededPayment(payments) {
		return SubscriptionStatusActive
	}
	return sub.Status
}

// IsInTrial is true only while trialing and before any succeeded payment.
func IsInTrial(sub *SubscriptionRecord, payments []PaymentRecord) bool {
	return sub != nil && sub.Status == SubscriptionStatusTrialing && !HasSucceededPayment(payments)
}

// IsOverrideDateValid checks a legacy override lies in [1990-01-01, now+50y]
func IsOverrideDateValid(override *time.Time, now time.Time) bool {
	if override == nil || override.IsZero() {
		return false
	}
	if override.Year() < overrideMinYear {
		return false
	}
	return !override.After(now.AddDate(overrideMaxYearsAhead, 0, 0))
}

// MembershipEndDate applies the end-date rules in priority order:
// override, latest succeeded payment + 1 year, live subscription period end.
func MembershipEndDate(in WindowInput, now time.Time) (*time.Time, WindowSource) {
	if IsOverrideDateValid(in.Override, now) {
		end := *in.Override
		return &end, WindowSourceOverride
	}

	if paid := LatestSucceededPayment(in.Payments); paid != nil {
		end := paid.CreatedAt.AddDate(membershipGrantYears, 0, 0)
		return &end, WindowSourcePayment
	}

	if in.Subscription != nil && !in.Subscription.CurrentPeriodEnd.IsZero() {
		switch EffectiveStatus(in.Subscription, in.Payments) {
		case SubscriptionStatusActive, SubscriptionStatusTrialing:
			end := in.Subscription.CurrentPeriodEnd
			return &end, WindowSourceSubscription
		}
	}

	return nil, WindowSourceNone
}

// DeriveWindow is the single derivation every status check goes through.
func DeriveWindow(in WindowInput, now time.Time) MembershipWindow {
	sub := in.Subscription
	effective := EffectiveStatus(sub, in.Payments)
	end, source := MembershipEndDate(in, now)

	w := MembershipWindow{
		ValidUntil:      end,
		EffectiveStatus: effective,
		Source:          source,
		IsInTrial:       IsInTrial(sub, in.Payments),
	}

	if end != nil {
		w.Valid = end.After(now)
		w.Expired = !w.Valid
	}

	if sub != nil {
		w.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	}

	liveEffective := effective == SubscriptionStatusActive || effective == SubscriptionStatusTrialing
	w.IsRecurring = liveEffective && !w.CancelAtPeriodEnd

	if latest := LatestPayment(in.Payments); latest != nil {
		switch latest.Status {
		case PaymentStatusSucceeded:
			w.OneTimePayment = sub == nil || sub.IsCanceled() || sub.CancelAtPeriodEnd
		case PaymentStatusPending:
		default:
			w.FailedPayment = true
		}
	}

	return w
}

// DeriveFromSnapshot derives a member's window from the gateway snapshot of their customer
func DeriveFromSnapshot(member *Member, snapshot *AccountSnapshot, now time.Time) MembershipWindow {
	in := WindowInput{}
	if member != nil {
		in.Override = member.LegacyPaidThrough
	}
	if snapshot != nil {
		in.Subscription = snapshot.Canonical()
		in.Payments = snapshot.Payments
	}
	return DeriveWindow(in, now)
}

// HasActiveAutoRenewal is the enrolment guard: a current membership that will renew by itself.
func (w MembershipWindow) HasActiveAutoRenewal() bool {
	return w.Valid && w.IsRecurring && !w.CancelAtPeriodEnd
}
