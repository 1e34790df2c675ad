package domain

import "time"

// PaymentStatus is the normalized outcome of a charge attempt at the gateway
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentRecord is an immutable historical charge attempt, created by the gateway
type PaymentRecord struct {
	CreatedAt   time.Time     `json:"created_at"`
	ID          string        `json:"id"`
	CustomerID  string        `json:"customer_id"`
	Currency    string        `json:"currency"`
	Description string        `json:"description"`
	Status      PaymentStatus `json:"status"`
	AmountCents int64         `json:"amount_cents"`
}

// IsSucceeded returns true if the gateway reports the charge as captured
func (p PaymentRecord) IsSucceeded() bool {
	return p.Status == PaymentStatusSucceeded
}

// LatestPayment returns the most recent payment attempt, or nil
func LatestPayment(payments []PaymentRecord) *PaymentRecord {
	var latest *PaymentRecord
	for i := range payments {
		if latest == nil || payments[i].CreatedAt.After(latest.CreatedAt) {
			latest = &payments[i]
		}
	}
	return latest
}

// LatestSucceededPayment returns the most recent succeeded payment, or nil
func LatestSucceededPayment(payments []PaymentRecord) *PaymentRecord {
	var latest *PaymentRecord
	for i := range payments {
		if !payments[i].IsSucceeded() {
			continue
		}
		if latest == nil || payments[i].CreatedAt.After(latest.CreatedAt) {
			latest = &payments[i]
		}
	}
	return latest
}

// HasSucceededPayment reports whether any payment in the history succeeded
func HasSucceededPayment(payments []PaymentRecord) bool {
	return LatestSucceededPayment(payments) != nil
}
