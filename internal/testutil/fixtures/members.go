package fixtures

import (
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/shopspring/decimal"
)

// MemberBuilder provides fluent API for building test members.
type MemberBuilder struct {
	member *domain.Member
}

// NewMember creates a member on the regular tier.
func NewMember(id string) *MemberBuilder {
	return &MemberBuilder{
		member: &domain.Member{
			ID:       id,
			Email:    id + "@example.org",
			Name:     "Member " + id,
			Hospital: "General Hospital",
			TierID:   "regular",
		},
	}
}

func (b *MemberBuilder) WithEmail(email string) *MemberBuilder {
	b.member.Email = email
	return b
}

func (b *MemberBuilder) WithTier(tierID string) *MemberBuilder {
	b.member.TierID = tierID
	return b
}

func (b *MemberBuilder) WithLegacyPaidThrough(t time.Time) *MemberBuilder {
	b.member.LegacyPaidThrough = &t
	return b
}

func (b *MemberBuilder) Build() *domain.Member {
	return b.member
}

// RegularTier is a yearly 150.00 USD tier
func RegularTier() *domain.Tier {
	return &domain.Tier{
		ID:       "regular",
		Name:     "Regular Member",
		Price:    decimal.RequireFromString("150.00"),
		Currency: "usd",
		Interval: domain.BillingIntervalYear,
	}
}

// ResidentTier is a yearly 50.00 USD tier
func ResidentTier() *domain.Tier {
	return &domain.Tier{
		ID:       "resident",
		Name:     "Resident",
		Price:    decimal.RequireFromString("50.00"),
		Currency: "usd",
		Interval: domain.BillingIntervalYear,
	}
}
