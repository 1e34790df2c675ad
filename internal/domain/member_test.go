package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustTier(t *testing.T, id, price string, interval BillingInterval) *Tier {
	t.Helper()
	p, err := decimal.NewFromString(price)
	require.NoError(t, err)
	return &Tier{ID: id, Name: id, Price: p, Currency: "usd", Interval: interval}
}
