package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/internal/testutil/mocks"
	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewAdapter(Config{
		SecretKey:         "sk_test_123",
		WebhookSecret:     "whsec_test",
		MaxNetworkRetries: 0,
		BackendURL:        server.URL,
	}, mocks.NewMockLogger())
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func list(url string, data ...interface{}) map[string]interface{} {
	if data == nil {
		data = []interface{}{}
	}
	return map[string]interface{}{
		"object":   "list",
		"url":      url,
		"has_more": false,
		"data":     data,
	}
}

// indexedValues collects a form-encoded array whatever index style the client used
func indexedValues(values url.Values, key string) []string {
	var out []string
	for k, v := range values {
		if strings.HasPrefix(k, key+"[") {
			out = append(out, v...)
		}
	}
	return out
}

func stripeError(errType, code, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errType,
			"code":    code,
			"message": message,
		},
	}
}

func TestAdapter_FindCustomerByEmail(t *testing.T) {
	t.Run("returns first match", func(t *testing.T) {
		a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/v1/customers", r.URL.Path)
			assert.Equal(t, "jane@example.org", r.URL.Query().Get("email"))
			writeJSON(t, w, http.StatusOK, list("/v1/customers", map[string]interface{}{
				"id":       "cus_123",
				"object":   "customer",
				"email":    "jane@example.org",
				"name":     "Jane",
				"metadata": map[string]string{"member_id": "m-1"},
			}))
		})

		cust, err := a.FindCustomerByEmail(context.Background(), "jane@example.org")
		require.NoError(t, err)
		require.NotNil(t, cust)
		assert.Equal(t, "cus_123", cust.ID)
		assert.Equal(t, "m-1", cust.Metadata["member_id"])
	})

	t.Run("no match returns nil", func(t *testing.T) {
		a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, list("/v1/customers"))
		})

		cust, err := a.FindCustomerByEmail(context.Background(), "nobody@example.org")
		require.NoError(t, err)
		assert.Nil(t, cust)
	})
}

func TestAdapter_CreateSubscription_Trial(t *testing.T) {
	trialEnd := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/subscriptions", r.URL.Path)
		assert.Equal(t, "enrol-m-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "cus_123", r.PostForm.Get("customer"))
		assert.Equal(t, "price_regular", r.PostForm.Get("items[0][price]"))
		assert.Equal(t, "default_incomplete", r.PostForm.Get("payment_behavior"))
		assert.Equal(t, "on_subscription", r.PostForm.Get("payment_settings[save_default_payment_method]"))
		assert.Equal(t, "1798761600", r.PostForm.Get("trial_end"))
		assert.Equal(t, "m-1", r.PostForm.Get("metadata[member_id]"))
		assert.ElementsMatch(t, []string{"latest_invoice.payment_intent", "pending_setup_intent"}, indexedValues(r.PostForm, "expand"))

		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"id":                   "sub_1",
			"object":               "subscription",
			"status":               "trialing",
			"customer":             "cus_123",
			"created":              1760000000,
			"current_period_start": 1760000000,
			"current_period_end":   1798761600,
			"trial_end":            1798761600,
			"metadata":             map[string]string{"member_id": "m-1", "tier_id": "regular"},
			"pending_setup_intent": map[string]interface{}{
				"id":            "seti_1",
				"object":        "setup_intent",
				"client_secret": "seti_1_secret_abc",
			},
		})
	})

	res, err := a.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		CustomerID:     "cus_123",
		PriceID:        "price_regular",
		TrialEnd:       &trialEnd,
		Metadata:       map[string]string{"member_id": "m-1", "tier_id": "regular"},
		IdempotencyKey: "enrol-m-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "sub_1", res.Subscription.ID)
	assert.Equal(t, "cus_123", res.Subscription.CustomerID)
	assert.Equal(t, domain.SubscriptionStatusTrialing, res.Subscription.Status)
	assert.Equal(t, "regular", res.Subscription.TierID)
	require.NotNil(t, res.Subscription.TrialEnd)
	assert.True(t, trialEnd.Equal(*res.Subscription.TrialEnd))

	require.NotNil(t, res.Confirmation)
	assert.Equal(t, ports.ConfirmationSetup, res.Confirmation.Kind)
	assert.Equal(t, "seti_1_secret_abc", res.Confirmation.ClientSecret)
}

func TestAdapter_CreateSubscription_ImmediateCharge(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Empty(t, r.PostForm.Get("trial_end"))

		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"id":       "sub_2",
			"object":   "subscription",
			"status":   "incomplete",
			"customer": "cus_123",
			"latest_invoice": map[string]interface{}{
				"id":     "in_1",
				"object": "invoice",
				"payment_intent": map[string]interface{}{
					"id":            "pi_1",
					"object":        "payment_intent",
					"client_secret": "pi_1_secret_xyz",
				},
			},
		})
	})

	res, err := a.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		CustomerID: "cus_123",
		PriceID:    "price_regular",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Confirmation)
	assert.Equal(t, ports.ConfirmationPayment, res.Confirmation.Kind)
	assert.Equal(t, "pi_1", res.Confirmation.IntentID)
	assert.Equal(t, domain.SubscriptionStatusIncomplete, res.Subscription.Status)
}

func TestAdapter_UpdateSubscription_SendsOnlySetFields(t *testing.T) {
	jan1 := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "1798761600", r.PostForm.Get("trial_end"))
		assert.Equal(t, "none", r.PostForm.Get("proration_behavior"))
		assert.Equal(t, "true", r.PostForm.Get("metadata[alignedToJan1]"))
		_, hasCAPE := r.PostForm["cancel_at_period_end"]
		assert.False(t, hasCAPE)

		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"id":        "sub_1",
			"object":    "subscription",
			"status":    "trialing",
			"trial_end": 1798761600,
			"metadata":  map[string]string{"alignedToJan1": "true"},
		})
	})

	rec, err := a.UpdateSubscription(context.Background(), "sub_1", ports.UpdateSubscriptionRequest{
		TrialEnd:          &jan1,
		ProrationBehavior: ports.ProrationNone,
		Metadata:          map[string]string{domain.MetadataAlignedToJan1: "true"},
	})
	require.NoError(t, err)
	assert.True(t, rec.IsAlignedToJan1())
}

func TestAdapter_ListPayments_NormalizesStatus(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "cus_123", r.URL.Query().Get("customer"))

		writeJSON(t, w, http.StatusOK, list("/v1/payment_intents",
			map[string]interface{}{"id": "pi_ok", "object": "payment_intent", "status": "succeeded", "amount": 15000, "currency": "usd", "created": 1710460800},
			map[string]interface{}{"id": "pi_3ds", "object": "payment_intent", "status": "requires_action", "created": 1710460801},
			map[string]interface{}{"id": "pi_dead", "object": "payment_intent", "status": "canceled", "created": 1710460802},
			map[string]interface{}{"id": "pi_declined", "object": "payment_intent", "status": "requires_payment_method", "created": 1710460803,
				"last_payment_error": map[string]interface{}{"type": "card_error", "code": "card_declined"}},
			map[string]interface{}{"id": "pi_abandoned", "object": "payment_intent", "status": "requires_payment_method", "created": 1710460804},
		))
	})

	payments, err := a.ListPayments(context.Background(), "cus_123")
	require.NoError(t, err)
	require.Len(t, payments, 4)

	byID := make(map[string]domain.PaymentRecord)
	for _, p := range payments {
		byID[p.ID] = p
	}
	assert.Equal(t, domain.PaymentStatusSucceeded, byID["pi_ok"].Status)
	assert.Equal(t, int64(15000), byID["pi_ok"].AmountCents)
	assert.Equal(t, domain.PaymentStatusPending, byID["pi_3ds"].Status)
	assert.Equal(t, domain.PaymentStatusFailed, byID["pi_dead"].Status)
	assert.Equal(t, domain.PaymentStatusFailed, byID["pi_declined"].Status)
	assert.NotContains(t, byID, "pi_abandoned")
}

func TestAdapter_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      map[string]interface{}
		category  pkgerrors.ErrorCategory
		retriable bool
	}{
		{
			name:     "missing subscription",
			status:   http.StatusNotFound,
			body:     stripeError("invalid_request_error", "resource_missing", "No such subscription: 'sub_x'"),
			category: pkgerrors.CategoryNotFound,
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			body:      stripeError("invalid_request_error", "rate_limit", "Too many requests"),
			category:  pkgerrors.CategoryRateLimited,
			retriable: true,
		},
		{
			name:     "bad key",
			status:   http.StatusUnauthorized,
			body:     stripeError("invalid_request_error", "", "Invalid API Key provided"),
			category: pkgerrors.CategoryAuthentication,
		},
		{
			name:     "card declined",
			status:   http.StatusPaymentRequired,
			body:     stripeError("card_error", "card_declined", "Your card was declined."),
			category: pkgerrors.CategoryCardDeclined,
		},
		{
			name:      "gateway outage",
			status:    http.StatusInternalServerError,
			body:      stripeError("api_error", "", "Something went wrong"),
			category:  pkgerrors.CategorySystemError,
			retriable: true,
		},
		{
			name:     "invalid parameter",
			status:   http.StatusBadRequest,
			body:     stripeError("invalid_request_error", "parameter_invalid_integer", "Invalid integer"),
			category: pkgerrors.CategoryInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, tt.body)
			})

			_, err := a.CancelSubscription(context.Background(), "sub_x")
			require.Error(t, err)

			var gwErr *pkgerrors.GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tt.category, gwErr.Category)
			assert.Equal(t, tt.retriable, pkgerrors.IsRetriable(err))
			assert.Equal(t, tt.status, gwErr.HTTPStatusCode)
			assert.Equal(t, "cancel_subscription", gwErr.Operation)
		})
	}
}

func TestAdapter_FindPriceByLookupKey(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/prices", r.URL.Path)
		assert.Equal(t, []string{"membership_regular_year"}, indexedValues(r.URL.Query(), "lookup_keys"))
		writeJSON(t, w, http.StatusOK, list("/v1/prices", map[string]interface{}{
			"id":          "price_1",
			"object":      "price",
			"lookup_key":  "membership_regular_year",
			"currency":    "usd",
			"unit_amount": 15000,
			"recurring":   map[string]interface{}{"interval": "year"},
		}))
	})

	price, err := a.FindPriceByLookupKey(context.Background(), "membership_regular_year")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, "price_1", price.ID)
	assert.Equal(t, domain.BillingIntervalYear, price.Interval)
	assert.Equal(t, int64(15000), price.AmountCents)
}

func TestAdapter_GetCustomer_Deleted(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"id":      "cus_gone",
			"object":  "customer",
			"deleted": true,
		})
	})

	_, err := a.GetCustomer(context.Background(), "cus_gone")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestClassifyError_ContextCanceled(t *testing.T) {
	err := classifyError("list_payments", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, pkgerrors.IsRetriable(err))
}
