package stripe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/pkg/observability"
	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// Config holds the gateway client settings
type Config struct {
	SecretKey         string
	WebhookSecret     string
	MaxNetworkRetries int64

	// BackendURL overrides the API endpoint, used by tests
	BackendURL string
	HTTPClient *http.Client
}

// Adapter implements ports.MembershipGateway on top of the stripe-go client.
// Each method is one gateway call; no business rules live here.
type Adapter struct {
	api           *client.API
	webhookSecret string
	logger        ports.Logger
}

// NewAdapter creates a gateway adapter with its own backend configuration
func NewAdapter(cfg Config, logger ports.Logger) *Adapter {
	backendCfg := &stripego.BackendConfig{
		MaxNetworkRetries: stripego.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelError},
	}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripego.String(cfg.BackendURL)
	}
	if cfg.HTTPClient != nil {
		backendCfg.HTTPClient = cfg.HTTPClient
	}

	backends := &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg),
		Connect: stripego.GetBackend(stripego.ConnectBackend),
		Uploads: stripego.GetBackend(stripego.UploadsBackend),
	}

	return &Adapter{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

func (a *Adapter) observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(categoryOf(err))
		a.logger.Warn("gateway call failed",
			ports.String("operation", operation),
			ports.Duration("elapsed", time.Since(start)),
			ports.Err(err))
	}
	observability.RecordGatewayCall(operation, outcome, time.Since(start))
}

// FindCustomerByEmail returns the most recently created customer with this email, or nil
func (a *Adapter) FindCustomerByEmail(ctx context.Context, email string) (cust *ports.Customer, err error) {
	defer func(start time.Time) { a.observe("find_customer", start, err) }(time.Now())

	params := &stripego.CustomerListParams{Email: stripego.String(email)}
	params.Context = ctx
	params.Limit = stripego.Int64(1)

	iter := a.api.Customers.List(params)
	if iter.Next() {
		return toCustomer(iter.Customer()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, classifyError("find_customer", err)
	}
	return nil, nil
}

// GetCustomer retrieves a customer by ID
func (a *Adapter) GetCustomer(ctx context.Context, customerID string) (cust *ports.Customer, err error) {
	defer func(start time.Time) { a.observe("get_customer", start, err) }(time.Now())

	params := &stripego.CustomerParams{}
	params.Context = ctx

	c, err := a.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, classifyError("get_customer", err)
	}
	if c.Deleted {
		return nil, notFound("get_customer", "customer deleted")
	}
	return toCustomer(c), nil
}

// CreateCustomer creates a gateway customer
func (a *Adapter) CreateCustomer(ctx context.Context, req ports.CreateCustomerRequest) (cust *ports.Customer, err error) {
	defer func(start time.Time) { a.observe("create_customer", start, err) }(time.Now())

	params := &stripego.CustomerParams{
		Email: stripego.String(req.Email),
	}
	if req.Name != "" {
		params.Name = stripego.String(req.Name)
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	c, err := a.api.Customers.New(params)
	if err != nil {
		return nil, classifyError("create_customer", err)
	}
	return toCustomer(c), nil
}

// ListSubscriptions returns every subscription of the customer, canceled ones included
func (a *Adapter) ListSubscriptions(ctx context.Context, customerID string) (subs []*domain.SubscriptionRecord, err error) {
	defer func(start time.Time) { a.observe("list_subscriptions", start, err) }(time.Now())

	params := &stripego.SubscriptionListParams{
		Customer: stripego.String(customerID),
		Status:   stripego.String("all"),
	}
	params.Context = ctx

	iter := a.api.Subscriptions.List(params)
	for iter.Next() {
		subs = append(subs, toSubscriptionRecord(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, classifyError("list_subscriptions", err)
	}
	return subs, nil
}

// CreateSubscription starts an incomplete subscription and returns the client
// confirmation that completes it: a setup intent while trialing, otherwise the
// first invoice's payment intent.
func (a *Adapter) CreateSubscription(ctx context.Context, req ports.CreateSubscriptionRequest) (res *ports.SubscriptionResult, err error) {
	defer func(start time.Time) { a.observe("create_subscription", start, err) }(time.Now())

	params := &stripego.SubscriptionParams{
		Customer: stripego.String(req.CustomerID),
		Items: []*stripego.SubscriptionItemsParams{
			{Price: stripego.String(req.PriceID)},
		},
		PaymentBehavior: stripego.String("default_incomplete"),
		PaymentSettings: &stripego.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripego.String("on_subscription"),
		},
	}
	if req.TrialEnd != nil {
		params.TrialEnd = stripego.Int64(req.TrialEnd.Unix())
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.payment_intent")
	params.AddExpand("pending_setup_intent")
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := a.api.Subscriptions.New(params)
	if err != nil {
		return nil, classifyError("create_subscription", err)
	}

	return &ports.SubscriptionResult{
		Subscription: toSubscriptionRecord(s),
		Confirmation: subscriptionConfirmation(s),
	}, nil
}

// UpdateSubscription changes only the fields set on req
func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, req ports.UpdateSubscriptionRequest) (rec *domain.SubscriptionRecord, err error) {
	defer func(start time.Time) { a.observe("update_subscription", start, err) }(time.Now())

	params := &stripego.SubscriptionParams{}
	if req.TrialEnd != nil {
		params.TrialEnd = stripego.Int64(req.TrialEnd.Unix())
	}
	if req.CancelAtPeriodEnd != nil {
		params.CancelAtPeriodEnd = stripego.Bool(*req.CancelAtPeriodEnd)
	}
	if req.DefaultPaymentMethod != nil {
		params.DefaultPaymentMethod = stripego.String(*req.DefaultPaymentMethod)
	}
	if req.ProrationBehavior != "" {
		params.ProrationBehavior = stripego.String(string(req.ProrationBehavior))
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := a.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, classifyError("update_subscription", err)
	}
	return toSubscriptionRecord(s), nil
}

// CancelSubscription cancels immediately
func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string) (rec *domain.SubscriptionRecord, err error) {
	defer func(start time.Time) { a.observe("cancel_subscription", start, err) }(time.Now())

	params := &stripego.SubscriptionCancelParams{}
	params.Context = ctx

	s, err := a.api.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return nil, classifyError("cancel_subscription", err)
	}
	return toSubscriptionRecord(s), nil
}

// ListPayments returns the customer's charge attempts. Intents that never saw a
// payment attempt are left out.
func (a *Adapter) ListPayments(ctx context.Context, customerID string) (payments []domain.PaymentRecord, err error) {
	defer func(start time.Time) { a.observe("list_payments", start, err) }(time.Now())

	params := &stripego.PaymentIntentListParams{Customer: stripego.String(customerID)}
	params.Context = ctx

	iter := a.api.PaymentIntents.List(params)
	for iter.Next() {
		if rec, ok := toPaymentRecord(iter.PaymentIntent()); ok {
			payments = append(payments, rec)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, classifyError("list_payments", err)
	}
	return payments, nil
}

// GetPayment retrieves one payment intent as a payment record
func (a *Adapter) GetPayment(ctx context.Context, paymentID string) (rec *domain.PaymentRecord, err error) {
	defer func(start time.Time) { a.observe("get_payment", start, err) }(time.Now())

	params := &stripego.PaymentIntentParams{}
	params.Context = ctx

	pi, err := a.api.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return nil, classifyError("get_payment", err)
	}

	payment, ok := toPaymentRecord(pi)
	if !ok {
		payment = domain.PaymentRecord{
			ID:          pi.ID,
			CustomerID:  customerID(pi.Customer),
			Currency:    string(pi.Currency),
			Description: pi.Description,
			Status:      domain.PaymentStatusPending,
			AmountCents: pi.Amount,
			CreatedAt:   unixTime(pi.Created),
		}
	}
	return &payment, nil
}

// CreatePaymentIntent creates a one-time charge awaiting browser confirmation
func (a *Adapter) CreatePaymentIntent(ctx context.Context, req ports.PaymentIntentRequest) (conf *ports.Confirmation, err error) {
	defer func(start time.Time) { a.observe("create_payment_intent", start, err) }(time.Now())

	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(req.AmountCents),
		Currency: stripego.String(req.Currency),
		Customer: stripego.String(req.CustomerID),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripego.String(req.Description)
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := a.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classifyError("create_payment_intent", err)
	}
	return &ports.Confirmation{
		Kind:         ports.ConfirmationPayment,
		ClientSecret: pi.ClientSecret,
		IntentID:     pi.ID,
	}, nil
}

// CreateSetupIntent collects a reusable card without charging it
func (a *Adapter) CreateSetupIntent(ctx context.Context, req ports.SetupIntentRequest) (conf *ports.Confirmation, err error) {
	defer func(start time.Time) { a.observe("create_setup_intent", start, err) }(time.Now())

	params := &stripego.SetupIntentParams{
		Customer:           stripego.String(req.CustomerID),
		Usage:              stripego.String("off_session"),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	si, err := a.api.SetupIntents.New(params)
	if err != nil {
		return nil, classifyError("create_setup_intent", err)
	}
	return &ports.Confirmation{
		Kind:         ports.ConfirmationSetup,
		ClientSecret: si.ClientSecret,
		IntentID:     si.ID,
	}, nil
}

// FindPriceByLookupKey returns the active price with this lookup key, or nil
func (a *Adapter) FindPriceByLookupKey(ctx context.Context, lookupKey string) (price *ports.Price, err error) {
	defer func(start time.Time) { a.observe("find_price", start, err) }(time.Now())

	params := &stripego.PriceListParams{
		LookupKeys: stripego.StringSlice([]string{lookupKey}),
		Active:     stripego.Bool(true),
	}
	params.Context = ctx

	iter := a.api.Prices.List(params)
	if iter.Next() {
		return toPrice(iter.Price()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, classifyError("find_price", err)
	}
	return nil, nil
}

// CreatePrice creates a recurring price together with its product
func (a *Adapter) CreatePrice(ctx context.Context, req ports.CreatePriceRequest) (price *ports.Price, err error) {
	defer func(start time.Time) { a.observe("create_price", start, err) }(time.Now())

	params := &stripego.PriceParams{
		UnitAmount: stripego.Int64(req.AmountCents),
		Currency:   stripego.String(req.Currency),
		LookupKey:  stripego.String(req.LookupKey),
		Recurring: &stripego.PriceRecurringParams{
			Interval: stripego.String(string(req.Interval)),
		},
		ProductData: &stripego.PriceProductDataParams{
			Name: stripego.String(req.ProductName),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("price-%s-%d", req.LookupKey, req.AmountCents))

	p, err := a.api.Prices.New(params)
	if err != nil {
		return nil, classifyError("create_price", err)
	}
	return toPrice(p), nil
}
