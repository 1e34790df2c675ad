package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
)

// Gateway operation names used for call counting and error injection
const (
	OpFindCustomer        = "find_customer"
	OpGetCustomer         = "get_customer"
	OpCreateCustomer      = "create_customer"
	OpListSubscriptions   = "list_subscriptions"
	OpCreateSubscription  = "create_subscription"
	OpUpdateSubscription  = "update_subscription"
	OpCancelSubscription  = "cancel_subscription"
	OpListPayments        = "list_payments"
	OpGetPayment          = "get_payment"
	OpCreatePaymentIntent = "create_payment_intent"
	OpCreateSetupIntent   = "create_setup_intent"
	OpFindPrice           = "find_price"
	OpCreatePrice         = "create_price"
)

type injectedError struct {
	err       error
	remaining int // <0 fails forever
}

// FakeGateway is an in-memory MembershipGateway that behaves like the hosted
// gateway closely enough for service tests and counts every call.
type FakeGateway struct {
	mu sync.Mutex

	Now func() time.Time

	customers     map[string]*ports.Customer
	subscriptions map[string]*domain.SubscriptionRecord
	payments      map[string][]domain.PaymentRecord
	prices        map[string]*ports.Price
	errors        map[string]*injectedError
	seq           int

	calls        map[string]int
	LastUpdates  map[string]ports.UpdateSubscriptionRequest
	LastCreate   *ports.CreateSubscriptionRequest
	LastPayment  *ports.PaymentIntentRequest
	SetupIntents []ports.SetupIntentRequest
}

// NewFakeGateway creates an empty fake gateway
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Now:           time.Now,
		customers:     make(map[string]*ports.Customer),
		subscriptions: make(map[string]*domain.SubscriptionRecord),
		payments:      make(map[string][]domain.PaymentRecord),
		prices:        make(map[string]*ports.Price),
		errors:        make(map[string]*injectedError),
		calls:         make(map[string]int),
		LastUpdates:   make(map[string]ports.UpdateSubscriptionRequest),
	}
}

func (g *FakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%04d", prefix, g.seq)
}

// enter counts the call and returns an injected error, if any. Caller holds mu.
func (g *FakeGateway) enter(op string) error {
	g.calls[op]++
	inj, ok := g.errors[op]
	if !ok {
		return nil
	}
	if inj.remaining == 0 {
		delete(g.errors, op)
		return nil
	}
	if inj.remaining > 0 {
		inj.remaining--
	}
	return inj.err
}

// FailWith makes every call of op return err until cleared
func (g *FakeGateway) FailWith(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errors[op] = &injectedError{err: err, remaining: -1}
}

// FailTimes makes the next n calls of op return err
func (g *FakeGateway) FailTimes(op string, n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errors[op] = &injectedError{err: err, remaining: n}
}

// ClearErrors removes all injected errors
func (g *FakeGateway) ClearErrors() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errors = make(map[string]*injectedError)
}

// Calls returns how many times op was invoked
func (g *FakeGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// MutationCalls counts every call that changes gateway state
func (g *FakeGateway) MutationCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, op := range []string{OpCreateCustomer, OpCreateSubscription, OpUpdateSubscription,
		OpCancelSubscription, OpCreatePaymentIntent, OpCreateSetupIntent, OpCreatePrice} {
		total += g.calls[op]
	}
	return total
}

// ResetCalls zeroes the call counters
func (g *FakeGateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = make(map[string]int)
	g.LastUpdates = make(map[string]ports.UpdateSubscriptionRequest)
}

// AddCustomer seeds a customer
func (g *FakeGateway) AddCustomer(c *ports.Customer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers[c.ID] = c
}

// AddSubscription seeds a subscription
func (g *FakeGateway) AddSubscription(sub *domain.SubscriptionRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *sub
	cp.Metadata = copyMap(sub.Metadata)
	g.subscriptions[sub.ID] = &cp
}

// AddPayment seeds a payment in the customer's history
func (g *FakeGateway) AddPayment(p domain.PaymentRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.CustomerID] = append(g.payments[p.CustomerID], p)
}

// AddPrice seeds a price
func (g *FakeGateway) AddPrice(p *ports.Price) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices[p.LookupKey] = p
}

// Subscription returns a copy of the stored subscription, or nil
func (g *FakeGateway) Subscription(id string) *domain.SubscriptionRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.subscriptions[id]
	if !ok {
		return nil
	}
	cp := *sub
	cp.Metadata = copyMap(sub.Metadata)
	return &cp
}

// SubscriptionsOf returns copies of the customer's subscriptions
func (g *FakeGateway) SubscriptionsOf(customerID string) []*domain.SubscriptionRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscriptionsOf(customerID)
}

func (g *FakeGateway) subscriptionsOf(customerID string) []*domain.SubscriptionRecord {
	var subs []*domain.SubscriptionRecord
	for _, sub := range g.subscriptions {
		if sub.CustomerID != customerID {
			continue
		}
		cp := *sub
		cp.Metadata = copyMap(sub.Metadata)
		subs = append(subs, &cp)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs
}

func (g *FakeGateway) FindCustomerByEmail(_ context.Context, email string) (*ports.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpFindCustomer); err != nil {
		return nil, err
	}
	var found *ports.Customer
	for _, c := range g.customers {
		if c.Email == email && (found == nil || c.ID > found.ID) {
			found = c
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (g *FakeGateway) GetCustomer(_ context.Context, customerID string) (*ports.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpGetCustomer); err != nil {
		return nil, err
	}
	c, ok := g.customers[customerID]
	if !ok {
		return nil, pkgerrors.NewGatewayError(OpGetCustomer, "no such customer", pkgerrors.CategoryNotFound, false)
	}
	cp := *c
	return &cp, nil
}

func (g *FakeGateway) CreateCustomer(_ context.Context, req ports.CreateCustomerRequest) (*ports.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCreateCustomer); err != nil {
		return nil, err
	}
	c := &ports.Customer{
		ID:       g.nextID("cus"),
		Email:    req.Email,
		Name:     req.Name,
		Metadata: copyMap(req.Metadata),
	}
	g.customers[c.ID] = c
	cp := *c
	return &cp, nil
}

func (g *FakeGateway) ListSubscriptions(_ context.Context, customerID string) ([]*domain.SubscriptionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpListSubscriptions); err != nil {
		return nil, err
	}
	return g.subscriptionsOf(customerID), nil
}

func (g *FakeGateway) CreateSubscription(_ context.Context, req ports.CreateSubscriptionRequest) (*ports.SubscriptionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCreateSubscription); err != nil {
		return nil, err
	}
	reqCopy := req
	g.LastCreate = &reqCopy

	now := g.Now().UTC()
	sub := &domain.SubscriptionRecord{
		ID:                 g.nextID("sub"),
		CustomerID:         req.CustomerID,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(1, 0, 0),
		CreatedAt:          now,
		Metadata:           copyMap(req.Metadata),
	}
	sub.TierID = sub.Metadata[domain.MetadataTierID]

	conf := &ports.Confirmation{}
	if req.TrialEnd != nil && req.TrialEnd.After(now) {
		end := req.TrialEnd.UTC()
		sub.Status = domain.SubscriptionStatusTrialing
		sub.TrialEnd = &end
		sub.CurrentPeriodEnd = end
		conf.Kind = ports.ConfirmationSetup
		conf.IntentID = g.nextID("seti")
	} else {
		sub.Status = domain.SubscriptionStatusIncomplete
		conf.Kind = ports.ConfirmationPayment
		conf.IntentID = g.nextID("pi")
	}
	conf.ClientSecret = conf.IntentID + "_secret"
	g.subscriptions[sub.ID] = sub

	cp := *sub
	cp.Metadata = copyMap(sub.Metadata)
	return &ports.SubscriptionResult{Subscription: &cp, Confirmation: conf}, nil
}

func (g *FakeGateway) UpdateSubscription(_ context.Context, subscriptionID string, req ports.UpdateSubscriptionRequest) (*domain.SubscriptionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpUpdateSubscription); err != nil {
		return nil, err
	}
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return nil, pkgerrors.NewGatewayError(OpUpdateSubscription, "no such subscription", pkgerrors.CategoryNotFound, false)
	}
	if sub.IsCanceled() {
		return nil, pkgerrors.NewGatewayError(OpUpdateSubscription, "subscription is canceled", pkgerrors.CategoryInvalidRequest, false)
	}
	g.LastUpdates[subscriptionID] = req

	if req.TrialEnd != nil {
		end := req.TrialEnd.UTC()
		sub.TrialEnd = &end
		sub.CurrentPeriodEnd = end
		sub.Status = domain.SubscriptionStatusTrialing
	}
	if req.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *req.CancelAtPeriodEnd
	}
	if req.DefaultPaymentMethod != nil {
		sub.HasPaymentMethod = *req.DefaultPaymentMethod != ""
	}
	if sub.Metadata == nil {
		sub.Metadata = make(map[string]string)
	}
	for k, v := range req.Metadata {
		sub.Metadata[k] = v
	}

	cp := *sub
	cp.Metadata = copyMap(sub.Metadata)
	return &cp, nil
}

func (g *FakeGateway) CancelSubscription(_ context.Context, subscriptionID string) (*domain.SubscriptionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCancelSubscription); err != nil {
		return nil, err
	}
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return nil, pkgerrors.NewGatewayError(OpCancelSubscription, "no such subscription", pkgerrors.CategoryNotFound, false)
	}
	if sub.IsCanceled() {
		return nil, pkgerrors.NewGatewayError(OpCancelSubscription, "subscription is canceled", pkgerrors.CategoryInvalidRequest, false)
	}
	now := g.Now().UTC()
	sub.Status = domain.SubscriptionStatusCanceled
	sub.CanceledAt = &now

	cp := *sub
	cp.Metadata = copyMap(sub.Metadata)
	return &cp, nil
}

func (g *FakeGateway) ListPayments(_ context.Context, customerID string) ([]domain.PaymentRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpListPayments); err != nil {
		return nil, err
	}
	return append([]domain.PaymentRecord(nil), g.payments[customerID]...), nil
}

func (g *FakeGateway) GetPayment(_ context.Context, paymentID string) (*domain.PaymentRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpGetPayment); err != nil {
		return nil, err
	}
	for _, list := range g.payments {
		for _, p := range list {
			if p.ID == paymentID {
				cp := p
				return &cp, nil
			}
		}
	}
	return nil, pkgerrors.NewGatewayError(OpGetPayment, "no such payment_intent", pkgerrors.CategoryNotFound, false)
}

func (g *FakeGateway) CreatePaymentIntent(_ context.Context, req ports.PaymentIntentRequest) (*ports.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCreatePaymentIntent); err != nil {
		return nil, err
	}
	reqCopy := req
	g.LastPayment = &reqCopy
	id := g.nextID("pi")
	return &ports.Confirmation{Kind: ports.ConfirmationPayment, ClientSecret: id + "_secret", IntentID: id}, nil
}

func (g *FakeGateway) CreateSetupIntent(_ context.Context, req ports.SetupIntentRequest) (*ports.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCreateSetupIntent); err != nil {
		return nil, err
	}
	g.SetupIntents = append(g.SetupIntents, req)
	id := g.nextID("seti")
	return &ports.Confirmation{Kind: ports.ConfirmationSetup, ClientSecret: id + "_secret", IntentID: id}, nil
}

func (g *FakeGateway) FindPriceByLookupKey(_ context.Context, lookupKey string) (*ports.Price, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpFindPrice); err != nil {
		return nil, err
	}
	p, ok := g.prices[lookupKey]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (g *FakeGateway) CreatePrice(_ context.Context, req ports.CreatePriceRequest) (*ports.Price, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(OpCreatePrice); err != nil {
		return nil, err
	}
	p := &ports.Price{
		ID:          g.nextID("price"),
		LookupKey:   req.LookupKey,
		Currency:    req.Currency,
		Interval:    req.Interval,
		AmountCents: req.AmountCents,
	}
	g.prices[req.LookupKey] = p
	cp := *p
	return &cp, nil
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ ports.MembershipGateway = (*FakeGateway)(nil)
