// Package membership implements the per-member commands: enrol, cancel, reactivate,
// payment method changes and one-time to recurring conversion.
//
// Every mutating command follows the same sequence: take the lock, load a fresh
// snapshot from the gateway, derive the membership window, mutate, evict the cache.
package membership

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/internal/services/account"
	pkgerrors "github.com/kevin07696/membership-service/pkg/errors"
	"github.com/kevin07696/membership-service/pkg/observability"
	"github.com/kevin07696/membership-service/pkg/resilience"
	"github.com/kevin07696/membership-service/pkg/timeutil"
)

const (
	commandEnrol         = "enrol"
	commandCancel        = "cancel"
	commandReactivate    = "reactivate"
	commandPaymentMethod = "payment_method"
	commandAttachMethod  = "attach_payment_method"
	commandConvert       = "convert"
)

// Service handles membership commands and status reads
type Service struct {
	members  ports.MemberDirectory
	tiers    ports.TierCatalog
	gateway  ports.MembershipGateway
	resolver *account.Resolver
	loader   *account.Loader
	locker   ports.Locker
	timeouts *resilience.TimeoutConfig
	clock    timeutil.Clock
	cfg      Config
	logger   ports.Logger
}

// NewService creates a new membership service
func NewService(
	members ports.MemberDirectory,
	tiers ports.TierCatalog,
	gateway ports.MembershipGateway,
	resolver *account.Resolver,
	loader *account.Loader,
	locker ports.Locker,
	timeouts *resilience.TimeoutConfig,
	clock timeutil.Clock,
	cfg Config,
	logger ports.Logger,
) *Service {
	if timeouts == nil {
		timeouts = resilience.DefaultTimeoutConfig()
	}
	if clock == nil {
		clock = timeutil.Now
	}
	if cfg.TrialYears <= 0 {
		cfg.TrialYears = 1
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Service{
		members:  members,
		tiers:    tiers,
		gateway:  gateway,
		resolver: resolver,
		loader:   loader,
		locker:   locker,
		timeouts: timeouts,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Enrol starts a membership. A member whose dues are current and renew automatically
// is refused before any gateway mutation.
func (s *Service) Enrol(ctx context.Context, req EnrolRequest) (result *EnrolResult, err error) {
	defer func() { s.record(commandEnrol, err) }()

	ctx, cancel := s.timeouts.CommandContext(ctx)
	defer cancel()

	member, err := s.getMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, ports.MemberLockKey(member.ID))
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, ports.MemberLockKey(member.ID), release)

	customerID, snapshot, err := s.loadExisting(ctx, member)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	window := domain.DeriveFromSnapshot(member, snapshot, now)
	if window.HasActiveAutoRenewal() {
		return nil, domain.ErrMembershipAlreadyCurrent.WithDetail("member_id", member.ID)
	}
	if req.Recurring && len(domain.LiveSubscriptions(snapshot.Subscriptions)) > 0 {
		return nil, domain.ErrLiveSubscriptionExists.WithDetail("member_id", member.ID)
	}

	tier, err := s.tiers.GetTier(ctx, member.TierID)
	if err != nil {
		return nil, fmt.Errorf("get tier: %w", err)
	}

	if customerID == "" {
		customerID, _, err = s.resolver.ResolveOrCreate(ctx, member)
		if err != nil {
			return nil, err
		}
	}
	defer s.loader.Evict(ctx, customerID)

	if req.Recurring {
		var trialEnd *time.Time
		if snapshot.IsFirstEnrolment() {
			end := now.AddDate(s.cfg.TrialYears, 0, 0)
			trialEnd = &end
		}
		result, err = s.startSubscription(ctx, member, tier, customerID, accountVersion(snapshot), trialEnd, nil)
		if err != nil {
			return nil, err
		}
	} else {
		result, err = s.startOneTimePayment(ctx, member, tier, customerID, accountVersion(snapshot))
		if err != nil {
			return nil, err
		}
	}

	mode := "one_time"
	if result.Recurring {
		mode = "recurring"
	}
	observability.RecordEnrolment(mode, string(result.Confirmation.Kind))

	s.logger.Info("membership enrolment started",
		ports.String("member_id", member.ID),
		ports.String("customer_id", customerID),
		ports.String("mode", mode),
		ports.Bool("trial", result.Trial),
		ports.String("subscription_id", result.SubscriptionID))

	return result, nil
}

// Cancel stops automatic renewal at the end of the current period
func (s *Service) Cancel(ctx context.Context, memberID string) (result *CommandResult, err error) {
	defer func() { s.record(commandCancel, err) }()

	return s.withLiveSubscription(ctx, memberID, func(ctx context.Context, member *domain.Member, snapshot *domain.AccountSnapshot, sub *domain.SubscriptionRecord) (*CommandResult, error) {
		if sub.CancelAtPeriodEnd {
			return s.result(member, snapshot, sub, false), nil
		}

		updated, err := s.gateway.UpdateSubscription(ctx, sub.ID, ports.UpdateSubscriptionRequest{
			CancelAtPeriodEnd: boolPtr(true),
		})
		if err != nil {
			return nil, account.WrapGatewayError("cancel at period end", err)
		}

		s.logger.Info("subscription set to cancel at period end",
			ports.String("member_id", member.ID),
			ports.String("subscription_id", sub.ID),
			ports.Time("period_end", updated.CurrentPeriodEnd))

		return s.result(member, snapshot, updated, true), nil
	}, false)
}

// Reactivate resumes automatic renewal of a subscription set to cancel at period end.
// A fully canceled subscription cannot be revived; the member enrols again.
func (s *Service) Reactivate(ctx context.Context, memberID string) (result *CommandResult, err error) {
	defer func() { s.record(commandReactivate, err) }()

	return s.withLiveSubscription(ctx, memberID, func(ctx context.Context, member *domain.Member, snapshot *domain.AccountSnapshot, sub *domain.SubscriptionRecord) (*CommandResult, error) {
		if !sub.CancelAtPeriodEnd {
			return s.result(member, snapshot, sub, false), nil
		}

		updated, err := s.gateway.UpdateSubscription(ctx, sub.ID, ports.UpdateSubscriptionRequest{
			CancelAtPeriodEnd: boolPtr(false),
		})
		if err != nil {
			return nil, account.WrapGatewayError("reactivate subscription", err)
		}

		s.logger.Info("subscription reactivated",
			ports.String("member_id", member.ID),
			ports.String("subscription_id", sub.ID))

		return s.result(member, snapshot, updated, true), nil
	}, true)
}

// UpdatePaymentMethod returns a setup confirmation for collecting a new card.
// Nothing is charged; the card is attached when the gateway reports the setup succeeded.
func (s *Service) UpdatePaymentMethod(ctx context.Context, memberID string) (result *CommandResult, err error) {
	defer func() { s.record(commandPaymentMethod, err) }()

	return s.withLiveSubscription(ctx, memberID, func(ctx context.Context, member *domain.Member, snapshot *domain.AccountSnapshot, sub *domain.SubscriptionRecord) (*CommandResult, error) {
		conf, err := s.gateway.CreateSetupIntent(ctx, ports.SetupIntentRequest{
			CustomerID: sub.CustomerID,
			Metadata: map[string]string{
				domain.MetadataMemberID:       member.ID,
				domain.MetadataSubscriptionID: sub.ID,
			},
		})
		if err != nil {
			return nil, account.WrapGatewayError("create setup intent", err)
		}

		s.logger.Info("payment method update started",
			ports.String("member_id", member.ID),
			ports.String("subscription_id", sub.ID),
			ports.String("setup_intent_id", conf.IntentID))

		res := s.result(member, snapshot, sub, false)
		res.Confirmation = conf
		return res, nil
	}, false)
}

// AttachPaymentMethod makes a collected payment method the subscription's default
func (s *Service) AttachPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) (sub *domain.SubscriptionRecord, err error) {
	defer func() { s.record(commandAttachMethod, err) }()

	if subscriptionID == "" {
		return nil, domain.ErrValidationFailed.WithDetail("field", "subscription_id")
	}
	if paymentMethodID == "" {
		return nil, domain.ErrValidationFailed.WithDetail("field", "payment_method_id")
	}

	ctx, cancel := s.timeouts.CommandContext(ctx)
	defer cancel()

	key := ports.SubscriptionLockKey(subscriptionID)
	release, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, key, release)

	sub, err = s.gateway.UpdateSubscription(ctx, subscriptionID, ports.UpdateSubscriptionRequest{
		DefaultPaymentMethod: &paymentMethodID,
	})
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, domain.ErrNoSubscription.WithDetail("subscription_id", subscriptionID)
		}
		return nil, account.WrapGatewayError("attach payment method", err)
	}
	s.loader.Evict(ctx, sub.CustomerID)

	s.logger.Info("payment method attached",
		ports.String("subscription_id", subscriptionID),
		ports.String("customer_id", sub.CustomerID))

	return sub, nil
}

// ConvertToRecurring turns a current one-time membership into a subscription whose
// first renewal falls on the paid-through date.
func (s *Service) ConvertToRecurring(ctx context.Context, memberID string) (result *EnrolResult, err error) {
	defer func() { s.record(commandConvert, err) }()

	ctx, cancel := s.timeouts.CommandContext(ctx)
	defer cancel()

	member, err := s.getMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, ports.MemberLockKey(member.ID))
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, ports.MemberLockKey(member.ID), release)

	customerID, snapshot, err := s.loadExisting(ctx, member)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, domain.ErrNotEligibleForConversion.WithDetail("member_id", member.ID)
	}

	now := s.clock()
	window := domain.DeriveFromSnapshot(member, snapshot, now)
	if len(domain.LiveSubscriptions(snapshot.Subscriptions)) > 0 {
		return nil, domain.ErrLiveSubscriptionExists.WithDetail("member_id", member.ID)
	}
	if !window.Valid || !window.OneTimePayment || window.ValidUntil == nil {
		return nil, domain.ErrNotEligibleForConversion.WithDetail("member_id", member.ID)
	}
	// A paid-through date beyond the gateway's trial horizon cannot anchor the first
	// renewal; the member converts once it comes within range
	trialEnd := window.ValidUntil
	if trialEnd.After(now.Add(domain.MaxTrialPeriod)) {
		return nil, domain.ErrNotEligibleForConversion.
			WithDetail("member_id", member.ID).
			WithDetail("paid_through", trialEnd.Format(time.DateOnly)).
			WithDetail("convertible_from", trialEnd.Add(-domain.MaxTrialPeriod).Format(time.DateOnly))
	}

	tier, err := s.tiers.GetTier(ctx, member.TierID)
	if err != nil {
		return nil, fmt.Errorf("get tier: %w", err)
	}
	defer s.loader.Evict(ctx, customerID)

	result, err = s.startSubscription(ctx, member, tier, customerID, accountVersion(snapshot), trialEnd, map[string]string{
		domain.MetadataConvertedFromOneTime: "true",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("one-time membership converted to recurring",
		ports.String("member_id", member.ID),
		ports.String("subscription_id", result.SubscriptionID),
		ports.Time("first_renewal", *trialEnd))

	return result, nil
}

// Status derives the member's current window, serving the snapshot from the cache when possible
func (s *Service) Status(ctx context.Context, memberID string) (*MembershipView, error) {
	ctx, cancel := s.timeouts.CommandContext(ctx)
	defer cancel()

	member, err := s.getMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.resolver.Resolve(ctx, member)
	if err != nil && !domain.IsDomainError(err, domain.ErrorCodeCustomerNotFound) {
		return nil, err
	}

	snapshot := &domain.AccountSnapshot{}
	if customerID != "" {
		snapshot, err = s.loader.Cached(ctx, customerID)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock()
	return &MembershipView{
		Member:       member,
		Subscription: snapshot.Canonical(),
		Window:       domain.DeriveFromSnapshot(member, snapshot, now),
		CustomerID:   customerID,
		AsOf:         now,
	}, nil
}

// VerifyPayment reads a payment's outcome from the gateway. The browser only relays
// the payment ID; the status it reports is never trusted.
func (s *Service) VerifyPayment(ctx context.Context, memberID, paymentID string) (*PaymentVerification, error) {
	if paymentID == "" {
		return nil, domain.ErrValidationFailed.WithDetail("field", "payment_id")
	}

	ctx, cancel := s.timeouts.CommandContext(ctx)
	defer cancel()

	member, err := s.getMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.resolver.Resolve(ctx, member)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeCustomerNotFound) {
			return nil, domain.ErrPaymentNotOwned.WithDetail("payment_id", paymentID)
		}
		return nil, err
	}

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, domain.ErrPaymentNotFound.WithDetail("payment_id", paymentID)
		}
		return nil, account.WrapGatewayError("get payment", err)
	}
	if payment.CustomerID != customerID {
		s.logger.Warn("payment verification for foreign customer refused",
			ports.String("member_id", member.ID),
			ports.String("payment_id", paymentID))
		return nil, domain.ErrPaymentNotOwned.WithDetail("payment_id", paymentID)
	}

	s.loader.Evict(ctx, customerID)
	snapshot, err := s.loader.Fresh(ctx, customerID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment verified",
		ports.String("member_id", member.ID),
		ports.String("payment_id", paymentID),
		ports.String("status", string(payment.Status)))

	return &PaymentVerification{
		Window:    domain.DeriveFromSnapshot(member, snapshot, s.clock()),
		MemberID:  member.ID,
		PaymentID: paymentID,
		Status:    payment.Status,
	}, nil
}

type subscriptionCommand func(ctx context.Context, member *domain.Member, snapshot *domain.AccountSnapshot, sub *domain.SubscriptionRecord) (*CommandResult, error)

// withLiveSubscription locks the member's canonical subscription, re-reads the account
// under the lock and hands the fresh record to fn. With reportCanceled a subscription
// that is no longer live is refused as canceled rather than missing.
func (s *Service) withLiveSubscription(ctx context.Context, memberID string, fn subscriptionCommand, reportCanceled bool) (*CommandResult, error) {
	ctx, cancel := s.timeouts.CommandContext(ctx)
	defer cancel()

	member, err := s.getMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	customerID, snapshot, err := s.loadExisting(ctx, member)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, domain.ErrNoSubscription.WithDetail("member_id", member.ID)
	}

	canonical := snapshot.Canonical()
	if canonical == nil {
		return nil, domain.ErrNoSubscription.WithDetail("member_id", member.ID)
	}

	key := ports.SubscriptionLockKey(canonical.ID)
	release, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, key, release)

	snapshot, err = s.loader.Fresh(ctx, customerID)
	if err != nil {
		return nil, err
	}
	sub := findSubscription(snapshot, canonical.ID)
	if sub == nil {
		return nil, domain.ErrNoSubscription.WithDetail("subscription_id", canonical.ID)
	}
	if !sub.IsLive() {
		if reportCanceled {
			return nil, domain.ErrSubscriptionCanceled.WithDetail("subscription_id", sub.ID)
		}
		return nil, domain.ErrNoSubscription.WithDetail("member_id", member.ID)
	}

	result, err := fn(ctx, member, snapshot, sub)
	if err != nil {
		return nil, err
	}
	if result.Changed {
		s.loader.Evict(ctx, customerID)
	}
	return result, nil
}

// startSubscription creates the gateway subscription for a tier. A trialEnd in the
// future defers the first charge and yields a setup confirmation. version is the
// accountVersion the decision was made on.
func (s *Service) startSubscription(ctx context.Context, member *domain.Member, tier *domain.Tier, customerID, version string, trialEnd *time.Time, extra map[string]string) (*EnrolResult, error) {
	price, err := s.ensurePrice(ctx, tier)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		domain.MetadataMemberID: member.ID,
		domain.MetadataTierID:   tier.ID,
	}
	for k, v := range extra {
		metadata[k] = v
	}

	trial := ""
	if trialEnd != nil {
		trial = trialEnd.UTC().Format(time.RFC3339)
	}
	created, err := s.gateway.CreateSubscription(ctx, ports.CreateSubscriptionRequest{
		TrialEnd:       trialEnd,
		Metadata:       metadata,
		CustomerID:     customerID,
		PriceID:        price.ID,
		IdempotencyKey: idempotencyKey("subscription", member.ID, customerID, price.ID, trial, version, metadata[domain.MetadataConvertedFromOneTime]),
	})
	if err != nil {
		return nil, account.WrapGatewayError("create subscription", err)
	}
	if created.Confirmation == nil {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayError, "subscription created without a confirmation").
			WithDetail("subscription_id", created.Subscription.ID)
	}

	result := &EnrolResult{
		Confirmation:   created.Confirmation,
		MemberID:       member.ID,
		CustomerID:     customerID,
		SubscriptionID: created.Subscription.ID,
		Recurring:      true,
		Trial:          trialEnd != nil,
	}
	if created.Confirmation.Kind == ports.ConfirmationPayment {
		result.PaymentIntentID = created.Confirmation.IntentID
	}
	return result, nil
}

func (s *Service) startOneTimePayment(ctx context.Context, member *domain.Member, tier *domain.Tier, customerID, version string) (*EnrolResult, error) {
	currency := s.currency(tier)
	amount := tier.AmountCents()
	conf, err := s.gateway.CreatePaymentIntent(ctx, ports.PaymentIntentRequest{
		Metadata: map[string]string{
			domain.MetadataMemberID: member.ID,
			domain.MetadataTierID:   tier.ID,
		},
		CustomerID:     customerID,
		Currency:       currency,
		Description:    tier.Name + " membership",
		IdempotencyKey: idempotencyKey("payment", member.ID, customerID, currency, fmt.Sprint(amount), version),
		AmountCents:    amount,
	})
	if err != nil {
		return nil, account.WrapGatewayError("create payment intent", err)
	}

	return &EnrolResult{
		Confirmation:    conf,
		MemberID:        member.ID,
		CustomerID:      customerID,
		PaymentIntentID: conf.IntentID,
	}, nil
}

// ensurePrice finds the tier's recurring price by lookup key, creating it on first use
// or when the tier amount no longer matches.
func (s *Service) ensurePrice(ctx context.Context, tier *domain.Tier) (*ports.Price, error) {
	lookupKey := tier.PriceLookupKey()
	price, err := s.gateway.FindPriceByLookupKey(ctx, lookupKey)
	if err != nil {
		return nil, account.WrapGatewayError("find price", err)
	}
	if price != nil && price.AmountCents == tier.AmountCents() {
		return price, nil
	}

	interval := tier.Interval
	if interval == "" {
		interval = domain.BillingIntervalYear
	}
	price, err = s.gateway.CreatePrice(ctx, ports.CreatePriceRequest{
		LookupKey:   lookupKey,
		Currency:    s.currency(tier),
		ProductName: tier.Name + " membership",
		Interval:    interval,
		AmountCents: tier.AmountCents(),
	})
	if err != nil {
		return nil, account.WrapGatewayError("create price", err)
	}

	s.logger.Info("gateway price created",
		ports.String("tier_id", tier.ID),
		ports.String("lookup_key", lookupKey),
		ports.Int64("amount_cents", price.AmountCents))

	return price, nil
}

// loadExisting resolves the member's customer without creating one and loads a fresh
// snapshot. A member unknown to the gateway gets "" and an empty snapshot.
func (s *Service) loadExisting(ctx context.Context, member *domain.Member) (string, *domain.AccountSnapshot, error) {
	customerID, err := s.resolver.Resolve(ctx, member)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeCustomerNotFound) {
			return "", &domain.AccountSnapshot{FetchedAt: s.clock()}, nil
		}
		return "", nil, err
	}

	snapshot, err := s.loader.Fresh(ctx, customerID)
	if err != nil {
		return "", nil, err
	}
	return customerID, snapshot, nil
}

func (s *Service) getMember(ctx context.Context, memberID string) (*domain.Member, error) {
	if memberID == "" {
		return nil, domain.ErrValidationFailed.WithDetail("field", "member_id")
	}
	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

func (s *Service) lock(ctx context.Context, key string) (ports.ReleaseFunc, error) {
	release, err := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return release, nil
}

func (s *Service) unlock(ctx context.Context, key string, release ports.ReleaseFunc) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("failed to release lock",
			ports.String("key", key),
			ports.Err(err))
	}
}

func (s *Service) result(member *domain.Member, snapshot *domain.AccountSnapshot, sub *domain.SubscriptionRecord, changed bool) *CommandResult {
	return &CommandResult{
		Window:         domain.DeriveFromSnapshot(member, replaceSubscription(snapshot, sub), s.clock()),
		MemberID:       member.ID,
		SubscriptionID: sub.ID,
		Changed:        changed,
	}
}

func (s *Service) currency(tier *domain.Tier) string {
	if tier.Currency != "" {
		return tier.Currency
	}
	return s.cfg.Currency
}

func (s *Service) record(command string, err error) {
	observability.RecordMembershipCommand(command, outcomeOf(err))
	if err != nil && !domain.IsGuardError(err) && !domain.IsNotFoundError(err) && !domain.IsValidationError(err) {
		s.logger.Error("membership command failed",
			ports.String("command", command),
			ports.Err(err))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsGuardError(err), domain.IsDomainError(err, domain.ErrorCodePaymentNotOwned):
		return "refused"
	case domain.IsNotFoundError(err):
		return "not_found"
	case domain.IsDomainError(err, domain.ErrorCodeLockHeld):
		return "lock_held"
	case domain.IsValidationError(err):
		return "invalid"
	default:
		return "failed"
	}
}

func findSubscription(snapshot *domain.AccountSnapshot, id string) *domain.SubscriptionRecord {
	for _, sub := range snapshot.Subscriptions {
		if sub.ID == id {
			return sub
		}
	}
	return nil
}

// replaceSubscription returns a copy of snapshot with sub swapped in by ID
func replaceSubscription(snapshot *domain.AccountSnapshot, sub *domain.SubscriptionRecord) *domain.AccountSnapshot {
	cp := *snapshot
	cp.Subscriptions = make([]*domain.SubscriptionRecord, 0, len(snapshot.Subscriptions))
	for _, existing := range snapshot.Subscriptions {
		if existing.ID == sub.ID {
			cp.Subscriptions = append(cp.Subscriptions, sub)
			continue
		}
		cp.Subscriptions = append(cp.Subscriptions, existing)
	}
	return &cp
}

// idempotencyKey derives a gateway idempotency key from the inputs of one creation,
// so a resubmitted command replays the first result instead of creating a second object
func idempotencyKey(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return kind + "-" + hex.EncodeToString(h.Sum(nil)[:16])
}

// accountVersion identifies the gateway-side state a command was decided on.
// Any new subscription or payment, or a status change of one, changes it.
func accountVersion(snapshot *domain.AccountSnapshot) string {
	ids := make([]string, 0, len(snapshot.Subscriptions)+len(snapshot.Payments))
	for _, sub := range snapshot.Subscriptions {
		ids = append(ids, sub.ID+":"+string(sub.Status))
	}
	for _, p := range snapshot.Payments {
		ids = append(ids, p.ID+":"+string(p.Status))
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

func boolPtr(b bool) *bool {
	return &b
}
