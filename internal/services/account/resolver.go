// Package account resolves members to gateway customers and loads their
// gateway-side state for the status deriver.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/kevin07696/membership-service/internal/domain"
	"github.com/kevin07696/membership-service/internal/domain/ports"
)

// Resolver maps a member to their gateway customer.
// The stored link wins; email search is the fallback for members enrolled before links existed.
type Resolver struct {
	gateway ports.MembershipGateway
	links   ports.CustomerLinkRepository
	logger  ports.Logger
}

// NewResolver creates a new customer resolver
func NewResolver(gateway ports.MembershipGateway, links ports.CustomerLinkRepository, logger ports.Logger) *Resolver {
	return &Resolver{
		gateway: gateway,
		links:   links,
		logger:  logger,
	}
}

// CallFunc runs one gateway call. Batch runs pass batch.Runner.Call to share
// its rate limit and retries.
type CallFunc func(ctx context.Context, operation string, fn func(ctx context.Context) error) error

func direct(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Resolve returns the member's customer ID, or domain.ErrCustomerNotFound when the
// member has no link and no gateway customer carries their email.
func (r *Resolver) Resolve(ctx context.Context, member *domain.Member) (string, error) {
	return r.ResolveVia(ctx, member, direct)
}

// ResolveVia is Resolve with the email search made through call
func (r *Resolver) ResolveVia(ctx context.Context, member *domain.Member, call CallFunc) (string, error) {
	customerID, err := r.links.GetCustomerID(ctx, nil, member.ID)
	if err != nil {
		return "", fmt.Errorf("get customer link: %w", err)
	}
	if customerID != "" {
		return customerID, nil
	}

	if member.Email == "" {
		return "", domain.ErrCustomerNotFound.WithDetail("member_id", member.ID)
	}

	var customer *ports.Customer
	err = call(ctx, "find_customer_by_email", func(ctx context.Context) error {
		var findErr error
		customer, findErr = r.gateway.FindCustomerByEmail(ctx, member.Email)
		return findErr
	})
	if err != nil {
		return "", WrapGatewayError("find customer by email", err)
	}
	if customer == nil {
		return "", domain.ErrCustomerNotFound.WithDetail("member_id", member.ID)
	}

	r.link(ctx, member.ID, customer.ID)
	return customer.ID, nil
}

// ResolveOrCreate resolves the member's customer and creates one when none exists.
// The returned flag reports whether a customer was created.
func (r *Resolver) ResolveOrCreate(ctx context.Context, member *domain.Member) (string, bool, error) {
	customerID, err := r.Resolve(ctx, member)
	if err == nil {
		return customerID, false, nil
	}
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		return "", false, err
	}

	customer, err := r.gateway.CreateCustomer(ctx, ports.CreateCustomerRequest{
		Email:          member.Email,
		Name:           member.Name,
		Metadata:       map[string]string{domain.MetadataMemberID: member.ID},
		IdempotencyKey: "customer-" + member.ID,
	})
	if err != nil {
		return "", false, WrapGatewayError("create customer", err)
	}

	r.logger.Info("gateway customer created",
		ports.String("member_id", member.ID),
		ports.String("customer_id", customer.ID))

	r.link(ctx, member.ID, customer.ID)
	return customer.ID, true, nil
}

// link stores the association; a failed write only costs an email search next time
func (r *Resolver) link(ctx context.Context, memberID, customerID string) {
	if err := r.links.LinkCustomer(ctx, nil, memberID, customerID); err != nil {
		r.logger.Warn("failed to store customer link",
			ports.String("member_id", memberID),
			ports.String("customer_id", customerID),
			ports.Err(err))
	}
}

// WrapGatewayError tags a gateway failure with GATEWAY_ERROR.
// Domain errors and context cancellation pass through unchanged.
func WrapGatewayError(message string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.WrapError(domain.ErrorCodeGatewayError, message, err)
}
