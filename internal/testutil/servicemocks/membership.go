// Package servicemocks holds testify mocks of the service ports consumed by the HTTP handlers.
package servicemocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kevin07696/membership-service/internal/domain"
	svc "github.com/kevin07696/membership-service/internal/services/membership"
	"github.com/kevin07696/membership-service/internal/services/ports"
)

// MockMembershipService is a mock implementation of ports.MembershipService
type MockMembershipService struct {
	mock.Mock
}

func (m *MockMembershipService) Enrol(ctx context.Context, req svc.EnrolRequest) (*svc.EnrolResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*svc.EnrolResult), args.Error(1)
}

func (m *MockMembershipService) Cancel(ctx context.Context, memberID string) (*svc.CommandResult, error) {
	return m.commandResult(m.Called(ctx, memberID))
}

func (m *MockMembershipService) Reactivate(ctx context.Context, memberID string) (*svc.CommandResult, error) {
	return m.commandResult(m.Called(ctx, memberID))
}

func (m *MockMembershipService) UpdatePaymentMethod(ctx context.Context, memberID string) (*svc.CommandResult, error) {
	return m.commandResult(m.Called(ctx, memberID))
}

func (m *MockMembershipService) AttachPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) (*domain.SubscriptionRecord, error) {
	args := m.Called(ctx, subscriptionID, paymentMethodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubscriptionRecord), args.Error(1)
}

func (m *MockMembershipService) ConvertToRecurring(ctx context.Context, memberID string) (*svc.EnrolResult, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*svc.EnrolResult), args.Error(1)
}

func (m *MockMembershipService) Status(ctx context.Context, memberID string) (*svc.MembershipView, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*svc.MembershipView), args.Error(1)
}

func (m *MockMembershipService) VerifyPayment(ctx context.Context, memberID, paymentID string) (*svc.PaymentVerification, error) {
	args := m.Called(ctx, memberID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*svc.PaymentVerification), args.Error(1)
}

func (m *MockMembershipService) commandResult(args mock.Arguments) (*svc.CommandResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*svc.CommandResult), args.Error(1)
}

var _ ports.MembershipService = (*MockMembershipService)(nil)
