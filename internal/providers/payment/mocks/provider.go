// Package mocks holds testify mocks of the payment provider.
package mocks

import (
	"context"

	"github.com/smallbiznis/makerhub/internal/providers/payment/domain"
	"github.com/stretchr/testify/mock"
)

type Provider struct {
	mock.Mock
}

func (m *Provider) Name() string { return "mock" }

func (m *Provider) CreateCheckoutSession(ctx context.Context, cfg domain.SessionConfig) (*domain.Session, error) {
	args := m.Called(ctx, cfg)
	sess, _ := args.Get(0).(*domain.Session)
	return sess, args.Error(1)
}

func (m *Provider) RetrieveAccount(ctx context.Context, accountID string) (*domain.AccountStatus, error) {
	args := m.Called(ctx, accountID)
	status, _ := args.Get(0).(*domain.AccountStatus)
	return status, args.Error(1)
}

func (m *Provider) CreateAccount(ctx context.Context, req domain.AccountRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *Provider) CreateOnboardingLink(ctx context.Context, req domain.OnboardingRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *Provider) CreateLoginLink(ctx context.Context, accountID string) (string, error) {
	args := m.Called(ctx, accountID)
	return args.String(0), args.Error(1)
}
