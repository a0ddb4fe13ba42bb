package stripe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/makerhub/internal/providers/payment/domain"
	"github.com/smallbiznis/makerhub/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

type fakeSessions struct {
	params *stripego.CheckoutSessionParams
	err    error
	calls  int
}

func (f *fakeSessions) New(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripego.CheckoutSession{
		ID:            "cs_test_1",
		URL:           "https://checkout.stripe.com/c/pay/cs_test_1",
		PaymentIntent: &stripego.PaymentIntent{ID: "pi_1"},
	}, nil
}

type fakeAccounts struct {
	failures int
	status   int
	calls    int
	created  *stripego.AccountParams
}

func (f *fakeAccounts) New(params *stripego.AccountParams) (*stripego.Account, error) {
	f.created = params
	return &stripego.Account{ID: "acct_new"}, nil
}

func (f *fakeAccounts) GetByID(id string, params *stripego.AccountParams) (*stripego.Account, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &stripego.Error{HTTPStatusCode: f.status, Code: "api_error", Msg: "boom"}
	}
	return &stripego.Account{
		ID:               id,
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
	}, nil
}

var fastRetry = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func TestCreateCheckoutSessionPaymentMode(t *testing.T) {
	sessions := &fakeSessions{}
	p := newWithAPI(api{sessions: sessions, accounts: &fakeAccounts{}}, Options{}, zap.NewNop())

	got, err := p.CreateCheckoutSession(context.Background(), domain.SessionConfig{
		IdempotencyKey:       "checkout-1",
		Mode:                 domain.ModePayment,
		Currency:             "EUR",
		ProductName:          "VIP",
		UnitAmount:           920,
		ApplicationFeeAmount: 92,
		Destination:          "acct_123",
		SuccessURL:           "https://makerhub.test/success",
		CancelURL:            "https://makerhub.test/cancel",
		Metadata:             map[string]string{"pageId": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", got.ID)
	assert.Equal(t, "pi_1", got.PaymentIntentID)

	params := sessions.params
	require.NotNil(t, params)
	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "eur", *params.LineItems[0].PriceData.Currency)
	assert.Equal(t, int64(920), *params.LineItems[0].PriceData.UnitAmount)
	assert.Nil(t, params.LineItems[0].PriceData.Recurring)
	assert.Equal(t, int64(92), *params.PaymentIntentData.ApplicationFeeAmount)
	assert.Equal(t, "acct_123", *params.PaymentIntentData.TransferData.Destination)
	assert.Equal(t, "1", params.PaymentIntentData.Metadata["pageId"])
	assert.Equal(t, "checkout-1", *params.IdempotencyKey)
	assert.Nil(t, params.SubscriptionData)
}

func TestCreateCheckoutSessionSubscriptionMode(t *testing.T) {
	sessions := &fakeSessions{}
	p := newWithAPI(api{sessions: sessions, accounts: &fakeAccounts{}}, Options{}, zap.NewNop())

	_, err := p.CreateCheckoutSession(context.Background(), domain.SessionConfig{
		Mode:                  domain.ModeSubscription,
		Currency:              "USD",
		ProductName:           "Quarterly",
		UnitAmount:            3000,
		ApplicationFeePercent: 10,
		Interval:              "month",
		IntervalCount:         3,
		TrialPeriodDays:       7,
		Destination:           "acct_9",
	})
	require.NoError(t, err)

	params := sessions.params
	assert.Equal(t, "subscription", *params.Mode)
	assert.Equal(t, "month", *params.LineItems[0].PriceData.Recurring.Interval)
	assert.Equal(t, int64(3), *params.LineItems[0].PriceData.Recurring.IntervalCount)
	assert.Equal(t, float64(10), *params.SubscriptionData.ApplicationFeePercent)
	assert.Equal(t, int64(7), *params.SubscriptionData.TrialPeriodDays)
	assert.Equal(t, "acct_9", *params.SubscriptionData.TransferData.Destination)
	assert.Nil(t, params.PaymentIntentData)
}

func TestCreateCheckoutSessionIsNotRetried(t *testing.T) {
	sessions := &fakeSessions{err: &stripego.Error{HTTPStatusCode: 500, Code: "api_error", Msg: "upstream"}}
	p := newWithAPI(api{sessions: sessions, accounts: &fakeAccounts{}}, Options{Retry: fastRetry}, zap.NewNop())

	_, err := p.CreateCheckoutSession(context.Background(), domain.SessionConfig{Mode: domain.ModePayment})

	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "api_error", perr.Code)
	assert.Equal(t, 500, perr.HTTPStatus)
	assert.Equal(t, 1, sessions.calls)
}

func TestRetrieveAccountRetriesTransientFailures(t *testing.T) {
	accounts := &fakeAccounts{failures: 2, status: 503}
	p := newWithAPI(api{sessions: &fakeSessions{}, accounts: accounts}, Options{Retry: fastRetry}, zap.NewNop())

	status, err := p.RetrieveAccount(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.True(t, status.ChargesEnabled)
	assert.Equal(t, 3, accounts.calls)
}

func TestRetrieveAccountDoesNotRetryClientErrors(t *testing.T) {
	accounts := &fakeAccounts{failures: 5, status: 404}
	p := newWithAPI(api{sessions: &fakeSessions{}, accounts: accounts}, Options{Retry: fastRetry}, zap.NewNop())

	_, err := p.RetrieveAccount(context.Background(), "acct_missing")

	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 404, perr.HTTPStatus)
	assert.Equal(t, 1, accounts.calls)
}

type fakeLinks struct {
	onboarding *stripego.AccountLinkParams
}

func (f *fakeLinks) New(params *stripego.AccountLinkParams) (*stripego.AccountLink, error) {
	f.onboarding = params
	return &stripego.AccountLink{URL: "https://connect.stripe.com/setup/e/acct_new"}, nil
}

type fakeLoginLinks struct {
	params *stripego.LoginLinkParams
	err    error
}

func (f *fakeLoginLinks) New(params *stripego.LoginLinkParams) (*stripego.LoginLink, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripego.LoginLink{URL: "https://connect.stripe.com/express/acct_new"}, nil
}

func TestCreateAccountRequestsExpressCapabilities(t *testing.T) {
	accounts := &fakeAccounts{}
	p := newWithAPI(api{accounts: accounts}, Options{}, zap.NewNop())

	id, err := p.CreateAccount(context.Background(), domain.AccountRequest{CreatorID: "creator-1", Email: "maker@example.com", Country: "us"})
	require.NoError(t, err)
	assert.Equal(t, "acct_new", id)

	params := accounts.created
	require.NotNil(t, params)
	assert.Equal(t, "express", *params.Type)
	assert.Equal(t, "US", *params.Country)
	assert.Equal(t, "maker@example.com", *params.Email)
	assert.True(t, *params.Capabilities.CardPayments.Requested)
	assert.True(t, *params.Capabilities.Transfers.Requested)
	assert.Equal(t, "creator-1", params.Metadata["creator_id"])
	assert.Equal(t, "account-creator-1", *params.IdempotencyKey)
}

func TestCreateOnboardingLink(t *testing.T) {
	links := &fakeLinks{}
	p := newWithAPI(api{accountLinks: links}, Options{}, zap.NewNop())

	url, err := p.CreateOnboardingLink(context.Background(), domain.OnboardingRequest{
		AccountID:  "acct_new",
		RefreshURL: "https://makerhub.test/onboarding/refresh",
		ReturnURL:  "https://makerhub.test/onboarding/return",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://connect.stripe.com/setup/e/acct_new", url)
	assert.Equal(t, "account_onboarding", *links.onboarding.Type)
	assert.Equal(t, "acct_new", *links.onboarding.Account)
	assert.Equal(t, "https://makerhub.test/onboarding/return", *links.onboarding.ReturnURL)
}

func TestCreateLoginLinkWrapsErrors(t *testing.T) {
	login := &fakeLoginLinks{}
	p := newWithAPI(api{loginLinks: login}, Options{}, zap.NewNop())

	url, err := p.CreateLoginLink(context.Background(), "acct_new")
	require.NoError(t, err)
	assert.Equal(t, "https://connect.stripe.com/express/acct_new", url)
	assert.Equal(t, "acct_new", *login.params.Account)

	login.err = &stripego.Error{HTTPStatusCode: 400, Code: "account_invalid", Msg: "not express"}
	_, err = p.CreateLoginLink(context.Background(), "acct_new")
	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "account_invalid", perr.Code)
}

func TestProviderWithoutKeyIsNotConfigured(t *testing.T) {
	p := New("", Options{}, zap.NewNop())

	_, err := p.CreateCheckoutSession(context.Background(), domain.SessionConfig{Mode: domain.ModePayment})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	_, err = p.RetrieveAccount(context.Background(), "acct_1")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	_, err = p.CreateAccount(context.Background(), domain.AccountRequest{CreatorID: "creator-1"})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	_, err = p.CreateLoginLink(context.Background(), "acct_1")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}
