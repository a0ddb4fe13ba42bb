package stripe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/makerhub/internal/providers/payment/domain"
	"github.com/smallbiznis/makerhub/internal/retry"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

const providerName = "stripe"

type sessionAPI interface {
	New(params *stripego.CheckoutSessionParams) (*stripego.CheckoutSession, error)
}

type accountAPI interface {
	New(params *stripego.AccountParams) (*stripego.Account, error)
	GetByID(id string, params *stripego.AccountParams) (*stripego.Account, error)
}

type accountLinkAPI interface {
	New(params *stripego.AccountLinkParams) (*stripego.AccountLink, error)
}

type loginLinkAPI interface {
	New(params *stripego.LoginLinkParams) (*stripego.LoginLink, error)
}

type api struct {
	sessions     sessionAPI
	accounts     accountAPI
	accountLinks accountLinkAPI
	loginLinks   loginLinkAPI
}

// Provider calls Stripe with a per-call timeout.
type Provider struct {
	log          *zap.Logger
	sessions     sessionAPI
	accounts     accountAPI
	accountLinks accountLinkAPI
	loginLinks   loginLinkAPI
	opts         Options
	disabled     bool
}

type Options struct {
	CallTimeout time.Duration
	// Retry applies to account reads only.
	Retry retry.Policy
}

// New returns a provider for secretKey. Without a key every call fails
// with domain.ErrNotConfigured.
func New(secretKey string, opts Options, log *zap.Logger) *Provider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	p := newWithAPI(api{
		sessions:     sc.CheckoutSessions,
		accounts:     sc.Accounts,
		accountLinks: sc.AccountLinks,
		loginLinks:   sc.LoginLinks,
	}, opts, log)
	p.disabled = secretKey == ""
	return p
}

func newWithAPI(a api, opts Options, log *zap.Logger) *Provider {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	return &Provider{
		log:          log.Named("providers.stripe"),
		sessions:     a.sessions,
		accounts:     a.accounts,
		accountLinks: a.accountLinks,
		loginLinks:   a.loginLinks,
		opts:         opts,
	}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) CreateCheckoutSession(ctx context.Context, cfg domain.SessionConfig) (*domain.Session, error) {
	if p.disabled {
		return nil, domain.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	params := buildSessionParams(cfg)
	params.Context = ctx
	if cfg.IdempotencyKey != "" {
		params.SetIdempotencyKey(cfg.IdempotencyKey)
	}

	sess, err := p.sessions.New(params)
	if err != nil {
		perr := wrapError(err)
		p.log.Warn("checkout session creation failed",
			zap.String("code", perr.Code),
			zap.Int("http_status", perr.HTTPStatus),
		)
		return nil, perr
	}

	out := &domain.Session{ID: sess.ID, URL: sess.URL}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out, nil
}

func (p *Provider) RetrieveAccount(ctx context.Context, accountID string) (*domain.AccountStatus, error) {
	if p.disabled {
		return nil, domain.ErrNotConfigured
	}
	var acct *stripego.Account
	err := retry.Do(ctx, p.opts.Retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
		defer cancel()

		params := &stripego.AccountParams{}
		params.Context = callCtx
		got, err := p.accounts.GetByID(accountID, params)
		if err != nil {
			perr := wrapError(err)
			if !perr.Transient() {
				return retry.Permanent(perr)
			}
			return perr
		}
		acct = got
		return nil
	})
	if err != nil {
		return nil, err
	}

	status := &domain.AccountStatus{
		AccountID:        acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
	if acct.Requirements != nil {
		status.CurrentlyDue = acct.Requirements.CurrentlyDue
	}
	return status, nil
}

// CreateAccount is not retried: a lost response would leave a second
// account behind.
func (p *Provider) CreateAccount(ctx context.Context, req domain.AccountRequest) (string, error) {
	if p.disabled {
		return "", domain.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	params := &stripego.AccountParams{
		Type: stripego.String(string(stripego.AccountTypeExpress)),
		Capabilities: &stripego.AccountCapabilitiesParams{
			CardPayments: &stripego.AccountCapabilitiesCardPaymentsParams{Requested: stripego.Bool(true)},
			Transfers:    &stripego.AccountCapabilitiesTransfersParams{Requested: stripego.Bool(true)},
		},
		Metadata: map[string]string{"creator_id": req.CreatorID},
	}
	if req.Email != "" {
		params.Email = stripego.String(req.Email)
	}
	if req.Country != "" {
		params.Country = stripego.String(strings.ToUpper(req.Country))
	}
	params.Context = ctx
	if req.CreatorID != "" {
		params.SetIdempotencyKey("account-" + req.CreatorID)
	}

	acct, err := p.accounts.New(params)
	if err != nil {
		perr := wrapError(err)
		p.log.Warn("connected account creation failed",
			zap.String("code", perr.Code),
			zap.Int("http_status", perr.HTTPStatus),
		)
		return "", perr
	}
	return acct.ID, nil
}

func (p *Provider) CreateOnboardingLink(ctx context.Context, req domain.OnboardingRequest) (string, error) {
	if p.disabled {
		return "", domain.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	params := &stripego.AccountLinkParams{
		Account:    stripego.String(req.AccountID),
		RefreshURL: stripego.String(req.RefreshURL),
		ReturnURL:  stripego.String(req.ReturnURL),
		Type:       stripego.String(string(stripego.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx
	link, err := p.accountLinks.New(params)
	if err != nil {
		return "", wrapError(err)
	}
	return link.URL, nil
}

func (p *Provider) CreateLoginLink(ctx context.Context, accountID string) (string, error) {
	if p.disabled {
		return "", domain.ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	params := &stripego.LoginLinkParams{Account: stripego.String(accountID)}
	params.Context = ctx
	link, err := p.loginLinks.New(params)
	if err != nil {
		return "", wrapError(err)
	}
	return link.URL, nil
}

func buildSessionParams(cfg domain.SessionConfig) *stripego.CheckoutSessionParams {
	priceData := &stripego.CheckoutSessionLineItemPriceDataParams{
		Currency: stripego.String(strings.ToLower(cfg.Currency)),
		ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripego.String(cfg.ProductName),
		},
		UnitAmount: stripego.Int64(cfg.UnitAmount),
	}
	if cfg.Description != "" {
		priceData.ProductData.Description = stripego.String(cfg.Description)
	}

	params := &stripego.CheckoutSessionParams{
		Mode:       stripego.String(string(cfg.Mode)),
		SuccessURL: stripego.String(cfg.SuccessURL),
		CancelURL:  stripego.String(cfg.CancelURL),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{PriceData: priceData, Quantity: stripego.Int64(1)},
		},
		Metadata: copyMetadata(cfg.Metadata),
	}
	if cfg.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(cfg.CustomerEmail)
	}

	switch cfg.Mode {
	case domain.ModeSubscription:
		priceData.Recurring = &stripego.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval:      stripego.String(cfg.Interval),
			IntervalCount: stripego.Int64(cfg.IntervalCount),
		}
		params.SubscriptionData = &stripego.CheckoutSessionSubscriptionDataParams{
			ApplicationFeePercent: stripego.Float64(cfg.ApplicationFeePercent),
			TransferData: &stripego.CheckoutSessionSubscriptionDataTransferDataParams{
				Destination: stripego.String(cfg.Destination),
			},
			Metadata: copyMetadata(cfg.Metadata),
		}
		if cfg.TrialPeriodDays > 0 {
			params.SubscriptionData.TrialPeriodDays = stripego.Int64(cfg.TrialPeriodDays)
		}
	default:
		params.PaymentIntentData = &stripego.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripego.Int64(cfg.ApplicationFeeAmount),
			TransferData: &stripego.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripego.String(cfg.Destination),
			},
			Metadata: copyMetadata(cfg.Metadata),
		}
	}
	return params
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func wrapError(err error) *domain.ProviderError {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		return &domain.ProviderError{
			Provider:   providerName,
			Code:       string(stripeErr.Code),
			Message:    stripeErr.Msg,
			HTTPStatus: stripeErr.HTTPStatusCode,
			Err:        err,
		}
	}
	return &domain.ProviderError{
		Provider: providerName,
		Message:  "request failed",
		Err:      err,
	}
}
