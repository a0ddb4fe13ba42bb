package domain

import (
	"context"
	"errors"
	"fmt"
)

// Mode is the provider checkout mode.
type Mode string

const (
	ModePayment      Mode = "payment"
	ModeSubscription Mode = "subscription"
)

// SessionConfig is a fully resolved checkout request. All amounts are minor
// units of Currency.
type SessionConfig struct {
	IdempotencyKey string
	Mode           Mode
	Currency       string
	ProductName    string
	Description    string
	UnitAmount     int64
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	Destination    string

	// payment mode
	ApplicationFeeAmount int64

	// subscription mode
	ApplicationFeePercent float64
	Interval              string
	IntervalCount         int64
	TrialPeriodDays       int64

	Metadata map[string]string
}

type Session struct {
	ID              string
	URL             string
	PaymentIntentID string
}

// AccountStatus is the capability snapshot of a connected account.
type AccountStatus struct {
	AccountID        string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	CurrentlyDue     []string
}

// AccountRequest opens a new connected account for a creator.
type AccountRequest struct {
	CreatorID string
	Email     string
	Country   string
}

// OnboardingRequest asks for a hosted onboarding link.
type OnboardingRequest struct {
	AccountID  string
	RefreshURL string
	ReturnURL  string
}

// Provider is the payment processor collaborator.
type Provider interface {
	Name() string
	// CreateCheckoutSession is called once per request, never retried blindly.
	CreateCheckoutSession(ctx context.Context, cfg SessionConfig) (*Session, error)
	// RetrieveAccount is an idempotent read and may be retried.
	RetrieveAccount(ctx context.Context, accountID string) (*AccountStatus, error)
	// CreateAccount opens an express account and returns its id.
	CreateAccount(ctx context.Context, req AccountRequest) (string, error)
	CreateOnboardingLink(ctx context.Context, req OnboardingRequest) (string, error)
	CreateLoginLink(ctx context.Context, accountID string) (string, error)
}

// ErrNotConfigured is returned by every call when no secret key is set.
var ErrNotConfigured = errors.New("payment_provider_not_configured")

// ProviderError preserves the processor's failure code.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports failures worth retrying for idempotent reads.
func (e *ProviderError) Transient() bool {
	return e.HTTPStatus == 0 || e.HTTPStatus == 429 || e.HTTPStatus >= 500
}
