package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/makerhub/internal/account/domain"
	"github.com/smallbiznis/makerhub/internal/checkout/domain"
	"github.com/smallbiznis/makerhub/internal/clock"
	"github.com/smallbiznis/makerhub/internal/config"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
	obsmetrics "github.com/smallbiznis/makerhub/internal/observability/metrics"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	plandomain "github.com/smallbiznis/makerhub/internal/plan/domain"
	"github.com/smallbiznis/makerhub/internal/pricing"
	providerdomain "github.com/smallbiznis/makerhub/internal/providers/payment/domain"
	saledomain "github.com/smallbiznis/makerhub/internal/sale/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const checkoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       domain.Repository
	PageSvc    pagedomain.Service
	PlanSvc    plandomain.Service
	AccountSvc accountdomain.Service
	SaleSvc    saledomain.Service
	Converter  currencydomain.Converter
	Provider   providerdomain.Provider
	Pricing    *config.PricingConfigHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics         `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	baseURL    string
	repo       domain.Repository
	pageSvc    pagedomain.Service
	planSvc    plandomain.Service
	accountSvc accountdomain.Service
	saleSvc    saledomain.Service
	converter  currencydomain.Converter
	provider   providerdomain.Provider
	pricing    *config.PricingConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("checkout.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		baseURL:    strings.TrimRight(p.Cfg.BaseURL, "/"),
		repo:       p.Repo,
		pageSvc:    p.PageSvc,
		planSvc:    p.PlanSvc,
		accountSvc: p.AccountSvc,
		saleSvc:    p.SaleSvc,
		converter:  p.Converter,
		provider:   p.Provider,
		pricing:    p.Pricing,
		obsMetrics: p.ObsMetrics,
	}
}

// CreateSession assembles a destination-charge checkout for one plan. The
// provider is called at most once and nothing is stored unless it succeeds.
func (s *Service) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.CreateSessionResponse, error) {
	resp, currency, err := s.createSession(ctx, req)
	s.obsMetrics.RecordCheckoutSession(ctx, currency, outcome(err))
	return resp, err
}

func (s *Service) createSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.CreateSessionResponse, string, error) {
	page, err := s.pageSvc.Resolve(ctx, req.PageID)
	if err != nil {
		return nil, "", err
	}
	planID, err := snowflake.ParseString(strings.TrimSpace(req.PlanID))
	if err != nil {
		return nil, "", domain.ErrInvalidPlanID
	}
	plan, err := s.planSvc.GetPlan(ctx, page.ID, planID)
	if err != nil {
		return nil, "", err
	}

	email := strings.TrimSpace(req.CustomerEmail)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, "", domain.ErrInvalidEmail
		}
	}

	successURL, cancelURL, err := s.redirectURLs(req)
	if err != nil {
		return nil, "", err
	}

	account, err := s.accountSvc.Get(ctx, page.OwnerID)
	if err != nil {
		if errors.Is(err, accountdomain.ErrAccountNotFound) {
			return nil, "", domain.ErrPayoutsNotEnabled
		}
		return nil, "", err
	}
	if !account.CanAcceptCharges() {
		return nil, "", domain.ErrPayoutsNotEnabled
	}

	currency := plan.Currency
	if strings.TrimSpace(req.Currency) != "" {
		cur, err := currencydomain.Lookup(req.Currency)
		if err != nil {
			return nil, "", err
		}
		currency = cur.Code
	}

	commission := pricing.ResolveCommission(plan.CommissionPercent, page.CommissionPercent, pricing.PlatformCommission(s.pricing))
	breakdown, err := s.breakdown(plan, currency, commission)
	if err != nil {
		return nil, currency, err
	}

	if plan.HasLimitedSpots() {
		sold, err := s.saleSvc.CountByPlan(ctx, plan.ID)
		if err != nil {
			return nil, currency, err
		}
		if sold >= int64(plan.LimitedSpots) {
			return nil, currency, domain.ErrSoldOut
		}
	}

	checkoutID := s.genID.Generate()
	metadata := map[string]string{
		domain.MetadataCheckoutID: checkoutID.String(),
		domain.MetadataPageID:     page.ID.String(),
		domain.MetadataPlanID:     plan.ID.String(),
		domain.MetadataCreatorID:  page.OwnerID,
	}

	cfg := providerdomain.SessionConfig{
		IdempotencyKey: checkoutID.String(),
		Currency:       breakdown.Currency,
		ProductName:    fmt.Sprintf("%s - %s", page.Brand, plan.Name),
		Description:    plan.Description,
		UnitAmount:     breakdown.CustomerPaysMinor,
		CustomerEmail:  email,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		Destination:    account.AccountID,
		Metadata:       metadata,
	}
	if plan.BillingPeriod.IsRecurring() {
		cfg.Mode = providerdomain.ModeSubscription
		cfg.Interval, cfg.IntervalCount = plan.BillingPeriod.Interval()
		cfg.ApplicationFeePercent = commission.InexactFloat64()
		if plan.HasFreeTrial() {
			cfg.TrialPeriodDays = int64(plan.FreeTrialDays)
		}
	} else {
		cfg.Mode = providerdomain.ModePayment
		cfg.ApplicationFeeAmount = breakdown.PlatformFeeMinor
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, cfg)
	if err != nil {
		s.log.Warn("provider rejected checkout session",
			zap.String("page_id", page.ID.String()),
			zap.String("plan_id", plan.ID.String()),
			zap.Error(err),
		)
		return nil, currency, err
	}

	meta := datatypes.JSONMap{}
	for k, v := range metadata {
		meta[k] = v
	}
	now := s.clock.Now()
	record := &domain.CheckoutSession{
		ID:                checkoutID,
		Provider:          s.provider.Name(),
		ProviderSessionID: sess.ID,
		PaymentIntentID:   sess.PaymentIntentID,
		PageID:            page.ID,
		PlanID:            plan.ID,
		CreatorID:         page.OwnerID,
		CustomerEmail:     email,
		Mode:              string(cfg.Mode),
		Currency:          breakdown.Currency,
		Amount:            breakdown.CustomerPays,
		CommissionPercent: commission,
		PlatformFee:       breakdown.PlatformFee,
		CreatorReceives:   breakdown.CreatorReceives,
		Status:            domain.StatusPending,
		Metadata:          meta,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		s.log.Error("failed to persist checkout session",
			zap.String("checkout_id", checkoutID.String()),
			zap.String("provider_session_id", sess.ID),
			zap.Error(err),
		)
		return nil, currency, err
	}

	s.log.Info("checkout session created",
		zap.String("checkout_id", checkoutID.String()),
		zap.String("provider_session_id", sess.ID),
		zap.String("currency", breakdown.Currency),
		zap.String("mode", string(cfg.Mode)),
	)
	return &domain.CreateSessionResponse{
		CheckoutID: checkoutID.String(),
		SessionID:  sess.ID,
		URL:        sess.URL,
	}, currency, nil
}

// breakdown prices the plan in the charge currency. A foreign currency
// converts the already discounted final price.
func (s *Service) breakdown(plan *plandomain.PricingPlan, currency string, commission decimal.Decimal) (pricing.Breakdown, error) {
	if currencydomain.Normalize(plan.Currency) == currency {
		return pricing.Calculate(plan.BasePrice, plan.DiscountPercent, commission, currency)
	}
	converted, err := s.converter.Convert(plan.FinalPrice, plan.Currency, currency)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return pricing.Calculate(converted, decimal.Zero, commission, currency)
}

func (s *Service) redirectURLs(req domain.CreateSessionRequest) (string, string, error) {
	success := s.baseURL + "/success?session_id=" + checkoutSessionPlaceholder
	cancel := s.baseURL + "/cancel"

	if v := strings.TrimSpace(req.SuccessURL); v != "" {
		if err := s.checkSameHost(v); err != nil {
			return "", "", err
		}
		success = v
	}
	if v := strings.TrimSpace(req.CancelURL); v != "" {
		if err := s.checkSameHost(v); err != nil {
			return "", "", err
		}
		cancel = v
	}
	return success, cancel, nil
}

func (s *Service) checkSameHost(raw string) error {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return domain.ErrInvalidRedirect
	}
	// the placeholder braces are not valid in a parsed query
	u, err := url.Parse(strings.ReplaceAll(raw, checkoutSessionPlaceholder, "x"))
	if err != nil || u.Scheme != base.Scheme || !strings.EqualFold(u.Host, base.Host) {
		return domain.ErrInvalidRedirect
	}
	return nil
}

func (s *Service) GetByProviderSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	sess, err := s.repo.FindByProviderSession(ctx, s.db, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Resolve finds the session an event refers to.
func (s *Service) Resolve(ctx context.Context, db *gorm.DB, ref domain.SessionRef) (*domain.CheckoutSession, error) {
	if db == nil {
		db = s.db
	}
	if ref.CheckoutID != 0 {
		sess, err := s.repo.FindByID(ctx, db, ref.CheckoutID)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return s.attachIntent(ctx, db, sess, ref.PaymentIntentID)
		}
	}
	if ref.SessionID != "" {
		sess, err := s.repo.FindByProviderSession(ctx, db, ref.SessionID)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return s.attachIntent(ctx, db, sess, ref.PaymentIntentID)
		}
	}
	if ref.PaymentIntentID != "" {
		sess, err := s.repo.FindByPaymentIntent(ctx, db, ref.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

// attachIntent records the payment intent the provider created after the
// session, so later payment_intent events can be matched.
func (s *Service) attachIntent(ctx context.Context, db *gorm.DB, sess *domain.CheckoutSession, intentID string) (*domain.CheckoutSession, error) {
	if intentID == "" || sess.PaymentIntentID != "" {
		return sess, nil
	}
	if err := s.repo.SetPaymentIntent(ctx, db, sess.ID, intentID); err != nil {
		return nil, err
	}
	sess.PaymentIntentID = intentID
	return sess, nil
}

// Transition moves a pending session to status. It reports false when the
// session was already terminal and refreshes sess with the stored status.
func (s *Service) Transition(ctx context.Context, db *gorm.DB, sess *domain.CheckoutSession, status domain.Status) (bool, error) {
	if db == nil {
		db = s.db
	}
	now := s.clock.Now()
	changed, err := s.repo.Transition(ctx, db, sess.ID, status, now)
	if err != nil {
		return false, err
	}
	if changed {
		sess.Status = status
		sess.UpdatedAt = now
		if status == domain.StatusCompleted {
			sess.CompletedAt = &now
		}
		return true, nil
	}

	current, err := s.repo.FindByID(ctx, db, sess.ID)
	if err != nil {
		return false, err
	}
	if current != nil {
		sess.Status = current.Status
		sess.CompletedAt = current.CompletedAt
	}
	return false, nil
}

func outcome(err error) string {
	var perr *providerdomain.ProviderError
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrPayoutsNotEnabled):
		return "payouts_not_enabled"
	case errors.Is(err, domain.ErrSoldOut):
		return "sold_out"
	case errors.As(err, &perr):
		return "provider_error"
	default:
		return "rejected"
	}
}
