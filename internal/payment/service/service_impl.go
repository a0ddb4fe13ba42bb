package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	checkoutdomain "github.com/smallbiznis/makerhub/internal/checkout/domain"
	"github.com/smallbiznis/makerhub/internal/clock"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
	"github.com/smallbiznis/makerhub/internal/events"
	leaddomain "github.com/smallbiznis/makerhub/internal/lead/domain"
	obsmetrics "github.com/smallbiznis/makerhub/internal/observability/metrics"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	paymentdomain "github.com/smallbiznis/makerhub/internal/payment/domain"
	plandomain "github.com/smallbiznis/makerhub/internal/plan/domain"
	"github.com/smallbiznis/makerhub/internal/providers/email"
	"github.com/smallbiznis/makerhub/internal/retry"
	saledomain "github.com/smallbiznis/makerhub/internal/sale/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outcomes reported for a processed event.
const (
	OutcomeApplied   = "applied"
	OutcomeStale     = "stale"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmatched = "unmatched"
	OutcomeDeclined  = "declined"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	CheckoutSvc checkoutdomain.Service
	SaleSvc     saledomain.Service
	LeadSvc     leaddomain.Service
	PageSvc     pagedomain.Service
	PlanSvc     plandomain.Service
	Publisher   events.Publisher
	Mailer      email.Provider
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
	Retry       retry.Policy        `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	checkoutSvc checkoutdomain.Service
	saleSvc     saledomain.Service
	leadSvc     leaddomain.Service
	pageSvc     pagedomain.Service
	planSvc     plandomain.Service
	publisher   events.Publisher
	mailer      email.Provider
	obsMetrics  *obsmetrics.Metrics
	retry       retry.Policy
}

func NewService(p Params) *Service {
	policy := p.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	mailer := p.Mailer
	if mailer == nil {
		mailer = email.NoOpProvider{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		checkoutSvc: p.CheckoutSvc,
		saleSvc:     p.SaleSvc,
		leadSvc:     p.LeadSvc,
		pageSvc:     p.PageSvc,
		planSvc:     p.PlanSvc,
		publisher:   publisher,
		mailer:      mailer,
		obsMetrics:  p.ObsMetrics,
		retry:       policy,
	}
}

// ProcessEvent applies a verified checkout event exactly once. The ledger
// row is marked processed only after every required step succeeded, so a
// failed run is resumed by the provider's redelivery.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.CheckoutEvent) (string, error) {
	if err := validateEvent(event); err != nil {
		return "", err
	}

	payload := event.RawPayload
	if !json.Valid(payload) {
		return "", paymentdomain.ErrInvalidPayload
	}

	now := s.clock.Now()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		SessionID:       event.SessionID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return "", err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return "", err
		}
		if stored == nil {
			return "", paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return OutcomeDuplicate, paymentdomain.ErrEventAlreadyProcessed
		}
	}

	outcome, err := s.apply(ctx, event)
	if err != nil {
		return "", err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now()); err != nil {
		return "", err
	}
	return outcome, nil
}

func validateEvent(event *paymentdomain.CheckoutEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.SessionID == "" && event.PaymentIntentID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	switch event.Type {
	case paymentdomain.EventTypeCheckoutCompleted,
		paymentdomain.EventTypeCheckoutFailed,
		paymentdomain.EventTypeCheckoutCanceled,
		paymentdomain.EventTypePaymentDeclined:
	default:
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}

func (s *Service) apply(ctx context.Context, event *paymentdomain.CheckoutEvent) (string, error) {
	sess, err := s.checkoutSvc.Resolve(ctx, s.db, checkoutdomain.SessionRef{
		CheckoutID:      checkoutdomain.CheckoutIDFromMetadata(event.Metadata),
		SessionID:       event.SessionID,
		PaymentIntentID: event.PaymentIntentID,
	})
	if err != nil {
		if errors.Is(err, checkoutdomain.ErrSessionNotFound) {
			s.log.Warn("checkout event for unknown session",
				zap.String("provider", event.Provider),
				zap.String("provider_event_id", event.ProviderEventID),
				zap.String("session_id", event.SessionID),
			)
			return OutcomeUnmatched, nil
		}
		return "", err
	}

	if event.Type == paymentdomain.EventTypePaymentDeclined {
		s.log.Info("payment attempt declined",
			zap.String("checkout_id", sess.ID.String()),
			zap.String("status", string(sess.Status)),
			zap.String("payment_intent_id", event.PaymentIntentID),
		)
		return OutcomeDeclined, nil
	}

	target := statusFor(event.Type)
	changed, err := s.checkoutSvc.Transition(ctx, s.db, sess, target)
	if err != nil {
		return "", err
	}
	if !changed && sess.Status != target {
		s.log.Info("stale checkout event ignored",
			zap.String("checkout_id", sess.ID.String()),
			zap.String("status", string(sess.Status)),
			zap.String("event_type", event.Type),
		)
		return OutcomeStale, nil
	}
	if target != checkoutdomain.StatusCompleted {
		if !changed {
			return OutcomeDuplicate, nil
		}
		return OutcomeApplied, nil
	}

	// completed, either now or on an earlier delivery that did not finish
	if err := s.completeSale(ctx, sess, event); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func statusFor(eventType string) checkoutdomain.Status {
	switch eventType {
	case paymentdomain.EventTypeCheckoutCompleted:
		return checkoutdomain.StatusCompleted
	case paymentdomain.EventTypeCheckoutFailed:
		return checkoutdomain.StatusFailed
	default:
		return checkoutdomain.StatusCanceled
	}
}

// completeSale runs the post-payment steps. Each one is idempotent on its
// own so a replay only performs what is still missing.
func (s *Service) completeSale(ctx context.Context, sess *checkoutdomain.CheckoutSession, event *paymentdomain.CheckoutEvent) error {
	customerEmail := strings.TrimSpace(event.CustomerEmail)
	if customerEmail == "" {
		customerEmail = sess.CustomerEmail
	}

	sale := &saledomain.Sale{
		ID:              s.genID.Generate(),
		CheckoutID:      sess.ID,
		SessionID:       sess.ProviderSessionID,
		PageID:          sess.PageID,
		PlanID:          sess.PlanID,
		CreatorID:       sess.CreatorID,
		CustomerEmail:   customerEmail,
		Amount:          sess.Amount,
		Currency:        sess.Currency,
		PlatformFee:     sess.PlatformFee,
		CreatorReceives: sess.CreatorReceives,
		CreatedAt:       s.clock.Now(),
	}
	var saleInserted bool
	if err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		saleInserted, err = s.saleSvc.Record(ctx, sale)
		return err
	}); err != nil {
		return fmt.Errorf("record sale: %w", err)
	}
	if saleInserted {
		s.obsMetrics.RecordSale(ctx, sale.Currency)
		s.log.Info("sale recorded",
			zap.String("sale_id", sale.ID.String()),
			zap.String("checkout_id", sess.ID.String()),
			zap.String("currency", sale.Currency),
		)
	}

	if customerEmail != "" {
		if err := s.applyEffect(ctx, sess.ID, paymentdomain.EffectLead, func(tx *gorm.DB) error {
			_, err := s.leadSvc.RecordPurchase(ctx, tx, leaddomain.Purchase{
				CreatorID: sess.CreatorID,
				PageID:    sess.PageID,
				Email:     customerEmail,
				At:        s.clock.Now(),
			})
			if errors.Is(err, leaddomain.ErrInvalidEmail) {
				s.log.Warn("skipping lead with invalid email", zap.String("checkout_id", sess.ID.String()))
				return nil
			}
			return err
		}); err != nil {
			return fmt.Errorf("record lead: %w", err)
		}
	}

	if err := s.applyEffect(ctx, sess.ID, paymentdomain.EffectConversion, func(tx *gorm.DB) error {
		return s.pageSvc.IncrementConversions(ctx, tx, sess.PageID)
	}); err != nil {
		return fmt.Errorf("count conversion: %w", err)
	}

	return s.notify(ctx, sess, customerEmail)
}

// applyEffect runs fn together with its marker in one transaction. A
// present marker means fn already ran.
func (s *Service) applyEffect(ctx context.Context, checkoutID snowflake.ID, effect string, fn func(tx *gorm.DB) error) error {
	return retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			fresh, err := s.repo.InsertEffect(ctx, tx, checkoutID, effect, s.clock.Now())
			if err != nil {
				return err
			}
			if !fresh {
				return nil
			}
			return fn(tx)
		})
	})
}

type saleDetails struct {
	brand      string
	channelURL string
	planName   string
	period     string
}

// notify publishes the sale event, then emails the buyer. The publish
// marker is released when the broker rejects the event so the provider's
// redelivery publishes it again. The email is sent at most once.
func (s *Service) notify(ctx context.Context, sess *checkoutdomain.CheckoutSession, customerEmail string) error {
	details := s.saleDetails(ctx, sess)

	fresh, err := s.repo.InsertEffect(ctx, s.db, sess.ID, paymentdomain.EffectNotify, s.clock.Now())
	if err != nil {
		return fmt.Errorf("claim sale event: %w", err)
	}
	if fresh {
		if err := s.publishSale(ctx, sess, customerEmail, details); err != nil {
			if relErr := s.repo.DeleteEffect(context.WithoutCancel(ctx), s.db, sess.ID, paymentdomain.EffectNotify); relErr != nil {
				s.log.Error("failed to release sale event marker",
					zap.String("checkout_id", sess.ID.String()),
					zap.Error(relErr),
				)
			}
			return fmt.Errorf("publish sale event: %w", err)
		}
	}

	s.sendConfirmation(ctx, sess, customerEmail, details)
	return nil
}

func (s *Service) saleDetails(ctx context.Context, sess *checkoutdomain.CheckoutSession) saleDetails {
	var out saleDetails
	if page, err := s.pageSvc.Get(ctx, sess.PageID); err == nil {
		out.brand, out.channelURL = page.Brand, page.ChannelURL
	} else {
		s.log.Warn("page lookup failed for notification", zap.String("page_id", sess.PageID.String()), zap.Error(err))
	}
	if plan, err := s.planSvc.GetPlan(ctx, sess.PageID, sess.PlanID); err == nil {
		out.planName, out.period = plan.Name, string(plan.BillingPeriod)
	}
	return out
}

func (s *Service) publishSale(ctx context.Context, sess *checkoutdomain.CheckoutSession, customerEmail string, details saleDetails) error {
	saleID := ""
	if sale, err := s.saleSvc.FindBySession(ctx, sess.ProviderSessionID); err == nil && sale != nil {
		saleID = sale.ID.String()
	}

	evt := events.NewSaleCompleted(ctx, s.clock.Now(), events.SaleCompleted{
		SaleID:        saleID,
		CheckoutID:    sess.ID.String(),
		PageID:        sess.PageID.String(),
		PlanID:        sess.PlanID.String(),
		CreatorID:     sess.CreatorID,
		CustomerEmail: customerEmail,
		ChannelURL:    details.channelURL,
		BillingPeriod: details.period,
		Amount:        plainAmount(sess.Currency, sess.Amount),
		Currency:      sess.Currency,
	})
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, events.RoutingKeySaleCompleted, evt)
	})
	if err != nil {
		s.log.Warn("failed to publish sale event",
			zap.String("checkout_id", sess.ID.String()),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Error(err),
		)
	}
	return err
}

func (s *Service) sendConfirmation(ctx context.Context, sess *checkoutdomain.CheckoutSession, customerEmail string, details saleDetails) {
	if customerEmail == "" {
		return
	}
	fresh, err := s.repo.InsertEffect(ctx, s.db, sess.ID, paymentdomain.EffectEmail, s.clock.Now())
	if err != nil {
		s.log.Warn("failed to claim confirmation", zap.String("checkout_id", sess.ID.String()), zap.Error(err))
		return
	}
	if !fresh {
		return
	}

	amount := sess.Amount.String()
	if cur, err := currencydomain.Lookup(sess.Currency); err == nil {
		amount = cur.Format(sess.Amount)
	}
	msg, err := email.RenderPurchaseConfirmation(customerEmail, email.PurchaseConfirmation{
		Brand:      details.brand,
		PlanName:   details.planName,
		Amount:     amount,
		ChannelURL: details.channelURL,
	})
	if err != nil {
		s.log.Warn("failed to render confirmation", zap.Error(err))
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn("failed to send confirmation", zap.String("checkout_id", sess.ID.String()), zap.Error(err))
	}
}

func plainAmount(code string, amount decimal.Decimal) string {
	cur, err := currencydomain.Lookup(code)
	if err != nil {
		return amount.StringFixed(2)
	}
	return cur.Plain(amount)
}
