package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/makerhub/internal/clock"
	"github.com/smallbiznis/makerhub/internal/config"
	obsmetrics "github.com/smallbiznis/makerhub/internal/observability/metrics"
	"github.com/smallbiznis/makerhub/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/makerhub/internal/payment/domain"
	paymentservice "github.com/smallbiznis/makerhub/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Cfg        config.Config
	PaymentSvc *paymentservice.Service
	Adapters   *adapters.Registry
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	secrets    map[string]string
	paymentSvc *paymentservice.Service
	adapters   *adapters.Registry
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		log:   p.Log.Named("payment.webhook"),
		clock: p.Clock,
		secrets: map[string]string{
			"stripe": strings.TrimSpace(p.Cfg.Stripe.WebhookSecret),
		},
		paymentSvc: p.PaymentSvc,
		adapters:   p.Adapters,
		obsMetrics: p.ObsMetrics,
	}
}

// IngestWebhook authenticates the raw body, then parses and applies it.
// Ignored and already processed events return nil so the provider stops
// redelivering them.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}

	adapter, err := s.adapters.NewAdapter(provider, paymentdomain.AdapterConfig{
		Provider:      provider,
		WebhookSecret: s.secrets[provider],
		Now:           s.clock.Now,
	})
	if err != nil {
		s.log.Error("webhook adapter unavailable", zap.String("provider", provider), zap.Error(err))
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider))
		s.obsMetrics.RecordWebhookEvent(ctx, provider, "unknown", "invalid_signature")
		return paymentdomain.ErrInvalidSignature
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.obsMetrics.RecordWebhookEvent(ctx, provider, "ignored", "ignored")
			return nil
		}
		return err
	}
	event.Provider = provider
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	started := s.clock.Now()
	outcome, err := s.paymentSvc.ProcessEvent(ctx, event)
	if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		s.obsMetrics.RecordWebhookEvent(ctx, provider, event.Type, outcome)
		return nil
	}
	if err != nil {
		s.log.Error("webhook processing failed",
			zap.String("provider", provider),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		s.obsMetrics.RecordWebhookEvent(ctx, provider, event.Type, "error")
		return err
	}

	s.obsMetrics.RecordWebhookEvent(ctx, provider, event.Type, outcome)
	s.log.Info("webhook processed",
		zap.String("provider", provider),
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("event_type", event.Type),
		zap.String("outcome", outcome),
		zap.Duration("took", s.clock.Now().Sub(started).Round(time.Millisecond)),
	)
	return nil
}
