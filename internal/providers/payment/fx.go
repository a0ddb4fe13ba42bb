package payment

import (
	"time"

	"github.com/smallbiznis/makerhub/internal/config"
	"github.com/smallbiznis/makerhub/internal/providers/payment/domain"
	"github.com/smallbiznis/makerhub/internal/providers/payment/stripe"
	"github.com/smallbiznis/makerhub/internal/retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.payment",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) domain.Provider {
	if cfg.Stripe.SecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is empty, provider calls return not configured")
	}
	return stripe.New(cfg.Stripe.SecretKey, stripe.Options{
		CallTimeout: cfg.Stripe.ProviderTimeout,
		Retry: retry.Policy{
			MaxAttempts:     cfg.Stripe.MaxRetries,
			InitialInterval: 250 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
	}, log)
}
