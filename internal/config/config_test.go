package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BASE_URL", "https://makerhub.test/")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "")
	t.Setenv("PLATFORM_COMMISSION_PERCENT", "")

	cfg := Load()

	assert.Equal(t, "https://makerhub.test", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Stripe.ProviderTimeout)
	assert.Equal(t, 3, cfg.Stripe.MaxRetries)
	assert.Equal(t, float64(10), cfg.Pricing.PlatformCommissionPercent)
	assert.Equal(t, "*/15 * * * *", cfg.AccountRefreshCron)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PLATFORM_COMMISSION_PERCENT", "12.5")
	t.Setenv("CHECKOUT_BURST", "not-a-number")
	t.Setenv("ENVIRONMENT", "Production")

	cfg := Load()

	assert.Equal(t, 12.5, cfg.Pricing.PlatformCommissionPercent)
	assert.Equal(t, 5, cfg.Redis.CheckoutBurst)
	assert.True(t, cfg.IsProduction())
}

func TestPricingHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("pricing:\n  platformCommissionPercent: 7\n  exchangeRates:\n    EUR: 0.9\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewPricingConfigHolder(Config{Pricing: PricingDefaults{PlatformCommissionPercent: 10}}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, float64(7), got.PlatformCommissionPercent)
	assert.Equal(t, 0.9, got.ExchangeRates["EUR"])
}

func TestPricingHolderFallsBackToDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewPricingConfigHolder(Config{Pricing: PricingDefaults{PlatformCommissionPercent: 10}}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, float64(10), holder.Get().PlatformCommissionPercent)
	assert.Empty(t, holder.Get().ExchangeRates)
}

func TestValidatePricingRejectsBadRates(t *testing.T) {
	err := validatePricing(PricingConfig{PlatformCommissionPercent: 10, ExchangeRates: map[string]float64{"EUR": 0}})
	assert.Error(t, err)

	err = validatePricing(PricingConfig{PlatformCommissionPercent: 120})
	assert.Error(t, err)
}
