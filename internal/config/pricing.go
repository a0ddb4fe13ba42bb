package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingConfig is the hot-reloadable part of pricing: the platform
// commission and optional exchange-rate overrides keyed by ISO code.
type PricingConfig struct {
	PlatformCommissionPercent float64            `mapstructure:"platformCommissionPercent"`
	ExchangeRates             map[string]float64 `mapstructure:"exchangeRates"`
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewPricingConfigHolder loads pricing.yml when present and watches it for
// changes. Without a file the env defaults are used.
func NewPricingConfigHolder(cfg Config, log *zap.Logger) (*PricingConfigHolder, error) {
	log = log.Named("config.pricing")

	v := viper.New()
	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/makerhub")
	v.AddConfigPath(".")

	v.SetDefault("pricing.platformCommissionPercent", cfg.Pricing.PlatformCommissionPercent)

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	loaded, err := decodePricing(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPricingConfigHolder(loaded)
	if !found {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePricing(v)
		if err != nil {
			log.Warn("pricing config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("pricing config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticPricingConfigHolder returns a holder that never reloads.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(normalizePricing(cfg))
	return holder
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func decodePricing(v *viper.Viper) (PricingConfig, error) {
	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return PricingConfig{}, err
	}
	cfg = normalizePricing(cfg)
	if err := validatePricing(cfg); err != nil {
		return PricingConfig{}, err
	}
	return cfg, nil
}

// viper lowercases map keys, currency codes are stored upper case.
func normalizePricing(cfg PricingConfig) PricingConfig {
	rates := make(map[string]float64, len(cfg.ExchangeRates))
	for code, rate := range cfg.ExchangeRates {
		rates[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	cfg.ExchangeRates = rates
	return cfg
}

func validatePricing(cfg PricingConfig) error {
	if cfg.PlatformCommissionPercent < 0 || cfg.PlatformCommissionPercent > 100 {
		return errors.New("pricing.platformCommissionPercent must be within [0,100]")
	}
	for code, rate := range cfg.ExchangeRates {
		if rate <= 0 {
			return fmt.Errorf("pricing.exchangeRates.%s must be positive", code)
		}
	}
	return nil
}
