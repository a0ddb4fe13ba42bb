package service

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/makerhub/internal/config"
	"github.com/smallbiznis/makerhub/internal/currency/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Pricing *config.PricingConfigHolder `optional:"true"`
}

// Service converts through USD using the static table, with rate
// overrides read from the pricing holder on every call.
type Service struct {
	log     *zap.Logger
	pricing *config.PricingConfigHolder
}

func New(p Params) domain.Converter {
	return &Service{
		log:     p.Log.Named("currency.service"),
		pricing: p.Pricing,
	}
}

// NewStatic returns a converter that only uses the built-in rates.
func NewStatic() *Service {
	return &Service{log: zap.NewNop()}
}

func (s *Service) Rate(code string) (decimal.Decimal, error) {
	c, err := domain.Lookup(code)
	if err != nil {
		return decimal.Zero, err
	}
	if s.pricing != nil {
		if override, ok := s.pricing.Get().ExchangeRates[c.Code]; ok && override > 0 {
			return decimal.NewFromFloat(override), nil
		}
	}
	return c.USDRate, nil
}

// Convert returns amount*rate(to)/rate(from) rounded half-up to the target
// precision. Converting to the same currency only rounds.
func (s *Service) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	target, err := domain.Lookup(to)
	if err != nil {
		return decimal.Zero, err
	}
	source, err := domain.Lookup(from)
	if err != nil {
		return decimal.Zero, err
	}
	if source.Code == target.Code {
		return target.Round(amount), nil
	}

	fromRate, err := s.Rate(source.Code)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := s.Rate(target.Code)
	if err != nil {
		return decimal.Zero, err
	}

	// multiply first so intermediate precision is not lost in the division
	converted := amount.Mul(toRate).DivRound(fromRate, 16)
	return target.Round(converted), nil
}

// List returns the table with the effective rates.
func (s *Service) List() []domain.Currency {
	all := domain.All()
	for i := range all {
		if rate, err := s.Rate(all[i].Code); err == nil {
			all[i].USDRate = rate
		}
	}
	return all
}
