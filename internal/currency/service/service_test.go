package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/makerhub/internal/config"
	"github.com/smallbiznis/makerhub/internal/currency/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestConvertUSDToEUR(t *testing.T) {
	svc := NewStatic()

	got, err := svc.Convert(d("10"), "USD", "EUR")
	require.NoError(t, err)
	assert.True(t, got.Equal(d("9.20")), got.String())
}

func TestConvertToZeroDecimalCurrencyRoundsToWholeUnits(t *testing.T) {
	svc := NewStatic()

	got, err := svc.Convert(d("9.99"), "USD", "JPY")
	require.NoError(t, err)
	// 9.99 * 150.50 = 1503.495
	assert.True(t, got.Equal(d("1503")), got.String())
	assert.True(t, got.Equal(got.Truncate(0)))

	got, err = svc.Convert(d("999.5"), "JPY", "JPY")
	require.NoError(t, err)
	assert.True(t, got.Equal(d("1000")), got.String())
}

func TestConvertRejectsBadInput(t *testing.T) {
	svc := NewStatic()

	_, err := svc.Convert(d("-1"), "USD", "EUR")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Convert(d("1"), "USD", "XYZ")
	assert.ErrorIs(t, err, domain.ErrUnknownCurrency)

	_, err = svc.Convert(d("1"), "XYZ", "USD")
	assert.ErrorIs(t, err, domain.ErrUnknownCurrency)
}

func TestConvertRoundTripWithinOneMinorUnit(t *testing.T) {
	svc := NewStatic()
	amounts := []string{"0", "0.01", "1", "9.99", "19.99", "49.50", "100", "1234.56", "99999.99"}
	codes := domain.Codes()

	for _, a := range amounts {
		for _, from := range codes {
			source, _ := domain.Lookup(from)
			start := source.Round(d(a))
			for _, to := range codes {
				there, err := svc.Convert(start, from, to)
				require.NoError(t, err)
				back, err := svc.Convert(there, to, from)
				require.NoError(t, err)

				// one minor unit of each side, expressed in the source currency
				minorTarget, err := svc.Convert(minorUnit(to), to, from)
				require.NoError(t, err)
				tolerance := minorUnit(from).Add(minorTarget)

				assert.True(t, back.Sub(start).Abs().LessThanOrEqual(tolerance),
					"%s %s -> %s -> %s %s", start, from, to, back, from)
			}
		}
	}
}

func minorUnit(code string) decimal.Decimal {
	c, _ := domain.Lookup(code)
	return decimal.New(1, -c.Decimals)
}

func TestRateOverrideFromPricingConfig(t *testing.T) {
	holder := config.NewStaticPricingConfigHolder(config.PricingConfig{
		PlatformCommissionPercent: 10,
		ExchangeRates:             map[string]float64{"eur": 0.5},
	})
	svc := New(Params{Log: zap.NewNop(), Pricing: holder})

	got, err := svc.Convert(d("10"), "USD", "EUR")
	require.NoError(t, err)
	assert.True(t, got.Equal(d("5")), got.String())

	var eur domain.Currency
	for _, c := range svc.List() {
		if c.Code == "EUR" {
			eur = c
		}
	}
	assert.True(t, eur.USDRate.Equal(d("0.5")))
}
