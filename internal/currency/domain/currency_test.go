package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	c, err := Lookup(" eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", c.Code)
	assert.Equal(t, "€", c.Symbol)

	_, err = Lookup("XYZ")
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestAllIsSortedAndComplete(t *testing.T) {
	codes := Codes()
	assert.Len(t, codes, 13)
	assert.Equal(t, "AUD", codes[0])
	assert.Equal(t, "USD", codes[len(codes)-1])
	for _, c := range All() {
		assert.True(t, c.USDRate.IsPositive(), c.Code)
	}
}

func TestMinorUnits(t *testing.T) {
	usd, _ := Lookup("USD")
	jpy, _ := Lookup("JPY")

	assert.Equal(t, int64(999), usd.ToMinorUnits(decimal.RequireFromString("9.99")))
	assert.Equal(t, int64(1000), jpy.ToMinorUnits(decimal.RequireFromString("999.5")))
	assert.True(t, usd.FromMinorUnits(1999).Equal(decimal.RequireFromString("19.99")))
	assert.True(t, jpy.FromMinorUnits(1500).Equal(decimal.NewFromInt(1500)))
}

func TestFormat(t *testing.T) {
	eur, _ := Lookup("EUR")
	krw, _ := Lookup("KRW")

	assert.Equal(t, "€9.20", eur.Format(decimal.RequireFromString("9.2")))
	assert.Equal(t, "₩13325", krw.Format(decimal.RequireFromString("13325.4")))
}

func TestPlainUsesCurrencyPrecision(t *testing.T) {
	jpy, _ := Lookup("JPY")
	usd, _ := Lookup("USD")

	assert.Equal(t, "1505", jpy.Plain(decimal.RequireFromString("1505")))
	assert.Equal(t, "12.50", usd.Plain(decimal.RequireFromString("12.5")))
}
