package domain

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownCurrency = errors.New("unknown_currency")
	ErrInvalidAmount   = errors.New("invalid_amount")
)

// Currency is an immutable row of the supported currency table.
// USDRate is the number of units of this currency per one USD.
type Currency struct {
	Code     string          `json:"code"`
	Symbol   string          `json:"symbol"`
	Decimals int32           `json:"decimals"`
	Locale   string          `json:"locale"`
	USDRate  decimal.Decimal `json:"rate"`
}

var table = map[string]Currency{
	"USD": {Code: "USD", Symbol: "$", Decimals: 2, Locale: "en-US", USDRate: decimal.RequireFromString("1")},
	"EUR": {Code: "EUR", Symbol: "€", Decimals: 2, Locale: "fr-FR", USDRate: decimal.RequireFromString("0.92")},
	"JPY": {Code: "JPY", Symbol: "¥", Decimals: 0, Locale: "ja-JP", USDRate: decimal.RequireFromString("150.50")},
	"GBP": {Code: "GBP", Symbol: "£", Decimals: 2, Locale: "en-GB", USDRate: decimal.RequireFromString("0.79")},
	"AUD": {Code: "AUD", Symbol: "A$", Decimals: 2, Locale: "en-AU", USDRate: decimal.RequireFromString("1.52")},
	"CAD": {Code: "CAD", Symbol: "C$", Decimals: 2, Locale: "en-CA", USDRate: decimal.RequireFromString("1.36")},
	"CHF": {Code: "CHF", Symbol: "CHF", Decimals: 2, Locale: "fr-CH", USDRate: decimal.RequireFromString("0.91")},
	"CNY": {Code: "CNY", Symbol: "¥", Decimals: 2, Locale: "zh-CN", USDRate: decimal.RequireFromString("7.24")},
	"SGD": {Code: "SGD", Symbol: "S$", Decimals: 2, Locale: "en-SG", USDRate: decimal.RequireFromString("1.35")},
	"SEK": {Code: "SEK", Symbol: "kr", Decimals: 2, Locale: "sv-SE", USDRate: decimal.RequireFromString("10.52")},
	"NOK": {Code: "NOK", Symbol: "kr", Decimals: 2, Locale: "nb-NO", USDRate: decimal.RequireFromString("10.68")},
	"KRW": {Code: "KRW", Symbol: "₩", Decimals: 0, Locale: "ko-KR", USDRate: decimal.RequireFromString("1332.50")},
	"BRL": {Code: "BRL", Symbol: "R$", Decimals: 2, Locale: "pt-BR", USDRate: decimal.RequireFromString("4.95")},
}

// Lookup finds a currency by ISO code, case-insensitively.
func Lookup(code string) (Currency, error) {
	c, ok := table[Normalize(code)]
	if !ok {
		return Currency{}, ErrUnknownCurrency
	}
	return c, nil
}

func IsSupported(code string) bool {
	_, ok := table[Normalize(code)]
	return ok
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// All returns the table sorted by code.
func All() []Currency {
	out := make([]Currency, 0, len(table))
	for _, c := range table {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func Codes() []string {
	all := All()
	codes := make([]string, len(all))
	for i, c := range all {
		codes[i] = c.Code
	}
	return codes
}

// Round rounds half away from zero to the currency precision.
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.Decimals)
}

// ToMinorUnits converts a major-unit amount to the integer the payment
// provider expects (cents for 2-decimal currencies, whole yen for JPY).
func (c Currency) ToMinorUnits(amount decimal.Decimal) int64 {
	return c.Round(amount).Shift(c.Decimals).IntPart()
}

func (c Currency) FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -c.Decimals)
}

// Plain renders the amount at the currency precision without a symbol,
// e.g. "9.99" or "1500" for JPY.
func (c Currency) Plain(amount decimal.Decimal) string {
	return c.Round(amount).StringFixed(c.Decimals)
}

// Format renders symbol and amount at the currency precision, e.g. "€9.99".
func (c Currency) Format(amount decimal.Decimal) string {
	return c.Symbol + c.Plain(amount)
}
