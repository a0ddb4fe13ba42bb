package domain

import "github.com/shopspring/decimal"

// Converter converts amounts between supported currencies using the
// current rate snapshot.
type Converter interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
	Rate(code string) (decimal.Decimal, error)
	List() []Currency
}
