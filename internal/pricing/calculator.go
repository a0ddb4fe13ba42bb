// Package pricing computes what a customer pays and how a charge splits
// between the platform and the creator.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
)

var ErrOutOfRange = errors.New("out_of_range")

var hundred = decimal.NewFromInt(100)

// DefaultPlatformCommission applies when neither plan nor page override it.
var DefaultPlatformCommission = decimal.NewFromInt(10)

// Breakdown is the result of applying a discount and a commission to a base
// price. CustomerPays == PlatformFee + CreatorReceives always holds.
type Breakdown struct {
	Currency        string          `json:"currency"`
	BasePrice       decimal.Decimal `json:"basePrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	CommissionPct   decimal.Decimal `json:"commissionPercent"`
	CustomerPays    decimal.Decimal `json:"customerPays"`
	PlatformFee     decimal.Decimal `json:"platformFee"`
	CreatorReceives decimal.Decimal `json:"creatorReceives"`

	CustomerPaysMinor    int64 `json:"customerPaysMinor"`
	PlatformFeeMinor     int64 `json:"platformFeeMinor"`
	CreatorReceivesMinor int64 `json:"creatorReceivesMinor"`
}

// Calculate applies discountPct to base and splits the result by commissionPct.
// Each derived amount is rounded half-up at the currency precision and the
// creator share is the exact remainder.
func Calculate(base, discountPct, commissionPct decimal.Decimal, currency string) (Breakdown, error) {
	if base.IsNegative() {
		return Breakdown{}, currencydomain.ErrInvalidAmount
	}
	if !inPercentRange(discountPct) || !inPercentRange(commissionPct) {
		return Breakdown{}, ErrOutOfRange
	}
	cur, err := currencydomain.Lookup(currency)
	if err != nil {
		return Breakdown{}, err
	}

	customerPays := ApplyDiscount(cur, base, discountPct)
	platformFee := cur.Round(customerPays.Mul(commissionPct).Div(hundred))
	creatorReceives := customerPays.Sub(platformFee)

	return Breakdown{
		Currency:             cur.Code,
		BasePrice:            base,
		DiscountPercent:      discountPct,
		CommissionPct:        commissionPct,
		CustomerPays:         customerPays,
		PlatformFee:          platformFee,
		CreatorReceives:      creatorReceives,
		CustomerPaysMinor:    cur.ToMinorUnits(customerPays),
		PlatformFeeMinor:     cur.ToMinorUnits(platformFee),
		CreatorReceivesMinor: cur.ToMinorUnits(creatorReceives),
	}, nil
}

// ApplyDiscount returns base reduced by discountPct at the currency precision.
func ApplyDiscount(cur currencydomain.Currency, base, discountPct decimal.Decimal) decimal.Decimal {
	factor := hundred.Sub(discountPct).Div(hundred)
	return cur.Round(base.Mul(factor))
}

// ResolveCommission picks the most specific commission: the plan override,
// then the page override, then the platform default.
func ResolveCommission(plan, page *decimal.Decimal, platform decimal.Decimal) decimal.Decimal {
	switch {
	case plan != nil:
		return *plan
	case page != nil:
		return *page
	default:
		return platform
	}
}

func inPercentRange(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}
