package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/makerhub/internal/config"
)

// PlatformCommission reads the current platform commission from the holder,
// falling back to DefaultPlatformCommission when none is configured.
func PlatformCommission(holder *config.PricingConfigHolder) decimal.Decimal {
	if holder == nil {
		return DefaultPlatformCommission
	}
	pct := decimal.NewFromFloat(holder.Get().PlatformCommissionPercent)
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return DefaultPlatformCommission
	}
	return pct
}
