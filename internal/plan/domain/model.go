package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MaxPlansPerPage is the hard cap of pricing plans attached to one page.
const MaxPlansPerPage = 3

type BillingPeriod string

const (
	PeriodDay     BillingPeriod = "day"
	PeriodWeek    BillingPeriod = "week"
	PeriodMonth   BillingPeriod = "month"
	PeriodQuarter BillingPeriod = "quarter"
	PeriodYear    BillingPeriod = "year"
	PeriodOnce    BillingPeriod = "once"
)

// IsRecurring reports whether the period bills repeatedly.
func (p BillingPeriod) IsRecurring() bool {
	return p != PeriodOnce
}

// Interval maps the period onto a provider billing interval and count.
// Quarterly plans bill every three months.
func (p BillingPeriod) Interval() (string, int64) {
	switch p {
	case PeriodDay:
		return "day", 1
	case PeriodWeek:
		return "week", 1
	case PeriodQuarter:
		return "month", 3
	case PeriodYear:
		return "year", 1
	default:
		return "month", 1
	}
}

type PricingPlan struct {
	ID                snowflake.ID     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	PageID            snowflake.ID     `json:"pageId" gorm:"not null;index:idx_pricing_plans_page"`
	Position          int              `json:"position" gorm:"not null;default:0"`
	Name              string           `json:"name" gorm:"type:varchar(80);not null"`
	Description       string           `json:"description" gorm:"type:text"`
	BasePrice         decimal.Decimal  `json:"basePrice" gorm:"type:numeric(12,2);not null"`
	Currency          string           `json:"currencyCode" gorm:"type:varchar(3);not null"`
	BillingPeriod     BillingPeriod    `json:"billingPeriod" gorm:"type:varchar(16);not null"`
	DiscountPercent   decimal.Decimal  `json:"discountPercent" gorm:"type:numeric(5,2);not null"`
	FinalPrice        decimal.Decimal  `json:"finalPrice" gorm:"type:numeric(12,2);not null"`
	IsPopular         bool             `json:"isPopular" gorm:"not null;default:false"`
	FreeTrialDays     int              `json:"freeTrialDays" gorm:"not null;default:0"`
	LimitedSpots      int              `json:"limitedSpots" gorm:"not null;default:0"`
	CommissionPercent *decimal.Decimal `json:"commissionPercent,omitempty" gorm:"type:numeric(5,2)"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func (PricingPlan) TableName() string { return "pricing_plans" }

func (p PricingPlan) HasFreeTrial() bool    { return p.FreeTrialDays > 0 }
func (p PricingPlan) HasLimitedSpots() bool { return p.LimitedSpots > 0 }
