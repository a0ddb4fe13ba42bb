package domain

import (
	"math"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() PlanInput {
	return PlanInput{
		Name:            "Monthly",
		BasePrice:       100,
		CurrencyCode:    "usd",
		BillingPeriod:   "month",
		DiscountPercent: 20,
	}
}

func fields(err error) map[string]string {
	out := map[string]string{}
	var verrs ValidationErrors
	if errs, ok := err.(ValidationErrors); ok {
		verrs = errs
	}
	for _, e := range verrs {
		out[e.Field] = e.Code
	}
	return out
}

func TestValidateAcceptsAndNormalizes(t *testing.T) {
	in := validInput()
	in.HasFreeTrial = false
	in.FreeTrialDays = 14 // ignored without the flag

	valid, err := Validate(in)
	require.NoError(t, err)

	plan := valid.Build(snowflake.ID(2), snowflake.ID(1), 0, time.Unix(0, 0))
	assert.Equal(t, "USD", plan.Currency)
	assert.True(t, plan.FinalPrice.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, 0, plan.FreeTrialDays)
	assert.Equal(t, snowflake.ID(1), plan.PageID)
	assert.Nil(t, plan.CommissionPercent)
}

func TestValidateCollectsAllViolations(t *testing.T) {
	commission := 150.0
	in := PlanInput{
		Name:              "",
		BasePrice:         -5,
		CurrencyCode:      "XYZ",
		BillingPeriod:     "fortnight",
		DiscountPercent:   120,
		HasFreeTrial:      true,
		FreeTrialDays:     0,
		HasLimitedSpots:   true,
		LimitedSpots:      1_000_000,
		CommissionPercent: &commission,
	}

	_, err := Validate(in)
	require.Error(t, err)

	got := fields(err)
	assert.Equal(t, map[string]string{
		"name":              "required",
		"basePrice":         "invalid_amount",
		"currencyCode":      "unknown_currency",
		"billingPeriod":     "invalid_value",
		"discountPercent":   "out_of_range",
		"freeTrialDays":     "out_of_range",
		"limitedSpots":      "out_of_range",
		"commissionPercent": "out_of_range",
	}, got)
}

func TestValidateRejectsNonFinitePrice(t *testing.T) {
	in := validInput()
	in.BasePrice = math.NaN()

	_, err := Validate(in)
	require.Error(t, err)
	verrs := err.(ValidationErrors)
	require.Len(t, verrs, 1)
	assert.Equal(t, "basePrice", verrs[0].Field)
	assert.Equal(t, "invalid_amount", verrs[0].Code)
}

func TestValidateTrialAndSpotBounds(t *testing.T) {
	in := validInput()
	in.HasFreeTrial = true
	in.FreeTrialDays = 90
	in.HasLimitedSpots = true
	in.LimitedSpots = 1

	valid, err := Validate(in)
	require.NoError(t, err)
	plan := valid.Plan()
	assert.Equal(t, 90, plan.FreeTrialDays)
	assert.Equal(t, 1, plan.LimitedSpots)

	in.FreeTrialDays = 91
	_, err = Validate(in)
	assert.Equal(t, map[string]string{"freeTrialDays": "out_of_range"}, fields(err))
}

func TestValidatePlansEnforcesLimit(t *testing.T) {
	inputs := []PlanInput{validInput(), validInput(), validInput(), validInput()}

	_, err := ValidatePlans(inputs)
	assert.ErrorIs(t, err, ErrPlanLimitExceeded)

	out, err := ValidatePlans(inputs[:3])
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestValidatePlansIndexesFieldsAndKeepsLastPopular(t *testing.T) {
	bad := validInput()
	bad.CurrencyCode = "XXX"
	_, err := ValidatePlans([]PlanInput{validInput(), bad})
	assert.Equal(t, map[string]string{"plans[1].currencyCode": "unknown_currency"}, fields(err))

	a, b := validInput(), validInput()
	a.IsPopular, b.IsPopular = true, true
	out, err := ValidatePlans([]PlanInput{a, b})
	require.NoError(t, err)
	assert.False(t, out[0].IsPopular())
	assert.True(t, out[1].IsPopular())
}

func TestBillingPeriodInterval(t *testing.T) {
	interval, count := PeriodQuarter.Interval()
	assert.Equal(t, "month", interval)
	assert.Equal(t, int64(3), count)

	interval, count = PeriodYear.Interval()
	assert.Equal(t, "year", interval)
	assert.Equal(t, int64(1), count)

	assert.False(t, PeriodOnce.IsRecurring())
}
