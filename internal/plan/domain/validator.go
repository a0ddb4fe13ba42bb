package domain

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
	"github.com/smallbiznis/makerhub/internal/pricing"
)

// PlanInput is the plan as submitted by the page builder.
type PlanInput struct {
	Name              string   `json:"name" validate:"required,max=80"`
	Description       string   `json:"description" validate:"max=500"`
	BasePrice         float64  `json:"basePrice" validate:"gte=0"`
	CurrencyCode      string   `json:"currencyCode" validate:"required"`
	BillingPeriod     string   `json:"billingPeriod" validate:"required,oneof=day week month quarter year once"`
	DiscountPercent   float64  `json:"discountPercent" validate:"gte=0,lte=100"`
	IsPopular         bool     `json:"isPopular"`
	HasFreeTrial      bool     `json:"hasFreeTrial"`
	FreeTrialDays     int      `json:"freeTrialDays"`
	HasLimitedSpots   bool     `json:"hasLimitedSpots"`
	LimitedSpots      int      `json:"limitedSpots"`
	CommissionPercent *float64 `json:"commissionPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// ValidPlan is a plan input that passed validation. Its zero value is not
// usable: only Validate and ValidatePlans produce one.
type ValidPlan struct {
	plan PricingPlan
}

// Build stamps identity onto the validated plan.
func (v ValidPlan) Build(id, pageID snowflake.ID, position int, now time.Time) PricingPlan {
	p := v.plan
	p.ID = id
	p.PageID = pageID
	p.Position = position
	p.CreatedAt = now
	p.UpdatedAt = now
	return p
}

func (v ValidPlan) IsPopular() bool   { return v.plan.IsPopular }
func (v ValidPlan) Plan() PricingPlan { return v.plan }

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every rule and returns all violations at once.
func Validate(in PlanInput) (ValidPlan, error) {
	errs := validateInput(in, "")
	if len(errs) > 0 {
		return ValidPlan{}, errs
	}
	return ValidPlan{plan: normalize(in)}, nil
}

// ValidatePlans validates a full plan set for one page. More than
// MaxPlansPerPage plans fail fast; otherwise violations of all plans are
// reported with an indexed field path. When several plans are flagged
// popular only the last one keeps the flag.
func ValidatePlans(inputs []PlanInput) ([]ValidPlan, error) {
	if len(inputs) > MaxPlansPerPage {
		return nil, ErrPlanLimitExceeded
	}

	var all ValidationErrors
	out := make([]ValidPlan, 0, len(inputs))
	for i, in := range inputs {
		errs := validateInput(in, fmt.Sprintf("plans[%d].", i))
		if len(errs) > 0 {
			all = append(all, errs...)
			continue
		}
		out = append(out, ValidPlan{plan: normalize(in)})
	}
	if len(all) > 0 {
		return nil, all
	}

	popular := -1
	for i := range out {
		if out[i].plan.IsPopular {
			popular = i
		}
	}
	for i := range out {
		out[i].plan.IsPopular = i == popular
	}
	return out, nil
}

func validateInput(in PlanInput, prefix string) ValidationErrors {
	var errs ValidationErrors
	add := func(field, code, message string) {
		errs = append(errs, ValidationError{Field: prefix + field, Code: code, Message: message})
	}

	// NaN fails every comparison tag, report it once as not finite instead
	nonFinite := map[string]bool{}
	if math.IsNaN(in.BasePrice) || math.IsInf(in.BasePrice, 0) {
		nonFinite["basePrice"] = true
		add("basePrice", "invalid_amount", "base price must be a finite number")
	}
	if math.IsNaN(in.DiscountPercent) || math.IsInf(in.DiscountPercent, 0) {
		nonFinite["discountPercent"] = true
		add("discountPercent", "out_of_range", "discount must be between 0 and 100")
	}
	if in.CommissionPercent != nil && (math.IsNaN(*in.CommissionPercent) || math.IsInf(*in.CommissionPercent, 0)) {
		nonFinite["commissionPercent"] = true
		add("commissionPercent", "out_of_range", "commission must be between 0 and 100")
	}

	if err := structValidator.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			add("plan", "invalid", err.Error())
			return errs
		}
		for _, fe := range fieldErrs {
			if nonFinite[fe.Field()] {
				continue
			}
			code, message := describeFieldError(fe)
			add(fe.Field(), code, message)
		}
	}

	if in.Name != "" && strings.TrimSpace(in.Name) == "" {
		add("name", "required", "name is required")
	}
	if strings.TrimSpace(in.CurrencyCode) != "" && !currencydomain.IsSupported(in.CurrencyCode) {
		add("currencyCode", "unknown_currency", "currency is not supported")
	}
	if in.HasFreeTrial && (in.FreeTrialDays < 1 || in.FreeTrialDays > 90) {
		add("freeTrialDays", "out_of_range", "free trial must be between 1 and 90 days")
	}
	if in.HasLimitedSpots && (in.LimitedSpots < 1 || in.LimitedSpots > 999999) {
		add("limitedSpots", "out_of_range", "limited spots must be between 1 and 999999")
	}
	return errs
}

func describeFieldError(fe validator.FieldError) (string, string) {
	switch fe.Tag() {
	case "required":
		return "required", fe.Field() + " is required"
	case "max":
		return "too_long", fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte", "lte":
		if fe.Field() == "basePrice" {
			return "invalid_amount", "base price must not be negative"
		}
		return "out_of_range", fe.Field() + " must be between 0 and 100"
	case "oneof":
		return "invalid_value", fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return "invalid", fe.Field() + " is invalid"
	}
}

func normalize(in PlanInput) PricingPlan {
	cur, _ := currencydomain.Lookup(in.CurrencyCode)
	base := cur.Round(decimal.NewFromFloat(in.BasePrice))
	discount := decimal.NewFromFloat(in.DiscountPercent).Round(2)

	p := PricingPlan{
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		BasePrice:       base,
		Currency:        cur.Code,
		BillingPeriod:   BillingPeriod(in.BillingPeriod),
		DiscountPercent: discount,
		FinalPrice:      pricing.ApplyDiscount(cur, base, discount),
		IsPopular:       in.IsPopular,
	}
	if in.HasFreeTrial {
		p.FreeTrialDays = in.FreeTrialDays
	}
	if in.HasLimitedSpots {
		p.LimitedSpots = in.LimitedSpots
	}
	if in.CommissionPercent != nil {
		c := decimal.NewFromFloat(*in.CommissionPercent).Round(2)
		p.CommissionPercent = &c
	}
	return p
}
