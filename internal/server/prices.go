package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
	plandomain "github.com/smallbiznis/makerhub/internal/plan/domain"
)

type planPrice struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Period          string          `json:"period"`
	BasePrice       decimal.Decimal `json:"basePrice"`
	FinalPrice      decimal.Decimal `json:"finalPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Formatted       string          `json:"formatted"`
	IsPopular       bool            `json:"isPopular"`
	FreeTrialDays   int             `json:"freeTrialDays"`
	LimitedSpots    int             `json:"limitedSpots"`
}

type priceInfo struct {
	PageID   string      `json:"pageId"`
	Currency string      `json:"currency"`
	Symbol   string      `json:"symbol"`
	Plans    []planPrice `json:"plans"`
}

// GetPrices lists a page's plans priced in the requested currency, or in
// each plan's own currency when none is requested.
func (s *Server) GetPrices(c *gin.Context) {
	ctx := c.Request.Context()

	page, err := s.pageSvc.Resolve(ctx, strings.TrimSpace(c.Param("productId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var target *currencydomain.Currency
	if code := strings.TrimSpace(c.Query("currency")); code != "" {
		cur, err := currencydomain.Lookup(code)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		target = &cur
	}

	plans, err := s.planSvc.ListPlans(ctx, page.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if target != nil && len(plans) == 0 {
		AbortWithError(c, plandomain.ErrPlanNotFound)
		return
	}

	display := target
	if display == nil {
		code := "USD"
		if len(plans) > 0 {
			code = plans[0].Currency
		}
		cur, err := currencydomain.Lookup(code)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		display = &cur
	}

	out := make([]planPrice, 0, len(plans))
	for _, p := range plans {
		cur, err := currencydomain.Lookup(p.Currency)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		base, final := p.BasePrice, p.FinalPrice
		if target != nil && target.Code != cur.Code {
			if base, err = s.converter.Convert(p.BasePrice, p.Currency, target.Code); err != nil {
				AbortWithError(c, err)
				return
			}
			if final, err = s.converter.Convert(p.FinalPrice, p.Currency, target.Code); err != nil {
				AbortWithError(c, err)
				return
			}
			cur = *target
		}

		out = append(out, planPrice{
			ID:              p.ID.String(),
			Name:            p.Name,
			Description:     p.Description,
			Period:          string(p.BillingPeriod),
			BasePrice:       base,
			FinalPrice:      final,
			DiscountPercent: p.DiscountPercent,
			Formatted:       cur.Format(final),
			IsPopular:       p.IsPopular,
			FreeTrialDays:   p.FreeTrialDays,
			LimitedSpots:    p.LimitedSpots,
		})
	}

	c.JSON(http.StatusOK, priceInfo{
		PageID:   page.ID.String(),
		Currency: display.Code,
		Symbol:   display.Symbol,
		Plans:    out,
	})
}

func (s *Server) ListCurrencies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.converter.List()})
}
