package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	checkoutdomain "github.com/smallbiznis/makerhub/internal/checkout/domain"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
	"github.com/smallbiznis/makerhub/internal/observability/logger"
	"go.uber.org/zap"
)

type createCheckoutRequest struct {
	PageID string `json:"pageId"`
	PlanID string `json:"planId"`
	// PriceID is the name the storefront widget sends for the plan id.
	PriceID       string `json:"priceId"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customerEmail"`
	SuccessURL    string `json:"successUrl"`
	CancelURL     string `json:"cancelUrl"`
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		planID = strings.TrimSpace(req.PriceID)
	}
	pageID := strings.TrimSpace(req.PageID)
	if pageID == "" {
		AbortWithError(c, newValidationError("pageId", "required", "pageId is required"))
		return
	}
	if planID == "" {
		AbortWithError(c, newValidationError("priceId", "required", "priceId is required"))
		return
	}

	resp, err := s.checkoutSvc.CreateSession(c.Request.Context(), checkoutdomain.CreateSessionRequest{
		PageID:        pageID,
		PlanID:        planID,
		Currency:      strings.TrimSpace(req.Currency),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		SuccessURL:    strings.TrimSpace(req.SuccessURL),
		CancelURL:     strings.TrimSpace(req.CancelURL),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type checkoutSessionView struct {
	SessionID     string                `json:"sessionId"`
	Status        checkoutdomain.Status `json:"status"`
	PageID        string                `json:"pageId"`
	PlanID        string                `json:"planId"`
	Mode          string                `json:"mode"`
	Currency      string                `json:"currency"`
	Amount        string                `json:"amount"`
	CustomerEmail string                `json:"customerEmail,omitempty"`
	CompletedAt   *time.Time            `json:"completedAt,omitempty"`
}

// GetCheckoutSession backs the success page. Fee split and creator
// identity stay private.
func (s *Server) GetCheckoutSession(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("sessionId"))
	if sessionID == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	sess, err := s.checkoutSvc.GetByProviderSession(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkoutSessionView{
		SessionID:     sess.ProviderSessionID,
		Status:        sess.Status,
		PageID:        sess.PageID.String(),
		PlanID:        sess.PlanID.String(),
		Mode:          sess.Mode,
		Currency:      sess.Currency,
		Amount:        formatAmount(sess.Currency, sess.Amount),
		CustomerEmail: sess.CustomerEmail,
		CompletedAt:   sess.CompletedAt,
	})
}

func formatAmount(code string, amount decimal.Decimal) string {
	cur, err := currencydomain.Lookup(code)
	if err != nil {
		return amount.StringFixed(2)
	}
	return cur.Plain(amount)
}

// CheckoutRateLimit throttles session creation per client address. Redis
// failures let the request through so an outage of the limiter does not
// stop sales.
func (s *Server) CheckoutRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.checkoutLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.checkoutLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("checkout rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if res.Allowed {
			c.Next()
			return
		}

		endpoint := c.FullPath()
		logger.FromContext(ctx).Warn("checkout rate limit exceeded", zap.String("endpoint", endpoint))
		s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)

		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
		AbortWithError(c, ErrRateLimited)
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
