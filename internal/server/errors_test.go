package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	accountdomain "github.com/smallbiznis/makerhub/internal/account/domain"
	checkoutdomain "github.com/smallbiznis/makerhub/internal/checkout/domain"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
	"github.com/smallbiznis/makerhub/internal/observability"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	paymentdomain "github.com/smallbiznis/makerhub/internal/payment/domain"
	plandomain "github.com/smallbiznis/makerhub/internal/plan/domain"
	"github.com/smallbiznis/makerhub/internal/pricing"
	providerdomain "github.com/smallbiznis/makerhub/internal/providers/payment/domain"
	"github.com/smallbiznis/makerhub/internal/ratelimit"
	"github.com/smallbiznis/makerhub/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
		code   string
	}{
		{"unknown currency", fmt.Errorf("lookup: %w", currencydomain.ErrUnknownCurrency), http.StatusBadRequest, "validation_error", "unknown_currency"},
		{"percent", pricing.ErrOutOfRange, http.StatusBadRequest, "validation_error", "out_of_range"},
		{"page token", pagination.ErrInvalidPageToken, http.StatusBadRequest, "validation_error", "invalid_page_token"},
		{"page status", pagedomain.ErrInvalidStatus, http.StatusBadRequest, "validation_error", "invalid_status"},
		{"redirect", checkoutdomain.ErrInvalidRedirect, http.StatusBadRequest, "validation_error", checkoutdomain.ErrInvalidRedirect.Error()},
		{"signature", paymentdomain.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature", ""},
		{"plan limit", plandomain.ErrPlanLimitExceeded, http.StatusBadRequest, "plan_limit_exceeded", ""},
		{"payouts", checkoutdomain.ErrPayoutsNotEnabled, http.StatusConflict, "payouts_not_enabled", ""},
		{"onboarding", accountdomain.ErrOnboardingIncomplete, http.StatusConflict, "onboarding_incomplete", ""},
		{"sold out", checkoutdomain.ErrSoldOut, http.StatusConflict, "sold_out", ""},
		{"forbidden", pagedomain.ErrForbidden, http.StatusForbidden, "forbidden", ""},
		{"page missing", pagedomain.ErrPageNotFound, http.StatusNotFound, "not_found", ""},
		{"record missing", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found", ""},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited", ""},
		{"not configured", providerdomain.ErrNotConfigured, http.StatusServiceUnavailable, "service_unavailable", ""},
		{"provider", &providerdomain.ProviderError{Provider: "stripe", Code: "card_declined"}, http.StatusBadGateway, "provider_error", "card_declined"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
			assert.Equal(t, tc.code, payload.Code)
		})
	}
}

func TestMapErrorPlanValidation(t *testing.T) {
	err := fmt.Errorf("replace plans: %w", plandomain.ValidationErrors{
		{Field: "plans[0].name", Code: "required", Message: "name is required"},
		{Field: "plans[0].currencyCode", Code: "unknown_currency", Message: "currency is not supported"},
	})

	status, payload := mapError(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 2)
	assert.Equal(t, "plans[0].currencyCode", payload.Errors[1].Field)
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(currencydomain.ErrUnknownCurrency)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "unknown_currency", code)

	typ, code = classifyErrorForLog(newValidationError("pageId", "required", "pageId is required"))
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "required", code)
}

// bucketStub answers the token bucket script with a fixed reply.
type bucketStub struct {
	reply any
	err   error
}

func (s *bucketStub) cmd(ctx context.Context) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	cmd.SetVal(s.reply)
	return cmd
}

func (s *bucketStub) Eval(ctx context.Context, _ string, _ []string, _ ...any) *redis.Cmd {
	return s.cmd(ctx)
}

func (s *bucketStub) EvalSha(ctx context.Context, _ string, _ []string, _ ...any) *redis.Cmd {
	return s.cmd(ctx)
}

func (s *bucketStub) EvalRO(ctx context.Context, _ string, _ []string, _ ...any) *redis.Cmd {
	return s.cmd(ctx)
}

func (s *bucketStub) EvalShaRO(ctx context.Context, _ string, _ []string, _ ...any) *redis.Cmd {
	return s.cmd(ctx)
}

func (s *bucketStub) ScriptExists(ctx context.Context, _ ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceCmd(ctx)
}

func (s *bucketStub) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}

func rateLimitedEngine(stub *bucketStub) *gin.Engine {
	s := &Server{
		checkoutLimiter: ratelimit.NewCheckoutLimiter(ratelimit.NewTokenBucket(stub), 0.5, 5),
	}
	r := NewEngine(observability.Config{Environment: "test"})
	r.POST("/checkout/create-session", s.CheckoutRateLimit(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestCheckoutRateLimit(t *testing.T) {
	ts := time.Now().UnixMilli()

	t.Run("allowed", func(t *testing.T) {
		r := rateLimitedEngine(&bucketStub{reply: []any{int64(1), "4", ts}})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/create-session", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("denied", func(t *testing.T) {
		r := rateLimitedEngine(&bucketStub{reply: []any{int64(0), "0.5", ts}})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/create-session", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	})

	t.Run("redis down", func(t *testing.T) {
		r := rateLimitedEngine(&bucketStub{err: errors.New("connection refused")})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/create-session", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 3, retryAfterSeconds(2100*time.Millisecond))
}
