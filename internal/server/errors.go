package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/makerhub/internal/account/domain"
	checkoutdomain "github.com/smallbiznis/makerhub/internal/checkout/domain"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
	leaddomain "github.com/smallbiznis/makerhub/internal/lead/domain"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	paymentdomain "github.com/smallbiznis/makerhub/internal/payment/domain"
	plandomain "github.com/smallbiznis/makerhub/internal/plan/domain"
	"github.com/smallbiznis/makerhub/internal/pricing"
	providerdomain "github.com/smallbiznis/makerhub/internal/providers/payment/domain"
	saledomain "github.com/smallbiznis/makerhub/internal/sale/domain"
	"github.com/smallbiznis/makerhub/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

// classifyErrorForLog feeds the request logger the same type/code pair the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var planErrs plandomain.ValidationErrors
	if errors.As(err, &planErrs) {
		out := make([]ValidationError, 0, len(planErrs))
		for _, e := range planErrs {
			out = append(out, ValidationError{Field: e.Field, Code: e.Code, Message: e.Message})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  out,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Code:    code,
			Errors: []ValidationError{{
				Field:   validationErrorField(code),
				Code:    code,
				Message: validationErrorMessage(code),
			}},
		}
	}

	var provErr *providerdomain.ProviderError
	if errors.As(err, &provErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_error",
			Message: "payment provider error",
			Code:    provErr.Code,
		}
	}

	switch {
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "invalid signature",
		}
	case errors.Is(err, plandomain.ErrPlanLimitExceeded):
		return http.StatusBadRequest, errorPayload{
			Type:    "plan_limit_exceeded",
			Message: "a page can have at most 3 plans",
		}
	case errors.Is(err, checkoutdomain.ErrPayoutsNotEnabled):
		return http.StatusConflict, errorPayload{
			Type:    "payouts_not_enabled",
			Message: "creator cannot accept payments yet",
		}
	case errors.Is(err, accountdomain.ErrOnboardingIncomplete):
		return http.StatusConflict, errorPayload{
			Type:    "onboarding_incomplete",
			Message: "finish payout onboarding first",
		}
	case errors.Is(err, checkoutdomain.ErrSoldOut):
		return http.StatusConflict, errorPayload{
			Type:    "sold_out",
			Message: "no spots left for this plan",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, pagedomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, providerdomain.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, currencydomain.ErrUnknownCurrency),
		errors.Is(err, currencydomain.ErrInvalidAmount),
		errors.Is(err, pricing.ErrOutOfRange),
		errors.Is(err, pagedomain.ErrInvalidBrand),
		errors.Is(err, pagedomain.ErrInvalidChannel),
		errors.Is(err, pagedomain.ErrInvalidCommission),
		errors.Is(err, pagedomain.ErrInvalidStatus),
		errors.Is(err, plandomain.ErrInvalidPageID),
		errors.Is(err, plandomain.ErrInvalidPlanID),
		errors.Is(err, checkoutdomain.ErrInvalidRedirect),
		errors.Is(err, checkoutdomain.ErrInvalidEmail),
		errors.Is(err, checkoutdomain.ErrInvalidPlanID),
		errors.Is(err, leaddomain.ErrInvalidEmail),
		errors.Is(err, accountdomain.ErrInvalidAccountID),
		errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, pagedomain.ErrPageNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, checkoutdomain.ErrSessionNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, saledomain.ErrSaleNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// validationErrorCode unwraps to the sentinel so wrapped errors keep their
// snake_case code.
func validationErrorCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "unknown_currency":
		return "currency"
	case "out_of_range":
		return "percent"
	case "invalid_page_token":
		return "page_token"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "unknown_currency":
		return "currency is not supported"
	case "out_of_range":
		return "percentage must be between 0 and 100"
	default:
		return "invalid value"
	}
}
