package domain

import "errors"

var (
	ErrPlanNotFound      = errors.New("plan_not_found")
	ErrPlanLimitExceeded = errors.New("plan_limit_exceeded")
	ErrInvalidPageID     = errors.New("invalid_page_id")
	ErrInvalidPlanID     = errors.New("invalid_plan_id")
)

// ValidationError is one violated rule of a plan input.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors collects every violation found in one validation pass.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation error"
	}
	return "validation error: " + v[0].Field + " " + v[0].Code
}
