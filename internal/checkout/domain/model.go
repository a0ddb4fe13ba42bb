package domain

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrPayoutsNotEnabled = errors.New("payouts_not_enabled")
	ErrSoldOut           = errors.New("sold_out")
	ErrSessionNotFound   = errors.New("checkout_session_not_found")
	ErrInvalidRedirect   = errors.New("invalid_redirect_url")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidPlanID     = errors.New("invalid_plan_id")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Metadata keys sent to the provider and echoed back on webhook events.
const (
	MetadataCheckoutID = "checkout_id"
	MetadataPageID     = "page_id"
	MetadataPlanID     = "plan_id"
	MetadataCreatorID  = "creator_id"
)

// CheckoutIDFromMetadata reads the internal session id echoed back by the
// provider. Zero means absent or malformed.
func CheckoutIDFromMetadata(metadata map[string]string) snowflake.ID {
	raw := strings.TrimSpace(metadata[MetadataCheckoutID])
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return snowflake.ID(id)
}

// CheckoutSession is the local record of a provider checkout session. It
// only ever moves out of pending once.
type CheckoutSession struct {
	ID                snowflake.ID      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider          string            `json:"provider" gorm:"type:varchar(32);not null"`
	ProviderSessionID string            `json:"providerSessionId" gorm:"type:varchar(255);not null;uniqueIndex:ux_checkout_sessions_provider_session"`
	PaymentIntentID   string            `json:"paymentIntentId,omitempty" gorm:"type:varchar(255);index:idx_checkout_sessions_payment_intent"`
	PageID            snowflake.ID      `json:"pageId" gorm:"not null"`
	PlanID            snowflake.ID      `json:"planId" gorm:"not null"`
	CreatorID         string            `json:"creatorId" gorm:"type:varchar(128);not null"`
	CustomerEmail     string            `json:"customerEmail,omitempty" gorm:"type:varchar(320)"`
	Mode              string            `json:"mode" gorm:"type:varchar(16);not null"`
	Currency          string            `json:"currency" gorm:"type:varchar(3);not null"`
	Amount            decimal.Decimal   `json:"amount" gorm:"type:numeric(12,2);not null"`
	CommissionPercent decimal.Decimal   `json:"commissionPercent" gorm:"type:numeric(5,2);not null"`
	PlatformFee       decimal.Decimal   `json:"platformFee" gorm:"type:numeric(12,2);not null"`
	CreatorReceives   decimal.Decimal   `json:"creatorReceives" gorm:"type:numeric(12,2);not null"`
	Status            Status            `json:"status" gorm:"type:varchar(16);not null;default:pending"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (CheckoutSession) TableName() string { return "checkout_sessions" }

type CreateSessionRequest struct {
	// PageID accepts a numeric page id or a slug.
	PageID        string `json:"pageId" binding:"required"`
	PlanID        string `json:"planId" binding:"required"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customerEmail"`
	SuccessURL    string `json:"successUrl"`
	CancelURL     string `json:"cancelUrl"`
}

type CreateSessionResponse struct {
	CheckoutID string `json:"checkoutId"`
	SessionID  string `json:"sessionId"`
	URL        string `json:"url"`
}

// SessionRef identifies the session a provider event belongs to. Fields are
// tried in order: internal id, provider session id, payment intent id.
type SessionRef struct {
	CheckoutID      snowflake.ID
	SessionID       string
	PaymentIntentID string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, session *CheckoutSession) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CheckoutSession, error)
	FindByProviderSession(ctx context.Context, db *gorm.DB, sessionID string) (*CheckoutSession, error)
	FindByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*CheckoutSession, error)
	// Transition moves a pending session to status and reports whether a
	// row changed.
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, at time.Time) (bool, error)
	SetPaymentIntent(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentIntentID string) error
}

type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error)
	GetByProviderSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	Resolve(ctx context.Context, db *gorm.DB, ref SessionRef) (*CheckoutSession, error)
	Transition(ctx context.Context, db *gorm.DB, session *CheckoutSession, status Status) (bool, error)
}
