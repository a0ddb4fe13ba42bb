package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the idempotency ledger row of one provider event.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider        string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:varchar(32);not null"`
	SessionID       string         `json:"session_id" gorm:"type:varchar(255)"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// SaleEffect marks a post-sale side effect as applied for a checkout.
type SaleEffect struct {
	CheckoutID snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Effect     string       `gorm:"primaryKey;type:varchar(32)"`
	CreatedAt  time.Time    `gorm:"not null"`
}

func (SaleEffect) TableName() string { return "sale_effects" }

const (
	EffectLead       = "lead"
	EffectConversion = "conversion"
	EffectNotify     = "notify"
	EffectEmail      = "email"
)

const (
	EventTypeCheckoutCompleted = "checkout_completed"
	EventTypeCheckoutFailed    = "checkout_failed"
	EventTypeCheckoutCanceled  = "checkout_canceled"
	// EventTypePaymentDeclined is one failed attempt inside a still open
	// checkout. The buyer may retry, so it never ends the session.
	EventTypePaymentDeclined = "payment_declined"
)

// CheckoutEvent is the canonical checkout event parsed by adapters.
// Amount is in minor units.
type CheckoutEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	SessionID       string
	PaymentIntentID string
	Amount          int64
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
	OccurredAt      time.Time
	RawPayload      []byte
}
