package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type AdapterConfig struct {
	Provider      string
	WebhookSecret string
	// Tolerance bounds the age of a signed timestamp. Zero uses the adapter default.
	Tolerance time.Duration
	Now       func() time.Time
}

// PaymentAdapter authenticates and parses one provider's webhooks.
type PaymentAdapter interface {
	// Verify runs over the raw body before anything parses it.
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*CheckoutEvent, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

type Repository interface {
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	// InsertEffect reports whether the marker was newly written.
	InsertEffect(ctx context.Context, db *gorm.DB, checkoutID snowflake.ID, effect string, at time.Time) (bool, error)
	DeleteEffect(ctx context.Context, db *gorm.DB, checkoutID snowflake.ID, effect string) error
}

type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}
