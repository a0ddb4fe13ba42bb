// Package events publishes domain events consumed outside this service.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	obscontext "github.com/smallbiznis/makerhub/internal/observability/context"
)

const RoutingKeySaleCompleted = "sale.completed"

// Event is the envelope of every published message.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Data          any       `json:"data"`
}

// SaleCompleted tells the access service to grant channel access.
type SaleCompleted struct {
	SaleID        string `json:"sale_id"`
	CheckoutID    string `json:"checkout_id"`
	PageID        string `json:"page_id"`
	PlanID        string `json:"plan_id"`
	CreatorID     string `json:"creator_id"`
	CustomerEmail string `json:"customer_email"`
	ChannelURL    string `json:"channel_url"`
	BillingPeriod string `json:"billing_period"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

func NewSaleCompleted(ctx context.Context, at time.Time, data SaleCompleted) Event {
	_, cid := obscontext.EnsureCorrelationID(ctx)
	return Event{
		ID:            ulid.Make().String(),
		Type:          RoutingKeySaleCompleted,
		CorrelationID: cid,
		OccurredAt:    at.UTC(),
		Data:          data,
	}
}
