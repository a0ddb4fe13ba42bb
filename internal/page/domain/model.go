package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrPageNotFound      = errors.New("page_not_found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidBrand      = errors.New("invalid_brand")
	ErrInvalidChannel    = errors.New("invalid_channel_url")
	ErrInvalidCommission = errors.New("invalid_commission")
	ErrInvalidStatus     = errors.New("invalid_status")
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Page is a creator's landing page for one Telegram channel.
type Page struct {
	ID                snowflake.ID     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OwnerID           string           `json:"ownerId" gorm:"type:varchar(128);not null;index:idx_pages_owner"`
	Slug              string           `json:"slug" gorm:"type:varchar(120);not null;uniqueIndex:ux_pages_slug"`
	Brand             string           `json:"brand" gorm:"type:varchar(120);not null"`
	Headline          string           `json:"headline" gorm:"type:text"`
	ChannelURL        string           `json:"channelUrl" gorm:"type:text;not null"`
	CommissionPercent *decimal.Decimal `json:"commissionPercent,omitempty" gorm:"type:numeric(5,2)"`
	Status            Status           `json:"status" gorm:"type:varchar(16);not null;default:published"`
	Views             int64            `json:"views" gorm:"not null;default:0"`
	Clicks            int64            `json:"clicks" gorm:"not null;default:0"`
	Conversions       int64            `json:"conversions" gorm:"not null;default:0"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func (Page) TableName() string { return "pages" }

type CreatePageRequest struct {
	Brand             string   `json:"brand"`
	Headline          string   `json:"headline"`
	ChannelURL        string   `json:"channelUrl"`
	CommissionPercent *float64 `json:"commissionPercent,omitempty"`
}

// UpdatePageRequest patches the given fields; nil leaves a field as is.
type UpdatePageRequest struct {
	Brand             *string  `json:"brand,omitempty"`
	Headline          *string  `json:"headline,omitempty"`
	ChannelURL        *string  `json:"channelUrl,omitempty"`
	CommissionPercent *float64 `json:"commissionPercent,omitempty"`
}

// Counter is a public engagement counter on a page.
type Counter string

const (
	CounterViews  Counter = "views"
	CounterClicks Counter = "clicks"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, page *Page) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Page, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Page, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]Page, error)
	IncrementConversions(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	IncrementCounter(ctx context.Context, db *gorm.DB, id snowflake.ID, counter Counter) error
	Update(ctx context.Context, db *gorm.DB, page *Page) error
	SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, at time.Time) error
	// Delete removes the page together with its plans. Sales and leads stay.
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}

type Service interface {
	Create(ctx context.Context, ownerID string, req CreatePageRequest) (*Page, error)
	Get(ctx context.Context, id snowflake.ID) (*Page, error)
	GetBySlug(ctx context.Context, slug string) (*Page, error)
	// Resolve accepts either a numeric page id or a slug. Drafts are not
	// resolved.
	Resolve(ctx context.Context, idOrSlug string) (*Page, error)
	GetOwned(ctx context.Context, ownerID string, id snowflake.ID) (*Page, error)
	ListOwned(ctx context.Context, ownerID string) ([]Page, error)
	IncrementConversions(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	Update(ctx context.Context, ownerID string, id snowflake.ID, req UpdatePageRequest) (*Page, error)
	Delete(ctx context.Context, ownerID string, id snowflake.ID) error
	SetStatus(ctx context.Context, ownerID string, id snowflake.ID, status Status) (*Page, error)
	// Track counts a public view or click on a published page.
	Track(ctx context.Context, idOrSlug string, counter Counter) error
}
