package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/makerhub/pkg/db/pagination"
	"gorm.io/gorm"
)

var ErrSaleNotFound = errors.New("sale_not_found")

// Sale is the write-once record of a completed checkout. One provider
// session yields at most one sale.
type Sale struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CheckoutID      snowflake.ID    `json:"checkoutId" gorm:"not null"`
	SessionID       string          `json:"sessionId" gorm:"type:varchar(255);not null;uniqueIndex:ux_sales_session_id"`
	PageID          snowflake.ID    `json:"pageId" gorm:"not null;index:idx_sales_page"`
	PlanID          snowflake.ID    `json:"planId" gorm:"not null;index:idx_sales_plan"`
	CreatorID       string          `json:"creatorId" gorm:"type:varchar(128);not null"`
	CustomerEmail   string          `json:"customerEmail" gorm:"type:varchar(320)"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency        string          `json:"currency" gorm:"type:varchar(3);not null"`
	PlatformFee     decimal.Decimal `json:"platformFee" gorm:"type:numeric(12,2);not null"`
	CreatorReceives decimal.Decimal `json:"creatorReceives" gorm:"type:numeric(12,2);not null"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (Sale) TableName() string { return "sales" }

type ListSalesRequest struct {
	OwnerID string
	PageID  snowflake.ID
	pagination.Pagination
}

type ListSalesResponse struct {
	Sales    []Sale               `json:"sales"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

// RevenueTotal sums the sales of one currency. Amounts in different
// currencies are never added together.
type RevenueTotal struct {
	Currency        string          `json:"currency"`
	Sales           int64           `json:"sales"`
	Amount          decimal.Decimal `json:"amount"`
	CreatorReceives decimal.Decimal `json:"creatorReceives"`
}

// PageStats is the owner's funnel for one page. Rates are percentages of
// views.
type PageStats struct {
	PageID         snowflake.ID    `json:"pageId"`
	Views          int64           `json:"views"`
	Clicks         int64           `json:"clicks"`
	Conversions    int64           `json:"conversions"`
	Sales          int64           `json:"sales"`
	Buyers         int64           `json:"buyers"`
	ClickRate      decimal.Decimal `json:"clickRate"`
	ConversionRate decimal.Decimal `json:"conversionRate"`
	Revenue        []RevenueTotal  `json:"revenue"`
}

type Repository interface {
	// InsertIfAbsent reports whether the sale was newly written.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, sale *Sale) (bool, error)
	FindBySession(ctx context.Context, db *gorm.DB, sessionID string) (*Sale, error)
	CountByPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) (int64, error)
	ListByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID, beforeID snowflake.ID, limit int) ([]Sale, error)
	RevenueByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID) ([]RevenueTotal, error)
	CountBuyers(ctx context.Context, db *gorm.DB, pageID snowflake.ID) (int64, error)
}

type Service interface {
	Record(ctx context.Context, sale *Sale) (bool, error)
	FindBySession(ctx context.Context, sessionID string) (*Sale, error)
	CountByPlan(ctx context.Context, planID snowflake.ID) (int64, error)
	List(ctx context.Context, req ListSalesRequest) (ListSalesResponse, error)
	PageStats(ctx context.Context, ownerID string, pageID snowflake.ID) (*PageStats, error)
}
