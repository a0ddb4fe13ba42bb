package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/pkg/db/pagination"
	"gorm.io/gorm"
)

var ErrInvalidEmail = errors.New("invalid_email")

// Lead is a paying customer of a creator, one row per (creator, email).
type Lead struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CreatorID       string       `json:"creatorId" gorm:"type:varchar(128);not null;uniqueIndex:ux_leads_creator_email"`
	Email           string       `json:"email" gorm:"type:varchar(320);not null;uniqueIndex:ux_leads_creator_email"`
	PageID          snowflake.ID `json:"pageId" gorm:"not null"`
	Purchases       int64        `json:"purchases" gorm:"not null;default:0"`
	FirstPurchaseAt time.Time    `json:"firstPurchaseAt"`
	LastPurchaseAt  time.Time    `json:"lastPurchaseAt"`
}

func (Lead) TableName() string { return "leads" }

type Purchase struct {
	CreatorID string
	PageID    snowflake.ID
	Email     string
	At        time.Time
}

type ListLeadsRequest struct {
	CreatorID string
	pagination.Pagination
}

type ListLeadsResponse struct {
	Leads    []Lead               `json:"leads"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type Repository interface {
	FindByEmail(ctx context.Context, db *gorm.DB, creatorID, email string) (*Lead, error)
	Insert(ctx context.Context, db *gorm.DB, lead *Lead) error
	RecordPurchase(ctx context.Context, db *gorm.DB, id snowflake.ID, pageID snowflake.ID, at time.Time) error
	ListByCreator(ctx context.Context, db *gorm.DB, creatorID string, beforeID snowflake.ID, limit int) ([]Lead, error)
}

type Service interface {
	// RecordPurchase runs on the caller's transaction.
	RecordPurchase(ctx context.Context, db *gorm.DB, p Purchase) (*Lead, error)
	List(ctx context.Context, req ListLeadsRequest) (ListLeadsResponse, error)
}
