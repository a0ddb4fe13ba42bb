package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID) ([]PricingPlan, error)
	FindByID(ctx context.Context, db *gorm.DB, pageID, planID snowflake.ID) (*PricingPlan, error)
	CountByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, plan *PricingPlan) error
	Update(ctx context.Context, db *gorm.DB, plan *PricingPlan) error
	Delete(ctx context.Context, db *gorm.DB, pageID, planID snowflake.ID) (bool, error)
	DeleteByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID) error
	ClearPopular(ctx context.Context, db *gorm.DB, pageID snowflake.ID, except snowflake.ID) error
}

type Service interface {
	ReplacePlans(ctx context.Context, ownerID string, pageID snowflake.ID, inputs []PlanInput) ([]PricingPlan, error)
	AddPlan(ctx context.Context, ownerID string, pageID snowflake.ID, input PlanInput) (*PricingPlan, error)
	UpdatePlan(ctx context.Context, ownerID string, pageID, planID snowflake.ID, input PlanInput) (*PricingPlan, error)
	DeletePlan(ctx context.Context, ownerID string, pageID, planID snowflake.ID) error
	ListPlans(ctx context.Context, pageID snowflake.ID) ([]PricingPlan, error)
	GetPlan(ctx context.Context, pageID, planID snowflake.ID) (*PricingPlan, error)
}
