package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/plan/domain"
	"gorm.io/gorm"
)

const planColumns = `id, page_id, position, name, description, base_price, currency, billing_period,
	discount_percent, final_price, is_popular, free_trial_days, limited_spots,
	commission_percent, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID) ([]domain.PricingPlan, error) {
	var items []domain.PricingPlan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+`
		 FROM pricing_plans
		 WHERE page_id = ?
		 ORDER BY position ASC, id ASC`,
		pageID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, pageID, planID snowflake.ID) (*domain.PricingPlan, error) {
	var item domain.PricingPlan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+`
		 FROM pricing_plans
		 WHERE page_id = ? AND id = ?
		 LIMIT 1`,
		pageID,
		planID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CountByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM pricing_plans WHERE page_id = ?`,
		pageID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.PricingPlan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, plan *domain.PricingPlan) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_plans
		 SET name = ?, description = ?, base_price = ?, currency = ?, billing_period = ?,
			discount_percent = ?, final_price = ?, is_popular = ?, free_trial_days = ?,
			limited_spots = ?, commission_percent = ?, updated_at = ?
		 WHERE id = ? AND page_id = ?`,
		plan.Name,
		plan.Description,
		plan.BasePrice,
		plan.Currency,
		plan.BillingPeriod,
		plan.DiscountPercent,
		plan.FinalPrice,
		plan.IsPopular,
		plan.FreeTrialDays,
		plan.LimitedSpots,
		plan.CommissionPercent,
		plan.UpdatedAt,
		plan.ID,
		plan.PageID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, pageID, planID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM pricing_plans WHERE page_id = ? AND id = ?`,
		pageID,
		planID,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) DeleteByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM pricing_plans WHERE page_id = ?`,
		pageID,
	).Error
}

func (r *repo) ClearPopular(ctx context.Context, db *gorm.DB, pageID snowflake.ID, except snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_plans SET is_popular = ? WHERE page_id = ? AND id <> ?`,
		false,
		pageID,
		except,
	).Error
}
