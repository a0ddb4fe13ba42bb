package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/sale/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const saleColumns = `id, checkout_id, session_id, page_id, plan_id, creator_id, customer_email,
	amount, currency, platform_fee, creator_receives, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, sale *domain.Sale) (bool, error) {
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(sale)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Sale, error) {
	var item domain.Sale
	err := db.WithContext(ctx).Raw(
		`SELECT `+saleColumns+`
		 FROM sales
		 WHERE session_id = ?
		 LIMIT 1`,
		sessionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) CountByPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM sales WHERE plan_id = ?`,
		planID,
	).Scan(&count).Error
	return count, err
}

// ListByPage pages newest first. Snowflake ids are time ordered so the id
// alone is the cursor.
func (r *repo) ListByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID, beforeID snowflake.ID, limit int) ([]domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE page_id = ?`
	args := []any{pageID}
	if beforeID != 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var items []domain.Sale
	err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error
	return items, err
}

func (r *repo) RevenueByPage(ctx context.Context, db *gorm.DB, pageID snowflake.ID) ([]domain.RevenueTotal, error) {
	var items []domain.RevenueTotal
	err := db.WithContext(ctx).Raw(
		`SELECT currency,
			COUNT(*) AS sales,
			COALESCE(SUM(amount), 0) AS amount,
			COALESCE(SUM(creator_receives), 0) AS creator_receives
		 FROM sales
		 WHERE page_id = ?
		 GROUP BY currency
		 ORDER BY currency`,
		pageID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) CountBuyers(ctx context.Context, db *gorm.DB, pageID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(DISTINCT customer_email) FROM sales WHERE page_id = ? AND customer_email <> ''`,
		pageID,
	).Scan(&count).Error
	return count, err
}
