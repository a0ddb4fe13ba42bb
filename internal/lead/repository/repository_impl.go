package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/lead/domain"
	"gorm.io/gorm"
)

const leadColumns = `id, creator_id, email, page_id, purchases, first_purchase_at, last_purchase_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, creatorID, email string) (*domain.Lead, error) {
	var item domain.Lead
	err := db.WithContext(ctx).Raw(
		`SELECT `+leadColumns+`
		 FROM leads
		 WHERE creator_id = ? AND email = ?
		 LIMIT 1`,
		creatorID, email,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, lead *domain.Lead) error {
	return db.WithContext(ctx).Create(lead).Error
}

func (r *repo) RecordPurchase(ctx context.Context, db *gorm.DB, id snowflake.ID, pageID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE leads
		 SET purchases = purchases + 1, page_id = ?, last_purchase_at = ?
		 WHERE id = ?`,
		pageID, at, id,
	).Error
}

func (r *repo) ListByCreator(ctx context.Context, db *gorm.DB, creatorID string, beforeID snowflake.ID, limit int) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE creator_id = ?`
	args := []any{creatorID}
	if beforeID != 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var items []domain.Lead
	err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error
	return items, err
}
