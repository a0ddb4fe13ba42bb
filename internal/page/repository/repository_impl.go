package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/page/domain"
	"gorm.io/gorm"
)

const pageColumns = `id, owner_id, slug, brand, headline, channel_url, commission_percent,
	status, views, clicks, conversions, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, page *domain.Page) error {
	return db.WithContext(ctx).Create(page).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Page, error) {
	var item domain.Page
	err := db.WithContext(ctx).Raw(
		`SELECT `+pageColumns+`
		 FROM pages
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Page, error) {
	var item domain.Page
	err := db.WithContext(ctx).Raw(
		`SELECT `+pageColumns+`
		 FROM pages
		 WHERE slug = ?
		 LIMIT 1`,
		slug,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Page, error) {
	var items []domain.Page
	err := db.WithContext(ctx).Raw(
		`SELECT `+pageColumns+`
		 FROM pages
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) IncrementConversions(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pages SET conversions = conversions + 1 WHERE id = ?`,
		id,
	).Error
}

func (r *repo) IncrementCounter(ctx context.Context, db *gorm.DB, id snowflake.ID, counter domain.Counter) error {
	var column string
	switch counter {
	case domain.CounterViews:
		column = "views"
	case domain.CounterClicks:
		column = "clicks"
	default:
		return fmt.Errorf("unknown page counter %q", counter)
	}
	return db.WithContext(ctx).Exec(
		`UPDATE pages SET `+column+` = `+column+` + 1 WHERE id = ?`,
		id,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, page *domain.Page) error {
	return db.WithContext(ctx).Model(&domain.Page{}).Where("id = ?", page.ID).Updates(map[string]any{
		"brand":              page.Brand,
		"headline":           page.Headline,
		"channel_url":        page.ChannelURL,
		"commission_percent": page.CommissionPercent,
		"updated_at":         page.UpdatedAt,
	}).Error
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pages SET status = ?, updated_at = ? WHERE id = ?`,
		status, at, id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM pricing_plans WHERE page_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM pages WHERE id = ?`, id).Error
}
