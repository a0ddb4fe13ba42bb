package repository

import (
	"context"

	"github.com/smallbiznis/makerhub/internal/account/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByCreator(ctx context.Context, db *gorm.DB, creatorID string) (*domain.ConnectedAccount, error) {
	var item domain.ConnectedAccount
	err := db.WithContext(ctx).Raw(
		`SELECT id, creator_id, account_id, charges_enabled, payouts_enabled, details_submitted,
			requirements_due, refreshed_at, created_at, updated_at
		 FROM connected_accounts
		 WHERE creator_id = ?
		 LIMIT 1`,
		creatorID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, account *domain.ConnectedAccount) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "creator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"account_id",
			"charges_enabled",
			"payouts_enabled",
			"details_submitted",
			"requirements_due",
			"refreshed_at",
			"updated_at",
		}),
	}).Create(account).Error
}

func (r *repo) ListPendingActivation(ctx context.Context, db *gorm.DB, limit int) ([]domain.ConnectedAccount, error) {
	var items []domain.ConnectedAccount
	err := db.WithContext(ctx).Raw(
		`SELECT id, creator_id, account_id, charges_enabled, payouts_enabled, details_submitted,
			requirements_due, refreshed_at, created_at, updated_at
		 FROM connected_accounts
		 WHERE charges_enabled = ? OR payouts_enabled = ?
		 ORDER BY updated_at ASC
		 LIMIT ?`,
		false,
		false,
		limit,
	).Scan(&items).Error
	return items, err
}
