package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/checkout/domain"
	"gorm.io/gorm"
)

const sessionColumns = `id, provider, provider_session_id, payment_intent_id, page_id, plan_id,
	creator_id, customer_email, mode, currency, amount, commission_percent, platform_fee,
	creator_receives, status, metadata, completed_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, session *domain.CheckoutSession) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CheckoutSession, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByProviderSession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.CheckoutSession, error) {
	return r.findOne(ctx, db, `provider_session_id = ?`, sessionID)
}

func (r *repo) FindByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.CheckoutSession, error) {
	return r.findOne(ctx, db, `payment_intent_id = ?`, paymentIntentID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.CheckoutSession, error) {
	var item domain.CheckoutSession
	err := db.WithContext(ctx).Raw(
		`SELECT `+sessionColumns+`
		 FROM checkout_sessions
		 WHERE `+where+`
		 LIMIT 1`,
		arg,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, at time.Time) (bool, error) {
	var completedAt *time.Time
	if status == domain.StatusCompleted {
		completedAt = &at
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE checkout_sessions
		 SET status = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		completedAt,
		at,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetPaymentIntent(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentIntentID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE checkout_sessions
		 SET payment_intent_id = ?
		 WHERE id = ? AND (payment_intent_id IS NULL OR payment_intent_id = '')`,
		paymentIntentID,
		id,
	).Error
}
