package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/clock"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	"github.com/smallbiznis/makerhub/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	PageSvc pagedomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	pageSvc pagedomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("plan.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		pageSvc: p.PageSvc,
	}
}

// ReplacePlans swaps the whole plan set of a page. Validation, including the
// plan cap, happens before any storage access.
func (s *Service) ReplacePlans(ctx context.Context, ownerID string, pageID snowflake.ID, inputs []domain.PlanInput) ([]domain.PricingPlan, error) {
	valid, err := domain.ValidatePlans(inputs)
	if err != nil {
		return nil, err
	}
	if _, err := s.pageSvc.GetOwned(ctx, ownerID, pageID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	plans := make([]domain.PricingPlan, 0, len(valid))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPage(ctx, tx, pageID); err != nil {
			return err
		}
		if err := s.repo.DeleteByPage(ctx, tx, pageID); err != nil {
			return err
		}
		for i, v := range valid {
			plan := v.Build(s.genID.Generate(), pageID, i, now)
			if err := s.repo.Insert(ctx, tx, &plan); err != nil {
				return err
			}
			plans = append(plans, plan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("plans replaced", zap.String("page_id", pageID.String()), zap.Int("count", len(plans)))
	return plans, nil
}

// AddPlan appends one plan. The count check runs inside the transaction so a
// fourth plan is rejected without touching the existing ones.
func (s *Service) AddPlan(ctx context.Context, ownerID string, pageID snowflake.ID, input domain.PlanInput) (*domain.PricingPlan, error) {
	valid, err := domain.Validate(input)
	if err != nil {
		return nil, err
	}
	if _, err := s.pageSvc.GetOwned(ctx, ownerID, pageID); err != nil {
		return nil, err
	}

	var plan domain.PricingPlan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPage(ctx, tx, pageID); err != nil {
			return err
		}
		count, err := s.repo.CountByPage(ctx, tx, pageID)
		if err != nil {
			return err
		}
		if count >= domain.MaxPlansPerPage {
			return domain.ErrPlanLimitExceeded
		}

		plan = valid.Build(s.genID.Generate(), pageID, int(count), s.clock.Now())
		if err := s.repo.Insert(ctx, tx, &plan); err != nil {
			return err
		}
		if plan.IsPopular {
			return s.repo.ClearPopular(ctx, tx, pageID, plan.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Service) UpdatePlan(ctx context.Context, ownerID string, pageID, planID snowflake.ID, input domain.PlanInput) (*domain.PricingPlan, error) {
	valid, err := domain.Validate(input)
	if err != nil {
		return nil, err
	}
	if _, err := s.pageSvc.GetOwned(ctx, ownerID, pageID); err != nil {
		return nil, err
	}

	var plan domain.PricingPlan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, pageID, planID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrPlanNotFound
		}

		plan = valid.Build(existing.ID, pageID, existing.Position, s.clock.Now())
		plan.CreatedAt = existing.CreatedAt
		if err := s.repo.Update(ctx, tx, &plan); err != nil {
			return err
		}
		if plan.IsPopular {
			return s.repo.ClearPopular(ctx, tx, pageID, plan.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Service) DeletePlan(ctx context.Context, ownerID string, pageID, planID snowflake.ID) error {
	if _, err := s.pageSvc.GetOwned(ctx, ownerID, pageID); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, s.db, pageID, planID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrPlanNotFound
	}
	return nil
}

func (s *Service) ListPlans(ctx context.Context, pageID snowflake.ID) ([]domain.PricingPlan, error) {
	return s.repo.ListByPage(ctx, s.db, pageID)
}

func (s *Service) GetPlan(ctx context.Context, pageID, planID snowflake.ID) (*domain.PricingPlan, error) {
	plan, err := s.repo.FindByID(ctx, s.db, pageID, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

// lockPage serializes plan writes per page. sqlite has no row locks and
// serializes writers itself.
func lockPage(ctx context.Context, tx *gorm.DB, pageID snowflake.ID) error {
	if name := tx.Dialector.Name(); name != "postgres" && name != "mysql" {
		return nil
	}
	return tx.WithContext(ctx).Exec(`SELECT id FROM pages WHERE id = ? FOR UPDATE`, pageID).Error
}
