package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/makerhub/internal/clock"
	"github.com/smallbiznis/makerhub/internal/page/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSlugAttempts = 20

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("page.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, ownerID string, req domain.CreatePageRequest) (*domain.Page, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, domain.ErrForbidden
	}
	brand, err := cleanBrand(req.Brand)
	if err != nil {
		return nil, err
	}
	channel, err := cleanChannel(req.ChannelURL)
	if err != nil {
		return nil, err
	}

	page := &domain.Page{
		ID:         s.genID.Generate(),
		OwnerID:    ownerID,
		Brand:      brand,
		Headline:   strings.TrimSpace(req.Headline),
		ChannelURL: channel,
		Status:     domain.StatusPublished,
		CreatedAt:  s.clock.Now(),
		UpdatedAt:  s.clock.Now(),
	}
	if req.CommissionPercent != nil {
		c, err := cleanCommission(*req.CommissionPercent)
		if err != nil {
			return nil, err
		}
		page.CommissionPercent = &c
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		slugValue, err := s.uniqueSlug(ctx, tx, brand)
		if err != nil {
			return err
		}
		page.Slug = slugValue
		return s.repo.Insert(ctx, tx, page)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("page created", zap.String("page_id", page.ID.String()), zap.String("slug", page.Slug))
	return page, nil
}

func (s *Service) uniqueSlug(ctx context.Context, tx *gorm.DB, brand string) (string, error) {
	base := slug.Make(brand)
	if base == "" {
		base = "page"
	}
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		existing, err := s.repo.FindBySlug(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%s", base, s.genID.Generate().Base36()), nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Page, error) {
	page, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, domain.ErrPageNotFound
	}
	return page, nil
}

func (s *Service) GetBySlug(ctx context.Context, slugValue string) (*domain.Page, error) {
	page, err := s.repo.FindBySlug(ctx, s.db, strings.ToLower(strings.TrimSpace(slugValue)))
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, domain.ErrPageNotFound
	}
	return page, nil
}

func (s *Service) Resolve(ctx context.Context, idOrSlug string) (*domain.Page, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, domain.ErrPageNotFound
	}
	if n, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		page, err := s.repo.FindByID(ctx, s.db, snowflake.ID(n))
		if err != nil {
			return nil, err
		}
		if page != nil {
			if page.Status == domain.StatusDraft {
				return nil, domain.ErrPageNotFound
			}
			return page, nil
		}
	}
	page, err := s.GetBySlug(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if page.Status == domain.StatusDraft {
		return nil, domain.ErrPageNotFound
	}
	return page, nil
}

func (s *Service) GetOwned(ctx context.Context, ownerID string, id snowflake.ID) (*domain.Page, error) {
	page, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if page.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return page, nil
}

func (s *Service) ListOwned(ctx context.Context, ownerID string) ([]domain.Page, error) {
	return s.repo.ListByOwner(ctx, s.db, ownerID)
}

// IncrementConversions runs on the caller's transaction so the counter
// moves together with the marker that guards it.
func (s *Service) IncrementConversions(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if db == nil {
		db = s.db
	}
	return s.repo.IncrementConversions(ctx, db, id)
}

func (s *Service) Update(ctx context.Context, ownerID string, id snowflake.ID, req domain.UpdatePageRequest) (*domain.Page, error) {
	page, err := s.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Brand != nil {
		if page.Brand, err = cleanBrand(*req.Brand); err != nil {
			return nil, err
		}
	}
	if req.Headline != nil {
		page.Headline = strings.TrimSpace(*req.Headline)
	}
	if req.ChannelURL != nil {
		if page.ChannelURL, err = cleanChannel(*req.ChannelURL); err != nil {
			return nil, err
		}
	}
	if req.CommissionPercent != nil {
		c, err := cleanCommission(*req.CommissionPercent)
		if err != nil {
			return nil, err
		}
		page.CommissionPercent = &c
	}
	page.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, page); err != nil {
		return nil, err
	}
	return page, nil
}

// Delete drops the page and its plans in one transaction.
func (s *Service) Delete(ctx context.Context, ownerID string, id snowflake.ID) error {
	if _, err := s.GetOwned(ctx, ownerID, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("page deleted", zap.String("page_id", id.String()))
	return nil
}

func (s *Service) SetStatus(ctx context.Context, ownerID string, id snowflake.ID, status domain.Status) (*domain.Page, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	page, err := s.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if page.Status == status {
		return page, nil
	}

	now := s.clock.Now()
	if err := s.repo.SetStatus(ctx, s.db, id, status, now); err != nil {
		return nil, err
	}
	page.Status = status
	page.UpdatedAt = now
	s.log.Info("page status changed", zap.String("page_id", id.String()), zap.String("status", string(status)))
	return page, nil
}

func (s *Service) Track(ctx context.Context, idOrSlug string, counter domain.Counter) error {
	page, err := s.Resolve(ctx, idOrSlug)
	if err != nil {
		return err
	}
	return s.repo.IncrementCounter(ctx, s.db, page.ID, counter)
}

func cleanBrand(raw string) (string, error) {
	brand := strings.TrimSpace(raw)
	if brand == "" || len(brand) > 120 {
		return "", domain.ErrInvalidBrand
	}
	return brand, nil
}

func cleanChannel(raw string) (string, error) {
	channel := strings.TrimSpace(raw)
	if u, err := url.Parse(channel); err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", domain.ErrInvalidChannel
	}
	return channel, nil
}

func cleanCommission(v float64) (decimal.Decimal, error) {
	c := decimal.NewFromFloat(v).Round(2)
	if c.IsNegative() || c.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Decimal{}, domain.ErrInvalidCommission
	}
	return c, nil
}
