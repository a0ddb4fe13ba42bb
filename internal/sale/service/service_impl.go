package service

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	"github.com/smallbiznis/makerhub/internal/sale/domain"
	"github.com/smallbiznis/makerhub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	PageSvc pagedomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	pageSvc pagedomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("sale.service"),
		repo:    p.Repo,
		pageSvc: p.PageSvc,
	}
}

func (s *Service) Record(ctx context.Context, sale *domain.Sale) (bool, error) {
	return s.repo.InsertIfAbsent(ctx, s.db, sale)
}

func (s *Service) FindBySession(ctx context.Context, sessionID string) (*domain.Sale, error) {
	return s.repo.FindBySession(ctx, s.db, sessionID)
}

func (s *Service) CountByPlan(ctx context.Context, planID snowflake.ID) (int64, error) {
	return s.repo.CountByPlan(ctx, s.db, planID)
}

func (s *Service) List(ctx context.Context, req domain.ListSalesRequest) (domain.ListSalesResponse, error) {
	if _, err := s.pageSvc.GetOwned(ctx, req.OwnerID, req.PageID); err != nil {
		return domain.ListSalesResponse{}, err
	}

	var before snowflake.ID
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListSalesResponse{}, err
		}
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return domain.ListSalesResponse{}, pagination.ErrInvalidPageToken
		}
		before = snowflake.ID(id)
	}

	limit := req.Limit()
	rows, err := s.repo.ListByPage(ctx, s.db, req.PageID, before, limit+1)
	if err != nil {
		return domain.ListSalesResponse{}, err
	}

	sales, info, err := pagination.BuildCursorPageInfo(rows, limit, func(sale domain.Sale) pagination.Cursor {
		return pagination.Cursor{ID: sale.ID.String()}
	})
	if err != nil {
		return domain.ListSalesResponse{}, err
	}
	if sales == nil {
		sales = []domain.Sale{}
	}
	return domain.ListSalesResponse{Sales: sales, PageInfo: info}, nil
}

func (s *Service) PageStats(ctx context.Context, ownerID string, pageID snowflake.ID) (*domain.PageStats, error) {
	page, err := s.pageSvc.GetOwned(ctx, ownerID, pageID)
	if err != nil {
		return nil, err
	}

	revenue, err := s.repo.RevenueByPage(ctx, s.db, pageID)
	if err != nil {
		return nil, err
	}
	buyers, err := s.repo.CountBuyers(ctx, s.db, pageID)
	if err != nil {
		return nil, err
	}

	stats := &domain.PageStats{
		PageID:         page.ID,
		Views:          page.Views,
		Clicks:         page.Clicks,
		Conversions:    page.Conversions,
		Buyers:         buyers,
		ClickRate:      percentOf(page.Clicks, page.Views),
		ConversionRate: percentOf(page.Conversions, page.Views),
		Revenue:        make([]domain.RevenueTotal, 0, len(revenue)),
	}
	for _, r := range revenue {
		if cur, err := currencydomain.Lookup(r.Currency); err == nil {
			r.Amount = cur.Round(r.Amount)
			r.CreatorReceives = cur.Round(r.CreatorReceives)
		}
		stats.Sales += r.Sales
		stats.Revenue = append(stats.Revenue, r)
	}
	return stats, nil
}

func percentOf(n, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(n).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(total)).Round(2)
}
