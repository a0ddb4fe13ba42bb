package service

import (
	"context"
	"net/mail"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/lead/domain"
	"github.com/smallbiznis/makerhub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("lead.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// RecordPurchase creates the lead on first purchase and bumps the counter
// afterwards. A concurrent first insert for the same email fails on the
// unique index and succeeds on retry as an update.
func (s *Service) RecordPurchase(ctx context.Context, db *gorm.DB, p domain.Purchase) (*domain.Lead, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if db == nil {
		db = s.db
	}

	existing, err := s.repo.FindByEmail(ctx, db, p.CreatorID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.repo.RecordPurchase(ctx, db, existing.ID, p.PageID, p.At); err != nil {
			return nil, err
		}
		existing.Purchases++
		existing.PageID = p.PageID
		existing.LastPurchaseAt = p.At
		return existing, nil
	}

	lead := &domain.Lead{
		ID:              s.genID.Generate(),
		CreatorID:       p.CreatorID,
		Email:           email,
		PageID:          p.PageID,
		Purchases:       1,
		FirstPurchaseAt: p.At,
		LastPurchaseAt:  p.At,
	}
	if err := s.repo.Insert(ctx, db, lead); err != nil {
		return nil, err
	}
	s.log.Debug("lead created", zap.String("creator_id", p.CreatorID), zap.String("lead_id", lead.ID.String()))
	return lead, nil
}

func (s *Service) List(ctx context.Context, req domain.ListLeadsRequest) (domain.ListLeadsResponse, error) {
	var before snowflake.ID
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListLeadsResponse{}, err
		}
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return domain.ListLeadsResponse{}, pagination.ErrInvalidPageToken
		}
		before = snowflake.ID(id)
	}

	limit := req.Limit()
	rows, err := s.repo.ListByCreator(ctx, s.db, req.CreatorID, before, limit+1)
	if err != nil {
		return domain.ListLeadsResponse{}, err
	}
	leads, info, err := pagination.BuildCursorPageInfo(rows, limit, func(l domain.Lead) pagination.Cursor {
		return pagination.Cursor{ID: l.ID.String()}
	})
	if err != nil {
		return domain.ListLeadsResponse{}, err
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	return domain.ListLeadsResponse{Leads: leads, PageInfo: info}, nil
}
