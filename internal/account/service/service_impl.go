package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/account/domain"
	"github.com/smallbiznis/makerhub/internal/clock"
	"github.com/smallbiznis/makerhub/internal/config"
	providerdomain "github.com/smallbiznis/makerhub/internal/providers/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const refreshBatchSize = 100

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Repo     domain.Repository
	Provider providerdomain.Provider
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	baseURL  string
	repo     domain.Repository
	provider providerdomain.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("account.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		baseURL:  strings.TrimRight(p.Cfg.BaseURL, "/"),
		repo:     p.Repo,
		provider: p.Provider,
	}
}

func (s *Service) Get(ctx context.Context, creatorID string) (*domain.ConnectedAccount, error) {
	acct, err := s.repo.FindByCreator(ctx, s.db, creatorID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}
	return acct, nil
}

// Link records the creator's connected account id and tries one refresh.
// A failed refresh leaves the account linked but not chargeable; the
// scheduled poller picks it up later.
func (s *Service) Link(ctx context.Context, creatorID, accountID string) (*domain.ConnectedAccount, error) {
	accountID = strings.TrimSpace(accountID)
	if !strings.HasPrefix(accountID, "acct_") {
		return nil, domain.ErrInvalidAccountID
	}

	now := s.clock.Now()
	acct := &domain.ConnectedAccount{
		ID:        s.genID.Generate(),
		CreatorID: creatorID,
		AccountID: accountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, acct); err != nil {
		return nil, err
	}

	refreshed, err := s.Refresh(ctx, creatorID)
	if err != nil {
		s.log.Warn("initial account refresh failed",
			zap.String("creator_id", creatorID),
			zap.Error(err),
		)
		return s.Get(ctx, creatorID)
	}
	return refreshed, nil
}

func (s *Service) Refresh(ctx context.Context, creatorID string) (*domain.ConnectedAccount, error) {
	acct, err := s.Get(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	status, err := s.provider.RetrieveAccount(ctx, acct.AccountID)
	if err != nil {
		return nil, fmt.Errorf("retrieve account: %w", err)
	}

	due, err := json.Marshal(nonNil(status.CurrentlyDue))
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	acct.ChargesEnabled = status.ChargesEnabled
	acct.PayoutsEnabled = status.PayoutsEnabled
	acct.DetailsSubmitted = status.DetailsSubmitted
	acct.RequirementsDue = datatypes.JSON(due)
	acct.RefreshedAt = &now
	acct.UpdatedAt = now
	if err := s.repo.Upsert(ctx, s.db, acct); err != nil {
		return nil, err
	}

	s.log.Info("account refreshed",
		zap.String("creator_id", creatorID),
		zap.Bool("charges_enabled", acct.ChargesEnabled),
		zap.Bool("payouts_enabled", acct.PayoutsEnabled),
	)
	return acct, nil
}

func (s *Service) Onboard(ctx context.Context, creatorID string, req domain.OnboardingRequest) (*domain.OnboardingLink, error) {
	acct, err := s.repo.FindByCreator(ctx, s.db, creatorID)
	if err != nil {
		return nil, err
	}

	if acct == nil {
		accountID, err := s.provider.CreateAccount(ctx, providerdomain.AccountRequest{
			CreatorID: creatorID,
			Email:     strings.TrimSpace(req.Email),
			Country:   strings.TrimSpace(req.Country),
		})
		if err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}

		now := s.clock.Now()
		acct = &domain.ConnectedAccount{
			ID:        s.genID.Generate(),
			CreatorID: creatorID,
			AccountID: accountID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Upsert(ctx, s.db, acct); err != nil {
			return nil, err
		}
		s.log.Info("connected account created",
			zap.String("creator_id", creatorID),
			zap.String("account_id", accountID),
		)
	}

	url, err := s.provider.CreateOnboardingLink(ctx, providerdomain.OnboardingRequest{
		AccountID:  acct.AccountID,
		RefreshURL: s.baseURL + "/dashboard/payouts?onboarding=refresh",
		ReturnURL:  s.baseURL + "/dashboard/payouts?onboarding=return",
	})
	if err != nil {
		return nil, fmt.Errorf("create onboarding link: %w", err)
	}
	return &domain.OnboardingLink{AccountID: acct.AccountID, URL: url}, nil
}

// DashboardLink returns a single-use login to the processor's express
// dashboard.
func (s *Service) DashboardLink(ctx context.Context, creatorID string) (string, error) {
	acct, err := s.Get(ctx, creatorID)
	if err != nil {
		return "", err
	}
	if !acct.DetailsSubmitted {
		return "", domain.ErrOnboardingIncomplete
	}

	url, err := s.provider.CreateLoginLink(ctx, acct.AccountID)
	if err != nil {
		return "", fmt.Errorf("create login link: %w", err)
	}
	return url, nil
}

func (s *Service) RefreshPending(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPendingActivation(ctx, s.db, refreshBatchSize)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, acct := range pending {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, err := s.Refresh(ctx, acct.CreatorID); err != nil {
			s.log.Warn("pending account refresh failed",
				zap.String("creator_id", acct.CreatorID),
				zap.Error(err),
			)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
