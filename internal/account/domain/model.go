package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound  = errors.New("account_not_found")
	ErrInvalidAccountID = errors.New("invalid_account_id")
	// ErrOnboardingIncomplete means the processor has no details yet, so no
	// dashboard login can be issued.
	ErrOnboardingIncomplete = errors.New("onboarding_incomplete")
)

// ConnectedAccount caches a creator's payout account capabilities so the
// checkout path never has to ask the provider.
type ConnectedAccount struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CreatorID        string         `json:"creatorId" gorm:"type:varchar(128);not null;uniqueIndex:ux_connected_accounts_creator"`
	AccountID        string         `json:"accountId" gorm:"type:varchar(64);not null;index:idx_connected_accounts_account"`
	ChargesEnabled   bool           `json:"chargesEnabled" gorm:"not null;default:false"`
	PayoutsEnabled   bool           `json:"payoutsEnabled" gorm:"not null;default:false"`
	DetailsSubmitted bool           `json:"detailsSubmitted" gorm:"not null;default:false"`
	RequirementsDue  datatypes.JSON `json:"requirementsDue"`
	RefreshedAt      *time.Time     `json:"refreshedAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func (ConnectedAccount) TableName() string { return "connected_accounts" }

// CanAcceptCharges is the gate checkout applies before calling the provider.
func (a *ConnectedAccount) CanAcceptCharges() bool {
	return a != nil && a.AccountID != "" && a.ChargesEnabled
}

// OnboardingRequest starts or resumes hosted onboarding.
type OnboardingRequest struct {
	Email   string `json:"email"`
	Country string `json:"country"`
}

type OnboardingLink struct {
	AccountID string `json:"accountId"`
	URL       string `json:"url"`
}

type Repository interface {
	FindByCreator(ctx context.Context, db *gorm.DB, creatorID string) (*ConnectedAccount, error)
	Upsert(ctx context.Context, db *gorm.DB, account *ConnectedAccount) error
	ListPendingActivation(ctx context.Context, db *gorm.DB, limit int) ([]ConnectedAccount, error)
}

type Service interface {
	Get(ctx context.Context, creatorID string) (*ConnectedAccount, error)
	Link(ctx context.Context, creatorID, accountID string) (*ConnectedAccount, error)
	Refresh(ctx context.Context, creatorID string) (*ConnectedAccount, error)
	// Onboard opens an account for the creator when none is linked yet and
	// returns a hosted onboarding link for it.
	Onboard(ctx context.Context, creatorID string, req OnboardingRequest) (*OnboardingLink, error)
	DashboardLink(ctx context.Context, creatorID string) (string, error)
	// RefreshPending polls accounts that cannot take charges yet and returns
	// how many were refreshed.
	RefreshPending(ctx context.Context) (int, error)
}
