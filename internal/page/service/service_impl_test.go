package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/makerhub/internal/clock"
	"github.com/smallbiznis/makerhub/internal/page/domain"
	"github.com/smallbiznis/makerhub/internal/page/repository"
	"github.com/smallbiznis/makerhub/internal/page/service"
	plandomain "github.com/smallbiznis/makerhub/internal/plan/domain"
	planrepo "github.com/smallbiznis/makerhub/internal/plan/repository"
	planservice "github.com/smallbiznis/makerhub/internal/plan/service"
	"github.com/smallbiznis/makerhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) domain.Service {
	svc, _ := newServiceWithDB(t)
	return svc
}

func newServiceWithDB(t *testing.T) (domain.Service, *gorm.DB) {
	db := testutil.OpenDB(t)
	return service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Clock: clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Repo:  repository.Provide(),
	}), db
}

func TestCreateGeneratesUniqueSlugs(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	req := domain.CreatePageRequest{Brand: "Crypto Signals Pro", ChannelURL: "https://t.me/signals"}
	first, err := svc.Create(ctx, "creator-1", req)
	require.NoError(t, err)
	second, err := svc.Create(ctx, "creator-2", req)
	require.NoError(t, err)

	assert.Equal(t, "crypto-signals-pro", first.Slug)
	assert.Equal(t, "crypto-signals-pro-2", second.Slug)

	bySlug, err := svc.GetBySlug(ctx, "Crypto-Signals-Pro")
	require.NoError(t, err)
	assert.Equal(t, first.ID, bySlug.ID)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Create(ctx, "creator-1", domain.CreatePageRequest{Brand: " ", ChannelURL: "https://t.me/x"})
	assert.ErrorIs(t, err, domain.ErrInvalidBrand)

	_, err = svc.Create(ctx, "creator-1", domain.CreatePageRequest{Brand: "Brand", ChannelURL: "t.me/x"})
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)

	bad := 140.0
	_, err = svc.Create(ctx, "creator-1", domain.CreatePageRequest{Brand: "Brand", ChannelURL: "https://t.me/x", CommissionPercent: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidCommission)
}

func TestResolveByIDOrSlugAndOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	commission := 7.5
	page, err := svc.Create(ctx, "creator-1", domain.CreatePageRequest{
		Brand:             "Daily Alpha",
		ChannelURL:        "https://t.me/alpha",
		CommissionPercent: &commission,
	})
	require.NoError(t, err)

	byID, err := svc.Resolve(ctx, page.ID.String())
	require.NoError(t, err)
	assert.Equal(t, page.Slug, byID.Slug)
	require.NotNil(t, byID.CommissionPercent)
	assert.Equal(t, "7.5", byID.CommissionPercent.String())

	bySlug, err := svc.Resolve(ctx, "daily-alpha")
	require.NoError(t, err)
	assert.Equal(t, page.ID, bySlug.ID)

	_, err = svc.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPageNotFound)

	_, err = svc.GetOwned(ctx, "someone-else", page.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestIncrementConversions(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	page, err := svc.Create(ctx, "creator-1", domain.CreatePageRequest{Brand: "Counter", ChannelURL: "https://t.me/c"})
	require.NoError(t, err)

	require.NoError(t, svc.IncrementConversions(ctx, nil, page.ID))
	require.NoError(t, svc.IncrementConversions(ctx, nil, page.ID))

	got, err := svc.Get(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Conversions)
}

func TestUpdatePatchesGivenFields(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	page, err := svc.Create(ctx, "creator-1", domain.CreatePageRequest{Brand: "Alpha", Headline: "Daily calls", ChannelURL: "https://t.me/alpha"})
	require.NoError(t, err)

	brand, commission := "Alpha Pro", 12.5
	updated, err := svc.Update(ctx, "creator-1", page.ID, domain.UpdatePageRequest{Brand: &brand, CommissionPercent: &commission})
	require.NoError(t, err)
	assert.Equal(t, "Alpha Pro", updated.Brand)
	assert.Equal(t, "Daily calls", updated.Headline)
	assert.Equal(t, page.Slug, updated.Slug)

	stored, err := svc.Get(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Pro", stored.Brand)
	require.NotNil(t, stored.CommissionPercent)
	assert.Equal(t, "12.5", stored.CommissionPercent.String())

	bad := "ftp://t.me/alpha"
	_, err = svc.Update(ctx, "creator-1", page.ID, domain.UpdatePageRequest{ChannelURL: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)

	_, err = svc.Update(ctx, "creator-2", page.ID, domain.UpdatePageRequest{Brand: &brand})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteRemovesPageAndPlans(t *testing.T) {
	ctx := context.Background()
	svc, db := newServiceWithDB(t)
	plans := planservice.New(planservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   testutil.Node(t),
		Clock:   clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Repo:    planrepo.Provide(),
		PageSvc: svc,
	})

	keep, err := svc.Create(ctx, "creator-1", domain.CreatePageRequest{Brand: "Keep", ChannelURL: "https://t.me/keep"})
	require.NoError(t, err)
	drop, err := svc.Create(ctx, "creator-1", domain.CreatePageRequest{Brand: "Drop", ChannelURL: "https://t.me/drop"})
	require.NoError(t, err)
	for _, page := range []*domain.Page{keep, drop} {
		_, err := plans.AddPlan(ctx, "creator-1", page.ID, plandomain.PlanInput{
			Name: "Monthly", BasePrice: 10, CurrencyCode: "USD", BillingPeriod: "month",
		})
		require.NoError(t, err)
	}

	assert.ErrorIs(t, svc.Delete(ctx, "creator-2", drop.ID), domain.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "creator-1", drop.ID))

	_, err = svc.Get(ctx, drop.ID)
	assert.ErrorIs(t, err, domain.ErrPageNotFound)

	var left int64
	require.NoError(t, db.Model(&plandomain.PricingPlan{}).Where("page_id = ?", drop.ID).Count(&left).Error)
	assert.Zero(t, left)
	require.NoError(t, db.Model(&plandomain.PricingPlan{}).Where("page_id = ?", keep.ID).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}

func TestDraftPagesAreHiddenFromPublicLookups(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	page, err := svc.Create(ctx, "creator-1", domain.CreatePageRequest{Brand: "Hidden", ChannelURL: "https://t.me/hidden"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, page.Status)

	_, err = svc.SetStatus(ctx, "creator-1", page.ID, "archived")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	draft, err := svc.SetStatus(ctx, "creator-1", page.ID, domain.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, draft.Status)

	_, err = svc.Resolve(ctx, page.Slug)
	assert.ErrorIs(t, err, domain.ErrPageNotFound)
	_, err = svc.Resolve(ctx, page.ID.String())
	assert.ErrorIs(t, err, domain.ErrPageNotFound)
	assert.ErrorIs(t, svc.Track(ctx, page.Slug, domain.CounterViews), domain.ErrPageNotFound)

	owned, err := svc.GetOwned(ctx, "creator-1", page.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, owned.Status)

	_, err = svc.SetStatus(ctx, "creator-1", page.ID, domain.StatusPublished)
	require.NoError(t, err)
	require.NoError(t, svc.Track(ctx, page.Slug, domain.CounterViews))
	require.NoError(t, svc.Track(ctx, page.Slug, domain.CounterClicks))

	tracked, err := svc.Get(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tracked.Views)
	assert.Equal(t, int64(1), tracked.Clicks)
}
