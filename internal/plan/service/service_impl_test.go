package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/clock"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	pagerepo "github.com/smallbiznis/makerhub/internal/page/repository"
	pageservice "github.com/smallbiznis/makerhub/internal/page/service"
	"github.com/smallbiznis/makerhub/internal/plan/domain"
	"github.com/smallbiznis/makerhub/internal/plan/repository"
	"github.com/smallbiznis/makerhub/internal/plan/service"
	"github.com/smallbiznis/makerhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc  domain.Service
	page *pagedomain.Page
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	pageSvc := pageservice.New(pageservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: pagerepo.Provide(),
	})
	page, err := pageSvc.Create(context.Background(), "owner-1", pagedomain.CreatePageRequest{
		Brand: "Plans Test", ChannelURL: "https://t.me/plans",
	})
	require.NoError(t, err)

	svc := service.New(service.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: repository.Provide(), PageSvc: pageSvc,
	})
	return fixture{svc: svc, page: page}
}

func input(name string) domain.PlanInput {
	return domain.PlanInput{
		Name:            name,
		BasePrice:       100,
		CurrencyCode:    "USD",
		BillingPeriod:   "month",
		DiscountPercent: 20,
	}
}

func TestAddPlanRejectsFourthPlan(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	for _, name := range []string{"Basic", "Pro", "VIP"} {
		_, err := f.svc.AddPlan(ctx, "owner-1", f.page.ID, input(name))
		require.NoError(t, err)
	}

	_, err := f.svc.AddPlan(ctx, "owner-1", f.page.ID, input("Extra"))
	assert.ErrorIs(t, err, domain.ErrPlanLimitExceeded)

	plans, err := f.svc.ListPlans(ctx, f.page.ID)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, []string{"Basic", "Pro", "VIP"}, []string{plans[0].Name, plans[1].Name, plans[2].Name})
}

func TestReplacePlansRejectsOverLimitBeforeStorage(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.ReplacePlans(ctx, "owner-1", f.page.ID, []domain.PlanInput{input("A")})
	require.NoError(t, err)

	_, err = f.svc.ReplacePlans(ctx, "owner-1", f.page.ID, []domain.PlanInput{input("1"), input("2"), input("3"), input("4")})
	assert.ErrorIs(t, err, domain.ErrPlanLimitExceeded)

	plans, err := f.svc.ListPlans(ctx, f.page.ID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "A", plans[0].Name)
}

func TestReplacePlansStoresFinalPrice(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	plans, err := f.svc.ReplacePlans(ctx, "owner-1", f.page.ID, []domain.PlanInput{input("Monthly")})
	require.NoError(t, err)
	require.Len(t, plans, 1)

	stored, err := f.svc.GetPlan(ctx, f.page.ID, plans[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "80", stored.FinalPrice.String())
	assert.Equal(t, domain.PeriodMonth, stored.BillingPeriod)
}

func TestReplacePlansReturnsAllViolations(t *testing.T) {
	f := setup(t)

	bad := input("")
	bad.DiscountPercent = 150
	_, err := f.svc.ReplacePlans(context.Background(), "owner-1", f.page.ID, []domain.PlanInput{bad})

	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestOnlyOnePopularPlan(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	first := input("First")
	first.IsPopular = true
	a, err := f.svc.AddPlan(ctx, "owner-1", f.page.ID, first)
	require.NoError(t, err)

	second := input("Second")
	second.IsPopular = true
	b, err := f.svc.AddPlan(ctx, "owner-1", f.page.ID, second)
	require.NoError(t, err)

	got, err := f.svc.GetPlan(ctx, f.page.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPopular)

	got, err = f.svc.GetPlan(ctx, f.page.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPopular)
}

func TestUpdateAndDeletePlan(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	plan, err := f.svc.AddPlan(ctx, "owner-1", f.page.ID, input("Old"))
	require.NoError(t, err)

	updated := input("New")
	updated.BillingPeriod = "year"
	got, err := f.svc.UpdatePlan(ctx, "owner-1", f.page.ID, plan.ID, updated)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, plan.ID, got.ID)

	_, err = f.svc.UpdatePlan(ctx, "owner-1", f.page.ID, snowflake.ID(42), updated)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)

	require.NoError(t, f.svc.DeletePlan(ctx, "owner-1", f.page.ID, plan.ID))
	assert.ErrorIs(t, f.svc.DeletePlan(ctx, "owner-1", f.page.ID, plan.ID), domain.ErrPlanNotFound)
}

func TestPlanWritesRequireOwnership(t *testing.T) {
	f := setup(t)

	_, err := f.svc.AddPlan(context.Background(), "intruder", f.page.ID, input("X"))
	assert.ErrorIs(t, err, pagedomain.ErrForbidden)
}
