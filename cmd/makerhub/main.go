package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/makerhub/internal/account"
	"github.com/smallbiznis/makerhub/internal/checkout"
	"github.com/smallbiznis/makerhub/internal/clock"
	"github.com/smallbiznis/makerhub/internal/config"
	"github.com/smallbiznis/makerhub/internal/currency"
	"github.com/smallbiznis/makerhub/internal/events"
	"github.com/smallbiznis/makerhub/internal/lead"
	"github.com/smallbiznis/makerhub/internal/migration"
	"github.com/smallbiznis/makerhub/internal/observability"
	"github.com/smallbiznis/makerhub/internal/page"
	"github.com/smallbiznis/makerhub/internal/payment"
	"github.com/smallbiznis/makerhub/internal/plan"
	"github.com/smallbiznis/makerhub/internal/providers"
	"github.com/smallbiznis/makerhub/internal/ratelimit"
	"github.com/smallbiznis/makerhub/internal/sale"
	"github.com/smallbiznis/makerhub/internal/scheduler"
	"github.com/smallbiznis/makerhub/internal/server"
	"github.com/smallbiznis/makerhub/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Collaborators
		providers.Module,
		events.Module,
		ratelimit.Module,

		// Domains
		currency.Module,
		page.Module,
		plan.Module,
		account.Module,
		sale.Module,
		lead.Module,
		checkout.Module,
		payment.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
