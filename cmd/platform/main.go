package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/znapsite/platform/internal/aggregation"
	"github.com/znapsite/platform/internal/billing"
	"github.com/znapsite/platform/internal/cache"
	"github.com/znapsite/platform/internal/clock"
	"github.com/znapsite/platform/internal/config"
	"github.com/znapsite/platform/internal/migration"
	"github.com/znapsite/platform/internal/pricing"
	"github.com/znapsite/platform/internal/processor/stripe"
	"github.com/znapsite/platform/internal/providers/email"
	"github.com/znapsite/platform/internal/server"
	"github.com/znapsite/platform/internal/tenant"
	"github.com/znapsite/platform/internal/visitcap"
	"github.com/znapsite/platform/pkg/db"
	zaplog "github.com/znapsite/platform/pkg/log"
	"github.com/znapsite/platform/pkg/telemetry"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		zaplog.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(config.NewPricingHolder),
		db.Module,
		clock.Module,
		telemetry.Module,
		cache.Module,
		migration.Module,

		// collaborator adapters
		stripe.Module,
		email.Module,

		// domains
		tenant.Module,
		billing.Module,
		aggregation.Module,
		visitcap.Module,
		pricing.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Fatalf("snowflake node: %v", err)
	}
	return node
}
