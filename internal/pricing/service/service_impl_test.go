package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/znapsite/platform/internal/billing/domain"
	"github.com/znapsite/platform/internal/clock"
	"github.com/znapsite/platform/internal/config"
	pricingdomain "github.com/znapsite/platform/internal/pricing/domain"
	tenantrepository "github.com/znapsite/platform/internal/tenant/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type itemCreatorStub struct {
	itemID string
	err    error
	calls  int
}

func (i *itemCreatorStub) AddSubscriptionItem(ctx context.Context, tenantSchema, addonID string) (string, error) {
	i.calls++
	if i.err != nil {
		return "", i.err
	}
	return i.itemID, nil
}

func setupPricingService(t *testing.T, items billingdomain.ItemCreator) (pricingdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	stmts := []string{
		`CREATE TABLE tenants (
			id BIGINT PRIMARY KEY,
			schema_name TEXT NOT NULL UNIQUE,
			business_name TEXT NOT NULL,
			base_plan_type TEXT NOT NULL DEFAULT 'free',
			stripe_customer_id TEXT,
			stripe_subscription_id TEXT,
			monthly_visit_cap BIGINT NOT NULL DEFAULT 5000,
			current_month_visits BIGINT NOT NULL DEFAULT 0,
			visit_cap_warning_sent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE tenant_addon_subscriptions (
			id BIGINT PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			addon_id TEXT NOT NULL,
			category TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			stripe_subscription_item_id TEXT,
			subscribed_at DATETIME NOT NULL,
			cancelled_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX uidx_tenant_addon ON tenant_addon_subscriptions (tenant_id, addon_id)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	service := NewService(ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)),
		Pricing: config.NewStaticPricingHolder(config.DefaultPricingConfig()),
		Tenants: tenantrepository.New(db),
		Items:   items,
	})
	return service, db, node
}

func seedPricingTenant(t *testing.T, db *gorm.DB, node *snowflake.Node, plan string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO tenants (id, schema_name, business_name, base_plan_type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, "tenant_acme", "Acme Cuts", plan, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return id
}

func countAddonRows(t *testing.T, db *gorm.DB, tenantID snowflake.ID) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM tenant_addon_subscriptions WHERE tenant_id = ?`, tenantID).Scan(&count).Error; err != nil {
		t.Fatalf("count addon rows: %v", err)
	}
	return count
}

func TestSubscribeToAddonCreatesRowWithItemID(t *testing.T) {
	items := &itemCreatorStub{itemID: "si_77"}
	service, db, node := setupPricingService(t, items)
	tenantID := seedPricingTenant(t, db, node, "standard")

	row, err := service.SubscribeToAddon(context.Background(), "tenant_acme", "priority_support")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !row.IsActive {
		t.Fatal("expected active row")
	}
	if row.Category != "premium" {
		t.Fatalf("expected snapshotted category premium, got %q", row.Category)
	}
	if row.StripeSubscriptionItemID == nil || *row.StripeSubscriptionItemID != "si_77" {
		t.Fatalf("expected item id si_77, got %v", row.StripeSubscriptionItemID)
	}
	if countAddonRows(t, db, tenantID) != 1 {
		t.Fatal("expected exactly one row")
	}
}

func TestSubscribeToAddonFailsClosedOnExternalError(t *testing.T) {
	items := &itemCreatorStub{err: fmt.Errorf("%w: stripe down", billingdomain.ErrExternalSync)}
	service, db, node := setupPricingService(t, items)
	tenantID := seedPricingTenant(t, db, node, "standard")

	_, err := service.SubscribeToAddon(context.Background(), "tenant_acme", "priority_support")
	if !errors.Is(err, billingdomain.ErrExternalSync) {
		t.Fatalf("expected ErrExternalSync, got %v", err)
	}
	if countAddonRows(t, db, tenantID) != 0 {
		t.Fatal("external failure must not write a local row")
	}
}

func TestSubscribeToAddonValidatesCatalog(t *testing.T) {
	service, db, node := setupPricingService(t, nil)
	seedPricingTenant(t, db, node, "standard")

	if _, err := service.SubscribeToAddon(context.Background(), "tenant_acme", "no_such_addon"); !errors.Is(err, pricingdomain.ErrUnknownAddon) {
		t.Fatalf("expected ErrUnknownAddon, got %v", err)
	}
}

func TestSubscribeToAddonRejectsInactive(t *testing.T) {
	cfg := config.DefaultPricingConfig()
	for i := range cfg.Addons {
		if cfg.Addons[i].ID == "custom_domain" {
			cfg.Addons[i].Active = false
		}
	}
	items := &itemCreatorStub{itemID: "si_1"}
	_, db, node := setupPricingService(t, items)
	seedPricingTenant(t, db, node, "standard")

	// same wiring, catalog with a retired addon
	service := NewService(ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)),
		Pricing: config.NewStaticPricingHolder(cfg),
		Tenants: tenantrepository.New(db),
		Items:   items,
	})

	if _, err := service.SubscribeToAddon(context.Background(), "tenant_acme", "custom_domain"); !errors.Is(err, pricingdomain.ErrAddonInactive) {
		t.Fatalf("expected ErrAddonInactive, got %v", err)
	}
	if items.calls != 0 {
		t.Fatal("inactive addon must not reach the processor")
	}
}

func TestSubscribeToAddonReactivatesCancelledRow(t *testing.T) {
	items := &itemCreatorStub{itemID: "si_old"}
	service, db, node := setupPricingService(t, items)
	tenantID := seedPricingTenant(t, db, node, "standard")
	ctx := context.Background()

	if _, err := service.SubscribeToAddon(ctx, "tenant_acme", "priority_support"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := service.UnsubscribeFromAddon(ctx, "tenant_acme", "priority_support"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	items.itemID = "si_new"
	row, err := service.SubscribeToAddon(ctx, "tenant_acme", "priority_support")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if !row.IsActive || row.CancelledAt != nil {
		t.Fatalf("expected reactivated row, got %+v", row)
	}
	if row.StripeSubscriptionItemID == nil || *row.StripeSubscriptionItemID != "si_new" {
		t.Fatalf("expected fresh item id, got %v", row.StripeSubscriptionItemID)
	}
	if countAddonRows(t, db, tenantID) != 1 {
		t.Fatal("resubscribe must reuse the row, not add one")
	}
}

func TestSubscribeToAddonDegradedMode(t *testing.T) {
	service, db, node := setupPricingService(t, nil)
	seedPricingTenant(t, db, node, "standard")

	row, err := service.SubscribeToAddon(context.Background(), "tenant_acme", "custom_domain")
	if err != nil {
		t.Fatalf("subscribe without billing: %v", err)
	}
	if !row.IsActive {
		t.Fatal("expected active row")
	}
	if row.StripeSubscriptionItemID != nil {
		t.Fatalf("expected no item id in degraded mode, got %v", *row.StripeSubscriptionItemID)
	}
}

func TestUnsubscribeFromAddonRequiresActiveRow(t *testing.T) {
	service, db, node := setupPricingService(t, nil)
	seedPricingTenant(t, db, node, "standard")
	ctx := context.Background()

	if err := service.UnsubscribeFromAddon(ctx, "tenant_acme", "priority_support"); !errors.Is(err, pricingdomain.ErrAddonNotSubscribed) {
		t.Fatalf("expected ErrAddonNotSubscribed, got %v", err)
	}

	if _, err := service.SubscribeToAddon(ctx, "tenant_acme", "priority_support"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := service.UnsubscribeFromAddon(ctx, "tenant_acme", "priority_support"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	// Already cancelled.
	if err := service.UnsubscribeFromAddon(ctx, "tenant_acme", "priority_support"); !errors.Is(err, pricingdomain.ErrAddonNotSubscribed) {
		t.Fatalf("expected ErrAddonNotSubscribed on repeat, got %v", err)
	}
}

func TestCalculateMonthlyTotalAddsActiveAddons(t *testing.T) {
	service, db, node := setupPricingService(t, nil)
	seedPricingTenant(t, db, node, "standard")
	ctx := context.Background()

	if _, err := service.SubscribeToAddon(ctx, "tenant_acme", "priority_support"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := service.SubscribeToAddon(ctx, "tenant_acme", "custom_domain"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := service.SubscribeToAddon(ctx, "tenant_acme", "advanced_analytics"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := service.UnsubscribeFromAddon(ctx, "tenant_acme", "advanced_analytics"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	total, err := service.CalculateMonthlyTotal(ctx, "tenant_acme")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	// standard 1900 + priority_support 900 + custom_domain 500
	if total != 3300 {
		t.Fatalf("expected 3300 cents, got %d", total)
	}
}

func TestCalculateMonthlyTotalAIPoweredIgnoresAddons(t *testing.T) {
	service, db, node := setupPricingService(t, nil)
	seedPricingTenant(t, db, node, "ai_powered")
	ctx := context.Background()

	if _, err := service.SubscribeToAddon(ctx, "tenant_acme", "priority_support"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	total, err := service.CalculateMonthlyTotal(ctx, "tenant_acme")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 4900 {
		t.Fatalf("expected flat 4900 cents on ai_powered, got %d", total)
	}
}
