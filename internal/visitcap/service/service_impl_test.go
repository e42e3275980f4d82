package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/znapsite/platform/internal/clock"
	"github.com/znapsite/platform/internal/config"
	tenantrepository "github.com/znapsite/platform/internal/tenant/repository"
	visitcapdomain "github.com/znapsite/platform/internal/visitcap/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type notifierStub struct {
	calls        int
	err          error
	lastTo       string
	lastBusiness string
	lastCurrent  int64
	lastCap      int64
}

func (n *notifierStub) SendVisitCapWarning(ctx context.Context, to, businessName string, current, cap int64) error {
	n.calls++
	n.lastTo = to
	n.lastBusiness = businessName
	n.lastCurrent = current
	n.lastCap = cap
	return n.err
}

func setupVisitCapService(t *testing.T, notifier *notifierStub) (visitcapdomain.Service, *gorm.DB, *snowflake.Node) {
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
		`CREATE TABLE users (
			id BIGINT PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			email TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
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

	cfg := config.Config{UpgradeURL: "https://app.znapsite.test/upgrade"}
	service := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)),
		Config:   cfg,
		Pricing:  config.NewStaticPricingHolder(config.DefaultPricingConfig()),
		Tenants:  tenantrepository.New(db),
		Notifier: notifier,
	})
	return service, db, node
}

func seedVisitTenant(t *testing.T, db *gorm.DB, node *snowflake.Node, plan string, current int64, warned bool) snowflake.ID {
	t.Helper()
	id := node.Generate()
	now := time.Now().UTC()
	err := db.Exec(
		`INSERT INTO tenants (id, schema_name, business_name, base_plan_type, monthly_visit_cap, current_month_visits, visit_cap_warning_sent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 5000, ?, ?, ?, ?)`,
		id, "tenant_acme", "Acme Cuts", plan, current, warned, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	err = db.Exec(
		`INSERT INTO users (id, tenant_id, email, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		node.Generate(), id, "owner@acme.test", "owner", now,
	).Error
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	return id
}

func visitCount(t *testing.T, db *gorm.DB, id snowflake.ID) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT current_month_visits FROM tenants WHERE id = ?`, id).Scan(&count).Error; err != nil {
		t.Fatalf("read visits: %v", err)
	}
	return count
}

func TestTrackVisitPaidPlanUnlimited(t *testing.T) {
	notifier := &notifierStub{}
	service, db, node := setupVisitCapService(t, notifier)
	id := seedVisitTenant(t, db, node, "standard", 999999, false)

	result, err := service.TrackVisit(context.Background(), "tenant_acme")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if !result.Allowed || result.Remaining != -1 || result.AtCap {
		t.Fatalf("expected unlimited result, got %+v", result)
	}
	if visitCount(t, db, id) != 999999 {
		t.Fatal("paid plans must not be counted")
	}
}

func TestTrackVisitDeniesAtCapWithoutIncrement(t *testing.T) {
	notifier := &notifierStub{}
	service, db, node := setupVisitCapService(t, notifier)
	id := seedVisitTenant(t, db, node, "free", 5000, true)

	result, err := service.TrackVisit(context.Background(), "tenant_acme")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if result.Allowed || !result.AtCap || result.Remaining != 0 {
		t.Fatalf("expected denial at cap, got %+v", result)
	}
	if visitCount(t, db, id) != 5000 {
		t.Fatal("denied visit must not increment the counter")
	}
}

func TestTrackVisitIncrementsAndReportsRemaining(t *testing.T) {
	notifier := &notifierStub{}
	service, db, node := setupVisitCapService(t, notifier)
	id := seedVisitTenant(t, db, node, "free", 100, false)

	result, err := service.TrackVisit(context.Background(), "tenant_acme")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if !result.Allowed || result.AtCap {
		t.Fatalf("expected allowed, got %+v", result)
	}
	if result.Remaining != 4899 {
		t.Fatalf("expected 4899 remaining, got %d", result.Remaining)
	}
	if visitCount(t, db, id) != 101 {
		t.Fatalf("expected counter 101, got %d", visitCount(t, db, id))
	}
	if notifier.calls != 0 {
		t.Fatal("no warning expected below the threshold")
	}
}

func TestTrackVisitSendsWarningOnceAtThreshold(t *testing.T) {
	notifier := &notifierStub{}
	service, db, node := setupVisitCapService(t, notifier)
	seedVisitTenant(t, db, node, "free", 4000, false)

	if _, err := service.TrackVisit(context.Background(), "tenant_acme"); err != nil {
		t.Fatalf("track: %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected 1 warning, got %d", notifier.calls)
	}
	if notifier.lastTo != "owner@acme.test" || notifier.lastBusiness != "Acme Cuts" {
		t.Fatalf("unexpected warning recipient: %q %q", notifier.lastTo, notifier.lastBusiness)
	}
	if notifier.lastCurrent != 4001 || notifier.lastCap != 5000 {
		t.Fatalf("expected warning at 4001/5000, got %d/%d", notifier.lastCurrent, notifier.lastCap)
	}

	// The flag suppresses any further sends.
	if _, err := service.TrackVisit(context.Background(), "tenant_acme"); err != nil {
		t.Fatalf("track: %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected no duplicate warning, got %d", notifier.calls)
	}
}

func TestTrackVisitSurvivesNotifierFailure(t *testing.T) {
	notifier := &notifierStub{err: errors.New("smtp down")}
	service, db, node := setupVisitCapService(t, notifier)
	id := seedVisitTenant(t, db, node, "free", 4200, false)

	result, err := service.TrackVisit(context.Background(), "tenant_acme")
	if err != nil {
		t.Fatalf("notifier failure must not break tracking: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected allowed, got %+v", result)
	}

	// Flag was claimed before the failed send; no retry storm on the next hit.
	var warned bool
	if err := db.Raw(`SELECT visit_cap_warning_sent FROM tenants WHERE id = ?`, id).Scan(&warned).Error; err != nil {
		t.Fatalf("read flag: %v", err)
	}
	if !warned {
		t.Fatal("expected warning flag set before dispatch")
	}
}

func TestCheckVisitCapPercentageClamped(t *testing.T) {
	notifier := &notifierStub{}
	service, db, node := setupVisitCapService(t, notifier)
	seedVisitTenant(t, db, node, "free", 6000, true)

	usage, err := service.CheckVisitCap(context.Background(), "tenant_acme")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if usage.Current != 6000 || usage.Cap != 5000 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if usage.Percentage != 100 {
		t.Fatalf("expected clamped 100%%, got %v", usage.Percentage)
	}
}

func TestCheckVisitCapUnlimitedForPaid(t *testing.T) {
	notifier := &notifierStub{}
	service, db, node := setupVisitCapService(t, notifier)
	seedVisitTenant(t, db, node, "ai_powered", 123, false)

	usage, err := service.CheckVisitCap(context.Background(), "tenant_acme")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if usage.Cap != -1 || usage.Percentage != 0 {
		t.Fatalf("expected unlimited usage, got %+v", usage)
	}
}

func TestResetMonthlyCountersFreeOnly(t *testing.T) {
	notifier := &notifierStub{}
	service, db, node := setupVisitCapService(t, notifier)

	freeID := seedVisitTenant(t, db, node, "free", 4500, true)
	now := time.Now().UTC()
	paidID := node.Generate()
	err := db.Exec(
		`INSERT INTO tenants (id, schema_name, business_name, base_plan_type, monthly_visit_cap, current_month_visits, visit_cap_warning_sent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 5000, 777, ?, ?, ?)`,
		paidID, "tenant_other", "Other Cuts", "standard", false, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed paid tenant: %v", err)
	}

	if err := service.ResetMonthlyCounters(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if visitCount(t, db, freeID) != 0 {
		t.Fatal("free tenant counter must be zeroed")
	}
	var warned bool
	if err := db.Raw(`SELECT visit_cap_warning_sent FROM tenants WHERE id = ?`, freeID).Scan(&warned).Error; err != nil {
		t.Fatalf("read flag: %v", err)
	}
	if warned {
		t.Fatal("warning flag must be cleared on reset")
	}
	if visitCount(t, db, paidID) != 777 {
		t.Fatal("paid tenant counter must be untouched")
	}
}

func TestEnforceCapPrompt(t *testing.T) {
	notifier := &notifierStub{}
	service, db, node := setupVisitCapService(t, notifier)
	seedVisitTenant(t, db, node, "free", 5000, true)

	prompt, err := service.EnforceCap(context.Background(), "tenant_acme")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if prompt.UpgradeURL != "https://app.znapsite.test/upgrade" {
		t.Fatalf("unexpected upgrade url: %q", prompt.UpgradeURL)
	}
	if prompt.Current != 5000 || prompt.Cap != 5000 {
		t.Fatalf("unexpected prompt numbers: %+v", prompt)
	}
	if prompt.Message == "" {
		t.Fatal("expected a prompt message")
	}
}
