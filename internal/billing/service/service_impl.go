package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/znapsite/platform/internal/billing/domain"
	"github.com/znapsite/platform/internal/cache"
	"github.com/znapsite/platform/internal/clock"
	"github.com/znapsite/platform/internal/config"
	"github.com/znapsite/platform/internal/processor"
	tenantdomain "github.com/znapsite/platform/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cache     cache.UsageCache
	Clock     clock.Clock
	Pricing   *config.PricingHolder
	Tenants   tenantdomain.Repository
	Processor processor.Client `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	cache     cache.UsageCache
	clock     clock.Clock
	pricing   *config.PricingHolder
	tenants   tenantdomain.Repository
	processor processor.Client
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("billing.service"),
		genID:     p.GenID,
		cache:     p.Cache,
		clock:     p.Clock,
		pricing:   p.Pricing,
		tenants:   p.Tenants,
		processor: p.Processor,
	}
}

func (s *Service) CheckAICap(ctx context.Context, tenantSchema string) (billingdomain.CapStatus, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return billingdomain.CapStatus{}, err
	}

	metering := s.pricing.Get().Metering
	month := billingdomain.MonthStart(s.clock.Now())
	key := cache.AIUsageKey(tenantSchema, month)

	used, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		// cache trouble is never fatal on the admission path
		s.log.Warn("usage cache read failed", zap.String("tenant", tenantSchema), zap.Error(err))
		hit = false
	}

	if !hit {
		used, err = s.readLedgerAIUsage(ctx, tenant.ID, month)
		if err != nil {
			return billingdomain.CapStatus{}, err
		}
		if err := s.cache.Set(ctx, key, used, metering.CacheTTL()); err != nil {
			s.log.Warn("usage cache seed failed", zap.String("tenant", tenantSchema), zap.Error(err))
		}
	}

	capCents := metering.AICostCapCents
	remaining := capCents - used
	if remaining < 0 {
		remaining = 0
	}

	return billingdomain.CapStatus{
		Capped:         used >= capCents,
		UsedCents:      used,
		CapCents:       capCents,
		RemainingCents: remaining,
	}, nil
}

func (s *Service) RecordAIUsage(ctx context.Context, tenantSchema string, amountCents int64) error {
	if amountCents <= 0 {
		return billingdomain.ErrInvalidAmount
	}

	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return err
	}

	month := billingdomain.MonthStart(s.clock.Now())
	now := s.clock.Now()

	// Ledger first: it is the durable record. The cache bump below is
	// best-effort acceleration; a crash in between self-heals on the next
	// cache-miss reseed within one TTL.
	err = s.db.WithContext(ctx).Exec(
		`INSERT INTO monthly_usage (id, tenant_id, month, ai_tokens_used, visits_total, overage_fees_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?, ?)
		 ON CONFLICT (tenant_id, month)
		 DO UPDATE SET ai_tokens_used = monthly_usage.ai_tokens_used + excluded.ai_tokens_used,
		               updated_at = excluded.updated_at`,
		s.genID.Generate(), tenant.ID, month, amountCents, now, now,
	).Error
	if err != nil {
		return err
	}

	key := cache.AIUsageKey(tenantSchema, month)
	if err := s.cache.Incr(ctx, key, amountCents); err != nil {
		s.log.Warn("usage cache increment failed", zap.String("tenant", tenantSchema), zap.Error(err))
	}
	return nil
}

func (s *Service) SubscriptionStatus(ctx context.Context, tenantSchema string) (billingdomain.SubscriptionStatus, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return billingdomain.SubscriptionStatus{}, err
	}

	var premiumAddons int64
	err = s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tenant_addon_subscriptions
		 WHERE tenant_id = ? AND is_active = ? AND category = 'premium'`,
		tenant.ID, true,
	).Scan(&premiumAddons).Error
	if err != nil {
		return billingdomain.SubscriptionStatus{}, err
	}

	status := billingdomain.SubscriptionStatus{
		BasePlanType:          tenant.BasePlanType,
		ActivePremiumAddons:   premiumAddons,
		CanAccessDesignStudio: tenant.BasePlanType == tenantdomain.PlanAIPowered,
	}
	if tenant.StripeCustomerID != nil {
		status.StripeCustomerID = *tenant.StripeCustomerID
	}
	if tenant.StripeSubscriptionID != nil {
		status.StripeSubscriptionID = *tenant.StripeSubscriptionID
	}
	return status, nil
}

func (s *Service) AddSubscriptionItem(ctx context.Context, tenantSchema, addonID string) (string, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return "", err
	}
	if tenant.StripeSubscriptionID == nil || *tenant.StripeSubscriptionID == "" {
		return "", billingdomain.ErrNoSubscription
	}

	addon, ok := s.pricing.Get().Addon(addonID)
	if !ok || addon.StripePriceID == "" {
		return "", billingdomain.ErrNoPriceMapping
	}

	if s.processor == nil {
		return "", fmt.Errorf("%w: payment processor not configured", billingdomain.ErrExternalSync)
	}

	itemID, err := s.processor.AddSubscriptionItem(ctx, *tenant.StripeSubscriptionID, addon.StripePriceID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", billingdomain.ErrExternalSync, err)
	}
	return itemID, nil
}

func (s *Service) ProvisionCustomer(ctx context.Context, tenantSchema string) (billingdomain.ProvisionResult, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return billingdomain.ProvisionResult{}, err
	}
	if s.processor == nil {
		return billingdomain.ProvisionResult{}, fmt.Errorf("%w: payment processor not configured", billingdomain.ErrExternalSync)
	}

	result := billingdomain.ProvisionResult{}
	if tenant.StripeCustomerID != nil {
		result.StripeCustomerID = *tenant.StripeCustomerID
	}
	if tenant.StripeSubscriptionID != nil {
		result.StripeSubscriptionID = *tenant.StripeSubscriptionID
	}

	if result.StripeCustomerID == "" {
		email, err := s.tenants.OwnerEmail(ctx, tenant.ID)
		if err != nil {
			return billingdomain.ProvisionResult{}, err
		}
		customerID, err := s.processor.CreateCustomer(ctx, processor.CustomerInput{
			Email:        email,
			BusinessName: tenant.BusinessName,
			TenantSchema: tenantSchema,
		})
		if err != nil {
			return billingdomain.ProvisionResult{}, fmt.Errorf("%w: %v", billingdomain.ErrExternalSync, err)
		}
		if err := s.updateTenantColumn(ctx, tenant.ID, "stripe_customer_id", customerID); err != nil {
			return billingdomain.ProvisionResult{}, err
		}
		result.StripeCustomerID = customerID
	}

	if result.StripeSubscriptionID == "" {
		plan := s.pricing.Get().Plan(string(tenant.BasePlanType))
		if plan.StripePriceID == "" {
			return billingdomain.ProvisionResult{}, billingdomain.ErrNoPriceMapping
		}
		subscriptionID, err := s.processor.CreateSubscription(ctx, processor.SubscriptionInput{
			CustomerID: result.StripeCustomerID,
			PriceID:    plan.StripePriceID,
			Metadata: map[string]string{
				"tenant_id": tenantSchema,
				"plan_type": string(tenant.BasePlanType),
			},
		})
		if err != nil {
			return billingdomain.ProvisionResult{}, fmt.Errorf("%w: %v", billingdomain.ErrExternalSync, err)
		}
		if err := s.updateTenantColumn(ctx, tenant.ID, "stripe_subscription_id", subscriptionID); err != nil {
			return billingdomain.ProvisionResult{}, err
		}
		result.StripeSubscriptionID = subscriptionID
	}

	return result, nil
}

func (s *Service) readLedgerAIUsage(ctx context.Context, tenantID snowflake.ID, month time.Time) (int64, error) {
	var used int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(ai_tokens_used), 0) FROM monthly_usage
		 WHERE tenant_id = ? AND month = ?`,
		tenantID, month,
	).Scan(&used).Error
	if err != nil {
		return 0, err
	}
	return used, nil
}

func (s *Service) updateTenantColumn(ctx context.Context, tenantID snowflake.ID, column string, value string) error {
	return s.db.WithContext(ctx).
		Table("tenants").
		Where("id = ?", tenantID).
		Updates(map[string]any{column: value, "updated_at": s.clock.Now()}).Error
}
