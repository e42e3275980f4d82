package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/znapsite/platform/internal/billing/domain"
	"github.com/znapsite/platform/internal/clock"
	"github.com/znapsite/platform/internal/config"
	pricingdomain "github.com/znapsite/platform/internal/pricing/domain"
	tenantdomain "github.com/znapsite/platform/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Pricing *config.PricingHolder
	Tenants tenantdomain.Repository
	Items   billingdomain.ItemCreator `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	pricing *config.PricingHolder
	tenants tenantdomain.Repository
	items   billingdomain.ItemCreator
}

func NewService(p ServiceParam) pricingdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("pricing.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		pricing: p.Pricing,
		tenants: p.Tenants,
		items:   p.Items,
	}
}

func (s *Service) SubscribeToAddon(ctx context.Context, tenantSchema, addonID string) (*pricingdomain.AddonSubscription, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return nil, err
	}

	addon, ok := s.pricing.Get().Addon(addonID)
	if !ok {
		return nil, pricingdomain.ErrUnknownAddon
	}
	if !addon.Active {
		return nil, pricingdomain.ErrAddonInactive
	}

	// External first, fail closed: if the processor cannot add the line
	// item, nothing is written locally and the tenant is not charged.
	var itemID string
	if s.items != nil {
		itemID, err = s.items.AddSubscriptionItem(ctx, tenantSchema, addonID)
		if err != nil {
			return nil, err
		}
	} else {
		s.log.Info("billing not wired, subscribing addon locally only",
			zap.String("tenant", tenantSchema), zap.String("addon", addon.ID))
	}

	now := s.clock.Now()
	var externalItem any
	if itemID != "" {
		externalItem = itemID
	}

	err = s.db.WithContext(ctx).Exec(
		`INSERT INTO tenant_addon_subscriptions
		   (id, tenant_id, addon_id, category, is_active, stripe_subscription_item_id, subscribed_at, cancelled_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
		 ON CONFLICT (tenant_id, addon_id)
		 DO UPDATE SET is_active = excluded.is_active,
		               category = excluded.category,
		               stripe_subscription_item_id = excluded.stripe_subscription_item_id,
		               subscribed_at = excluded.subscribed_at,
		               cancelled_at = NULL,
		               updated_at = excluded.updated_at`,
		s.genID.Generate(), tenant.ID, addon.ID, addon.Category, true, externalItem, now, now, now,
	).Error
	if err != nil {
		return nil, err
	}

	var row pricingdomain.AddonSubscription
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND addon_id = ?", tenant.ID, addon.ID).
		First(&row).Error
	if err != nil {
		return nil, err
	}

	s.log.Info("addon subscribed",
		zap.String("tenant", tenantSchema),
		zap.String("addon", addon.ID),
		zap.Bool("external_item", itemID != ""))
	return &row, nil
}

func (s *Service) UnsubscribeFromAddon(ctx context.Context, tenantSchema, addonID string) error {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Exec(
		`UPDATE tenant_addon_subscriptions
		 SET is_active = ?, cancelled_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND addon_id = ? AND is_active = ?`,
		false, s.clock.Now(), s.clock.Now(), tenant.ID, addonID, true,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pricingdomain.ErrAddonNotSubscribed
	}

	s.log.Info("addon unsubscribed", zap.String("tenant", tenantSchema), zap.String("addon", addonID))
	return nil
}

func (s *Service) CalculateMonthlyTotal(ctx context.Context, tenantSchema string) (int64, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return 0, err
	}

	catalog := s.pricing.Get()
	total := catalog.Plan(string(tenant.BasePlanType)).PriceCents

	// The ai_powered plan is all-inclusive; add-ons only bill separately on
	// lower plans.
	if tenant.BasePlanType == tenantdomain.PlanAIPowered {
		return total, nil
	}

	var addonIDs []string
	err = s.db.WithContext(ctx).Raw(
		`SELECT addon_id FROM tenant_addon_subscriptions WHERE tenant_id = ? AND is_active = ?`,
		tenant.ID, true,
	).Scan(&addonIDs).Error
	if err != nil {
		return 0, err
	}

	for _, id := range addonIDs {
		addon, ok := catalog.Addon(id)
		if !ok {
			// subscribed before the addon was retired from the catalog
			s.log.Warn("active addon missing from catalog",
				zap.String("tenant", tenantSchema), zap.String("addon", id))
			continue
		}
		total += addon.PriceCents
	}
	return total, nil
}
