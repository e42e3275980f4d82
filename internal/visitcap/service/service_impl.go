package service

import (
	"context"
	"fmt"
	"time"

	"github.com/znapsite/platform/internal/cache"
	"github.com/znapsite/platform/internal/clock"
	"github.com/znapsite/platform/internal/config"
	"github.com/znapsite/platform/internal/providers/email"
	tenantdomain "github.com/znapsite/platform/internal/tenant/domain"
	visitcapdomain "github.com/znapsite/platform/internal/visitcap/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const resetLockKey = "visitcap:monthly_reset"

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	Pricing  *config.PricingHolder
	Tenants  tenantdomain.Repository
	Notifier email.Notifier
	Locker   *cache.Locker `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	pricing  *config.PricingHolder
	tenants  tenantdomain.Repository
	notifier email.Notifier
	locker   *cache.Locker
}

func NewService(p ServiceParam) visitcapdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("visitcap.service"),
		clock:    p.Clock,
		cfg:      p.Config,
		pricing:  p.Pricing,
		tenants:  p.Tenants,
		notifier: p.Notifier,
		locker:   p.Locker,
	}
}

func (s *Service) TrackVisit(ctx context.Context, tenantSchema string) (visitcapdomain.TrackResult, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return visitcapdomain.TrackResult{}, err
	}

	if tenant.BasePlanType != tenantdomain.PlanFree {
		return visitcapdomain.TrackResult{Allowed: true, Remaining: -1}, nil
	}

	current := tenant.CurrentMonthVisits
	cap := tenant.MonthlyVisitCap

	if current >= cap {
		return visitcapdomain.TrackResult{Allowed: false, Remaining: 0, AtCap: true}, nil
	}

	err = s.db.WithContext(ctx).Exec(
		`UPDATE tenants SET current_month_visits = current_month_visits + 1, updated_at = ? WHERE id = ?`,
		s.clock.Now(), tenant.ID,
	).Error
	if err != nil {
		return visitcapdomain.TrackResult{}, err
	}

	threshold := s.pricing.Get().Metering.WarningThreshold
	if !tenant.VisitCapWarningSent && float64(current) >= threshold*float64(cap) {
		if err := s.SendCapWarning(ctx, tenantSchema); err != nil {
			s.log.Warn("cap warning failed", zap.String("tenant", tenantSchema), zap.Error(err))
		}
	}

	return visitcapdomain.TrackResult{
		Allowed:   true,
		Remaining: cap - current - 1,
	}, nil
}

func (s *Service) CheckVisitCap(ctx context.Context, tenantSchema string) (visitcapdomain.CapUsage, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return visitcapdomain.CapUsage{}, err
	}

	if tenant.BasePlanType != tenantdomain.PlanFree {
		return visitcapdomain.CapUsage{Current: tenant.CurrentMonthVisits, Cap: -1}, nil
	}

	usage := visitcapdomain.CapUsage{
		Current: tenant.CurrentMonthVisits,
		Cap:     tenant.MonthlyVisitCap,
	}
	if tenant.MonthlyVisitCap > 0 {
		usage.Percentage = float64(tenant.CurrentMonthVisits) / float64(tenant.MonthlyVisitCap) * 100
	}
	if usage.Percentage > 100 {
		usage.Percentage = 100
	}
	if usage.Percentage < 0 {
		usage.Percentage = 0
	}
	return usage, nil
}

// SendCapWarning flips the warning flag first with a conditional update:
// whoever wins the update sends the email, everyone else backs off. Missing
// tenants, missing owner emails and notifier failures are logged, never
// returned, so tracking is not disturbed.
func (s *Service) SendCapWarning(ctx context.Context, tenantSchema string) error {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		s.log.Warn("cap warning: tenant lookup failed", zap.String("tenant", tenantSchema), zap.Error(err))
		return nil
	}

	res := s.db.WithContext(ctx).Exec(
		`UPDATE tenants SET visit_cap_warning_sent = ?, updated_at = ?
		 WHERE id = ? AND visit_cap_warning_sent = ?`,
		true, s.clock.Now(), tenant.ID, false,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// another request already claimed the send
		return nil
	}

	ownerEmail, err := s.tenants.OwnerEmail(ctx, tenant.ID)
	if err != nil || ownerEmail == "" {
		s.log.Warn("cap warning: no owner email", zap.String("tenant", tenantSchema), zap.Error(err))
		return nil
	}

	err = s.notifier.SendVisitCapWarning(ctx, ownerEmail, tenant.BusinessName, tenant.CurrentMonthVisits, tenant.MonthlyVisitCap)
	if err != nil {
		s.log.Warn("cap warning: send failed", zap.String("tenant", tenantSchema), zap.Error(err))
		return nil
	}

	s.log.Info("cap warning sent",
		zap.String("tenant", tenantSchema),
		zap.Int64("current", tenant.CurrentMonthVisits),
		zap.Int64("cap", tenant.MonthlyVisitCap))
	return nil
}

func (s *Service) ResetMonthlyCounters(ctx context.Context) error {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, resetLockKey, 10*time.Minute)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Info("monthly reset already running elsewhere, skipping")
			return nil
		}
		defer func() {
			if err := s.locker.Release(ctx, resetLockKey, token); err != nil {
				s.log.Warn("monthly reset lock release failed", zap.Error(err))
			}
		}()
	}

	res := s.db.WithContext(ctx).Exec(
		`UPDATE tenants SET current_month_visits = 0, visit_cap_warning_sent = ?, updated_at = ?
		 WHERE base_plan_type = ?`,
		false, s.clock.Now(), tenantdomain.PlanFree,
	)
	if res.Error != nil {
		return res.Error
	}

	s.log.Info("monthly visit counters reset", zap.Int64("tenants", res.RowsAffected))
	return nil
}

func (s *Service) EnforceCap(ctx context.Context, tenantSchema string) (visitcapdomain.CapPrompt, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return visitcapdomain.CapPrompt{}, err
	}

	return visitcapdomain.CapPrompt{
		Message: fmt.Sprintf(
			"%s has reached its monthly limit of %d visits. Upgrade to keep tracking visitors.",
			tenant.BusinessName, tenant.MonthlyVisitCap,
		),
		UpgradeURL: s.cfg.UpgradeURL,
		Current:    tenant.CurrentMonthVisits,
		Cap:        tenant.MonthlyVisitCap,
	}, nil
}
