package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	aggregationdomain "github.com/znapsite/platform/internal/aggregation/domain"
	billingdomain "github.com/znapsite/platform/internal/billing/domain"
	"github.com/znapsite/platform/internal/clock"
	"github.com/znapsite/platform/internal/config"
	tenantdomain "github.com/znapsite/platform/internal/tenant/domain"
	"github.com/znapsite/platform/pkg/db"
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
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	pricing *config.PricingHolder
	tenants tenantdomain.Repository
}

func NewService(p ServiceParam) aggregationdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("aggregation.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		pricing: p.Pricing,
		tenants: p.Tenants,
	}
}

// AggregateDailyStats recomputes the tenant's stats for the given date from
// the tenant-schema source tables, upserts the daily_stats row, and folds
// the day's distinct visitors into the monthly ledger. Re-running the same
// date recomputes the snapshot but also re-folds the visitors; callers
// trigger it once per day per tenant.
func (s *Service) AggregateDailyStats(ctx context.Context, tenantSchema string, date time.Time) (aggregationdomain.DailySummary, error) {
	tenant, err := s.tenants.GetBySchema(ctx, tenantSchema)
	if err != nil {
		return aggregationdomain.DailySummary{}, err
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	summary := aggregationdomain.DailySummary{StatDate: dayStart}

	bookings, revenue, err := s.bookingTotals(ctx, tenantSchema, dayStart, dayEnd)
	if err != nil {
		return aggregationdomain.DailySummary{}, err
	}
	summary.TotalBookings = bookings
	summary.TotalRevenueCents = revenue

	summary.TotalVisitors, err = s.distinctVisitors(ctx, tenantSchema, dayStart, dayEnd)
	if err != nil {
		return aggregationdomain.DailySummary{}, err
	}

	summary.TopCity, err = s.topCity(ctx, tenantSchema, dayStart, dayEnd)
	if err != nil {
		return aggregationdomain.DailySummary{}, err
	}

	summary.ReviewCount, summary.AverageRating, err = s.reviewTotals(ctx, tenantSchema, dayStart, dayEnd)
	if err != nil {
		return aggregationdomain.DailySummary{}, err
	}

	if err := s.upsertDailyStats(ctx, tenantSchema, summary); err != nil {
		return aggregationdomain.DailySummary{}, err
	}

	monthTotal, overage, err := s.foldIntoLedger(ctx, tenant.ID, dayStart, summary.TotalVisitors)
	if err != nil {
		return aggregationdomain.DailySummary{}, err
	}
	summary.MonthVisitsTotal = monthTotal
	summary.OverageFeesCents = overage

	s.log.Info("aggregated daily stats",
		zap.String("tenant", tenantSchema),
		zap.Time("stat_date", dayStart),
		zap.Int64("visitors", summary.TotalVisitors),
		zap.Int64("month_visits_total", monthTotal),
		zap.Int64("overage_fees_cents", overage))

	return summary, nil
}

func (s *Service) bookingTotals(ctx context.Context, schema string, from, to time.Time) (int64, int64, error) {
	bookingsTable, err := db.SchemaTable(s.db, schema, "bookings")
	if err != nil {
		return 0, 0, err
	}
	servicesTable, err := db.SchemaTable(s.db, schema, "services")
	if err != nil {
		return 0, 0, err
	}

	var row struct {
		TotalBookings     int64
		TotalRevenueCents int64
	}
	err = s.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT COUNT(1) AS total_bookings,
		        COALESCE(SUM(s.price_cents), 0) AS total_revenue_cents
		 FROM %s AS b
		 JOIN %s AS s ON s.id = b.service_id
		 WHERE b.booking_date >= ? AND b.booking_date < ?
		   AND b.status <> 'cancelled'`,
		bookingsTable, servicesTable,
	), from, to).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.TotalBookings, row.TotalRevenueCents, nil
}

func (s *Service) distinctVisitors(ctx context.Context, schema string, from, to time.Time) (int64, error) {
	visitsTable, err := db.SchemaTable(s.db, schema, "visits")
	if err != nil {
		return 0, err
	}

	var count int64
	err = s.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT COUNT(DISTINCT visitor_id) FROM %s
		 WHERE visited_at >= ? AND visited_at < ?`,
		visitsTable,
	), from, to).Scan(&count).Error
	return count, err
}

func (s *Service) topCity(ctx context.Context, schema string, from, to time.Time) (string, error) {
	visitsTable, err := db.SchemaTable(s.db, schema, "visits")
	if err != nil {
		return "", err
	}

	var city string
	err = s.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT city FROM %s
		 WHERE visited_at >= ? AND visited_at < ? AND city <> ''
		 GROUP BY city
		 ORDER BY COUNT(1) DESC, city ASC
		 LIMIT 1`,
		visitsTable,
	), from, to).Scan(&city).Error
	return city, err
}

func (s *Service) reviewTotals(ctx context.Context, schema string, from, to time.Time) (int64, float64, error) {
	reviewsTable, err := db.SchemaTable(s.db, schema, "reviews")
	if err != nil {
		return 0, 0, err
	}

	var row struct {
		ReviewCount   int64
		AverageRating float64
	}
	err = s.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT COUNT(1) AS review_count,
		        COALESCE(AVG(rating), 0) AS average_rating
		 FROM %s
		 WHERE created_at >= ? AND created_at < ?`,
		reviewsTable,
	), from, to).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.ReviewCount, row.AverageRating, nil
}

func (s *Service) upsertDailyStats(ctx context.Context, schema string, summary aggregationdomain.DailySummary) error {
	statsTable, err := db.SchemaTable(s.db, schema, "daily_stats")
	if err != nil {
		return err
	}

	now := s.clock.Now()
	// Recompute, never accumulate: rerunning a date overwrites the snapshot.
	return s.db.WithContext(ctx).Exec(fmt.Sprintf(
		`INSERT INTO %s (id, stat_date, total_visitors, total_bookings, total_revenue_cents, top_city, review_count, average_rating, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (stat_date)
		 DO UPDATE SET total_visitors = excluded.total_visitors,
		               total_bookings = excluded.total_bookings,
		               total_revenue_cents = excluded.total_revenue_cents,
		               top_city = excluded.top_city,
		               review_count = excluded.review_count,
		               average_rating = excluded.average_rating,
		               updated_at = excluded.updated_at`,
		statsTable,
	), s.genID.Generate(), summary.StatDate, summary.TotalVisitors, summary.TotalBookings,
		summary.TotalRevenueCents, summary.TopCity, summary.ReviewCount, summary.AverageRating,
		now, now,
	).Error
}

func (s *Service) foldIntoLedger(ctx context.Context, tenantID snowflake.ID, statDate time.Time, dayVisitors int64) (int64, int64, error) {
	month := billingdomain.MonthStart(statDate)
	metering := s.pricing.Get().Metering
	now := s.clock.Now()

	var newTotal, overage int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		err := tx.Raw(
			`SELECT COALESCE(SUM(visits_total), 0) FROM monthly_usage
			 WHERE tenant_id = ? AND month = ?`,
			tenantID, month,
		).Scan(&current).Error
		if err != nil {
			return err
		}

		newTotal = current + dayVisitors
		overage = OverageFees(newTotal, metering.VisitLimit, metering.OverageIncrementVisits, metering.OverageFeeCents)

		return tx.Exec(
			`INSERT INTO monthly_usage (id, tenant_id, month, ai_tokens_used, visits_total, overage_fees_cents, created_at, updated_at)
			 VALUES (?, ?, ?, 0, ?, ?, ?, ?)
			 ON CONFLICT (tenant_id, month)
			 DO UPDATE SET visits_total = excluded.visits_total,
			               overage_fees_cents = excluded.overage_fees_cents,
			               updated_at = excluded.updated_at`,
			s.genID.Generate(), tenantID, month, newTotal, overage, now, now,
		).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return newTotal, overage, nil
}

// OverageFees is the step function charged past the monthly visit limit:
// one fee per started increment over the limit, recomputed from the total.
func OverageFees(total, limit, increment, feeCents int64) int64 {
	if total <= limit || increment <= 0 {
		return 0
	}
	over := total - limit
	steps := (over + increment - 1) / increment
	return steps * feeCents
}
