// Package domain defines the daily statistics snapshot written into each
// tenant schema and folded into the monthly usage ledger.
package domain

import (
	"context"
	"time"
)

// DailySummary is the recomputed snapshot for one tenant and one stat date.
// The month-to-date fields reflect the ledger after the day's visitors were
// folded in.
type DailySummary struct {
	StatDate          time.Time `json:"stat_date"`
	TotalVisitors     int64     `json:"total_visitors"`
	TotalBookings     int64     `json:"total_bookings"`
	TotalRevenueCents int64     `json:"total_revenue_cents"`
	TopCity           string    `json:"top_city,omitempty"`
	ReviewCount       int64     `json:"review_count"`
	AverageRating     float64   `json:"average_rating"`

	MonthVisitsTotal int64 `json:"month_visits_total"`
	OverageFeesCents int64 `json:"overage_fees_cents"`
}

// Service recomputes per-day tenant statistics and maintains the monthly
// visit roll-up. It is the only writer of the ledger's visits_total.
type Service interface {
	AggregateDailyStats(ctx context.Context, tenantSchema string, date time.Time) (DailySummary, error)
}
