// Package domain defines the free-tier visit cap contract.
package domain

import "context"

// TrackResult is the admission decision for one visit. Paid plans are never
// limited and report Remaining -1.
type TrackResult struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
	AtCap     bool  `json:"at_cap"`
}

// CapUsage is the read-only cap position. Cap is -1 for unlimited plans.
type CapUsage struct {
	Current    int64   `json:"current"`
	Cap        int64   `json:"cap"`
	Percentage float64 `json:"percentage"`
}

// CapPrompt is the upgrade prompt payload shown to a capped tenant.
type CapPrompt struct {
	Message    string `json:"message"`
	UpgradeURL string `json:"upgrade_url"`
	Current    int64  `json:"current"`
	Cap        int64  `json:"cap"`
}

// Service enforces the free-tier monthly visit cap on the tenant row's
// current_month_visits counter.
type Service interface {
	// TrackVisit admits or denies one visit. The check-then-increment pair
	// is not atomic: concurrent requests near the cap can overshoot by a
	// bounded handful, which is accepted.
	TrackVisit(ctx context.Context, tenantSchema string) (TrackResult, error)
	CheckVisitCap(ctx context.Context, tenantSchema string) (CapUsage, error)
	// SendCapWarning is best-effort: the warning flag is set before dispatch
	// so a notifier failure never causes a duplicate send storm.
	SendCapWarning(ctx context.Context, tenantSchema string) error
	// ResetMonthlyCounters zeroes every free tenant's counter and warning
	// flag. Triggered externally at month start.
	ResetMonthlyCounters(ctx context.Context) error
	EnforceCap(ctx context.Context, tenantSchema string) (CapPrompt, error)
}
