package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrNoSubscription = errors.New("no_subscription")
	ErrNoPriceMapping = errors.New("no_price_mapping")
	// ErrExternalSync wraps processor failures during a two-step
	// local+remote commit: the local half was deliberately not written.
	ErrExternalSync = errors.New("external_sync_failed")
)

// Service owns the AI-cost-cap admission path, ledger writes, subscription
// reads, and processor synchronization.
type Service interface {
	// CheckAICap answers "may this tenant keep spending on AI" cache-first,
	// falling back to the ledger and reseeding the cache on miss.
	CheckAICap(ctx context.Context, tenantSchema string) (CapStatus, error)
	// RecordAIUsage adds amountCents to the ledger, then bumps the cache
	// best-effort. The ledger write always comes first.
	RecordAIUsage(ctx context.Context, tenantSchema string, amountCents int64) error
	SubscriptionStatus(ctx context.Context, tenantSchema string) (SubscriptionStatus, error)
	HandleWebhook(ctx context.Context, event WebhookEvent) error
	AddSubscriptionItem(ctx context.Context, tenantSchema, addonID string) (string, error)
	ProvisionCustomer(ctx context.Context, tenantSchema string) (ProvisionResult, error)
}

// ItemCreator is the slice of Service the pricing flow depends on. It is
// wired only when a payment processor is configured.
type ItemCreator interface {
	AddSubscriptionItem(ctx context.Context, tenantSchema, addonID string) (string, error)
}

// MonthStart truncates t to the first instant of its calendar month (UTC).
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
