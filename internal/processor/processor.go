// Package processor abstracts the external payment processor. All methods
// perform remote side effects; callers sequence them before local commits.
package processor

import "context"

type CustomerInput struct {
	Email        string
	BusinessName string
	TenantSchema string
}

type SubscriptionInput struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
}

// Client is the outbound surface of the payment processor. A nil Client
// means the deployment runs without billing sync (degraded mode).
type Client interface {
	CreateCustomer(ctx context.Context, in CustomerInput) (string, error)
	CreateSubscription(ctx context.Context, in SubscriptionInput) (string, error)
	// AddSubscriptionItem appends a line item to an existing subscription,
	// preserving its existing items, and returns the new item id.
	AddSubscriptionItem(ctx context.Context, subscriptionID, priceID string) (string, error)
}
