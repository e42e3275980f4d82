package stripe

import (
	"context"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/znapsite/platform/internal/processor"
)

// Client talks to Stripe through the official SDK.
type Client struct {
	api *client.API
}

func New(apiKey string) *Client {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Client{api: api}
}

var _ processor.Client = (*Client)(nil)

func (c *Client) CreateCustomer(ctx context.Context, in processor.CustomerInput) (string, error) {
	params := &stripeapi.CustomerParams{
		Params: stripeapi.Params{Context: ctx},
		Name:   stripeapi.String(in.BusinessName),
	}
	if in.Email != "" {
		params.Email = stripeapi.String(in.Email)
	}
	params.AddMetadata("tenant_id", in.TenantSchema)

	customer, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return customer.ID, nil
}

func (c *Client) CreateSubscription(ctx context.Context, in processor.SubscriptionInput) (string, error) {
	params := &stripeapi.SubscriptionParams{
		Params:   stripeapi.Params{Context: ctx},
		Customer: stripeapi.String(in.CustomerID),
		Items: []*stripeapi.SubscriptionItemsParams{
			{Price: stripeapi.String(in.PriceID)},
		},
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	subscription, err := c.api.Subscriptions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create subscription: %w", err)
	}
	return subscription.ID, nil
}

func (c *Client) AddSubscriptionItem(ctx context.Context, subscriptionID, priceID string) (string, error) {
	params := &stripeapi.SubscriptionItemParams{
		Params:       stripeapi.Params{Context: ctx},
		Subscription: stripeapi.String(subscriptionID),
		Price:        stripeapi.String(priceID),
	}

	item, err := c.api.SubscriptionItems.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe add subscription item: %w", err)
	}
	return item.ID, nil
}
