// Package domain holds the add-on subscription lifecycle model.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// AddonSubscription is one row per (tenant, addon). Unsubscribing soft
// deletes; resubscribing reactivates the same row. Category is snapshotted
// from the catalog at subscribe time so later catalog edits do not reclassify
// existing rows. An active row with a non-empty item id corresponds to a live
// line item at the payment processor.
type AddonSubscription struct {
	ID                       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID                 snowflake.ID `gorm:"not null;uniqueIndex:uidx_tenant_addon,priority:1" json:"tenant_id"`
	AddonID                  string       `gorm:"type:text;not null;uniqueIndex:uidx_tenant_addon,priority:2" json:"addon_id"`
	Category                 string       `gorm:"type:text;not null" json:"category"`
	IsActive                 bool         `gorm:"not null;default:true" json:"is_active"`
	StripeSubscriptionItemID *string      `gorm:"type:text" json:"stripe_subscription_item_id,omitempty"`
	SubscribedAt             time.Time    `gorm:"not null" json:"subscribed_at"`
	CancelledAt              *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt                time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt                time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (AddonSubscription) TableName() string { return "tenant_addon_subscriptions" }

var (
	ErrUnknownAddon       = errors.New("unknown_addon")
	ErrAddonInactive      = errors.New("addon_inactive")
	ErrAddonNotSubscribed = errors.New("addon_not_subscribed")
)

// Service manages the add-on lifecycle and prices the monthly bill.
type Service interface {
	// SubscribeToAddon validates the addon against the catalog, creates the
	// external line item first when billing is wired (failure writes
	// nothing), then upserts the local row.
	SubscribeToAddon(ctx context.Context, tenantSchema, addonID string) (*AddonSubscription, error)
	// UnsubscribeFromAddon soft-deletes the active row. The external line
	// item is left alive; reconciliation is a manual operation.
	UnsubscribeFromAddon(ctx context.Context, tenantSchema, addonID string) error
	CalculateMonthlyTotal(ctx context.Context, tenantSchema string) (int64, error)
}
