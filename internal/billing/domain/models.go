// Package domain contains the monthly usage ledger and billing read models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/znapsite/platform/internal/tenant/domain"
	"gorm.io/datatypes"
)

// UsageLedgerEntry is one ledger row per (tenant, calendar month). The
// ai_tokens_used column holds cents of AI cost, not tokens; the name is a
// wire-compatibility holdover. Counters only grow within a month.
type UsageLedgerEntry struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID `gorm:"not null;uniqueIndex:uidx_monthly_usage,priority:1" json:"tenant_id"`
	Month            time.Time    `gorm:"not null;uniqueIndex:uidx_monthly_usage,priority:2" json:"month"`
	AITokensUsed     int64        `gorm:"column:ai_tokens_used;not null;default:0" json:"ai_tokens_used"`
	VisitsTotal      int64        `gorm:"not null;default:0" json:"visits_total"`
	OverageFeesCents int64        `gorm:"not null;default:0" json:"overage_fees_cents"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageLedgerEntry) TableName() string { return "monthly_usage" }

// PaymentRecord stores one webhook-applied invoice outcome per external
// invoice id; redelivery upserts the same row.
type PaymentRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID   `gorm:"not null;index" json:"tenant_id"`
	StripeInvoiceID string         `gorm:"type:text;not null;uniqueIndex" json:"stripe_invoice_id"`
	Status          string         `gorm:"type:text;not null" json:"status"` // paid | failed
	AmountCents     int64          `gorm:"not null;default:0" json:"amount_cents"`
	Payload         datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PaymentRecord) TableName() string { return "payment_history" }

// CapStatus is the admission decision for the AI cost cap.
type CapStatus struct {
	Capped         bool  `json:"capped"`
	UsedCents      int64 `json:"used_cents"`
	CapCents       int64 `json:"cap_cents"`
	RemainingCents int64 `json:"remaining_cents"`
}

// SubscriptionStatus combines the tenant's base plan with independently
// counted add-on state. Design studio access is a pure function of the
// base plan, never of add-ons.
type SubscriptionStatus struct {
	BasePlanType          tenantdomain.PlanType `json:"base_plan_type"`
	StripeCustomerID      string                `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID  string                `json:"stripe_subscription_id,omitempty"`
	ActivePremiumAddons   int64                 `json:"active_premium_addons"`
	CanAccessDesignStudio bool                  `json:"can_access_design_studio"`
}

// ProvisionResult reports the external ids created or reused for a tenant.
type ProvisionResult struct {
	StripeCustomerID     string `json:"stripe_customer_id"`
	StripeSubscriptionID string `json:"stripe_subscription_id"`
}

// Webhook event types applied by this core. Delivery is at-least-once;
// application is idempotent keyed by external id.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.paid"
	EventInvoicePaymentFail  = "invoice.payment_failed"
)

// WebhookEvent is the processor event already verified and decoded by the
// transport layer.
type WebhookEvent struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	InvoiceID      string            `json:"invoice_id,omitempty"`
	CustomerID     string            `json:"customer_id,omitempty"`
	AmountCents    int64             `json:"amount_cents,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Payload        []byte            `json:"-"`
}
