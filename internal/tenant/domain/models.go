// Package domain contains the tenant account model shared by the metering
// and billing services.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PlanType is a tenant's base plan.
type PlanType string

const (
	PlanFree      PlanType = "free"
	PlanStandard  PlanType = "standard"
	PlanAIPowered PlanType = "ai_powered"
)

// Valid reports whether p is a known base plan.
func (p PlanType) Valid() bool {
	switch p {
	case PlanFree, PlanStandard, PlanAIPowered:
		return true
	}
	return false
}

// Tenant is a business account. SchemaName (tenant_<slug>) doubles as the
// tenant identifier on every public API. CurrentMonthVisits is the free-tier
// hard-cap counter and is distinct from the monthly ledger's visits_total.
type Tenant struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	SchemaName           string       `gorm:"type:text;not null;uniqueIndex" json:"schema_name"`
	BusinessName         string       `gorm:"type:text;not null" json:"business_name"`
	BasePlanType         PlanType     `gorm:"type:text;not null;default:'free'" json:"base_plan_type"`
	StripeCustomerID     *string      `gorm:"type:text" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string      `gorm:"type:text" json:"stripe_subscription_id,omitempty"`
	MonthlyVisitCap      int64        `gorm:"not null;default:5000" json:"monthly_visit_cap"`
	CurrentMonthVisits   int64        `gorm:"not null;default:0" json:"current_month_visits"`
	VisitCapWarningSent  bool         `gorm:"not null;default:false" json:"visit_cap_warning_sent"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

var (
	ErrTenantNotFound  = errors.New("tenant_not_found")
	ErrInvalidTenantID = errors.New("invalid_tenant_id")
)

// Repository reads tenant account rows from the shared schema.
type Repository interface {
	GetBySchema(ctx context.Context, schema string) (*Tenant, error)
	// OwnerEmail resolves the notification address for cap warnings.
	// Returns empty string, nil error when no owner user exists.
	OwnerEmail(ctx context.Context, tenantID snowflake.ID) (string, error)
}
