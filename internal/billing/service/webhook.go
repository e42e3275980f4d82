package service

import (
	"context"
	"errors"

	billingdomain "github.com/znapsite/platform/internal/billing/domain"
	tenantdomain "github.com/znapsite/platform/internal/tenant/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HandleWebhook applies an already-verified processor event. Unknown event
// types and unresolvable tenants are logged and dropped, never failed:
// returning an error would make the processor redeliver something we will
// never be able to apply.
func (s *Service) HandleWebhook(ctx context.Context, event billingdomain.WebhookEvent) error {
	switch event.Type {
	case billingdomain.EventSubscriptionCreated,
		billingdomain.EventSubscriptionUpdated,
		billingdomain.EventSubscriptionDeleted:
		return s.applySubscriptionEvent(ctx, event)
	case billingdomain.EventInvoicePaid:
		return s.applyInvoiceEvent(ctx, event, "paid")
	case billingdomain.EventInvoicePaymentFail:
		return s.applyInvoiceEvent(ctx, event, "failed")
	default:
		s.log.Debug("ignoring webhook event", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return nil
	}
}

func (s *Service) applySubscriptionEvent(ctx context.Context, event billingdomain.WebhookEvent) error {
	schema, ok := event.Metadata["tenant_id"]
	if !ok || schema == "" {
		// Subscriptions that predate metadata tagging cannot be attributed.
		s.log.Warn("subscription event without tenant metadata",
			zap.String("event_id", event.ID),
			zap.String("subscription_id", event.SubscriptionID))
		return nil
	}

	tenant, err := s.tenants.GetBySchema(ctx, schema)
	if err != nil {
		if errors.Is(err, tenantdomain.ErrTenantNotFound) || errors.Is(err, tenantdomain.ErrInvalidTenantID) {
			s.log.Warn("subscription event for unknown tenant",
				zap.String("event_id", event.ID),
				zap.String("tenant", schema))
			return nil
		}
		return err
	}

	updates := map[string]any{"updated_at": s.clock.Now()}

	if event.Type == billingdomain.EventSubscriptionDeleted {
		updates["base_plan_type"] = tenantdomain.PlanFree
		updates["stripe_subscription_id"] = nil
	} else {
		updates["stripe_subscription_id"] = event.SubscriptionID
		if plan := tenantdomain.PlanType(event.Metadata["plan_type"]); plan.Valid() {
			updates["base_plan_type"] = plan
		}
	}

	err = s.db.WithContext(ctx).Table("tenants").Where("id = ?", tenant.ID).Updates(updates).Error
	if err != nil {
		return err
	}

	s.log.Info("applied subscription event",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("tenant", schema))
	return nil
}

func (s *Service) applyInvoiceEvent(ctx context.Context, event billingdomain.WebhookEvent, status string) error {
	if event.InvoiceID == "" {
		s.log.Warn("invoice event without invoice id", zap.String("event_id", event.ID))
		return nil
	}

	tenant, err := s.tenantByCustomerID(ctx, event.CustomerID)
	if err != nil {
		if errors.Is(err, tenantdomain.ErrTenantNotFound) {
			s.log.Warn("invoice event for unknown customer",
				zap.String("event_id", event.ID),
				zap.String("customer_id", event.CustomerID))
			return nil
		}
		return err
	}

	now := s.clock.Now()
	payload := event.Payload
	if payload == nil {
		payload = []byte("{}")
	}

	// Keyed by the external invoice id so redelivery converges on one row.
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO payment_history (id, tenant_id, stripe_invoice_id, status, amount_cents, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (stripe_invoice_id)
		 DO UPDATE SET status = excluded.status,
		               amount_cents = excluded.amount_cents,
		               updated_at = excluded.updated_at`,
		s.genID.Generate(), tenant.ID, event.InvoiceID, status, event.AmountCents, payload, now, now,
	).Error
}

func (s *Service) tenantByCustomerID(ctx context.Context, customerID string) (tenantdomain.Tenant, error) {
	if customerID == "" {
		return tenantdomain.Tenant{}, tenantdomain.ErrTenantNotFound
	}
	var tenant tenantdomain.Tenant
	err := s.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tenantdomain.Tenant{}, tenantdomain.ErrTenantNotFound
		}
		return tenantdomain.Tenant{}, err
	}
	return tenant, nil
}
