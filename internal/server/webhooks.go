package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v81/webhook"
	billingdomain "github.com/znapsite/platform/internal/billing/domain"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 65536

type subscriptionPayload struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID         string `json:"id"`
	Customer   string `json:"customer"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
}

// rawEvent mirrors the envelope Stripe posts; used when no signing secret is
// configured (local development only).
type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func (s *Server) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var id, eventType string
	var object json.RawMessage

	if secret := s.cfg.StripeWebhookSecret; secret != "" {
		ev, err := webhook.ConstructEvent(body, c.GetHeader("Stripe-Signature"), secret)
		if err != nil {
			s.log.Warn("webhook signature rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		id = ev.ID
		eventType = string(ev.Type)
		object = json.RawMessage(ev.Data.Raw)
	} else {
		s.log.Warn("webhook signing secret not configured, accepting unverified event")
		var ev rawEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		id = ev.ID
		eventType = ev.Type
		object = ev.Data.Object
	}

	event := billingdomain.WebhookEvent{
		ID:      id,
		Type:    eventType,
		Payload: body,
	}

	switch eventType {
	case billingdomain.EventSubscriptionCreated,
		billingdomain.EventSubscriptionUpdated,
		billingdomain.EventSubscriptionDeleted:
		var sub subscriptionPayload
		if err := json.Unmarshal(object, &sub); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		event.SubscriptionID = sub.ID
		event.Metadata = sub.Metadata
	case billingdomain.EventInvoicePaid, billingdomain.EventInvoicePaymentFail:
		var inv invoicePayload
		if err := json.Unmarshal(object, &inv); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		event.InvoiceID = inv.ID
		event.CustomerID = inv.Customer
		event.AmountCents = inv.AmountPaid
		if event.AmountCents == 0 {
			event.AmountCents = inv.AmountDue
		}
	}

	s.metrics.WebhookEvents.WithLabelValues(eventType).Inc()

	if err := s.billingSvc.HandleWebhook(c.Request.Context(), event); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
