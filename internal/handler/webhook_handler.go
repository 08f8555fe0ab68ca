package handler

import (
	"io"
	"log"
	"net/http"

	"reportgate/internal/service"
	"reportgate/pkg/stripe"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	checkout      *service.CheckoutService
	webhookSecret string
}

func NewWebhookHandler(checkout *service.CheckoutService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{checkout: checkout, webhookSecret: webhookSecret}
}

// HandleStripe verifies and processes gateway events.
// POST /api/v1/webhooks/stripe
//
// Verified events are always acknowledged with 200, even when processing
// fails: the gateway would otherwise retry into the same error, and the
// client-return confirmation is the recovery path. Only signature failures
// get a 4xx.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	event, err := stripe.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		log.Printf("[WEBHOOK] rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if err := h.checkout.HandleEvent(c.Request.Context(), event); err != nil {
		log.Printf("[WEBHOOK] event %s (%s) failed: %v", event.ID, event.RawType, err)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
