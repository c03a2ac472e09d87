package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/types"
)

// WebhookHandler receives payment gateway notifications. Every POST is
// acknowledged with 200 so the gateway stops retrying; failures are only logged.
type WebhookHandler struct {
	subscriptions *service.SubscriptionService
	log           *logger.Logger
}

func NewWebhookHandler(subscriptions *service.SubscriptionService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{subscriptions: subscriptions, log: log.Named("webhook")}
}

func (h *WebhookHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.Any("/webhooks/mercadopago", h.Handle)
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, ierr.NewErrorResponse(
			ierr.NewError("method not allowed").WithHint("Método no permitido.").Mark(ierr.ErrValidation),
		))
		return
	}

	var n types.GatewayNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		h.log.Warnw("unreadable webhook body", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": service.OutcomeIgnored})
		return
	}

	outcome, err := h.subscriptions.HandleNotification(c.Request.Context(), n)
	if err != nil {
		h.log.Errorw("failed to process webhook",
			"type", n.Type,
			"gateway_subscription_id", n.Data.ID,
			"error", err,
		)
		outcome = service.OutcomeIgnored
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
