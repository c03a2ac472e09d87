package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quecocinohoy/backend/internal/middleware"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/types"
)

type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

func (h *SubscriptionHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	group := router.Group("/subscriptions", auth)
	{
		group.POST("", h.Create)
		group.POST("/cancel", h.Cancel)
		group.GET("/me", h.Status)
	}
}

// Create starts a checkout and returns the gateway's init point.
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req types.CreateSubscriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.subscriptions.CreateSubscription(c.Request.Context(), middleware.UserID(c), service.CreateSubscriptionInput{
		Email:        req.Email,
		AccountEmail: middleware.Email(c),
		PlanType:     req.PlanType,
		FrontendURL:  req.FrontendURL,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	if err := h.subscriptions.CancelSubscription(c.Request.Context(), middleware.UserID(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, types.CancelSubscriptionResponse{Success: true})
}

func (h *SubscriptionHandler) Status(c *gin.Context) {
	resp, err := h.subscriptions.Status(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
