package api

import (
	"github.com/gin-gonic/gin"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/middleware"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/validator"
)

// Services is everything the HTTP layer talks to.
type Services struct {
	Auth          *service.AuthService
	Entitlements  *service.EntitlementService
	Subscriptions *service.SubscriptionService
	Recipes       *service.RecipeService
	Favorites     *service.FavoriteService
	Shares        *service.ShareService
	History       *service.HistoryService
	Health        *HealthHandler
	Logger        *logger.Logger
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, svc Services) {
	if svc.Health != nil {
		router.GET("/health", svc.Health.Check)
	}

	auth := middleware.AuthMiddleware(svc.Auth)
	v1 := router.Group("/api/v1")

	NewAuthHandler(svc.Auth, svc.Entitlements).RegisterRoutes(v1, auth)
	NewSubscriptionHandler(svc.Subscriptions).RegisterRoutes(v1, auth)
	NewWebhookHandler(svc.Subscriptions, svc.Logger).RegisterRoutes(v1)
	NewRecipeHandler(svc.Recipes).RegisterRoutes(v1, auth)
	NewFavoriteHandler(svc.Favorites, svc.Entitlements).RegisterRoutes(v1, auth)
	NewShareHandler(svc.Shares).RegisterRoutes(v1, auth)
	NewHistoryHandler(svc.History).RegisterRoutes(v1, auth)
}

// bindJSON decodes and validates the request body into req. On failure the
// error is pushed onto the context and false is returned.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("El cuerpo de la solicitud no es válido.").
			Mark(ierr.ErrValidation))
		return false
	}
	if err := validator.ValidateRequest(req); err != nil {
		_ = c.Error(err)
		return false
	}
	return true
}
