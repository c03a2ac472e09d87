package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quecocinohoy/backend/internal/middleware"
	"github.com/quecocinohoy/backend/internal/models"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/types"
)

type AuthHandler struct {
	auth         *service.AuthService
	entitlements service.EntitlementReader
}

func NewAuthHandler(auth *service.AuthService, entitlements service.EntitlementReader) *AuthHandler {
	return &AuthHandler{auth: auth, entitlements: entitlements}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	group := router.Group("/auth")
	{
		group.POST("/register", h.Register)
		group.POST("/login", h.Login)
		group.GET("/me", auth, h.Me)
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req types.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req types.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.GetUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp, err := h.userResponse(c, user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := h.auth.TokenFor(user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp, err := h.userResponse(c, user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(status, types.AuthResponse{Token: token, User: *resp})
}

func (h *AuthHandler) userResponse(c *gin.Context, user *models.User) (*types.UserResponse, error) {
	isPremium, err := h.entitlements.IsPremium(c.Request.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	return &types.UserResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		IsPremium:    isPremium,
		Capabilities: service.CapabilitiesFor(isPremium),
	}, nil
}
