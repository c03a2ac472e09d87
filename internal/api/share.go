package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quecocinohoy/backend/internal/middleware"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/types"
)

type ShareHandler struct {
	shares *service.ShareService
}

func NewShareHandler(shares *service.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

// RegisterRoutes mounts the share endpoints. Reading a share is public.
func (h *ShareHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	shares := router.Group("/shares")
	{
		shares.POST("", auth, h.Create)
		shares.GET("/:id", h.Get)
	}
}

func (h *ShareHandler) Create(c *gin.Context) {
	var req types.CreateShareRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.shares.Create(c.Request.Context(), middleware.UserID(c), req.Recipe)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ShareHandler) Get(c *gin.Context) {
	shared, err := h.shares.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, types.SharedRecipeResponse{
		ID:        shared.ID,
		Recipe:    shared.Recipe.Data(),
		CreatedAt: shared.CreatedAt,
	})
}
